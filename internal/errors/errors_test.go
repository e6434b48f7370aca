package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQmdError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	qmdErr := New(ErrCodeDocumentNotFound, "document not found: abc123", originalErr)

	require.NotNil(t, qmdErr)
	assert.Equal(t, originalErr, errors.Unwrap(qmdErr))
	assert.True(t, errors.Is(qmdErr, originalErr))
}

func TestQmdError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "not found",
			code:     ErrCodeCollectionNotFound,
			message:  "collection not found",
			expected: "[ERR_101_COLLECTION_NOT_FOUND] collection not found",
		},
		{
			name:     "conflict",
			code:     ErrCodeDocidAmbiguous,
			message:  "docid prefix matches multiple documents",
			expected: "[ERR_202_DOCID_AMBIGUOUS] docid prefix matches multiple documents",
		},
		{
			name:     "provider unavailable",
			code:     ErrCodeEmbedderUnavailable,
			message:  "embedding provider unreachable",
			expected: "[ERR_301_EMBEDDER_UNAVAILABLE] embedding provider unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestQmdError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeDocumentNotFound, "document A not found", nil)
	err2 := New(ErrCodeDocumentNotFound, "document B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestQmdError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeDocumentNotFound, "document not found", nil)
	err2 := New(ErrCodeCollectionNotFound, "collection not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestQmdError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeDocumentNotFound, "document not found", nil)

	err = err.WithDetail("docid", "a1b2c3")
	err = err.WithDetail("collection", "notes")

	assert.Equal(t, "a1b2c3", err.Details["docid"])
	assert.Equal(t, "notes", err.Details["collection"])
}

func TestQmdError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeDocidAmbiguous, "ambiguous docid", nil)

	err = err.WithSuggestion("use more characters of the docid")

	assert.Equal(t, "use more characters of the docid", err.Suggestion)
}

func TestQmdError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeCollectionNotFound, CategoryNotFound},
		{ErrCodeDocumentNotFound, CategoryNotFound},
		{ErrCodeDocidAmbiguous, CategoryConflict},
		{ErrCodeDimensionMismatch, CategoryConflict},
		{ErrCodeEmbedderUnavailable, CategoryProviderUnavailable},
		{ErrCodeLLMUnavailable, CategoryProviderUnavailable},
		{ErrCodeRateLimited, CategoryProviderOverload},
		{ErrCodeDocumentTooLarge, CategoryOversize},
		{ErrCodeIndexCorrupt, CategoryCorruption},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestQmdError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeIndexCorrupt, SeverityFatal},
		{ErrCodeVectorCorrupt, SeverityFatal},
		{ErrCodeDocumentNotFound, SeverityError},
		{ErrCodeEmbedderUnavailable, SeverityWarning},
		{ErrCodeRateLimited, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestQmdError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeEmbedderUnavailable, true},
		{ErrCodeLLMUnavailable, true},
		{ErrCodeRateLimited, true},
		{ErrCodeProviderBusy, true},
		{ErrCodeDocumentNotFound, false},
		{ErrCodeDocidAmbiguous, false},
		{ErrCodeIndexCorrupt, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesQmdErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	qmdErr := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, qmdErr)
	assert.Equal(t, ErrCodeInternal, qmdErr.Code)
	assert.Equal(t, "something went wrong", qmdErr.Message)
	assert.Equal(t, originalErr, qmdErr.Cause)
}

func TestNotFound_CreatesNotFoundCategoryError(t *testing.T) {
	err := NotFound(ErrCodeContextNotFound, "path context not found", nil)

	assert.Equal(t, CategoryNotFound, err.Category)
}

func TestConflict_CreatesConflictCategoryError(t *testing.T) {
	err := Conflict(ErrCodeCollectionExists, "collection already exists", nil)

	assert.Equal(t, CategoryConflict, err.Category)
}

func TestProviderUnavailable_CreatesRetryableError(t *testing.T) {
	err := ProviderUnavailable("connection refused", nil)

	assert.Equal(t, CategoryProviderUnavailable, err.Category)
	assert.True(t, err.Retryable)
}

func TestProviderOverload_CreatesRetryableError(t *testing.T) {
	err := ProviderOverload("rate limited", nil)

	assert.Equal(t, CategoryProviderOverload, err.Category)
	assert.True(t, err.Retryable)
}

func TestOversize_CreatesOversizeCategoryError(t *testing.T) {
	err := Oversize(ErrCodeQueryTooLong, "query exceeds max length", nil)

	assert.Equal(t, CategoryOversize, err.Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable QmdError",
			err:      New(ErrCodeEmbedderUnavailable, "unavailable", nil),
			expected: true,
		},
		{
			name:     "non-retryable QmdError",
			err:      New(ErrCodeDocumentNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeRateLimited, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal error",
			err:      New(ErrCodeIndexCorrupt, "index corrupt", nil),
			expected: true,
		},
		{
			name:     "fatal vector error",
			err:      New(ErrCodeVectorCorrupt, "vector table corrupt", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeDocumentNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}
