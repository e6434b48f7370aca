package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	err := New(ErrCodeDocumentNotFound, "document 'abc123' not found", nil)

	result := FormatForUser(err, false)

	assert.Contains(t, result, "document 'abc123' not found")
	assert.Contains(t, result, "[ERR_102_DOCUMENT_NOT_FOUND]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	err := New(ErrCodeEmbedderUnavailable, "local embedding server is not running", nil).
		WithSuggestion("start the local inference server or switch providers")

	result := FormatForUser(err, false)

	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "start the local inference server")
}

func TestFormatForUser_NoStackTraceInNormalMode(t *testing.T) {
	err := New(ErrCodeInternal, "unexpected error", nil)

	result := FormatForUser(err, false)

	assert.NotContains(t, result, "Stack trace:")
	assert.NotContains(t, result, "goroutine")
}

func TestFormatForUser_StandardError(t *testing.T) {
	err := errors.New("something went wrong")

	result := FormatForUser(err, false)

	assert.Contains(t, result, "something went wrong")
}

func TestFormatForUser_NilError(t *testing.T) {
	result := FormatForUser(nil, false)

	assert.Empty(t, result)
}

func TestFormatJSON_BasicError(t *testing.T) {
	err := New(ErrCodeDocumentNotFound, "document not found", nil).
		WithDetail("docid", "a1b2c3").
		WithSuggestion("check the docid prefix")

	data, jsonErr := FormatJSON(err)

	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeDocumentNotFound, result["code"])
	assert.Equal(t, "document not found", result["message"])
	assert.Equal(t, string(CategoryNotFound), result["category"])
	assert.Equal(t, string(SeverityError), result["severity"])
	assert.Equal(t, "check the docid prefix", result["suggestion"])

	details, ok := result["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a1b2c3", details["docid"])
}

func TestFormatJSON_StandardError(t *testing.T) {
	err := errors.New("generic error")

	data, jsonErr := FormatJSON(err)

	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeInternal, result["code"])
	assert.Equal(t, "generic error", result["message"])
}

func TestFormatJSON_NilError(t *testing.T) {
	data, err := FormatJSON(nil)

	assert.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(data)))
}

func TestFormatJSON_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeInternal, "operation failed", cause)

	data, jsonErr := FormatJSON(err)

	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "underlying error", result["cause"])
}

func TestFormatForCLI_FormatsErrorInfo(t *testing.T) {
	err := New(ErrCodeIndexCorrupt, "bm25 index is corrupted", nil).
		WithSuggestion("run 'qmd cleanup --rebuild-index' to rebuild")

	result := FormatForCLI(err)

	assert.Contains(t, result, "bm25 index is corrupted")
	assert.Contains(t, result, "ERR_601_INDEX_CORRUPT")
}

func TestFormatForCLI_ShortFormat(t *testing.T) {
	err := New(ErrCodeDocumentNotFound, "document not found", nil)

	result := FormatForCLI(err)

	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.LessOrEqual(t, len(lines), 5, "Should be concise")
}
