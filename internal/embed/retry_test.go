package embed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownloadWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := DownloadWithRetry(context.Background(), RetryConfig{MaxRetries: 3, InitialDelay: 0, MaxDelay: 0, Multiplier: 1}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDownloadWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	err := DownloadWithRetry(context.Background(), RetryConfig{MaxRetries: 2, InitialDelay: 0, MaxDelay: 0, Multiplier: 1}, func() error {
		return errors.New("permanent")
	})
	require.Error(t, err)
}

func TestDoWithRetryOn429_HonorsRetryAfterThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := doWithRetryOn429(context.Background(), 2, func() (*http.Response, error) {
		return http.Get(srv.URL)
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, attempts)
}

func TestDoWithRetryOn429_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := doWithRetryOn429(context.Background(), 1, func() (*http.Response, error) {
		return http.Get(srv.URL)
	})
	require.Error(t, err)
}
