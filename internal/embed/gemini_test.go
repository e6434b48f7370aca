package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeminiEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiEmbedder(GeminiConfig{})
	require.Error(t, err)
}

func TestGeminiEmbedder_SelectsTaskTypeFromIsQuery(t *testing.T) {
	var gotTaskType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Requests)
		gotTaskType = req.Requests[0].TaskType

		resp := geminiBatchResponse{}
		for range req.Requests {
			resp.Embeddings = append(resp.Embeddings, struct {
				Values []float32 `json:"values"`
			}{Values: []float32{1, 0}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e, err := NewGeminiEmbedder(GeminiConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "what is the deadline", true)
	require.NoError(t, err)
	require.Equal(t, "RETRIEVAL_QUERY", gotTaskType)

	_, err = e.Embed(context.Background(), "the deadline is friday", false)
	require.NoError(t, err)
	require.Equal(t, "RETRIEVAL_DOCUMENT", gotTaskType)
}
