package llmhost

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratorContext_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "expand two variants of this query", req.Prompt)
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "[\"a\",\"b\"]"})
	}))
	defer srv.Close()

	model := NewGeneratorModel(HTTPConfig{Endpoint: srv.URL, ModelID: "test-model"})
	ctx, err := model.NewContext(context.Background())
	require.NoError(t, err)
	gc := ctx.(GeneratorContext)

	out, err := gc.Generate(context.Background(), "expand two variants of this query")
	require.NoError(t, err)
	require.Equal(t, `["a","b"]`, out)
}

func TestGeneratorContext_NonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	model := NewGeneratorModel(HTTPConfig{Endpoint: srv.URL})
	ctx, err := model.NewContext(context.Background())
	require.NoError(t, err)

	_, err = ctx.(GeneratorContext).Generate(context.Background(), "hi")
	require.Error(t, err)
}

func TestRerankerContext_ScoreConvertsLogProbsToProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "q", req.Query)
		require.Equal(t, "d", req.Document)
		_ = json.NewEncoder(w).Encode(rerankResponse{LogProbYes: 0, LogProbNo: -1000})
	}))
	defer srv.Close()

	model := NewRerankerModel(HTTPConfig{Endpoint: srv.URL})
	ctx, err := model.NewContext(context.Background())
	require.NoError(t, err)

	score, err := ctx.(RerankerContext).Score(context.Background(), "q", "d")
	require.NoError(t, err)
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestYesNoProbability_EqualLogProbsIsHalf(t *testing.T) {
	require.InDelta(t, 0.5, yesNoProbability(-1, -1), 1e-9)
}

func TestYesNoProbability_BothNegativeInfinityIsHalf(t *testing.T) {
	require.InDelta(t, 0.5, yesNoProbability(math.Inf(-1), math.Inf(-1)), 1e-9)
}
