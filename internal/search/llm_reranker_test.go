package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qmd-search/qmd/internal/llmhost"
	"github.com/qmd-search/qmd/internal/store"
)

type fakeRerankerContext struct {
	calls  int
	scores map[string]float64
}

func (c *fakeRerankerContext) Score(ctx context.Context, query, document string) (float64, error) {
	c.calls++
	return c.scores[query+"\x00"+document], nil
}

func (c *fakeRerankerContext) Close() error { return nil }

type fakeRerankerModel struct {
	ctx *fakeRerankerContext
}

func (m *fakeRerankerModel) NewContext(ctx context.Context) (llmhost.Context, error) {
	return m.ctx, nil
}

func (m *fakeRerankerModel) Close() error { return nil }

func newTestRerankerHost(scores map[string]float64) (*llmhost.Host, *fakeRerankerContext) {
	rc := &fakeRerankerContext{scores: scores}
	h := llmhost.NewHost()
	h.Register(llmhost.RoleReranker, func(ctx context.Context) (llmhost.Model, error) {
		return &fakeRerankerModel{ctx: rc}, nil
	})
	return h, rc
}

func TestLLMReranker_PreservesInputOrder(t *testing.T) {
	host, _ := newTestRerankerHost(map[string]float64{
		"q\x00a": 0.2,
		"q\x00b": 0.9,
		"q\x00c": 0.5,
	})
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	r := NewLLMReranker(host, st, "test-model")
	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "a", results[0].Document)
	require.InDelta(t, 0.2, results[0].Score, 1e-9)
	require.Equal(t, "b", results[1].Document)
	require.InDelta(t, 0.9, results[1].Score, 1e-9)
	require.Equal(t, "c", results[2].Document)
	require.InDelta(t, 0.5, results[2].Score, 1e-9)
}

func TestLLMReranker_TruncatesToFirstTopK(t *testing.T) {
	host, _ := newTestRerankerHost(map[string]float64{"q\x00a": 0.1, "q\x00b": 0.1, "q\x00c": 0.1})
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	r := NewLLMReranker(host, st, "test-model")
	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].Document)
	require.Equal(t, "b", results[1].Document)
}

func TestLLMReranker_CachesPerQueryDocumentPair(t *testing.T) {
	host, rc := newTestRerankerHost(map[string]float64{"q\x00a": 0.4})
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	r := NewLLMReranker(host, st, "test-model")

	_, err = r.Rerank(context.Background(), "q", []string{"a"}, 0)
	require.NoError(t, err)
	_, err = r.Rerank(context.Background(), "q", []string{"a"}, 0)
	require.NoError(t, err)

	require.Equal(t, 1, rc.calls)
}

func TestLLMReranker_AvailableReflectsHostAcquire(t *testing.T) {
	host, _ := newTestRerankerHost(nil)
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	r := NewLLMReranker(host, st, "test-model")
	require.True(t, r.Available(context.Background()))

	emptyHost := llmhost.NewHost()
	r2 := NewLLMReranker(emptyHost, st, "test-model")
	require.False(t, r2.Available(context.Background()))
}
