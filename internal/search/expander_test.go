package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qmd-search/qmd/internal/llmhost"
	"github.com/qmd-search/qmd/internal/store"
)

type fakeGeneratorContext struct {
	calls    int
	response string
	err      error
}

func (c *fakeGeneratorContext) Generate(ctx context.Context, prompt string) (string, error) {
	c.calls++
	return c.response, c.err
}

func (c *fakeGeneratorContext) Close() error { return nil }

type fakeGeneratorModel struct {
	ctx *fakeGeneratorContext
}

func (m *fakeGeneratorModel) NewContext(ctx context.Context) (llmhost.Context, error) {
	return m.ctx, nil
}

func (m *fakeGeneratorModel) Close() error { return nil }

func newTestGeneratorHost(response string, err error) (*llmhost.Host, *fakeGeneratorContext) {
	gc := &fakeGeneratorContext{response: response, err: err}
	h := llmhost.NewHost()
	h.Register(llmhost.RoleGenerator, func(ctx context.Context) (llmhost.Model, error) {
		return &fakeGeneratorModel{ctx: gc}, nil
	})
	return h, gc
}

func TestQueryExpander_ExpandReturnsVariantsFromGenerator(t *testing.T) {
	host, _ := newTestGeneratorHost(`["variant one", "variant two"]`, nil)
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	e := NewQueryExpander(host, st, "test-model")
	variants, err := e.Expand(context.Background(), "original query")
	require.NoError(t, err)
	require.Equal(t, []string{"variant one", "variant two"}, variants)
}

func TestQueryExpander_TruncatesToTwoVariants(t *testing.T) {
	host, _ := newTestGeneratorHost(`["a", "b", "c"]`, nil)
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	e := NewQueryExpander(host, st, "test-model")
	variants, err := e.Expand(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, variants)
}

func TestQueryExpander_EmptyQueryReturnsNil(t *testing.T) {
	host, _ := newTestGeneratorHost("", nil)
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	e := NewQueryExpander(host, st, "test-model")
	variants, err := e.Expand(context.Background(), "   ")
	require.NoError(t, err)
	require.Nil(t, variants)
}

func TestQueryExpander_UnavailableGeneratorReturnsEmptyNoError(t *testing.T) {
	host := llmhost.NewHost() // no generator registered
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	e := NewQueryExpander(host, st, "test-model")
	variants, err := e.Expand(context.Background(), "q")
	require.NoError(t, err)
	require.Empty(t, variants)
}

func TestQueryExpander_UnparseableResponseReturnsEmptyNoError(t *testing.T) {
	host, _ := newTestGeneratorHost("not json", nil)
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	e := NewQueryExpander(host, st, "test-model")
	variants, err := e.Expand(context.Background(), "q")
	require.NoError(t, err)
	require.Empty(t, variants)
}

func TestQueryExpander_CachesByModelAndQuery(t *testing.T) {
	host, gc := newTestGeneratorHost(`["x", "y"]`, nil)
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	e := NewQueryExpander(host, st, "test-model")

	_, err = e.Expand(context.Background(), "repeated query")
	require.NoError(t, err)
	_, err = e.Expand(context.Background(), "repeated query")
	require.NoError(t, err)

	require.Equal(t, 1, gc.calls)
}
