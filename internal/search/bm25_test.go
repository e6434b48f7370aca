package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qmd-search/qmd/internal/store"
)

func TestBM25Search_ReturnsMatchingDocumentWithSnippet(t *testing.T) {
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.AddOrUpdateDocument(ctx, "notes", "alpha.md", "alpha is a greek letter used often")
	require.NoError(t, err)
	_, err = st.AddOrUpdateDocument(ctx, "notes", "beta.md", "beta follows alpha in the alphabet")
	require.NoError(t, err)

	b := NewBM25Search(st)
	hits, err := b.Search(ctx, "greek", 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "alpha.md", hits[0].FilePath)
	require.NotEmpty(t, hits[0].Snippet)
}

func TestBM25Search_FiltersByCollection(t *testing.T) {
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.AddOrUpdateDocument(ctx, "work", "a.md", "shared term appears here")
	require.NoError(t, err)
	_, err = st.AddOrUpdateDocument(ctx, "personal", "b.md", "shared term appears here too")
	require.NoError(t, err)

	b := NewBM25Search(st)
	hits, err := b.Search(ctx, "shared", 10, "work")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a.md", hits[0].FilePath)
}

func TestBM25Search_NoMatchReturnsEmpty(t *testing.T) {
	st, err := store.Open("", 0)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.AddOrUpdateDocument(ctx, "notes", "a.md", "nothing relevant here")
	require.NoError(t, err)

	b := NewBM25Search(st)
	hits, err := b.Search(ctx, "nonexistentterm", 10, "")
	require.NoError(t, err)
	require.Empty(t, hits)
}
