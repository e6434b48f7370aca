package search

import (
	"context"

	"github.com/qmd-search/qmd/internal/store"
)

// BM25Search runs keyword search against the store's FTS5 index (spec.md
// §4.E). It is a thin wrapper: the ranking and snippet generation both live
// in the store layer, since FTS5 does both natively.
type BM25Search struct {
	store *store.Store
}

// NewBM25Search returns a BM25Search backed by st.
func NewBM25Search(st *store.Store) *BM25Search {
	return &BM25Search{store: st}
}

// Search returns up to limit documents matching query, best first.
// collection, if non-empty, restricts results to that collection.
func (b *BM25Search) Search(ctx context.Context, query string, limit int, collection string) ([]Hit, error) {
	hits, err := b.store.FTSSearch(ctx, query, limit, collection)
	if err != nil {
		return nil, err
	}

	results := make([]Hit, len(hits))
	for i, h := range hits {
		results[i] = Hit{Docid: h.Docid, Score: h.Score, FilePath: h.FilePath, Snippet: h.Snippet}
	}
	return results, nil
}
