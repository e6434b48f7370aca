package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/qmd-search/qmd/internal/embed"
	"github.com/qmd-search/qmd/internal/store"
)

// DefaultVectorOverfetch is how many multiples of the requested limit are
// pulled at chunk granularity before collapsing to document granularity
// (spec.md §4.F step 2).
const DefaultVectorOverfetch = 4

// VectorSearch runs semantic nearest-neighbour search and collapses
// chunk-level hits to document-level results, taking each document's best
// (highest-similarity) chunk (spec.md §4.F).
type VectorSearch struct {
	store     *store.Store
	embedder  embed.Embedder
	overfetch int
}

// NewVectorSearch returns a VectorSearch backed by st, querying namespace
// embedder's vector table. overfetch defaults to DefaultVectorOverfetch if
// <= 0.
func NewVectorSearch(st *store.Store, embedder embed.Embedder, overfetch int) *VectorSearch {
	if overfetch <= 0 {
		overfetch = DefaultVectorOverfetch
	}
	return &VectorSearch{store: st, embedder: embedder, overfetch: overfetch}
}

// Search embeds query, retrieves limit*overfetch chunk-level nearest
// neighbours, collapses them to documents, and returns the top limit.
// collection, if non-empty, restricts results to that collection.
func (v *VectorSearch) Search(ctx context.Context, query string, limit int, collection string) ([]Hit, error) {
	formatted := v.embedder.FormatQuery(query)
	vec, err := v.embedder.Embed(ctx, formatted, true)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	namespace := embed.Namespace(v.embedder)
	chunkHits, err := v.store.VecSearch(ctx, namespace, vec, limit*v.overfetch)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(chunkHits) == 0 {
		return nil, nil
	}

	bestByHash := make(map[string]float64, len(chunkHits))
	for _, h := range chunkHits {
		score := float64(h.Score)
		if score > bestByHash[h.ContentHash] {
			bestByHash[h.ContentHash] = score
		}
	}

	hashes := make([]string, 0, len(bestByHash))
	for h := range bestByHash {
		hashes = append(hashes, h)
	}

	docs, err := v.store.DocumentsByContentHash(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("resolve documents: %w", err)
	}

	results := make([]Hit, 0, len(docs))
	for hash, doc := range docs {
		if collection != "" && doc.Collection != collection {
			continue
		}
		results = append(results, Hit{Docid: doc.Docid, Score: bestByHash[hash], FilePath: doc.FilePath})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Docid < results[j].Docid
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
