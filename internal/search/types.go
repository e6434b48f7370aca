// Package search implements BM25 keyword search, vector semantic search,
// and the hybrid pipeline that fuses and reranks both.
package search

// Hit is a single scored document, the common shape produced by BM25Search
// and VectorSearch before fusion.
type Hit struct {
	Docid    string
	Score    float64
	FilePath string
	// Snippet is a highlighted excerpt. Populated by BM25Search; empty for
	// vector-only hits, which carry no query-term highlighting.
	Snippet string
}

// HybridOptions configures a hybrid search query (spec.md §4.I).
type HybridOptions struct {
	// Limit is the maximum number of results returned after blending.
	Limit int
	// Collection, if non-empty, restricts retrieval to that collection.
	Collection string
	// MinScore filters out results whose blended score falls below it.
	MinScore float64
}

// HybridResult is one final, blended hybrid search result.
type HybridResult struct {
	Docid    string
	FilePath string
	Snippet  string
	// Blended is the final score used for ranking and MinScore filtering.
	Blended float64
	// NormalizedRRF is the fused retrieval score before reranking,
	// divided by the maximum fused score in the set.
	NormalizedRRF float64
	// RerankScore is the cross-encoder score, or 0 if the reranker was
	// unavailable.
	RerankScore float64
}
