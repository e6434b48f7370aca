package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qmd-search/qmd/internal/llmhost"
	"github.com/qmd-search/qmd/internal/store"
)

// LLMReranker scores query/document-excerpt pairs with a cross-encoder
// hosted by the LLM host's reranker role, caching each pair's score in
// LLMCache. Rewritten from the teacher's MLXReranker (HTTP-POST-and-
// health-check shape) into a thin caller of llmhost.RerankerContext.Score,
// per spec.md §4.H's normative yes/no-logprob resolution.
type LLMReranker struct {
	host  *llmhost.Host
	store *store.Store
	model string
}

var _ Reranker = (*LLMReranker)(nil)

// NewLLMReranker returns a Reranker backed by host's reranker role.
// model identifies the cache namespace (spec.md's llm_cache is keyed by
// model id, purpose, and input hash).
func NewLLMReranker(host *llmhost.Host, st *store.Store, model string) *LLMReranker {
	return &LLMReranker{host: host, store: st, model: model}
}

// Rerank scores each document against query, preserving input order per
// spec.md §4.H ("ordering of outputs matches the input order; callers
// sort if needed"). topK, if positive, truncates to the first topK
// documents rather than the highest-scoring ones — callers that want the
// best K should sort by Score themselves before truncating.
func (r *LLMReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		score, err := r.scoreCached(ctx, query, doc)
		if err != nil {
			return nil, fmt.Errorf("rerank document %d: %w", i, err)
		}
		results[i] = RerankResult{Index: i, Score: score, Document: doc}
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (r *LLMReranker) scoreCached(ctx context.Context, query, document string) (float64, error) {
	inputHash := store.LLMCacheKey(query + "\x00" + document)

	if cached, ok, err := r.store.GetLLMCache(ctx, r.model, store.LLMCachePurposeRerank, inputHash); err == nil && ok {
		if score, perr := strconv.ParseFloat(cached, 64); perr == nil {
			return score, nil
		}
	}

	rc, release, err := r.host.AcquireReranker(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	score, err := rc.Score(ctx, query, document)
	if err != nil {
		return 0, err
	}

	_ = r.store.PutLLMCache(ctx, r.model, store.LLMCachePurposeRerank, inputHash, strconv.FormatFloat(score, 'f', -1, 64))
	return score, nil
}

// Available reports whether the reranker role can currently be acquired.
func (r *LLMReranker) Available(ctx context.Context) bool {
	_, release, err := r.host.AcquireReranker(ctx)
	if err != nil {
		return false
	}
	release()
	return true
}

// Close is a no-op; the LLM host owns the underlying model's lifecycle.
func (r *LLMReranker) Close() error { return nil }
