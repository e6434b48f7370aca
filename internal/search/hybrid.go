package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qmd-search/qmd/internal/store"
)

// Defaults for the hybrid pipeline, overridable via config.SearchConfig
// (spec.md §4.I).
const (
	DefaultRetrievalLimit = 20
	DefaultRerankTopK     = 30
	maxExcerptChars       = 600
)

// HybridPipeline runs the retrieve/expand/fuse/rerank/blend pipeline that
// is the centrepiece of the search system (spec.md §4.I). It fans a query
// (and up to two LLM-generated variants) out to BM25Search and
// VectorSearch in parallel, fuses the resulting ranked lists with RRF,
// reranks the top results with a cross-encoder, and blends retrieval and
// rerank scores with a rank-dependent weight.
type HybridPipeline struct {
	store    *store.Store
	bm25     *BM25Search
	vector   *VectorSearch
	expander *QueryExpander
	reranker Reranker

	retrievalLimit int
	rerankTopK     int
	rrfConstant    int
	topRankBonus   float64
	runnerUpBonus  float64
	parallelism    int
}

// NewHybridPipeline wires the component searches into a pipeline. Pass
// &NoOpReranker{} for reranker when reranking is disabled rather than nil.
func NewHybridPipeline(st *store.Store, bm25 *BM25Search, vector *VectorSearch, expander *QueryExpander, reranker Reranker, rrfConstant int, topRankBonus, runnerUpBonus float64) *HybridPipeline {
	return &HybridPipeline{
		store:          st,
		bm25:           bm25,
		vector:         vector,
		expander:       expander,
		reranker:       reranker,
		retrievalLimit: DefaultRetrievalLimit,
		rerankTopK:     DefaultRerankTopK,
		rrfConstant:    rrfConstant,
		topRankBonus:   topRankBonus,
		runnerUpBonus:  runnerUpBonus,
		parallelism:    4,
	}
}

// WithRerankTopK overrides the default number of fused results sent to the
// reranker.
func (h *HybridPipeline) WithRerankTopK(n int) *HybridPipeline {
	if n > 0 {
		h.rerankTopK = n
	}
	return h
}

// WithRetrievalLimit overrides the default per-sub-query retrieval limit.
func (h *HybridPipeline) WithRetrievalLimit(n int) *HybridPipeline {
	if n > 0 {
		h.retrievalLimit = n
	}
	return h
}

// WithParallelism overrides the default bound on concurrent sub-queries
// fanned out to BM25Search/VectorSearch (config.PerformanceConfig.IndexWorkers).
func (h *HybridPipeline) WithParallelism(n int) *HybridPipeline {
	if n > 0 {
		h.parallelism = n
	}
	return h
}

// Search runs the full hybrid pipeline for query and returns up to
// opts.Limit blended results, best first.
func (h *HybridPipeline) Search(ctx context.Context, query string, opts HybridOptions) ([]HybridResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	queries := h.buildQuerySet(ctx, query)

	bm25Lists, vectorLists, hitIndex, err := h.retrieveAll(ctx, queries, opts.Collection)
	if err != nil {
		return nil, err
	}

	allLists := make([]RankedList, 0, len(bm25Lists)+len(vectorLists))
	allLists = append(allLists, bm25Lists...)
	allLists = append(allLists, vectorLists...)

	fused := FuseRRF(allLists, h.rrfConstant, h.topRankBonus, h.runnerUpBonus)
	if len(fused) == 0 {
		return nil, nil
	}
	if len(fused) > h.rerankTopK {
		fused = fused[:h.rerankTopK]
	}

	preRerankRank := make(map[string]int, len(fused))
	excerpts := make([]string, len(fused))
	for i, f := range fused {
		preRerankRank[f.Docid] = i + 1
		excerpts[i] = h.excerptFor(ctx, f.Docid, hitIndex)
	}

	var rerankByDocid map[string]float64
	if h.reranker.Available(ctx) {
		scored, err := h.reranker.Rerank(ctx, query, excerpts, 0)
		if err != nil {
			return nil, fmt.Errorf("rerank: %w", err)
		}
		rerankByDocid = make(map[string]float64, len(scored))
		for i, s := range scored {
			rerankByDocid[fused[i].Docid] = s.Score
		}
	}

	results := make([]HybridResult, 0, len(fused))
	for _, f := range fused {
		hit := hitIndex[f.Docid]
		result := HybridResult{
			Docid:         f.Docid,
			FilePath:      hit.FilePath,
			Snippet:       hit.Snippet,
			NormalizedRRF: f.Score,
		}
		if rerankByDocid != nil {
			rerank := rerankByDocid[f.Docid]
			w := blendWeight(preRerankRank[f.Docid])
			result.RerankScore = rerank
			result.Blended = w*f.Score + (1-w)*rerank
		} else {
			result.Blended = f.Score
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Blended != results[j].Blended {
			return results[i].Blended > results[j].Blended
		}
		return results[i].Docid < results[j].Docid
	})

	filtered := results[:0]
	for _, r := range results {
		if r.Blended >= opts.MinScore {
			filtered = append(filtered, r)
		}
	}
	results = filtered

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// buildQuerySet expands query into its LLM-generated variants and
// duplicates the original to weight it as if it appeared twice. If
// expansion produced no variants, duplication is skipped entirely and the
// set is just the original query (spec.md §4.I edge cases).
func (h *HybridPipeline) buildQuerySet(ctx context.Context, query string) []string {
	variants, _ := h.expander.Expand(ctx, query)
	if len(variants) == 0 {
		return []string{query}
	}

	queries := make([]string, 0, 2+len(variants))
	queries = append(queries, query, query)
	queries = append(queries, variants...)
	return queries
}

// retrieveAll runs BM25Search and VectorSearch for every query in
// parallel, bounded by h.parallelism, grounded on the teacher's
// parallelSubSearch errgroup+semaphore fan-out.
func (h *HybridPipeline) retrieveAll(ctx context.Context, queries []string, collection string) ([]RankedList, []RankedList, map[string]Hit, error) {
	bm25Lists := make([]RankedList, len(queries))
	vectorLists := make([]RankedList, len(queries))
	hitIndex := make(map[string]Hit)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, h.parallelism)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			bmHits, err := h.bm25.Search(gctx, q, h.retrievalLimit, collection)
			if err != nil {
				return fmt.Errorf("bm25 search %q: %w", q, err)
			}
			vecHits, err := h.vector.Search(gctx, q, h.retrievalLimit, collection)
			if err != nil {
				return fmt.Errorf("vector search %q: %w", q, err)
			}

			bmList := make(RankedList, len(bmHits))
			for j, hit := range bmHits {
				bmList[j] = hit.Docid
			}
			vecList := make(RankedList, len(vecHits))
			for j, hit := range vecHits {
				vecList[j] = hit.Docid
			}

			mu.Lock()
			bm25Lists[i] = bmList
			vectorLists[i] = vecList
			// BM25 hits carry a highlighted snippet; prefer them over a
			// vector-only hit's bare filepath when both name the same doc.
			for _, hit := range bmHits {
				hitIndex[hit.Docid] = hit
			}
			for _, hit := range vecHits {
				if _, exists := hitIndex[hit.Docid]; !exists {
					hitIndex[hit.Docid] = hit
				}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return bm25Lists, vectorLists, hitIndex, nil
}

// excerptFor returns the text submitted to the reranker for docid: the
// BM25 snippet if one was retrieved, otherwise a prefix of the document
// body fetched directly from the store (vector-only hits carry no
// excerpt).
func (h *HybridPipeline) excerptFor(ctx context.Context, docid string, hitIndex map[string]Hit) string {
	if hit, ok := hitIndex[docid]; ok && hit.Snippet != "" {
		return hit.Snippet
	}

	doc, _, err := h.store.FindDocument(ctx, "", docid, true)
	if err != nil || doc == nil {
		return ""
	}
	if len(doc.Body) > maxExcerptChars {
		return doc.Body[:maxExcerptChars]
	}
	return doc.Body
}

// blendWeight returns the retrieval-score weight for a fused result at
// 1-indexed pre-rerank rank, per spec.md §4.I's blend table.
func blendWeight(rank int) float64 {
	switch {
	case rank <= 3:
		return 0.75
	case rank <= 10:
		return 0.60
	default:
		return 0.40
	}
}
