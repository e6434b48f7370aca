package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qmd-search/qmd/internal/llmhost"
	"github.com/qmd-search/qmd/internal/store"
)

// expanderPromptTemplate asks the generator for exactly two alternative
// phrasings as a JSON array, per spec.md §4.G and §9's schema-checked
// "dynamic JSON responses" guidance.
const expanderPromptTemplate = `Rewrite the following search query as exactly two alternative phrasings that preserve its meaning but use different words. Respond with only a JSON array of two strings, nothing else.

Query: %s`

// QueryExpander expands a query into alternative phrasings via the LLM
// host's generator role, caching results by model and query text.
// Rewritten from the teacher's dictionary/synonym-based QueryExpander
// (code-vocabulary bridging has no analogue here); the cache-aware shape
// and graceful-empty-on-unavailable contract are kept from it.
type QueryExpander struct {
	host  *llmhost.Host
	store *store.Store
	model string
}

// NewQueryExpander returns an expander backed by host's generator role.
// model identifies the cache namespace.
func NewQueryExpander(host *llmhost.Host, st *store.Store, model string) *QueryExpander {
	return &QueryExpander{host: host, store: st, model: model}
}

// Expand returns up to two alternative phrasings of query. If the
// generator is unavailable or returns an unparseable response, it returns
// an empty slice and no error, so callers fall back to the original query
// alone (spec.md §4.G).
func (e *QueryExpander) Expand(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	inputHash := store.LLMCacheKey(query)

	if cached, ok, err := e.store.GetLLMCache(ctx, e.model, store.LLMCachePurposeExpand, inputHash); err == nil && ok {
		variants, perr := parseExpansionResponse(cached)
		if perr == nil {
			return variants, nil
		}
	}

	gc, release, err := e.host.AcquireGenerator(ctx)
	if err != nil {
		return nil, nil
	}
	defer release()

	raw, err := gc.Generate(ctx, fmt.Sprintf(expanderPromptTemplate, query))
	if err != nil {
		return nil, nil
	}

	variants, err := parseExpansionResponse(raw)
	if err != nil {
		return nil, nil
	}

	_ = e.store.PutLLMCache(ctx, e.model, store.LLMCachePurposeExpand, inputHash, raw)
	return variants, nil
}

// parseExpansionResponse validates that raw decodes to a JSON array of
// strings, truncating to the first two per spec.md's fixed fan-out of 2.
func parseExpansionResponse(raw string) ([]string, error) {
	var variants []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &variants); err != nil {
		return nil, fmt.Errorf("expansion response is not a JSON string array: %w", err)
	}
	if len(variants) > 2 {
		variants = variants[:2]
	}
	return variants, nil
}
