package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the default number of embeddings to cache.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder wraps an Embedder with LRU caching so repeated queries
// (and re-embedding unchanged chunks) skip the network round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// NewCachedEmbedderWithDefaults wraps inner with the default cache size.
func NewCachedEmbedderWithDefaults(inner Embedder) *CachedEmbedder {
	return NewCachedEmbedder(inner, DefaultEmbeddingCacheSize)
}

// cacheKey distinguishes text, model, and query/document formatting, since
// the same text embeds differently depending on isQuery.
func (c *CachedEmbedder) cacheKey(text string, isQuery bool) string {
	combined := c.inner.ModelID() + "\x00" + text
	if isQuery {
		combined += "\x00q"
	}
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

func (c *CachedEmbedder) Name() string    { return c.inner.Name() }
func (c *CachedEmbedder) ModelID() string { return c.inner.ModelID() }
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) HasTokenizer() bool { return c.inner.HasTokenizer() }

func (c *CachedEmbedder) FormatQuery(text string) string { return c.inner.FormatQuery(text) }

func (c *CachedEmbedder) FormatDocument(title, text string) string {
	return c.inner.FormatDocument(title, text)
}

// Embed returns the cached vector if present, otherwise computes and caches.
func (c *CachedEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	key := c.cacheKey(text, isQuery)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text, isQuery)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		c.cache.Add(key, vec)
	}
	return vec, nil
}

// EmbedBatch checks the cache per-text and only sends cache misses to the
// inner embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(text, isQuery)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	computed, err := c.inner.EmbedBatch(ctx, missTexts, isQuery)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		results[idx] = computed[j]
		if computed[j] != nil {
			c.cache.Add(c.cacheKey(texts[idx], isQuery), computed[j])
		}
	}
	return results, nil
}

func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

func (c *CachedEmbedder) Close() error { return c.inner.Close() }

// Inner returns the underlying embedder, for callers that need
// provider-specific behavior not exposed by the Embedder interface.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }
