// Package embed provides the embedding providers (local, OpenAI-compatible,
// Gemini) that turn chunk text into vectors for semantic search.
package embed

import (
	"context"
	"math"
	"strings"
	"time"
)

// Batch size limits shared by the HTTP-backed providers.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 100 // OpenAI and Gemini batch-embed endpoints cap at 100
	DefaultBatchSize = 32

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// Embedder is the capability set a search component needs: a storage
// namespace identity (Name/ModelID), dimensionality, whether the caller
// should pre-format inputs with a tokenizer-style template, and the actual
// embed calls.
type Embedder interface {
	// Name identifies the provider ("local", "openai", "gemini").
	Name() string

	// ModelID identifies the specific model in use.
	ModelID() string

	// Dimensions returns the embedding vector length.
	Dimensions() int

	// HasTokenizer reports whether the provider exposes a real tokenizer,
	// which selects the chunker's token-based policy over char-based.
	HasTokenizer() bool

	// FormatQuery applies the provider's query input template, if any.
	FormatQuery(text string) string

	// FormatDocument applies the provider's document input template, if any.
	FormatDocument(title, text string) string

	// Embed returns the vector for one text. isQuery selects the query vs.
	// document task type where the provider distinguishes them; it does not
	// apply FormatQuery/FormatDocument, which callers apply themselves.
	Embed(ctx context.Context, text string, isQuery bool) ([]float32, error)

	// EmbedBatch embeds multiple texts. A transient per-item failure yields
	// a nil entry at that index rather than aborting the whole call.
	EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)

	// Available reports whether the provider is currently reachable.
	Available(ctx context.Context) bool

	// Close releases any held connections.
	Close() error
}

// Namespace is the storage key "<name>/<model-id>" with punctuation folded
// to underscores, matching the vector table naming in internal/store.
func Namespace(e Embedder) string {
	return FoldNamespace(e.Name() + "/" + e.ModelID())
}

// FoldNamespace lowercases and folds non-alphanumeric runs to a single
// underscore, mirroring internal/store's vectorTableName folding so the two
// packages always agree on a namespace's identity.
func FoldNamespace(s string) string {
	var b strings.Builder
	prevFold := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevFold = false
			continue
		}
		if !prevFold {
			b.WriteByte('_')
			prevFold = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// normalizeVector normalizes a vector to unit length so cosine distance in
// the store behaves as expected regardless of provider scaling.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}

	out := make([]float32, len(v))
	mag := math.Sqrt(sumSquares)
	for i, val := range v {
		out[i] = float32(float64(val) / mag)
	}
	return out
}
