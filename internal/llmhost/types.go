// Package llmhost manages the process's model instances: embedding,
// reranker, and generator. Each model is loaded lazily on first use and
// stays resident; the per-request working state built from it (a Context)
// is evicted after a period of idleness while the model itself stays
// loaded, so the next request pays only the cost of rebuilding a context,
// not reloading the model.
package llmhost

import (
	"context"
	"time"
)

// Role names one of the three model slots a Host manages.
type Role string

const (
	RoleEmbedding Role = "embedding"
	RoleReranker  Role = "reranker"
	RoleGenerator Role = "generator"
)

// IdleTimeout is how long a Context may sit unused before the host evicts
// it. The backing Model is unaffected and stays loaded.
const IdleTimeout = 5 * time.Minute

// Model is a loaded model instance, held in memory for the process's
// lifetime (or until the Host is closed). Building a Context from it is
// assumed cheap relative to the model load itself.
type Model interface {
	NewContext(ctx context.Context) (Context, error)
	Close() error
}

// Context is per-request working state built from a loaded Model.
type Context interface {
	Close() error
}

// Loader lazily constructs the Model for a role on first acquisition.
type Loader func(ctx context.Context) (Model, error)

// GeneratorContext generates text from a prompt, e.g. for query expansion.
type GeneratorContext interface {
	Context
	Generate(ctx context.Context, prompt string) (string, error)
}

// RerankerContext scores a query/document pair for relevance.
type RerankerContext interface {
	Context
	Score(ctx context.Context, query, document string) (float64, error)
}

// EmbeddingContext embeds text through the embedding role. This package's
// implementation wraps an internal/embed Embedder, local or remote.
type EmbeddingContext interface {
	Context
	Embed(ctx context.Context, text string) ([]float32, error)
}
