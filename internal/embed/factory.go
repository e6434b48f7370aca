package embed

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType names one of the three embedding provider families.
type ProviderType string

const (
	ProviderLocal  ProviderType = "local"
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
)

// Config carries the settings any provider might need; only the fields
// relevant to the selected ProviderType are read.
type Config struct {
	Provider ProviderType
	Model    string

	Local  LocalConfig
	OpenAI OpenAIConfig
	Gemini GeminiConfig

	// DisableCache skips the LRU wrapper, for tests that need to observe
	// every call reaching the provider.
	DisableCache bool
	CacheSize    int
}

// NewEmbedder constructs the configured provider and wraps it with an LRU
// cache unless disabled. Misconfiguration (missing API key, unknown
// provider) fails here rather than on first use, per spec.md §4.C.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var embedder Embedder
	var err error

	switch cfg.Provider {
	case ProviderLocal:
		lc := cfg.Local
		if cfg.Model != "" {
			lc.Model = cfg.Model
		}
		embedder, err = NewLocalEmbedder(ctx, lc)

	case ProviderOpenAI:
		oc := cfg.OpenAI
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		embedder, err = NewOpenAIEmbedder(oc)

	case ProviderGemini:
		gc := cfg.Gemini
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		embedder, err = NewGeminiEmbedder(gc)

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if err != nil {
		return nil, err
	}

	if cfg.DisableCache {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, cfg.CacheSize), nil
}

// ParseProvider converts a settings string to a ProviderType, defaulting to
// local for unrecognized input.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "openai":
		return ProviderOpenAI
	case "gemini":
		return ProviderGemini
	default:
		return ProviderLocal
	}
}

func (p ProviderType) String() string { return string(p) }

// ValidProviders lists every provider name accepted by ParseProvider.
func ValidProviders() []string {
	return []string{string(ProviderLocal), string(ProviderOpenAI), string(ProviderGemini)}
}

// IsValidProvider reports whether s names one of ValidProviders.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// Info summarizes a constructed embedder, for the `provider` verb.
type Info struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo reports an embedder's identity, unwrapping CachedEmbedder to
// inspect the underlying provider type.
func GetInfo(ctx context.Context, e Embedder) Info {
	inner := e
	if cached, ok := e.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	info := Info{
		Model:      e.ModelID(),
		Dimensions: e.Dimensions(),
		Available:  e.Available(ctx),
	}
	switch inner.(type) {
	case *LocalEmbedder:
		info.Provider = ProviderLocal
	case *OpenAIEmbedder:
		info.Provider = ProviderOpenAI
	case *GeminiEmbedder:
		info.Provider = ProviderGemini
	}
	return info
}
