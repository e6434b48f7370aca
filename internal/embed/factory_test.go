package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_UnknownProviderErrors(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: "bogus"})
	require.Error(t, err)
}

func TestNewEmbedder_OpenAIMissingKeyFailsAtConstruction(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: ProviderOpenAI})
	require.Error(t, err)
}

func TestNewEmbedder_WrapsWithCacheByDefault(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{
		Provider: ProviderOpenAI,
		OpenAI:   OpenAIConfig{APIKey: "k"},
	})
	require.NoError(t, err)
	_, ok := e.(*CachedEmbedder)
	require.True(t, ok)
}

func TestNewEmbedder_DisableCacheReturnsRawProvider(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{
		Provider:     ProviderOpenAI,
		OpenAI:       OpenAIConfig{APIKey: "k"},
		DisableCache: true,
	})
	require.NoError(t, err)
	_, ok := e.(*OpenAIEmbedder)
	require.True(t, ok)
}

func TestParseProvider(t *testing.T) {
	require.Equal(t, ProviderOpenAI, ParseProvider("OpenAI"))
	require.Equal(t, ProviderGemini, ParseProvider("gemini"))
	require.Equal(t, ProviderLocal, ParseProvider("unknown"))
}

func TestIsValidProvider(t *testing.T) {
	require.True(t, IsValidProvider("local"))
	require.False(t, IsValidProvider("bogus"))
}
