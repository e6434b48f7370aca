package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldNamespace_FoldsPunctuationAndCase(t *testing.T) {
	assert.Equal(t, "local_embeddinggemma", FoldNamespace("local/embeddingGemma"))
	assert.Equal(t, "openai_text_embedding_3_small", FoldNamespace("openai/text-embedding-3-small"))
}

func TestNormalizeVector_UnitLength(t *testing.T) {
	v := normalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 0.0001)
	assert.InDelta(t, 0.8, v[1], 0.0001)
}

func TestNormalizeVector_ZeroVectorUnchanged(t *testing.T) {
	v := normalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, v)
}
