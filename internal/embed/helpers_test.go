package embed

import "context"

// fakeEmbedder is a minimal in-memory Embedder used to test CachedEmbedder
// and the factory without touching the network.
type fakeEmbedder struct {
	calls  int
	closed bool
}

var _ Embedder = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Name() string                         { return "fake" }
func (f *fakeEmbedder) ModelID() string                      { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int                      { return 2 }
func (f *fakeEmbedder) HasTokenizer() bool                   { return false }
func (f *fakeEmbedder) FormatQuery(text string) string       { return text }
func (f *fakeEmbedder) FormatDocument(_, text string) string { return text }
func (f *fakeEmbedder) Available(ctx context.Context) bool   { return !f.closed }
func (f *fakeEmbedder) Close() error                         { f.closed = true; return nil }

func (f *fakeEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	f.calls++
	return []float32{float32(len(text)), 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		f.calls++
		out[i] = []float32{float32(len(t)), 0}
	}
	return out, nil
}
