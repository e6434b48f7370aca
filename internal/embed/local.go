package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// LocalConfig configures the local embedder.
type LocalConfig struct {
	// Endpoint is the local inference server's base URL.
	Endpoint string

	// Model identifies the model the server should load.
	Model string

	// Dimensions overrides auto-detection (0 = auto-detect from first call).
	Dimensions int

	// BatchSize is defaulted but not otherwise read: EmbedBatch sends one
	// request per text, in sequence.
	BatchSize int

	// Timeout bounds a single embed call.
	Timeout time.Duration

	// MaxRetries bounds transient-failure retries.
	MaxRetries int

	// SkipHealthCheck skips the startup probe, for tests.
	SkipHealthCheck bool
}

const (
	DefaultLocalEndpoint = "http://localhost:8088"
	DefaultLocalModel    = "embeddinggemma"
)

// DefaultLocalConfig returns sensible defaults.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		Endpoint:   DefaultLocalEndpoint,
		Model:      DefaultLocalModel,
		Dimensions: DefaultDimensions,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// DefaultDimensions is embeddinggemma's native dimension, used until the
// first real response tells us otherwise.
const DefaultDimensions = 768

// LocalEmbedder talks to a local HTTP inference server serving a GGUF
// embedding model. It reports has_tokenizer=true and formats inputs with
// the query/document templates spec.md §4.C calls for.
type LocalEmbedder struct {
	client *http.Client
	config LocalConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*LocalEmbedder)(nil)

type localEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewLocalEmbedder creates a local embedder, probing the server unless
// cfg.SkipHealthCheck is set.
func NewLocalEmbedder(ctx context.Context, cfg LocalConfig) (*LocalEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultLocalEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLocalModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	e := &LocalEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		dims:   cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		dims, err := e.detectDimensions(checkCtx)
		if err != nil {
			return nil, fmt.Errorf("local embedding server unavailable: %w", err)
		}
		if e.dims == 0 {
			e.dims = dims
		}
	}
	if e.dims == 0 {
		e.dims = DefaultDimensions
	}

	return e, nil
}

func (e *LocalEmbedder) detectDimensions(ctx context.Context) (int, error) {
	vecs, err := e.doEmbed(ctx, []string{e.FormatQuery("dimension probe")})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(vecs[0]), nil
}

// Name identifies this provider for storage namespacing.
func (e *LocalEmbedder) Name() string { return "local" }

// ModelID returns the configured model name.
func (e *LocalEmbedder) ModelID() string { return e.config.Model }

// Dimensions returns the detected or configured embedding length.
func (e *LocalEmbedder) Dimensions() int { return e.dims }

// HasTokenizer is always true for the local provider.
func (e *LocalEmbedder) HasTokenizer() bool { return true }

// FormatQuery applies the local model's query template.
func (e *LocalEmbedder) FormatQuery(text string) string {
	return "task: search result | query: " + text
}

// FormatDocument applies the local model's document template.
func (e *LocalEmbedder) FormatDocument(title, text string) string {
	if strings.TrimSpace(title) == "" {
		title = "none"
	}
	return "title: " + title + " | text: " + text
}

// Embed generates one embedding for text, which the caller has already
// formatted via FormatQuery/FormatDocument.
func (e *LocalEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text}, isQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts sequentially (per spec, local batching is not
// parallelized). isQuery is unused: callers are expected to have already
// formatted texts via FormatQuery/FormatDocument before calling in.
// A per-item transient failure yields a nil entry rather than aborting.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string, _ bool) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		vecs, err := e.doEmbedWithRetry(ctx, []string{text})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			results[i] = nil
			continue
		}
		results[i] = vecs[0]
	}
	return results, nil
}

func (e *LocalEmbedder) doEmbedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(100<<attempt) * time.Millisecond):
			}
		}
		vecs, err := e.doEmbed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *LocalEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(localEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("local embed failed with status %d: %s", resp.StatusCode, string(b))
	}

	var out localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode local embed response: %w", err)
	}
	for i, v := range out.Embeddings {
		out.Embeddings[i] = normalizeVector(v)
	}
	return out.Embeddings, nil
}

// Available probes the local server's health endpoint.
func (e *LocalEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close marks the embedder closed; the shared client has no pooled state
// that needs explicit teardown beyond what the transport already handles.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
