package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// OpenAIConfig configures an OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	// BaseURL is the API root; requests go to {BaseURL}/embeddings.
	BaseURL string

	// APIKey authenticates requests. Required: construction fails without it.
	APIKey string

	// Model is the embedding model id.
	Model string

	// Dimensions overrides the small known-model table / auto-detection.
	Dimensions int

	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
}

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// knownOpenAIDimensions covers the common models so construction doesn't
// need a network round trip just to learn the vector length.
var knownOpenAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint. It
// performs no input formatting: FormatQuery/FormatDocument are identity.
type OpenAIEmbedder struct {
	client *http.Client
	config OpenAIConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedder. APIKey is
// mandatory; a missing key fails construction per spec.md's misconfiguration
// semantics.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = knownOpenAIDimensions[cfg.Model]
	}

	return &OpenAIEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Name() string    { return "openai" }
func (e *OpenAIEmbedder) ModelID() string { return e.config.Model }
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}
func (e *OpenAIEmbedder) HasTokenizer() bool { return false }

// FormatQuery is the identity function: the OpenAI API takes raw text.
func (e *OpenAIEmbedder) FormatQuery(text string) string { return text }

// FormatDocument is the identity function: the OpenAI API takes raw text.
func (e *OpenAIEmbedder) FormatDocument(_, text string) string { return text }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text}, isQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds up to MaxBatchSize texts per request. isQuery is unused
// (OpenAI's endpoint has no query/document distinction); a batch-level
// transient error fills that batch's slots with nil rather than failing
// the whole call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string, _ bool) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := e.doEmbedBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue // leave this batch's slots nil
		}
		for i, v := range vecs {
			results[start+i] = v
		}
	}
	return results, nil
}

func (e *OpenAIEmbedder) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openaiEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetryOn429(ctx, e.config.MaxRetries, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
		return e.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai embed failed with status %d: %s", resp.StatusCode, string(b))
	}

	var out openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode openai embed response: %w", err)
	}

	vecs := make([][]float32, len(out.Data))
	for _, d := range out.Data {
		vecs[d.Index] = normalizeVector(d.Embedding)
	}

	e.mu.Lock()
	if e.dims == 0 && len(vecs) > 0 && len(vecs[0]) > 0 {
		e.dims = len(vecs[0])
	}
	e.mu.Unlock()

	return vecs, nil
}

func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.doEmbedBatch(ctx, []string{"availability probe"})
	return err == nil
}

func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
