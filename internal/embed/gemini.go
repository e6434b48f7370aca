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

// GeminiConfig configures the Gemini batch-embed provider.
type GeminiConfig struct {
	// BaseURL is the Gemini API root.
	BaseURL string

	// APIKey authenticates requests. Required.
	APIKey string

	// Model is the embedding model id, e.g. "text-embedding-004".
	Model string

	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
}

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiEmbedder talks to Gemini's batch-embed-contents endpoint, selecting
// taskType from is_query.
type GeminiEmbedder struct {
	client *http.Client
	config GeminiConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*GeminiEmbedder)(nil)

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// NewGeminiEmbedder creates a Gemini embedder. APIKey is mandatory.
func NewGeminiEmbedder(cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
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

	return &GeminiEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *GeminiEmbedder) Name() string    { return "gemini" }
func (e *GeminiEmbedder) ModelID() string { return e.config.Model }
func (e *GeminiEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}
func (e *GeminiEmbedder) HasTokenizer() bool { return false }

func (e *GeminiEmbedder) FormatQuery(text string) string       { return text }
func (e *GeminiEmbedder) FormatDocument(_, text string) string { return text }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text}, isQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds up to MaxBatchSize texts per request, choosing
// RETRIEVAL_QUERY or RETRIEVAL_DOCUMENT from isQuery. A batch-level
// transient error fills that batch's slots with nil.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	taskType := "RETRIEVAL_DOCUMENT"
	if isQuery {
		taskType = "RETRIEVAL_QUERY"
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := e.doEmbedBatch(ctx, batch, taskType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for i, v := range vecs {
			results[start+i] = v
		}
	}
	return results, nil
}

func (e *GeminiEmbedder) doEmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	reqs := make([]geminiEmbedRequest, len(texts))
	for i, t := range texts {
		reqs[i] = geminiEmbedRequest{
			Model:    "models/" + e.config.Model,
			Content:  geminiContent{Parts: []geminiPart{{Text: t}}},
			TaskType: taskType,
		}
	}
	body, err := json.Marshal(geminiBatchRequest{Requests: reqs})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", e.config.BaseURL, e.config.Model, e.config.APIKey)

	resp, err := doWithRetryOn429(ctx, e.config.MaxRetries, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return e.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini embed failed with status %d: %s", resp.StatusCode, string(b))
	}

	var out geminiBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gemini embed response: %w", err)
	}

	vecs := make([][]float32, len(out.Embeddings))
	for i, emb := range out.Embeddings {
		vecs[i] = normalizeVector(emb.Values)
	}

	e.mu.Lock()
	if e.dims == 0 && len(vecs) > 0 && len(vecs[0]) > 0 {
		e.dims = len(vecs[0])
	}
	e.mu.Unlock()

	return vecs, nil
}

func (e *GeminiEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.doEmbedBatch(ctx, []string{"availability probe"}, "RETRIEVAL_QUERY")
	return err == nil
}

func (e *GeminiEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
