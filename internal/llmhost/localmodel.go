package llmhost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/qmd-search/qmd/internal/embed"
	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// httpRetryConfig retries a single generate/rerank call up to twice on a
// transient round-trip failure before giving up; the local inference
// server runs on the same machine, so failures here are almost always a
// model still warming up rather than a persistent outage.
func httpRetryConfig() qmderrors.RetryConfig {
	cfg := qmderrors.DefaultRetryConfig()
	cfg.MaxRetries = 2
	cfg.InitialDelay = 200 * time.Millisecond
	cfg.MaxDelay = 2 * time.Second
	return cfg
}

// HTTPConfig points at the on-device inference server backing the
// generator and reranker roles. Grounded on internal/embed's local
// provider: one long-lived endpoint, no per-call model download.
type HTTPConfig struct {
	Endpoint string
	ModelID  string
	Timeout  time.Duration
}

// DefaultHTTPConfig returns the default local inference server address.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Endpoint: "http://localhost:8088",
		Timeout:  60 * time.Second,
	}
}

var (
	_ Model            = (*generatorModel)(nil)
	_ GeneratorContext = (*generatorContext)(nil)
	_ Model            = (*rerankerModel)(nil)
	_ RerankerContext  = (*rerankerContext)(nil)
	_ Model            = (*embeddingModel)(nil)
	_ EmbeddingContext = (*embeddingContext)(nil)
)

// generatorModel is an llmhost.Model for the generator role, backed by the
// local inference server's /generate endpoint.
type generatorModel struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewGeneratorModel returns a Model whose Context generates text by calling
// the local inference server.
func NewGeneratorModel(cfg HTTPConfig) Model {
	return &generatorModel{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (m *generatorModel) NewContext(ctx context.Context) (Context, error) {
	return &generatorContext{cfg: m.cfg, client: m.client}, nil
}

func (m *generatorModel) Close() error { return nil }

type generatorContext struct {
	cfg    HTTPConfig
	client *http.Client
}

type generateRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *generatorContext) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.cfg.ModelID, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("llmhost: marshal generate request: %w", err)
	}

	return qmderrors.RetryWithResult(ctx, httpRetryConfig(), func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/generate", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("llmhost: generate request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			return "", fmt.Errorf("llmhost: generate returned %d: %s", resp.StatusCode, string(data))
		}

		var out generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("llmhost: decode generate response: %w", err)
		}
		return out.Text, nil
	})
}

func (c *generatorContext) Close() error { return nil }

// rerankerModel is an llmhost.Model for the reranker role, backed by the
// local inference server's /rerank endpoint. The server returns the
// cross-encoder's yes/no log-probabilities; Score converts them to a
// probability via softmax.
type rerankerModel struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewRerankerModel returns a Model whose Context scores query/document
// pairs by calling the local inference server.
func NewRerankerModel(cfg HTTPConfig) Model {
	return &rerankerModel{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (m *rerankerModel) NewContext(ctx context.Context) (Context, error) {
	return &rerankerContext{cfg: m.cfg, client: m.client}, nil
}

func (m *rerankerModel) Close() error { return nil }

type rerankerContext struct {
	cfg    HTTPConfig
	client *http.Client
}

type rerankRequest struct {
	Model    string `json:"model,omitempty"`
	Query    string `json:"query"`
	Document string `json:"document"`
}

type rerankResponse struct {
	LogProbYes float64 `json:"log_prob_yes"`
	LogProbNo  float64 `json:"log_prob_no"`
}

func (c *rerankerContext) Score(ctx context.Context, query, document string) (float64, error) {
	body, err := json.Marshal(rerankRequest{Model: c.cfg.ModelID, Query: query, Document: document})
	if err != nil {
		return 0, fmt.Errorf("llmhost: marshal rerank request: %w", err)
	}

	return qmderrors.RetryWithResult(ctx, httpRetryConfig(), func() (float64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/rerank", bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("llmhost: rerank request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			return 0, fmt.Errorf("llmhost: rerank returned %d: %s", resp.StatusCode, string(data))
		}

		var out rerankResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return 0, fmt.Errorf("llmhost: decode rerank response: %w", err)
		}
		return yesNoProbability(out.LogProbYes, out.LogProbNo), nil
	})
}

// yesNoProbability converts yes/no log-probabilities into P(yes) via
// softmax, the spec's "logits converted to a probability" step.
func yesNoProbability(logProbYes, logProbNo float64) float64 {
	yes := math.Exp(logProbYes)
	no := math.Exp(logProbNo)
	if yes+no == 0 {
		return 0.5
	}
	return yes / (yes + no)
}

func (c *rerankerContext) Close() error { return nil }

// embeddingModel adapts an embed.Embedder into the embedding role, for
// symmetry with the generator/reranker roles; internal/search's vector
// search calls internal/embed directly and does not go through this role.
type embeddingModel struct {
	embedder embed.Embedder
}

// NewEmbeddingModel wraps e as the embedding role's Model.
func NewEmbeddingModel(e embed.Embedder) Model {
	return &embeddingModel{embedder: e}
}

func (m *embeddingModel) NewContext(ctx context.Context) (Context, error) {
	return &embeddingContext{embedder: m.embedder}, nil
}

func (m *embeddingModel) Close() error { return m.embedder.Close() }

type embeddingContext struct {
	embedder embed.Embedder
}

func (c *embeddingContext) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embedder.Embed(ctx, text, false)
}

func (c *embeddingContext) Close() error { return nil }
