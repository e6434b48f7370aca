// Package cmd provides the CLI commands for qmd.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/qmd-search/qmd/internal/config"
	"github.com/qmd-search/qmd/internal/embed"
	"github.com/qmd-search/qmd/internal/llmhost"
	"github.com/qmd-search/qmd/internal/output"
	"github.com/qmd-search/qmd/internal/search"
	"github.com/qmd-search/qmd/internal/store"
)

// app bundles the opened store and wired search components every verb
// needs. Commands build one with newApp and must call close when done.
type app struct {
	cfg      *config.Config
	store    *store.Store
	embedder embed.Embedder
	host     *llmhost.Host

	bm25     *search.BM25Search
	vector   *search.VectorSearch
	expander *search.QueryExpander
	reranker search.Reranker
	hybrid   *search.HybridPipeline

	out *output.Writer
}

// newApp opens the index database, resolves the active embedding provider
// from settings (falling back to config defaults), and wires the search
// components defined in internal/search.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureCacheDir(); err != nil {
		return nil, fmt.Errorf("prepare cache dir: %w", err)
	}

	st, err := store.Open(config.IndexDBPath(), cfg.Performance.SQLiteCacheMB)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	providerName := cfg.Embeddings.Provider
	modelName := cfg.Embeddings.Model
	if v, err := st.GetSetting(ctx, "embedding_provider"); err == nil && v != "" {
		providerName = v
	}
	if v, err := st.GetSetting(ctx, "embedding_model"); err == nil && v != "" {
		modelName = v
	}

	embedder, err := buildEmbedder(ctx, cfg, providerName, modelName)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build embedder %s/%s: %w", providerName, modelName, err)
	}

	httpCfg := llmhost.DefaultHTTPConfig()
	httpCfg.Endpoint = cfg.Providers.Local.Endpoint
	httpCfg.ModelID = cfg.LLMHost.GeneratorModel
	host := llmhost.NewHostFromHTTPConfig(httpCfg)

	bm25 := search.NewBM25Search(st)
	vector := search.NewVectorSearch(st, embedder, cfg.Search.VectorOverfetch)
	expander := search.NewQueryExpander(host, st, cfg.LLMHost.GeneratorModel)
	reranker := search.NewLLMReranker(host, st, cfg.LLMHost.RerankerModel)
	hybrid := search.NewHybridPipeline(st, bm25, vector, expander, reranker,
		cfg.Search.RRFConstant, cfg.Search.TopRankBonus, cfg.Search.RunnerUpBonus).
		WithRerankTopK(cfg.Search.RerankTopK).
		WithParallelism(cfg.Performance.IndexWorkers)

	return &app{
		cfg:      cfg,
		store:    st,
		embedder: embedder,
		host:     host,
		bm25:     bm25,
		vector:   vector,
		expander: expander,
		reranker: reranker,
		hybrid:   hybrid,
		out:      output.New(os.Stdout),
	}, nil
}

// buildEmbedder constructs the embedder named by provider/model, folding
// qmd's config into the per-provider Config fields that NewEmbedder reads.
func buildEmbedder(ctx context.Context, cfg *config.Config, provider, model string) (embed.Embedder, error) {
	ec := embed.Config{
		Provider: embed.ParseProvider(provider),
		Model:    model,
		Local: embed.LocalConfig{
			Endpoint: cfg.Providers.Local.Endpoint,
		},
		OpenAI: embed.OpenAIConfig{
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			APIKey:  os.Getenv(cfg.Providers.OpenAI.APIKeyEnv),
		},
		Gemini: embed.GeminiConfig{
			BaseURL: cfg.Providers.Gemini.BaseURL,
			APIKey:  os.Getenv(cfg.Providers.Gemini.APIKeyEnv),
		},
		CacheSize: 4096,
	}
	return embed.NewEmbedder(ctx, ec)
}

// close releases the embedder, LLM host, and store in that order.
func (a *app) close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.host != nil {
		_ = a.host.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// hybridRows maps hybrid results to the output package's generic Row shape.
func hybridRows(results []search.HybridResult) []output.Row {
	rows := make([]output.Row, len(results))
	for i, r := range results {
		rows[i] = output.Row{
			Docid:    r.Docid,
			FilePath: r.FilePath,
			Score:    r.Blended,
			Snippet:  r.Snippet,
		}
	}
	return rows
}

// hitRows maps BM25/vector hits to the output package's generic Row shape.
func hitRows(hits []search.Hit) []output.Row {
	rows := make([]output.Row, len(hits))
	for i, h := range hits {
		rows[i] = output.Row{
			Docid:    h.Docid,
			FilePath: h.FilePath,
			Score:    h.Score,
			Snippet:  h.Snippet,
		}
	}
	return rows
}
