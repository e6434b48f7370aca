package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete qmd configuration, loaded from YAML with
// environment variable overrides. It mirrors the persisted schema and
// component defaults described in specification.md section 5-6.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	LLMHost     LLMHostConfig     `yaml:"llm_host" json:"llm_host"`
	Providers   ProvidersConfig   `yaml:"providers" json:"providers"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
}

// PathsConfig configures default collection discovery.
type PathsConfig struct {
	// DefaultMask is the glob applied to a new collection when none is
	// given to `collection add` (default: "**/*.md").
	DefaultMask string   `yaml:"default_mask" json:"default_mask"`
	Exclude     []string `yaml:"exclude" json:"exclude"`
}

// ChunkingConfig holds chunker settings (spec.md §4.B). They are loaded,
// merged and validated, but the embed path builds its chunker from
// internal/chunk's package defaults and does not read them.
type ChunkingConfig struct {
	// TargetTokens is the chunk size target for tokenizer-bearing
	// providers (default: 800).
	TargetTokens int `yaml:"target_tokens" json:"target_tokens"`
	// TargetChars is the chunk size target for providers with no
	// tokenizer (default: 3200).
	TargetChars int `yaml:"target_chars" json:"target_chars"`
	// OverlapRatio is the fraction of the target window repeated at the
	// start of the next chunk (default: 0.15).
	OverlapRatio float64 `yaml:"overlap_ratio" json:"overlap_ratio"`
	// MinChunkTokens is a minimum chunk size. The chunker does not merge a
	// short trailing chunk into the previous one.
	MinChunkTokens int `yaml:"min_chunk_tokens" json:"min_chunk_tokens"`
	// TokensPerChar is the characters-per-token ratio (default: 4);
	// internal/chunk sizes token windows with its own TokensPerChar constant.
	TokensPerChar int `yaml:"tokens_per_char" json:"tokens_per_char"`
}

// EmbeddingsConfig configures the active embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

// ProvidersConfig holds per-provider connection settings. API keys are
// never stored here; only the name of the environment variable to read.
type ProvidersConfig struct {
	Local  LocalProviderConfig  `yaml:"local" json:"local"`
	OpenAI OpenAIProviderConfig `yaml:"openai" json:"openai"`
	Gemini GeminiProviderConfig `yaml:"gemini" json:"gemini"`
}

// LocalProviderConfig configures the on-device inference server used for
// local embedding, reranking, and generation.
type LocalProviderConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// OpenAIProviderConfig configures the OpenAI-compatible embedding HTTP API.
type OpenAIProviderConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// GeminiProviderConfig configures the Gemini batch-embed HTTP API.
type GeminiProviderConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// SearchConfig configures RRF fusion parameters shared by the hybrid
// pipeline (spec.md §4.I).
type SearchConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter (k). Default 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	// TopRankBonus is added to rank-1 fused scores before normalization.
	TopRankBonus float64 `yaml:"top_rank_bonus" json:"top_rank_bonus"`
	// RunnerUpBonus is added to rank 2-3 fused scores before normalization.
	RunnerUpBonus float64 `yaml:"runner_up_bonus" json:"runner_up_bonus"`

	// VectorOverfetch multiplies the requested limit before chunk-level
	// vector hits are collapsed to per-document scores.
	VectorOverfetch int `yaml:"vector_overfetch" json:"vector_overfetch"`

	// ExpansionCount is loaded but not read: QueryExpander always asks for
	// two LLM-generated variants and keeps at most two (spec.md §4.G).
	ExpansionCount int `yaml:"expansion_count" json:"expansion_count"`
	// RerankTopK is the number of fused results sent to the reranker.
	RerankTopK int `yaml:"rerank_top_k" json:"rerank_top_k"`
}

// LLMHostConfig configures the process-wide model host (spec.md §4.D).
type LLMHostConfig struct {
	// IdleTimeout is loaded and validated but not passed to the LLM host,
	// which evicts an unused context after its fixed llmhost.IdleTimeout;
	// the underlying model stays loaded.
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	RerankerModel  string `yaml:"reranker_model" json:"reranker_model"`
	GeneratorModel string `yaml:"generator_model" json:"generator_model"`
}

// PerformanceConfig configures storage and worker tuning.
type PerformanceConfig struct {
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
	IndexWorkers  int `yaml:"index_workers" json:"index_workers"`
}

// NewConfig returns a Config populated with documented defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DefaultMask: "**/*.md",
			Exclude:     []string{".git/**", "node_modules/**"},
		},
		Chunking: ChunkingConfig{
			TargetTokens:   800,
			TargetChars:    3200,
			OverlapRatio:   0.15,
			MinChunkTokens: 100,
			TokensPerChar:  4,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "local",
			Model:      "embeddinggemma",
			Dimensions: 768,
			BatchSize:  32,
		},
		Providers: ProvidersConfig{
			Local: LocalProviderConfig{
				Endpoint: "http://localhost:11434",
			},
			OpenAI: OpenAIProviderConfig{
				BaseURL:   "https://api.openai.com/v1",
				APIKeyEnv: "OPENAI_API_KEY",
			},
			Gemini: GeminiProviderConfig{
				BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
				APIKeyEnv: "GEMINI_API_KEY",
			},
		},
		Search: SearchConfig{
			RRFConstant:     60,
			TopRankBonus:    0.05,
			RunnerUpBonus:   0.02,
			VectorOverfetch: 4,
			ExpansionCount:  2,
			RerankTopK:      30,
		},
		LLMHost: LLMHostConfig{
			IdleTimeout:    5 * time.Minute,
			EmbeddingModel: "embeddinggemma",
			RerankerModel:  "qwen3-reranker",
			GeneratorModel: "qwen3",
		},
		Performance: PerformanceConfig{
			SQLiteCacheMB: 64,
			IndexWorkers:  4,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration
// file, honoring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "qmd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "qmd", "config.yaml")
	}
	return filepath.Join(home, ".config", "qmd", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration for the given working directory, applying
// settings in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/qmd/config.yaml)
//  3. Project config (.qmd.yaml in dir)
//  4. Environment variables (QMD_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .qmd.yaml or .qmd.yml
// in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".qmd.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".qmd.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DefaultMask != "" {
		c.Paths.DefaultMask = other.Paths.DefaultMask
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = other.Paths.Exclude
	}

	if other.Chunking.TargetTokens != 0 {
		c.Chunking.TargetTokens = other.Chunking.TargetTokens
	}
	if other.Chunking.TargetChars != 0 {
		c.Chunking.TargetChars = other.Chunking.TargetChars
	}
	if other.Chunking.OverlapRatio != 0 {
		c.Chunking.OverlapRatio = other.Chunking.OverlapRatio
	}
	if other.Chunking.MinChunkTokens != 0 {
		c.Chunking.MinChunkTokens = other.Chunking.MinChunkTokens
	}
	if other.Chunking.TokensPerChar != 0 {
		c.Chunking.TokensPerChar = other.Chunking.TokensPerChar
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	if other.Providers.Local.Endpoint != "" {
		c.Providers.Local.Endpoint = other.Providers.Local.Endpoint
	}
	if other.Providers.OpenAI.BaseURL != "" {
		c.Providers.OpenAI.BaseURL = other.Providers.OpenAI.BaseURL
	}
	if other.Providers.OpenAI.APIKeyEnv != "" {
		c.Providers.OpenAI.APIKeyEnv = other.Providers.OpenAI.APIKeyEnv
	}
	if other.Providers.Gemini.BaseURL != "" {
		c.Providers.Gemini.BaseURL = other.Providers.Gemini.BaseURL
	}
	if other.Providers.Gemini.APIKeyEnv != "" {
		c.Providers.Gemini.APIKeyEnv = other.Providers.Gemini.APIKeyEnv
	}

	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.TopRankBonus != 0 {
		c.Search.TopRankBonus = other.Search.TopRankBonus
	}
	if other.Search.RunnerUpBonus != 0 {
		c.Search.RunnerUpBonus = other.Search.RunnerUpBonus
	}
	if other.Search.VectorOverfetch != 0 {
		c.Search.VectorOverfetch = other.Search.VectorOverfetch
	}
	if other.Search.ExpansionCount != 0 {
		c.Search.ExpansionCount = other.Search.ExpansionCount
	}
	if other.Search.RerankTopK != 0 {
		c.Search.RerankTopK = other.Search.RerankTopK
	}

	if other.LLMHost.IdleTimeout != 0 {
		c.LLMHost.IdleTimeout = other.LLMHost.IdleTimeout
	}
	if other.LLMHost.EmbeddingModel != "" {
		c.LLMHost.EmbeddingModel = other.LLMHost.EmbeddingModel
	}
	if other.LLMHost.RerankerModel != "" {
		c.LLMHost.RerankerModel = other.LLMHost.RerankerModel
	}
	if other.LLMHost.GeneratorModel != "" {
		c.LLMHost.GeneratorModel = other.LLMHost.GeneratorModel
	}

	if other.Performance.SQLiteCacheMB != 0 {
		c.Performance.SQLiteCacheMB = other.Performance.SQLiteCacheMB
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
}

// applyEnvOverrides applies QMD_* environment variables, the highest
// precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QMD_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}

	if v := os.Getenv("QMD_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("QMD_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("QMD_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("QMD_LOCAL_ENDPOINT"); v != "" {
		c.Providers.Local.Endpoint = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Providers.OpenAI.BaseURL = v
	}

	if v := os.Getenv("QMD_LLM_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LLMHost.IdleTimeout = d
		}
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Chunking.TargetTokens < 0 || c.Chunking.TargetChars < 0 {
		return fmt.Errorf("chunking target sizes must be non-negative")
	}

	validProviders := map[string]bool{"local": true, "openai": true, "gemini": true}
	if c.Embeddings.Provider != "" && !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'local', 'openai', or 'gemini', got %s", c.Embeddings.Provider)
	}

	if c.LLMHost.IdleTimeout < 0 {
		return fmt.Errorf("llm_host.idle_timeout must be non-negative")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
