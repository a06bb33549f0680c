package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ragcore/internal/domain"
)

const (
	DefaultTopK             = 3
	DefaultScoreThreshold   = 0.7
	DefaultChunkTargetSize  = 300
	DefaultChunkOverlap     = 50
	DefaultMaxContextLength = 1000
	DefaultEmbedTimeoutMS   = 5000
	DefaultBuildConcurrency = 4
	DefaultLexicalMinScore  = 0.0
	DefaultServerAddr       = ":8080"
)

// DocumentConfig points at the knowledge document.
type DocumentConfig struct {
	Path string `yaml:"path"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// OllamaEmbedderConfig holds configuration for a local Ollama server.
type OllamaEmbedderConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type string `yaml:"type"`
	// Dimension is the expected vector size. 0 learns it from the provider.
	Dimension int                   `yaml:"dimension"`
	TimeoutMS int                   `yaml:"timeout_ms"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Ollama    *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
}

// Timeout returns the per-call embedding timeout.
func (c EmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RetrievalConfig holds the options of the retrieval pipeline.
type RetrievalConfig struct {
	TopK             int      `yaml:"top_k"`
	ScoreThreshold   float64  `yaml:"score_threshold"`
	ChunkTargetSize  int      `yaml:"chunk_target_size"`
	ChunkOverlap     int      `yaml:"chunk_overlap"`
	MaxContextLength int      `yaml:"max_context_length"`
	SearchStrategy   string   `yaml:"search_strategy"`
	TopicKeywords    []string `yaml:"topic_keywords,omitempty"`
	LexicalMinScore  float64  `yaml:"lexical_min_score"`
	BuildConcurrency int      `yaml:"build_concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Document  DocumentConfig  `yaml:"document"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Keys missing from the file keep their default values; the result is not validated.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidConfig, path, err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragcore/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragcore/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragcore", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder: EmbedderConfig{Type: "tfidf", TimeoutMS: DefaultEmbedTimeoutMS},
		Retrieval: RetrievalConfig{
			TopK:             DefaultTopK,
			ScoreThreshold:   DefaultScoreThreshold,
			ChunkTargetSize:  DefaultChunkTargetSize,
			ChunkOverlap:     DefaultChunkOverlap,
			MaxContextLength: DefaultMaxContextLength,
			SearchStrategy:   string(domain.PolicyAuto),
			LexicalMinScore:  DefaultLexicalMinScore,
			BuildConcurrency: DefaultBuildConcurrency,
		},
		Server: ServerConfig{Addr: DefaultServerAddr, ShutdownTimeout: 10 * time.Second},
		Log:    LogConfig{Level: "info"},
	}
	return cfg
}

// ApplyDefaults fills fields left empty, such as provider sections of a
// hand-written config. Numeric retrieval options are never touched: keys
// missing from the file already carry Default's values, and an explicit zero
// is left for Validate to reject.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.URL == "" {
			cfg.Embedder.Ollama.URL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "nomic-embed-text"
		}
	}
	if cfg.Retrieval.SearchStrategy == "" {
		cfg.Retrieval.SearchStrategy = string(domain.PolicyAuto)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports every out-of-range option. The returned error wraps
// domain.ErrInvalidConfig.
func (c *AppConfig) Validate() error {
	errs := c.Retrieval.problems()
	switch c.Embedder.Type {
	case "tfidf", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder type %q", c.Embedder.Type))
	}
	if c.Embedder.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("embedder timeout_ms must be positive, got %d", c.Embedder.TimeoutMS))
	}
	if c.Embedder.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embedder dimension must not be negative, got %d", c.Embedder.Dimension))
	}
	return joinInvalid(errs)
}

// Validate checks the retrieval options alone.
func (r RetrievalConfig) Validate() error {
	return joinInvalid(r.problems())
}

func (r RetrievalConfig) problems() []error {
	var errs []error
	if r.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k must be positive, got %d", r.TopK))
	}
	if r.ScoreThreshold < 0 || r.ScoreThreshold > 1 {
		errs = append(errs, fmt.Errorf("score_threshold must be in [0,1], got %g", r.ScoreThreshold))
	}
	if r.ChunkTargetSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_target_size must be positive, got %d", r.ChunkTargetSize))
	}
	if r.ChunkOverlap < 0 || (r.ChunkTargetSize > 0 && r.ChunkOverlap >= r.ChunkTargetSize) {
		errs = append(errs, fmt.Errorf("chunk_overlap must be in [0,chunk_target_size), got %d", r.ChunkOverlap))
	}
	if r.MaxContextLength <= 0 {
		errs = append(errs, fmt.Errorf("max_context_length must be positive, got %d", r.MaxContextLength))
	}
	if _, err := domain.ParsePolicy(r.SearchStrategy); err != nil {
		errs = append(errs, fmt.Errorf("search_strategy %q is not one of vector, lexical, auto", r.SearchStrategy))
	}
	if r.LexicalMinScore < 0 || r.LexicalMinScore > 1 {
		errs = append(errs, fmt.Errorf("lexical_min_score must be in [0,1], got %g", r.LexicalMinScore))
	}
	if r.BuildConcurrency < 0 {
		errs = append(errs, fmt.Errorf("build_concurrency must not be negative, got %d", r.BuildConcurrency))
	}
	return errs
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
}
