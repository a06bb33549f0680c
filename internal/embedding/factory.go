package embedding

import (
	"fmt"

	"ragcore/internal/config"
	"ragcore/internal/domain"
	"ragcore/internal/embedding/ollama"
	"ragcore/internal/embedding/openai"
	"ragcore/internal/embedding/tfidf"
)

// New builds the configured provider wrapped in a Guard.
func New(cfg config.EmbedderConfig) (*Guard, error) {
	var inner domain.Embedder
	switch cfg.Type {
	case "", "tfidf":
		inner = tfidf.NewEmbedder()
	case "openai":
		oc := openai.Config{}
		if cfg.OpenAI != nil {
			oc = openai.Config{BaseURL: cfg.OpenAI.BaseURL, APIKeyEnv: cfg.OpenAI.APIKeyEnv, Model: cfg.OpenAI.Model}
		}
		oc.Dimensions = cfg.Dimension
		c, err := openai.NewClient(oc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
		}
		inner = c
	case "ollama":
		oc := ollama.Config{Timeout: cfg.Timeout()}
		if cfg.Ollama != nil {
			oc.BaseURL = cfg.Ollama.URL
			oc.Model = cfg.Ollama.Model
		}
		c, err := ollama.NewClient(oc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
		}
		inner = c
	default:
		return nil, fmt.Errorf("%w: unsupported embedder type %q", domain.ErrInvalidConfig, cfg.Type)
	}
	return NewGuard(inner, cfg.Dimension, cfg.Timeout()), nil
}
