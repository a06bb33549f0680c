package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "nomic-embed-text"
)

// Config configures the Ollama embeddings client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client embeds text through a local Ollama server.
type Client struct {
	api       *api.Client
	model     string
	dimension atomic.Int64
}

// NewClient creates an Ollama embeddings client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		api:   api.NewClient(base, &http.Client{Timeout: timeout}),
		model: cfg.Model,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "ollama" }

// Prepare is not required for remote embedding.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the vector size once a call has succeeded.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.api.Embeddings(ctx, &api.EmbeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("ollama returned an empty embedding")
	}
	c.dimension.CompareAndSwap(0, int64(len(resp.Embedding)))
	return resp.Embedding, nil
}
