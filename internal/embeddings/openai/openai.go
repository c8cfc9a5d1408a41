// Package openai provides an embedding provider for OpenAI-compatible endpoints.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/folio-writing/folio/internal/embeddings"
)

// Provider implements embeddings.Provider using OpenAI.
type Provider struct {
	client    *openai.Client
	model     string
	dimension int
}

var _ embeddings.Provider = (*Provider)(nil)

// Config contains configuration for the OpenAI provider.
type Config struct {
	APIKey    string
	BaseURL   string // Optional custom base URL
	Model     string // text-embedding-3-small or text-embedding-3-large
	Dimension int    // Requested output size; text-embedding-3 models truncate server-side
}

// New creates a new OpenAI embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Dimension returns the requested embedding dimension.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Model returns the embedding model name.
func (p *Provider) Model() string {
	return p.model
}

// Embed generates embeddings for multiple texts.
// OpenAI has no retrieval task types, so Intent and Title are ignored.
func (p *Provider) Embed(ctx context.Context, texts []string, opts embeddings.Options) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	dim := opts.Dimensionality
	if dim <= 0 {
		dim = p.dimension
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: dim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	results := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		results[data.Index] = data.Embedding
	}

	return results, nil
}
