// Package gemini provides an embedding provider backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/folio-writing/folio/internal/embeddings"
)

const (
	DefaultModel     = "gemini-embedding-001"
	DefaultDimension = 768

	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// embedAPI is the subset of genai.Models used by the provider.
type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Provider implements embeddings.Provider using Gemini embedding models.
type Provider struct {
	api       embedAPI
	model     string
	dimension int
}

var _ embeddings.Provider = (*Provider)(nil)

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey    string
	Model     string
	Dimension int
}

// New creates a new Gemini embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return newWithAPI(client.Models, cfg), nil
}

func newWithAPI(api embedAPI, cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	return &Provider{api: api, model: cfg.Model, dimension: cfg.Dimension}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "gemini"
}

// Dimension returns the configured output dimensionality.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Model returns the embedding model name.
func (p *Provider) Model() string {
	return p.model
}

// Embed generates one embedding per text in a single request.
func (p *Provider) Embed(ctx context.Context, texts []string, opts embeddings.Options) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := p.api.EmbedContent(ctx, p.model, contents, p.buildConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if resp == nil {
		return nil, embeddings.ErrNoEmbedding
	}

	results := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			results = append(results, nil)
			continue
		}
		results = append(results, e.Values)
	}
	return results, nil
}

func (p *Provider) buildConfig(opts embeddings.Options) *genai.EmbedContentConfig {
	dim := opts.Dimensionality
	if dim <= 0 {
		dim = p.dimension
	}
	outDim := int32(dim)

	config := &genai.EmbedContentConfig{
		TaskType:             taskType(opts.Intent),
		OutputDimensionality: &outDim,
	}
	// Title is only accepted together with RETRIEVAL_DOCUMENT.
	if opts.Title != "" && opts.Intent == embeddings.IntentDocument {
		config.Title = opts.Title
	}
	return config
}

func taskType(intent embeddings.Intent) string {
	if intent == embeddings.IntentQuery {
		return taskRetrievalQuery
	}
	return taskRetrievalDocument
}
