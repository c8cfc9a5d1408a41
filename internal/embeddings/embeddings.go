// Package embeddings provides interfaces and implementations for embedding providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Intent tells the provider how the embedding will be used.
// Document and query embeddings are tuned differently for asymmetric retrieval.
type Intent string

const (
	IntentDocument Intent = "document"
	IntentQuery    Intent = "query"
)

// Options configures a single embedding request.
type Options struct {
	// Intent is the retrieval role of the texts.
	Intent Intent

	// Title is an optional contextual hint for document embeddings.
	Title string

	// Dimensionality requests a truncated output size. Zero uses the provider default.
	Dimensionality int
}

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string, opts Options) ([][]float32, error)

	// Name returns the provider name.
	Name() string

	// Dimension returns the embedding dimension.
	Dimension() int
}

// Config contains common configuration for embedding providers.
type Config struct {
	Provider  string `yaml:"provider"` // gemini, openai
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// ErrNoEmbedding is returned when a provider answers with no vectors.
var ErrNoEmbedding = errors.New("no embedding returned")

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, p Provider, text string, opts Options) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text}, opts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrNoEmbedding
	}
	return vectors[0], nil
}

// CheckDimension verifies a vector has the expected size.
func CheckDimension(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), want)
	}
	return nil
}
