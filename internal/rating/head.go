// Package rating scores synopses with a trained linear head over text embeddings.
package rating

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/folio-writing/folio/pkg/models"
)

var (
	// ErrInvalidInput is returned for inputs the head or service cannot score.
	ErrInvalidInput = errors.New("invalid input")

	// ErrHeadUnavailable is returned when the weights artifact cannot be used.
	ErrHeadUnavailable = errors.New("rating head unavailable")
)

//go:embed schema/head.schema.json
var headSchemaJSON string

var (
	headSchemaOnce sync.Once
	headSchema     *jsonschema.Schema
	headSchemaErr  error
)

func compiledHeadSchema() (*jsonschema.Schema, error) {
	headSchemaOnce.Do(func() {
		headSchema, headSchemaErr = jsonschema.CompileString("head.schema.json", headSchemaJSON)
	})
	return headSchema, headSchemaErr
}

// Head is a linear model: rating = B + dot(W, embedding).
type Head struct {
	W []float64 `json:"W"`
	B float64   `json:"b"`
}

// LoadHead reads and validates a weights artifact of the form {"W": [768 numbers], "b": number}.
func LoadHead(r io.Reader) (*Head, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rating head: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode rating head: %w", err)
	}

	schema, err := compiledHeadSchema()
	if err != nil {
		return nil, fmt.Errorf("compile rating head schema: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("rating head invalid: %w", err)
	}

	var head Head
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode rating head: %w", err)
	}
	return &head, nil
}

// LoadHeadFile loads a weights artifact from disk.
func LoadHeadFile(path string) (*Head, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rating head: %w", err)
	}
	defer f.Close()

	head, err := LoadHead(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return head, nil
}

// Predict returns B + Σ e[i]*W[i]. The result is not clamped.
func (h *Head) Predict(e []float64) (float64, error) {
	if len(h.W) != models.EmbeddingDimension {
		return 0, fmt.Errorf("%w: expected %d weights, got %d", ErrHeadUnavailable, models.EmbeddingDimension, len(h.W))
	}
	if len(e) != models.EmbeddingDimension {
		return 0, fmt.Errorf("%w: expected %d-dim embedding, got %d", ErrInvalidInput, models.EmbeddingDimension, len(e))
	}
	sum := h.B
	for i, x := range e {
		sum += x * h.W[i]
	}
	return sum, nil
}

// LazyHead loads a Head on first use and caches the outcome, error included.
type LazyHead struct {
	once sync.Once
	load func() (*Head, error)
	head *Head
	err  error
}

// NewLazyHead wraps a loader.
func NewLazyHead(load func() (*Head, error)) *LazyHead {
	return &LazyHead{load: load}
}

// LazyHeadFile defers LoadHeadFile(path) to first use.
func LazyHeadFile(path string) *LazyHead {
	return NewLazyHead(func() (*Head, error) { return LoadHeadFile(path) })
}

// StaticHead returns a LazyHead that is already loaded.
func StaticHead(h *Head) *LazyHead {
	l := &LazyHead{head: h}
	l.once.Do(func() {})
	return l
}

// Get returns the loaded head. Safe for concurrent use.
func (l *LazyHead) Get() (*Head, error) {
	l.once.Do(func() {
		if l.load == nil {
			l.err = errors.New("rating head loader not configured")
			return
		}
		l.head, l.err = l.load()
	})
	return l.head, l.err
}
