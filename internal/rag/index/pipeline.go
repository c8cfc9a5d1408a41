// Package index brings the stored chunk set in sync with the site's compositions.
// The pipeline coordinates chunking, embedding, and storage one composition at a time.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/folio-writing/folio/internal/embeddings"
	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/rag/chunker"
	"github.com/folio-writing/folio/internal/rag/store"
	"github.com/folio-writing/folio/internal/rag/vector"
	"github.com/folio-writing/folio/pkg/models"
)

var (
	// ErrEmbedding wraps failures of the embedding service call.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmbeddingCountMismatch is returned when the embedding service answers
	// with a different number of vectors than texts sent.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)

// Store is the subset of store.Store the pipeline needs.
type Store interface {
	store.CompositionReader
	store.ChunkWriter
}

// Config contains configuration for the pipeline.
type Config struct {
	// Chunker splits compositions. Default: chunker.IndexingConfig().
	Chunker chunker.Config `yaml:"chunker"`

	// Dimension is the requested embedding size. Default: 768.
	Dimension int `yaml:"dimension"`

	Logger  *slog.Logger          `yaml:"-"`
	Metrics *observability.Metrics `yaml:"-"`
	Tracer  *observability.Tracer  `yaml:"-"`
}

// Pipeline runs chunk, embed, and replace for compositions.
type Pipeline struct {
	store     Store
	embedder  embeddings.Provider
	chunker   *chunker.Chunker
	dimension int
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// Result describes the outcome for one composition.
type Result struct {
	CompositionID string
	Title         string
	Skipped       bool
	ChunkCount    int
	Duration      time.Duration
}

// Summary aggregates a ReindexAll run.
type Summary struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Chunks  int `json:"chunks"`
}

// NewPipeline creates an indexing pipeline.
func NewPipeline(s Store, embedder embeddings.Provider, cfg Config) (*Pipeline, error) {
	if s == nil {
		return nil, errors.New("store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Chunker.TargetChars <= 0 && cfg.Chunker.MaxChars <= 0 {
		cfg.Chunker = chunker.IndexingConfig()
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = models.EmbeddingDimension
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     s,
		embedder:  embedder,
		chunker:   chunker.New(cfg.Chunker),
		dimension: cfg.Dimension,
		logger:    logger.With("component", "index"),
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}, nil
}

// ChunkText is the text embedded for one chunk: the title gives the
// embedding model context the chunk body may lack.
func ChunkText(title, chunk string) string {
	return "Title: " + title + "\n\n" + chunk
}

// IndexComposition replaces the stored chunks of c.
//
// A composition with blank content yields Result{Skipped: true} and no writes.
// Embedding failures and count mismatches are returned before anything is
// deleted, so a failed run leaves the previous chunk set in place.
func (p *Pipeline) IndexComposition(ctx context.Context, c models.Composition) (Result, error) {
	start := time.Now()
	result := Result{CompositionID: c.ID, Title: c.Title}

	ctx, span := p.tracer.Start(ctx, "index.composition")
	defer span.End()
	p.tracer.SetAttributes(span, "composition_id", c.ID)

	chunks := p.chunker.Chunk(c)
	if len(chunks) == 0 {
		result.Skipped = true
		result.Duration = time.Since(start)
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = ChunkText(c.Title, chunk)
	}

	vectors, err := p.embedder.Embed(ctx, texts, embeddings.Options{
		Intent:         embeddings.IntentDocument,
		Title:          c.Title,
		Dimensionality: p.dimension,
	})
	if err != nil {
		p.tracer.RecordError(span, err)
		return result, fmt.Errorf("%w for %q: %w", ErrEmbedding, c.Title, err)
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("%w for %q: sent %d texts, got %d vectors", ErrEmbeddingCountMismatch, c.Title, len(chunks), len(vectors))
		p.tracer.RecordError(span, err)
		return result, err
	}

	encoded := make([]store.EncodedChunk, len(chunks))
	for i, chunk := range chunks {
		encoded[i] = store.EncodedChunk{
			ChunkIndex: i,
			Title:      c.Title,
			Genre:      c.Genre,
			Content:    chunk,
			Embedding:  vector.Encode(vector.Normalize(vector.Float64s(vectors[i]))),
		}
	}

	if err := p.store.ReplaceChunks(ctx, c.ID, encoded); err != nil {
		p.tracer.RecordError(span, err)
		return result, fmt.Errorf("replace chunks for %q: %w", c.Title, err)
	}

	result.ChunkCount = len(chunks)
	result.Duration = time.Since(start)
	p.tracer.SetAttributes(span, "chunk_count", len(chunks))
	return result, nil
}

// ReindexAll indexes every composition sequentially, ordered by title.
//
// A store failure on one composition is logged and the run continues.
// Embedding failures and count mismatches stop the run and are returned
// together with the partial summary.
func (p *Pipeline) ReindexAll(ctx context.Context) (Summary, error) {
	var summary Summary

	comps, err := p.store.ListCompositions(ctx)
	if err != nil {
		return summary, fmt.Errorf("list compositions: %w", err)
	}
	p.logger.Info("reindexing compositions", "count", len(comps))

	for _, c := range comps {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := p.IndexComposition(ctx, c)
		switch {
		case err == nil && result.Skipped:
			summary.Skipped++
			p.metrics.RecordIndexOutcome("skipped", 0)
			p.logger.Info("skipped empty composition", "composition_id", c.ID, "title", c.Title)
		case err == nil:
			summary.Indexed++
			summary.Chunks += result.ChunkCount
			p.metrics.RecordIndexOutcome("indexed", result.ChunkCount)
			p.logger.Info("indexed composition",
				"composition_id", c.ID,
				"title", c.Title,
				"chunk_count", result.ChunkCount,
				"duration_ms", result.Duration.Milliseconds())
		case isFatal(err):
			summary.Failed++
			p.metrics.RecordIndexOutcome("failed", 0)
			p.logger.Error("indexing aborted", "composition_id", c.ID, "title", c.Title, "error", err)
			return summary, err
		default:
			summary.Failed++
			p.metrics.RecordIndexOutcome("failed", 0)
			p.metrics.RecordError("index", "store")
			p.logger.Warn("failed to index composition", "composition_id", c.ID, "title", c.Title, "error", err)
		}
	}

	p.logger.Info("reindex complete",
		"indexed", summary.Indexed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"chunk_count", summary.Chunks)
	return summary, nil
}

// isFatal reports whether err comes from the embedding step rather than the store.
func isFatal(err error) bool {
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrEmbeddingCountMismatch)
}
