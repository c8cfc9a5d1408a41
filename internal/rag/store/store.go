// Package store defines composition and chunk storage interfaces
// for the RAG (Retrieval-Augmented Generation) system.
package store

import (
	"context"
	"errors"

	"github.com/folio-writing/folio/pkg/models"
)

// ErrNotFound is returned when a composition does not exist.
var ErrNotFound = errors.New("not found")

// CompositionReader reads the site's compositions. folio never writes them.
type CompositionReader interface {
	// ListCompositions returns every composition ordered by title.
	ListCompositions(ctx context.Context) ([]models.Composition, error)

	// ListTitles returns every composition title in ascending order.
	ListTitles(ctx context.Context) ([]string, error)

	// GetComposition retrieves a composition by ID. Returns ErrNotFound if absent.
	GetComposition(ctx context.Context, id string) (*models.Composition, error)
}

// ChunkWriter persists chunk sets.
type ChunkWriter interface {
	// ReplaceChunks deletes every chunk of compositionID and inserts chunks
	// in one transaction. Each chunk must carry an embedding literal.
	ReplaceChunks(ctx context.Context, compositionID string, chunks []EncodedChunk) error
}

// ChunkReader retrieves chunks for context assembly.
type ChunkReader interface {
	// ChunksByComposition returns all chunks of a composition in reading order.
	ChunksByComposition(ctx context.Context, compositionID string) ([]models.CompositionChunk, error)

	// NearestChunks returns up to limit chunks ordered by cosine distance to
	// queryVec (a pgvector literal), nearest first. Chunks of
	// excludeCompositionID are skipped when it is non-empty.
	NearestChunks(ctx context.Context, queryVec string, limit int, excludeCompositionID string) ([]models.CompositionChunk, error)
}

// Store combines every storage capability.
type Store interface {
	CompositionReader
	ChunkWriter
	ChunkReader

	// Stats returns statistics about the store.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources.
	Close() error
}

// EncodedChunk is a chunk ready to be written, with its embedding already
// normalized and rendered as a vector literal.
type EncodedChunk struct {
	ChunkIndex int
	Title      string
	Genre      string
	Content    string
	Embedding  string
}

// Stats contains statistics about the store.
type Stats struct {
	// Compositions is the number of compositions.
	Compositions int64 `json:"compositions"`

	// Chunks is the number of stored chunks.
	Chunks int64 `json:"chunks"`

	// IndexedCompositions is the number of compositions with at least one chunk.
	IndexedCompositions int64 `json:"indexed_compositions"`

	// EmbeddingDimension is the configured embedding dimension.
	EmbeddingDimension int `json:"embedding_dimension"`
}
