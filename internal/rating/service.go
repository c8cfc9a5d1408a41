package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/folio-writing/folio/internal/embeddings"
	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/rag/vector"
	"github.com/folio-writing/folio/pkg/models"
)

// MaxDescriptionLength is the longest accepted description, in characters.
const MaxDescriptionLength = 10000

// User-facing messages.
const (
	MsgEmptyDescription    = "Missing or empty description."
	MsgNotConfigured       = "Rating is not configured. Set GEMINI_API_KEY in .env."
	MsgUnexpectedDimension = "Embedding failed: unexpected dimension."
	MsgHeadUnavailable     = "Rating model is unavailable."
)

// MsgDescriptionTooLong is returned for descriptions over MaxDescriptionLength.
var MsgDescriptionTooLong = fmt.Sprintf("Description must be at most %d characters.", MaxDescriptionLength)

var (
	// ErrNotConfigured is returned when no embedding provider is available.
	ErrNotConfigured = errors.New("rating not configured")

	// ErrUnexpectedDimension is returned when the embedding has the wrong size.
	ErrUnexpectedDimension = errors.New("unexpected embedding dimension")
)

// ValidationError carries a user-facing message and matches ErrInvalidInput.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is reports whether target is ErrInvalidInput.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Service rates synopses.
type Service struct {
	embedder embeddings.Provider
	head     *LazyHead
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a rating service. A nil embedder makes every call fail
// with ErrNotConfigured.
func NewService(embedder embeddings.Provider, head *LazyHead, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: embedder,
		head:     head,
		logger:   logger.With("component", "rating"),
		metrics:  cfg.Metrics,
	}
}

// Rate embeds description and scores it.
func (s *Service) Rate(ctx context.Context, description string) (models.RateResponse, error) {
	if s.embedder == nil || s.head == nil {
		return models.RateResponse{}, ErrNotConfigured
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return models.RateResponse{}, &ValidationError{Message: MsgEmptyDescription}
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return models.RateResponse{}, &ValidationError{Message: MsgDescriptionTooLong}
	}

	head, err := s.head.Get()
	if err != nil {
		return models.RateResponse{}, fmt.Errorf("%w: %w", ErrHeadUnavailable, err)
	}

	raw, err := embeddings.EmbedOne(ctx, s.embedder, description, embeddings.Options{
		Intent:         embeddings.IntentQuery,
		Dimensionality: models.EmbeddingDimension,
	})
	if err != nil && !errors.Is(err, embeddings.ErrNoEmbedding) {
		s.metrics.RecordError("rating", "embedding")
		return models.RateResponse{}, fmt.Errorf("embed description: %w", err)
	}
	if len(raw) != models.EmbeddingDimension {
		s.metrics.RecordError("rating", "dimension")
		s.logger.WarnContext(ctx, "unexpected embedding dimension", "got", len(raw), "want", models.EmbeddingDimension)
		return models.RateResponse{}, ErrUnexpectedDimension
	}

	score, err := head.Predict(vector.Normalize(vector.Float64s(raw)))
	if err != nil {
		return models.RateResponse{}, err
	}

	label := LabelFor(score)
	s.metrics.RecordRating(label)
	return models.RateResponse{Rating: score, Label: label}, nil
}
