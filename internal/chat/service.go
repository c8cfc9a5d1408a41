// Package chat answers site visitors' questions with retrieval-grounded completions.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/folio-writing/folio/internal/backoff"
	"github.com/folio-writing/folio/internal/observability"
	ragcontext "github.com/folio-writing/folio/internal/rag/context"
	"github.com/folio-writing/folio/pkg/models"
)

// User-facing messages.
const (
	RateLimitMessage  = "Woah! You've got a lot of questions. I'm not even sure Boss Kevin could answer this fast. Give me a second though and I'll see if I can find him for you."
	OverloadedMessage = "I'm answering someone else's question real quick, I'll be right back with you!"
	NoAPIKeyMessage   = "Chat is not configured. Set GEMINI_API_KEY in .env (or .env.local) and restart the dev server."
	InvalidMessage    = "Missing or invalid message."
	GenericMessage    = "Something went wrong. Please try again."
)

// MaxAttempts bounds completion calls per chat turn.
const MaxAttempts = 3

// ErrNotConfigured is returned when no completion API key is available.
var ErrNotConfigured = errors.New("chat not configured")

// ReplyError is a failed chat turn with the status and message to show the user.
type ReplyError struct {
	Status  int
	Message string
	Err     error
}

func (e *ReplyError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ReplyError) Unwrap() error { return e.Err }

// ContextBuilder assembles the system instruction for a turn.
type ContextBuilder interface {
	Build(ctx context.Context, req ragcontext.BuildRequest) ragcontext.Result
}

// Config configures the chat Service.
type Config struct {
	// MaxAttempts bounds completion attempts. Default: 3.
	MaxAttempts int

	// Delay returns the wait after a failed attempt. Default: Delay.
	Delay func(attempt int) time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Service runs chat turns.
type Service struct {
	builder     ContextBuilder
	completer   Completer
	maxAttempts int
	delay       func(int) time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      *observability.Tracer
}

// NewService creates a chat service. A nil completer makes every turn fail
// with NoAPIKeyMessage.
func NewService(builder ContextBuilder, completer Completer, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = MaxAttempts
	}
	if cfg.Delay == nil {
		cfg.Delay = Delay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		builder:     builder,
		completer:   completer,
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.Delay,
		logger:      logger.With("component", "chat"),
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
	}
}

// Reply answers req. Failures are returned as *ReplyError.
func (s *Service) Reply(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if s.completer == nil {
		s.logger.WarnContext(ctx, "missing GEMINI_API_KEY; add it to .env or .env.local and restart")
		return models.ChatResponse{}, &ReplyError{Status: http.StatusInternalServerError, Message: NoAPIKeyMessage, Err: ErrNotConfigured}
	}
	if strings.TrimSpace(req.Message) == "" {
		return models.ChatResponse{}, &ReplyError{Status: http.StatusBadRequest, Message: InvalidMessage}
	}

	built := s.builder.Build(ctx, ragcontext.BuildRequest{
		Message:              req.Message,
		CurrentCompositionID: req.CurrentCompositionID,
		CurrentGenre:         req.CurrentGenre,
	})
	if built.ShortCircuit {
		return models.ChatResponse{Text: built.Reply}, nil
	}

	messages := make([]models.ChatMessage, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, models.ChatMessage{Role: models.ChatRoleUser, Content: req.Message})

	text, err := backoff.Retry(ctx, s.maxAttempts, IsRetryable,
		func(attempt int) time.Duration {
			return s.delay(attempt)
		},
		func(ctx context.Context, attempt int) (string, error) {
			return s.complete(ctx, built.SystemInstruction, messages, attempt)
		})
	if err != nil {
		return models.ChatResponse{}, s.classify(ctx, err)
	}
	return models.ChatResponse{Text: text}, nil
}

func (s *Service) complete(ctx context.Context, system string, messages []models.ChatMessage, attempt int) (string, error) {
	model := s.completer.Model()
	ctx, span := s.tracer.TraceCompletion(ctx, model, attempt)
	defer span.End()

	start := time.Now()
	text, err := s.completer.Complete(ctx, system, messages)
	if err != nil {
		s.tracer.RecordError(span, err)
		s.metrics.RecordCompletion(model, "error", time.Since(start).Seconds())
		if attempt < s.maxAttempts && IsRetryable(err) {
			s.metrics.RecordCompletionRetry(retryReason(err))
			s.logger.WarnContext(ctx, "completion failed, retrying", "attempt", attempt, "error", err)
		}
		return "", err
	}
	s.metrics.RecordCompletion(model, "success", time.Since(start).Seconds())
	return text, nil
}

func (s *Service) classify(ctx context.Context, err error) *ReplyError {
	s.logger.ErrorContext(ctx, "chat failed", "error", err)
	switch {
	case IsRateLimit(err):
		s.metrics.RecordError("chat", "rate_limit")
		return &ReplyError{Status: http.StatusTooManyRequests, Message: RateLimitMessage, Err: err}
	case IsOverloaded(err):
		s.metrics.RecordError("chat", "overloaded")
		return &ReplyError{Status: http.StatusServiceUnavailable, Message: OverloadedMessage, Err: err}
	}
	s.metrics.RecordError("chat", "upstream")
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = GenericMessage
	}
	return &ReplyError{Status: http.StatusInternalServerError, Message: msg, Err: err}
}
