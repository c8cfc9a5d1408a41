// Package server exposes the chat, rating and titles APIs over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/folio-writing/folio/internal/chat"
	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/ratelimit"
	"github.com/folio-writing/folio/pkg/models"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// RateTooFastMessage is returned when a client rates too many synopses at once.
const RateTooFastMessage = "Too many ratings at once. Give it a moment and try again."

// Chatter answers chat turns.
type Chatter interface {
	Reply(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
}

// Rater scores synopses.
type Rater interface {
	Rate(ctx context.Context, description string) (models.RateResponse, error)
}

// TitleLister lists composition titles.
type TitleLister interface {
	ListTitles(ctx context.Context) ([]string, error)
}

// Config configures the HTTP server.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// TrustProxy reads the client address from proxy headers.
	TrustProxy bool

	// Limiter throttles /api/chat and /api/rate per client. Nil disables it.
	Limiter *ratelimit.Limiter

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Server is the folio HTTP API.
type Server struct {
	chat    Chatter
	rater   Rater
	titles  TitleLister
	config  Config
	logger  *slog.Logger
	handler http.Handler
}

// New builds a Server. Any of chat, rater or titles may be nil; the matching
// route then reports that it is not configured.
func New(chatter Chatter, rater Rater, titles TitleLister, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		chat:   chatter,
		rater:  rater,
		titles: titles,
		config: cfg,
		logger: logger.With("component", "server"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	chatLimit := RateLimitMiddleware(s.config.Limiter, s.config.Metrics, s.config.TrustProxy, chat.RateLimitMessage)
	rateLimit := RateLimitMiddleware(s.config.Limiter, s.config.Metrics, s.config.TrustProxy, RateTooFastMessage)

	mux.Handle("POST /api/chat", chatLimit(http.HandlerFunc(s.handleChat)))
	mux.Handle("POST /api/rate", rateLimit(http.HandlerFunc(s.handleRate)))
	mux.HandleFunc("GET /api/compositions/titles", s.handleTitles)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))

	var handler http.Handler = mux
	handler = InstrumentMiddleware(s.logger, s.config.Metrics, s.config.Tracer)(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown error", "error", err)
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
