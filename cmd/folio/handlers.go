package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/folio-writing/folio/internal/backoff"
	"github.com/folio-writing/folio/internal/chat"
	"github.com/folio-writing/folio/internal/config"
	"github.com/folio-writing/folio/internal/rag/chunker"
	ragcontext "github.com/folio-writing/folio/internal/rag/context"
	"github.com/folio-writing/folio/internal/rag/index"
	"github.com/folio-writing/folio/internal/ratelimit"
	"github.com/folio-writing/folio/internal/rating"
	"github.com/folio-writing/folio/internal/server"
)

func closeApp(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Close(ctx)
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	a, err := newApp(configPath, debug)
	if err != nil {
		return err
	}
	defer closeApp(a)
	cfg := a.cfg

	slog.Info("starting folio",
		"version", version,
		"commit", commit,
		"config", configPath,
	)

	head, err := loadRatingHead(cfg.Rating.HeadPath)
	if err != nil {
		return err
	}

	var (
		retriever ragcontext.Retriever
		titles    server.TitleLister
	)
	st, err := a.openStore(ctx, false)
	switch {
	case errors.Is(err, errNoDatabase):
		slog.Warn("no database configured; chat runs without context and titles are unavailable")
	case err != nil:
		return err
	default:
		retriever = st
		titles = st
	}

	embedder, err := a.newEmbedder()
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if embedder == nil {
		slog.Warn("no embedding API key; global retrieval and rating are disabled")
	}

	persona, err := cfg.Chat.LoadPersona()
	if err != nil {
		return err
	}
	assembler := ragcontext.NewAssembler(retriever, embedder, ragcontext.Config{
		Persona:             persona,
		GlobalTopK:          cfg.Retrieval.GlobalTopK,
		GlobalCandidateK:    cfg.Retrieval.GlobalCandidateK,
		MaxPerOtherDocument: cfg.Retrieval.MaxPerOtherDocument,
		Dimension:           cfg.Embeddings.Dimension,
		Logger:              a.logger,
		Metrics:             a.metrics,
		Tracer:              a.tracer,
	})

	var completer chat.Completer
	gc, err := chat.NewGeminiCompleter(chat.GeminiConfig{APIKey: cfg.Chat.APIKey, Model: cfg.Chat.Model})
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		slog.Warn("missing GEMINI_API_KEY; add it to .env or .env.local and restart")
	case err != nil:
		return fmt.Errorf("chat: %w", err)
	default:
		completer = gc
	}

	chatService := chat.NewService(assembler, completer, chat.Config{
		MaxAttempts: cfg.Chat.MaxAttempts,
		Delay:       backoff.LinearPolicy{Base: cfg.Chat.RetryDelay}.Delay,
		Logger:      a.logger,
		Metrics:     a.metrics,
		Tracer:      a.tracer,
	})
	ratingService := rating.NewService(embedder, head, rating.ServiceConfig{
		Logger:  a.logger,
		Metrics: a.metrics,
	})

	srv := server.New(chatService, ratingService, titles, server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.HTTPPort,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		TrustProxy:      cfg.Server.TrustProxy,
		Limiter:         ratelimit.NewLimiter(cfg.RateLimit.Limiter()),
		Gatherer:        a.registry,
		Logger:          a.logger,
		Metrics:         a.metrics,
		Tracer:          a.tracer,
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}

// loadRatingHead reads the weights artifact up front so a bad deploy fails at start.
func loadRatingHead(path string) (*rating.LazyHead, error) {
	head, err := rating.LoadHeadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rating head: %w", err)
	}
	return rating.StaticHead(head), nil
}

func runReindex(ctx context.Context, out io.Writer, configPath, compositionID string) error {
	a, err := newApp(configPath, false)
	if err != nil {
		return err
	}
	defer closeApp(a)
	cfg := a.cfg

	st, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	embedder, err := a.newEmbedder()
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if embedder == nil {
		return errors.New("reindex requires an embedding API key (set GEMINI_API_KEY)")
	}

	pipeline, err := index.NewPipeline(st, embedder, index.Config{
		Chunker: chunker.Config{
			TargetChars: cfg.Indexing.TargetChars,
			MaxChars:    cfg.Indexing.MaxChars,
		},
		Dimension: cfg.Embeddings.Dimension,
		Logger:    a.logger,
		Metrics:   a.metrics,
		Tracer:    a.tracer,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if compositionID != "" {
		composition, err := st.GetComposition(ctx, compositionID)
		if err != nil {
			return fmt.Errorf("get composition %s: %w", compositionID, err)
		}
		result, err := pipeline.IndexComposition(ctx, *composition)
		if err != nil {
			return err
		}
		return writeJSON(out, result)
	}

	summary, err := pipeline.ReindexAll(ctx)
	if werr := writeJSON(out, summary); werr != nil && err == nil {
		err = werr
	}
	return err
}

func runRate(ctx context.Context, in io.Reader, out io.Writer, configPath string, args []string) error {
	description := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(io.LimitReader(in, int64(rating.MaxDescriptionLength)*4+1))
		if err != nil {
			return fmt.Errorf("read description: %w", err)
		}
		description = string(data)
	}

	a, err := newApp(configPath, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	embedder, err := a.newEmbedder()
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}

	service := rating.NewService(embedder, rating.LazyHeadFile(a.cfg.Rating.HeadPath), rating.ServiceConfig{
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	result, err := service.Rate(ctx, description)
	if err != nil {
		if errors.Is(err, rating.ErrNotConfigured) {
			return errors.New(rating.MsgNotConfigured)
		}
		return err
	}
	return writeJSON(out, result)
}

func runMigrate(ctx context.Context, out io.Writer, configPath string) error {
	a, err := newApp(configPath, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if _, err := a.openStore(ctx, true); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, "migrations applied")
	return err
}

func runStatus(ctx context.Context, out io.Writer, configPath string) error {
	a, err := newApp(configPath, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	st, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	return writeJSON(out, stats)
}

func runConfigSchema(out io.Writer) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(schema))
	return err
}

func runConfigValidate(out io.Writer, configPath string) error {
	if _, err := config.LoadOrDefault(configPath); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%s: ok\n", configPath)
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
