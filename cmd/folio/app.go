package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/folio-writing/folio/internal/config"
	"github.com/folio-writing/folio/internal/embeddings"
	"github.com/folio-writing/folio/internal/embeddings/cache"
	"github.com/folio-writing/folio/internal/embeddings/gemini"
	"github.com/folio-writing/folio/internal/embeddings/openai"
	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/rag/store/pgvector"
)

// defaultConfigPath honours FOLIO_CONFIG before the built-in default.
func defaultConfigPath() string {
	if path := strings.TrimSpace(os.Getenv("FOLIO_CONFIG")); path != "" {
		return path
	}
	return config.DefaultPath
}

// loadDotEnv loads .env.local then .env. Neither overrides variables that
// are already set, so the process environment wins, then .env.local.
func loadDotEnv() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("failed to load env file", "file", name, "error", err)
		}
	}
}

// app holds the ambient services shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	closers  []func(context.Context) error
}

func newApp(configPath string, debug bool) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:     level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  observability.NewMetrics(registry),
		tracer:   tracer,
		closers:  []func(context.Context) error{shutdown},
	}, nil
}

// Close releases everything the app opened, newest first.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, func(context.Context) error { return fn() })
}

// errNoDatabase is returned when database.url is empty.
var errNoDatabase = errors.New("database url is required (set database.url or DATABASE_URL)")

// openStore connects to PostgreSQL with the configured pool settings.
func (a *app) openStore(ctx context.Context, runMigrations bool) (*pgvector.Store, error) {
	dbCfg := a.cfg.Database
	if strings.TrimSpace(dbCfg.URL) == "" {
		return nil, errNoDatabase
	}

	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbCfg.MaxConnections > 0 {
		db.SetMaxOpenConns(dbCfg.MaxConnections)
		db.SetMaxIdleConns(dbCfg.MaxConnections)
	}
	if dbCfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	st, err := pgvector.New(pgvector.Config{
		DB:            db,
		Dimension:     a.cfg.Embeddings.Dimension,
		RunMigrations: runMigrations || dbCfg.RunMigrations,
		Metrics:       a.metrics,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.onClose(db.Close)
	return st, nil
}

// newEmbedder builds the configured embedding provider. It returns nil
// without error when no API key is configured.
func (a *app) newEmbedder() (embeddings.Provider, error) {
	ec := a.cfg.Embeddings
	if strings.TrimSpace(ec.APIKey) == "" {
		return nil, nil
	}

	var provider embeddings.Provider
	switch ec.Provider {
	case "openai":
		p, err := openai.New(openai.Config{
			APIKey:    ec.APIKey,
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			Dimension: ec.Dimension,
		})
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		p, err := gemini.New(gemini.Config{
			APIKey:    ec.APIKey,
			Model:     ec.Model,
			Dimension: ec.Dimension,
		})
		if err != nil {
			return nil, err
		}
		provider = p
	}
	provider = embeddings.Instrument(provider, a.metrics, a.tracer)

	if rc := a.cfg.Cache.Redis; rc.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		a.onClose(client.Close)
		provider = cache.New(provider, client, cache.Config{
			TTL:    a.cfg.Cache.TTL,
			Prefix: a.cfg.Cache.Prefix,
			Logger: a.logger,
		})
	}
	return provider, nil
}
