// Package config loads folio's configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/folio-writing/folio/internal/ratelimit"
	"github.com/folio-writing/folio/pkg/models"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "folio.yaml"

// Config is the main configuration structure for folio.
type Config struct {
	Version    int              `yaml:"version"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Chat       ChatConfig       `yaml:"chat"`
	Cache      CacheConfig      `yaml:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Rating     RatingConfig     `yaml:"rating"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	// TrustProxy keys clients by the proxy-appended X-Forwarded-For hop
	// instead of the peer address. Enable only behind a reverse proxy.
	TrustProxy bool `yaml:"trust_proxy"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	RunMigrations   bool          `yaml:"run_migrations"`
}

type EmbeddingsConfig struct {
	// Provider is gemini or openai.
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type ChatConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Persona     string        `yaml:"persona"`
	PersonaFile string        `yaml:"persona_file"`
}

type CacheConfig struct {
	Redis  RedisConfig   `yaml:"redis"`
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RetrievalConfig struct {
	GlobalTopK          int `yaml:"global_top_k"`
	GlobalCandidateK    int `yaml:"global_candidate_k"`
	MaxPerOtherDocument int `yaml:"max_per_other_document"`
}

type IndexingConfig struct {
	TargetChars int `yaml:"target_chars"`
	MaxChars    int `yaml:"max_chars"`
}

type RatingConfig struct {
	HeadPath string `yaml:"head_path"`
}

type RateLimitConfig struct {
	Disabled          bool          `yaml:"disabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	IdleTTL           time.Duration `yaml:"idle_ttl"`
}

// Limiter converts to the rate limiter's config.
func (c RateLimitConfig) Limiter() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: c.RequestsPerSecond,
		BurstSize:         c.BurstSize,
		Enabled:           !c.Disabled,
		IdleTTL:           c.IdleTTL,
	}
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(e.Issues, "\n  - ")
}

// Load reads, expands, and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return finish(&Config{})
	}
	return Load(path)
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills unset secrets and endpoints from the environment.
func applyEnv(cfg *Config) {
	setIfEmpty(&cfg.Database.URL, os.Getenv("DATABASE_URL"))
	setIfEmpty(&cfg.Chat.APIKey, os.Getenv("GEMINI_API_KEY"))
	setIfEmpty(&cfg.Cache.Redis.Addr, os.Getenv("REDIS_ADDR"))

	switch strings.ToLower(cfg.Embeddings.Provider) {
	case "openai":
		setIfEmpty(&cfg.Embeddings.APIKey, os.Getenv("OPENAI_API_KEY"))
	default:
		setIfEmpty(&cfg.Embeddings.APIKey, os.Getenv("GEMINI_API_KEY"))
	}
}

func setIfEmpty(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = strings.TrimSpace(value)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 10
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "gemini"
	}
	cfg.Embeddings.Provider = strings.ToLower(cfg.Embeddings.Provider)
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = models.EmbeddingDimension
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gemini-2.5-flash-lite"
	}
	if cfg.Chat.MaxAttempts == 0 {
		cfg.Chat.MaxAttempts = 3
	}
	if cfg.Chat.RetryDelay == 0 {
		cfg.Chat.RetryDelay = 1500 * time.Millisecond
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "folio:emb:"
	}
	if cfg.Retrieval.GlobalTopK == 0 {
		cfg.Retrieval.GlobalTopK = 10
	}
	if cfg.Retrieval.GlobalCandidateK == 0 {
		cfg.Retrieval.GlobalCandidateK = 30
	}
	if cfg.Retrieval.MaxPerOtherDocument == 0 {
		cfg.Retrieval.MaxPerOtherDocument = 3
	}
	if cfg.Indexing.TargetChars == 0 {
		cfg.Indexing.TargetChars = 3200
	}
	if cfg.Indexing.MaxChars == 0 {
		cfg.Indexing.MaxChars = 4800
	}
	if cfg.Rating.HeadPath == "" {
		cfg.Rating.HeadPath = "rating-head.json"
	}
	limits := ratelimit.DefaultConfig()
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = limits.RequestsPerSecond
	}
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = limits.BurstSize
	}
	if cfg.RateLimit.IdleTTL == 0 {
		cfg.RateLimit.IdleTTL = limits.IdleTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "folio"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}
}

func validate(cfg *Config) error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if err := ValidateVersion(cfg.Version); err != nil {
		add("version: %v", err)
	}
	if cfg.Server.HTTPPort < 1 || cfg.Server.HTTPPort > 65535 {
		add("server.http_port must be between 1 and 65535")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes must not be negative")
	}
	switch cfg.Embeddings.Provider {
	case "gemini", "openai":
	default:
		add("embeddings.provider must be gemini or openai, got %q", cfg.Embeddings.Provider)
	}
	if cfg.Embeddings.Dimension != models.EmbeddingDimension {
		add("embeddings.dimension must be %d to match the chunk table", models.EmbeddingDimension)
	}
	if cfg.Chat.MaxAttempts < 1 {
		add("chat.max_attempts must be at least 1")
	}
	if cfg.Chat.Persona != "" && cfg.Chat.PersonaFile != "" {
		add("chat.persona and chat.persona_file are mutually exclusive")
	}
	if cfg.Retrieval.GlobalTopK < 1 || cfg.Retrieval.GlobalCandidateK < 1 || cfg.Retrieval.MaxPerOtherDocument < 1 {
		add("retrieval limits must be positive")
	} else if cfg.Retrieval.GlobalCandidateK < cfg.Retrieval.GlobalTopK {
		add("retrieval.global_candidate_k must be at least retrieval.global_top_k")
	}
	if cfg.Indexing.TargetChars < 1 || cfg.Indexing.MaxChars < cfg.Indexing.TargetChars {
		add("indexing.max_chars must be at least indexing.target_chars, and both positive")
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.BurstSize < 0 {
		add("rate_limit values must not be negative")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		add("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		add("tracing.sample_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// LoadPersona returns the configured persona text, reading PersonaFile if set.
// Empty means the built-in persona.
func (c ChatConfig) LoadPersona() (string, error) {
	if c.PersonaFile == "" {
		return c.Persona, nil
	}
	data, err := os.ReadFile(c.PersonaFile)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
