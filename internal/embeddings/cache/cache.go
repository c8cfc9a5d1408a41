// Package cache wraps an embeddings.Provider with a Redis-backed cache for
// query embeddings. Document embeddings are never cached: reindexing must
// always reflect the current model.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/folio-writing/folio/internal/embeddings"
)

const (
	DefaultTTL    = 24 * time.Hour
	DefaultPrefix = "folio:emb:"
)

// kv is the subset of the redis client used by the cache.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Config contains cache settings.
type Config struct {
	// TTL bounds how long a cached vector lives. Default: 24h
	TTL time.Duration

	// Prefix namespaces keys. Default: "folio:emb:"
	Prefix string

	Logger *slog.Logger
}

// Provider caches single-text query embeddings of an underlying provider.
type Provider struct {
	next   embeddings.Provider
	client kv
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ embeddings.Provider = (*Provider)(nil)

// New wraps next with a cache stored in client.
func New(next embeddings.Provider, client redis.Cmdable, cfg Config) *Provider {
	return newWithKV(next, client, cfg)
}

func newWithKV(next embeddings.Provider, client kv, cfg Config) *Provider {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Provider{
		next:   next,
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
		logger: cfg.Logger.With("component", "embedding_cache"),
	}
}

// Name returns the wrapped provider name.
func (p *Provider) Name() string {
	return p.next.Name()
}

// Dimension returns the wrapped provider dimension.
func (p *Provider) Dimension() int {
	return p.next.Dimension()
}

// Embed serves single query embeddings from the cache when possible.
// Redis failures are logged and fall through to the wrapped provider.
func (p *Provider) Embed(ctx context.Context, texts []string, opts embeddings.Options) ([][]float32, error) {
	if opts.Intent != embeddings.IntentQuery || len(texts) != 1 {
		return p.next.Embed(ctx, texts, opts)
	}

	key := p.key(texts[0], opts)
	data, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		v, decodeErr := decodeVector(data)
		if decodeErr == nil {
			return [][]float32{v}, nil
		}
		p.logger.Warn("discarding corrupt cache entry", "error", decodeErr)
	case errors.Is(err, redis.Nil):
	default:
		p.logger.Warn("cache lookup failed", "error", err)
	}

	vectors, err := p.next.Embed(ctx, texts, opts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 1 && len(vectors[0]) > 0 {
		if err := p.client.Set(ctx, key, encodeVector(vectors[0]), p.ttl).Err(); err != nil {
			p.logger.Warn("cache store failed", "error", err)
		}
	}
	return vectors, nil
}

func (p *Provider) key(text string, opts embeddings.Options) string {
	model := p.next.Name()
	if m, ok := p.next.(interface{ Model() string }); ok {
		model += "/" + m.Model()
	}
	dim := opts.Dimensionality
	if dim <= 0 {
		dim = p.next.Dimension()
	}

	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{'|'})
	h.Write([]byte(opts.Intent))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(dim)))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return p.prefix + hex.EncodeToString(h.Sum(nil))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached vector length %d", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
