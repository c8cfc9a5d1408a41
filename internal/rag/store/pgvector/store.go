// Package pgvector provides a composition chunk store using PostgreSQL with the pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/rag/store"
	"github.com/folio-writing/folio/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const columnsPerChunk = 6

// Store implements store.Store using pgvector.
type Store struct {
	db        *sql.DB
	dimension int
	ownsDB    bool // whether this store owns the db connection
	metrics   *observability.Metrics
}

var _ store.Store = (*Store)(nil)

// Config contains configuration for the pgvector store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	// If empty, DB must be provided.
	DSN string

	// DB is an existing database connection to reuse.
	// If provided, DSN is ignored and the store will not close the connection.
	DB *sql.DB

	// Dimension is the embedding dimension. Must match the vector column.
	// Default: 768
	Dimension int

	// RunMigrations controls whether to run migrations on startup.
	RunMigrations bool

	// Metrics records query timings. Optional.
	Metrics *observability.Metrics
}

// New creates a new pgvector chunk store.
func New(cfg Config) (*Store, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = models.EmbeddingDimension
	}

	var db *sql.DB
	var ownsDB bool
	var err error

	if cfg.DB != nil {
		db = cfg.DB
		ownsDB = false
	} else if cfg.DSN != "" {
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	} else {
		return nil, fmt.Errorf("either DSN or DB must be provided")
	}

	s := &Store{
		db:        db,
		dimension: cfg.Dimension,
		ownsDB:    ownsDB,
		metrics:   cfg.Metrics,
	}

	if cfg.RunMigrations {
		if err := s.Migrate(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return s, nil
}

// Migrate applies pending database migrations and returns nil when the schema is current.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS folio_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create folio_schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO folio_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM folio_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query folio_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan folio_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("folio_schema_migrations: %w", err)
	}
	return applied, nil
}

// ListCompositions returns every composition ordered by title.
func (s *Store) ListCompositions(ctx context.Context) (comps []models.Composition, err error) {
	defer s.observe("select", "composition", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT "id", "title", "genre", "content"
		FROM "Composition"
		ORDER BY "title" ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query compositions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Composition
		if err := rows.Scan(&c.ID, &c.Title, &c.Genre, &c.Content); err != nil {
			return nil, fmt.Errorf("scan composition: %w", err)
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// ListTitles returns every composition title in ascending order.
func (s *Store) ListTitles(ctx context.Context) (titles []string, err error) {
	defer s.observe("select", "composition", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT "title" FROM "Composition" ORDER BY "title" ASC`)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	defer rows.Close()

	titles = []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// GetComposition retrieves a composition by ID.
func (s *Store) GetComposition(ctx context.Context, id string) (_ *models.Composition, err error) {
	defer s.observe("select", "composition", time.Now(), &err)

	var c models.Composition
	err = s.db.QueryRowContext(ctx, `
		SELECT "id", "title", "genre", "content"
		FROM "Composition"
		WHERE "id" = $1
	`, id).Scan(&c.ID, &c.Title, &c.Genre, &c.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query composition: %w", err)
	}
	return &c, nil
}

// ReplaceChunks deletes the composition's chunks and inserts the new set
// with one multi-row INSERT, inside a single transaction.
func (s *Store) ReplaceChunks(ctx context.Context, compositionID string, chunks []store.EncodedChunk) (err error) {
	defer s.observe("replace", "composition_chunk", time.Now(), &err)

	if compositionID == "" {
		return fmt.Errorf("composition id is required")
	}
	for i, c := range chunks {
		if err := s.validateLiteral(c.Embedding); err != nil {
			return fmt.Errorf("validate embedding for chunk %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM "CompositionChunk" WHERE "compositionId" = $1`, compositionID); err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}

	if len(chunks) > 0 {
		query, args := s.buildInsert(compositionID, chunks)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) buildInsert(compositionID string, chunks []store.EncodedChunk) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO "CompositionChunk" ("compositionId","chunkIndex","title","genre","content","embedding") VALUES `)

	args := make([]any, 0, len(chunks)*columnsPerChunk)
	for i, c := range chunks {
		if i > 0 {
			sb.WriteByte(',')
		}
		n := i * columnsPerChunk
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d::vector(%d))", n+1, n+2, n+3, n+4, n+5, n+6, s.dimension)
		args = append(args, compositionID, c.ChunkIndex, c.Title, c.Genre, c.Content, c.Embedding)
	}
	return sb.String(), args
}

// ChunksByComposition returns all chunks of a composition ordered by chunk index.
func (s *Store) ChunksByComposition(ctx context.Context, compositionID string) (chunks []models.CompositionChunk, err error) {
	defer s.observe("select", "composition_chunk", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT "compositionId", "chunkIndex", "title", "genre", "content"
		FROM "CompositionChunk"
		WHERE "compositionId" = $1
		ORDER BY "chunkIndex" ASC
	`, compositionID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.CompositionChunk
		if err := rows.Scan(&c.CompositionID, &c.ChunkIndex, &c.Title, &c.Genre, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// NearestChunks performs a cosine-distance search over all chunks.
func (s *Store) NearestChunks(ctx context.Context, queryVec string, limit int, excludeCompositionID string) (chunks []models.CompositionChunk, err error) {
	defer s.observe("search", "composition_chunk", time.Now(), &err)

	if err := s.validateLiteral(queryVec); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT "compositionId", "chunkIndex", "title", "genre", "content",
			"embedding" <=> $1::vector AS distance
		FROM "CompositionChunk"`
	args := []any{queryVec, limit}
	if excludeCompositionID != "" {
		query += `
		WHERE "compositionId" <> $3`
		args = append(args, excludeCompositionID)
	}
	query += `
		ORDER BY "embedding" <=> $1::vector ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.CompositionChunk
		if err := rows.Scan(&c.CompositionID, &c.ChunkIndex, &c.Title, &c.Genre, &c.Content, &c.Distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}

// Stats returns statistics about the store.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	stats := &store.Stats{
		EmbeddingDimension: s.dimension,
	}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "Composition"`).Scan(&stats.Compositions)
	if err != nil {
		return nil, fmt.Errorf("count compositions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT "compositionId") FROM "CompositionChunk"`).
		Scan(&stats.Chunks, &stats.IndexedCompositions)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	return stats, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases resources.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Helper functions

func (s *Store) observe(operation, table string, start time.Time, errp *error) {
	status := "success"
	if errp != nil && *errp != nil {
		status = "error"
	}
	s.metrics.RecordDatabaseQuery(operation, table, status, time.Since(start).Seconds())
}

// validateLiteral checks the component count of a vector literal.
func (s *Store) validateLiteral(literal string) error {
	trimmed := strings.TrimSpace(literal)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return fmt.Errorf("invalid vector literal")
	}
	body := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if body == "" {
		return fmt.Errorf("embedding is empty")
	}
	if n := strings.Count(body, ",") + 1; s.dimension > 0 && n != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", n, s.dimension)
	}
	return nil
}

// Migration represents an embedded migration.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		suffix := ""
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	migrations := make([]Migration, 0, len(ids))
	for _, id := range ids {
		migrations = append(migrations, *entries[id])
	}
	return migrations, nil
}
