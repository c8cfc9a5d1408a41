package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/folio-writing/folio/internal/embeddings"
	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/rag/store"
	"github.com/folio-writing/folio/pkg/models"
)

// ============================================================================
// Mock Implementations for Testing
// ============================================================================

type replaceCall struct {
	compositionID string
	chunks        []store.EncodedChunk
}

// mockStore implements Store for testing.
type mockStore struct {
	compositions []models.Composition
	listErr      error
	replaceErr   map[string]error
	calls        []replaceCall
}

func (m *mockStore) ListCompositions(ctx context.Context) ([]models.Composition, error) {
	return m.compositions, m.listErr
}

func (m *mockStore) ListTitles(ctx context.Context) ([]string, error) {
	titles := make([]string, len(m.compositions))
	for i, c := range m.compositions {
		titles[i] = c.Title
	}
	return titles, nil
}

func (m *mockStore) GetComposition(ctx context.Context, id string) (*models.Composition, error) {
	for _, c := range m.compositions {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) ReplaceChunks(ctx context.Context, compositionID string, chunks []store.EncodedChunk) error {
	if err := m.replaceErr[compositionID]; err != nil {
		return err
	}
	m.calls = append(m.calls, replaceCall{compositionID: compositionID, chunks: chunks})
	return nil
}

// mockEmbedder returns one vector per text unless drop or err is set.
type mockEmbedder struct {
	drop     int
	err      error
	failOn   string
	requests [][]string
	opts     []embeddings.Options
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string, opts embeddings.Options) ([][]float32, error) {
	m.requests = append(m.requests, texts)
	m.opts = append(m.opts, opts)
	if m.err != nil && (m.failOn == "" || opts.Title == m.failOn) {
		return nil, m.err
	}
	out := make([][]float32, 0, len(texts))
	for i := range texts {
		out = append(out, []float32{float32(i + 1), 0, 0})
	}
	return out[:len(out)-m.drop], nil
}

func (m *mockEmbedder) Name() string   { return "mock" }
func (m *mockEmbedder) Dimension() int { return 3 }

func newTestPipeline(t *testing.T, s Store, e embeddings.Provider, metrics *observability.Metrics) *Pipeline {
	t.Helper()
	p, err := NewPipeline(s, e, Config{Dimension: 3, Metrics: metrics})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	return p
}

func threeParagraphs() string {
	para := strings.Repeat("word ", 500)
	return para + "\n\n" + para + "\n\n" + para
}

// ============================================================================
// Tests
// ============================================================================

func TestNewPipeline_Validation(t *testing.T) {
	if _, err := NewPipeline(nil, &mockEmbedder{}, Config{}); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewPipeline(&mockStore{}, nil, Config{}); err == nil {
		t.Error("expected error for nil embedder")
	}

	p, err := NewPipeline(&mockStore{}, &mockEmbedder{}, Config{})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	if p.dimension != models.EmbeddingDimension {
		t.Errorf("dimension = %d, want %d", p.dimension, models.EmbeddingDimension)
	}
	if p.chunker.Config().TargetChars != 3200 || p.chunker.Config().MaxChars != 4800 {
		t.Errorf("chunker config = %+v, want indexing thresholds", p.chunker.Config())
	}
}

func TestIndexComposition_Success(t *testing.T) {
	s := &mockStore{}
	e := &mockEmbedder{}
	p := newTestPipeline(t, s, e, nil)

	c := models.Composition{ID: "c-1", Title: "Tides", Genre: "Fiction", Content: threeParagraphs()}
	result, err := p.IndexComposition(context.Background(), c)
	if err != nil {
		t.Fatalf("IndexComposition error: %v", err)
	}
	if result.Skipped || result.ChunkCount == 0 {
		t.Fatalf("result = %+v", result)
	}

	if len(e.requests) != 1 {
		t.Fatalf("embed calls = %d, want 1 batched call", len(e.requests))
	}
	if !strings.HasPrefix(e.requests[0][0], "Title: Tides\n\n") {
		t.Errorf("embedded text = %q, want title prefix", e.requests[0][0][:20])
	}
	opts := e.opts[0]
	if opts.Intent != embeddings.IntentDocument || opts.Title != "Tides" || opts.Dimensionality != 3 {
		t.Errorf("options = %+v", opts)
	}

	if len(s.calls) != 1 || s.calls[0].compositionID != "c-1" {
		t.Fatalf("replace calls = %+v", s.calls)
	}
	for i, chunk := range s.calls[0].chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, chunk.ChunkIndex)
		}
		if chunk.Title != "Tides" || chunk.Genre != "Fiction" {
			t.Errorf("chunk %d metadata = %q/%q", i, chunk.Title, chunk.Genre)
		}
		if chunk.Embedding != "[1.00000000,0.00000000,0.00000000]" {
			t.Errorf("chunk %d embedding = %q, want normalized literal", i, chunk.Embedding)
		}
		if strings.HasPrefix(chunk.Content, "Title:") {
			t.Errorf("stored content must not carry the title prefix")
		}
	}
}

func TestIndexComposition_PoetryIsSingleChunk(t *testing.T) {
	s := &mockStore{}
	p := newTestPipeline(t, s, &mockEmbedder{}, nil)

	c := models.Composition{ID: "p-1", Title: "Ode", Genre: " Poetry ", Content: threeParagraphs()}
	result, err := p.IndexComposition(context.Background(), c)
	if err != nil {
		t.Fatalf("IndexComposition error: %v", err)
	}
	if result.ChunkCount != 1 {
		t.Errorf("chunk count = %d, want 1", result.ChunkCount)
	}
}

func TestIndexComposition_EmptySkipped(t *testing.T) {
	s := &mockStore{}
	e := &mockEmbedder{}
	p := newTestPipeline(t, s, e, nil)

	result, err := p.IndexComposition(context.Background(), models.Composition{ID: "c-1", Content: "  \n\n  "})
	if err != nil {
		t.Fatalf("IndexComposition error: %v", err)
	}
	if !result.Skipped {
		t.Error("blank content should be skipped")
	}
	if len(e.requests) != 0 || len(s.calls) != 0 {
		t.Errorf("skipped composition made %d embed and %d store calls", len(e.requests), len(s.calls))
	}
}

func TestIndexComposition_CountMismatch(t *testing.T) {
	s := &mockStore{}
	p := newTestPipeline(t, s, &mockEmbedder{drop: 1}, nil)

	c := models.Composition{ID: "c-1", Title: "Tides", Content: threeParagraphs()}
	_, err := p.IndexComposition(context.Background(), c)
	if !errors.Is(err, ErrEmbeddingCountMismatch) {
		t.Fatalf("error = %v, want ErrEmbeddingCountMismatch", err)
	}
	if len(s.calls) != 0 {
		t.Errorf("count mismatch must not write, got %d calls", len(s.calls))
	}
}

func TestIndexComposition_EmbeddingError(t *testing.T) {
	s := &mockStore{}
	boom := errors.New("quota exceeded")
	p := newTestPipeline(t, s, &mockEmbedder{err: boom}, nil)

	_, err := p.IndexComposition(context.Background(), models.Composition{ID: "c-1", Content: "text"})
	if !errors.Is(err, boom) || !errors.Is(err, ErrEmbedding) {
		t.Fatalf("error = %v, want wrapped embedding error", err)
	}
	if len(s.calls) != 0 {
		t.Errorf("embedding failure must not write")
	}
}

func TestReindexAll(t *testing.T) {
	tests := []struct {
		name        string
		store       *mockStore
		embedder    *mockEmbedder
		wantErr     error
		wantSummary Summary
		wantWrites  []string
	}{
		{
			name: "indexes and skips",
			store: &mockStore{compositions: []models.Composition{
				{ID: "a", Title: "Alpha", Content: "one"},
				{ID: "b", Title: "Beta", Content: "   "},
				{ID: "c", Title: "Gamma", Content: "first\n\nsecond"},
			}},
			embedder:    &mockEmbedder{},
			wantSummary: Summary{Indexed: 2, Skipped: 1, Chunks: 2},
			wantWrites:  []string{"a", "c"},
		},
		{
			name: "store failure continues",
			store: &mockStore{
				compositions: []models.Composition{
					{ID: "a", Title: "Alpha", Content: "one"},
					{ID: "b", Title: "Beta", Content: "two"},
				},
				replaceErr: map[string]error{"a": errors.New("connection reset")},
			},
			embedder:    &mockEmbedder{},
			wantSummary: Summary{Indexed: 1, Failed: 1, Chunks: 1},
			wantWrites:  []string{"b"},
		},
		{
			name: "embedding failure stops",
			store: &mockStore{compositions: []models.Composition{
				{ID: "a", Title: "Alpha", Content: "one"},
				{ID: "b", Title: "Beta", Content: "two"},
				{ID: "c", Title: "Gamma", Content: "three"},
			}},
			embedder:    &mockEmbedder{err: errors.New("unavailable"), failOn: "Beta"},
			wantErr:     ErrEmbedding,
			wantSummary: Summary{Indexed: 1, Failed: 1, Chunks: 1},
			wantWrites:  []string{"a"},
		},
		{
			name: "count mismatch stops",
			store: &mockStore{compositions: []models.Composition{
				{ID: "a", Title: "Alpha", Content: "one"},
				{ID: "b", Title: "Beta", Content: "two"},
			}},
			embedder:    &mockEmbedder{drop: 1},
			wantErr:     ErrEmbeddingCountMismatch,
			wantSummary: Summary{Failed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.store, tt.embedder, nil)

			summary, err := p.ReindexAll(context.Background())
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ReindexAll error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReindexAll error = %v, want %v", err, tt.wantErr)
			}
			if summary != tt.wantSummary {
				t.Errorf("summary = %+v, want %+v", summary, tt.wantSummary)
			}

			var writes []string
			for _, call := range tt.store.calls {
				writes = append(writes, call.compositionID)
			}
			if strings.Join(writes, ",") != strings.Join(tt.wantWrites, ",") {
				t.Errorf("writes = %v, want %v", writes, tt.wantWrites)
			}
		})
	}
}

func TestReindexAll_ListError(t *testing.T) {
	p := newTestPipeline(t, &mockStore{listErr: errors.New("no db")}, &mockEmbedder{}, nil)
	if _, err := p.ReindexAll(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestReindexAll_CancelledContext(t *testing.T) {
	s := &mockStore{compositions: []models.Composition{{ID: "a", Content: "one"}}}
	p := newTestPipeline(t, s, &mockEmbedder{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.ReindexAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(s.calls) != 0 {
		t.Error("cancelled run should not write")
	}
}

func TestReindexAll_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := &mockStore{compositions: []models.Composition{
		{ID: "a", Title: "Alpha", Content: "one"},
		{ID: "b", Title: "Beta", Content: ""},
	}}
	p := newTestPipeline(t, s, &mockEmbedder{}, metrics)

	if _, err := p.ReindexAll(context.Background()); err != nil {
		t.Fatalf("ReindexAll error: %v", err)
	}
	if got := testutil.ToFloat64(metrics.IndexedCompositions.WithLabelValues("indexed")); got != 1 {
		t.Errorf("indexed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.IndexedCompositions.WithLabelValues("skipped")); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}

func TestChunkText(t *testing.T) {
	if got := ChunkText("Tides", "body"); got != "Title: Tides\n\nbody" {
		t.Errorf("ChunkText = %q", got)
	}
}
