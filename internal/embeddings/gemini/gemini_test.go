package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/folio-writing/folio/internal/embeddings"
)

type fakeAPI struct {
	model    string
	contents []*genai.Content
	config   *genai.EmbedContentConfig
	resp     *genai.EmbedContentResponse
	err      error
	calls    int
}

func (f *fakeAPI) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.calls++
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewWithAPI_Defaults(t *testing.T) {
	p := newWithAPI(&fakeAPI{}, Config{})
	if p.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", p.Model(), DefaultModel)
	}
	if p.Dimension() != 768 {
		t.Errorf("Dimension() = %d, want 768", p.Dimension())
	}
	if p.Name() != "gemini" {
		t.Errorf("Name() = %q, want gemini", p.Name())
	}
}

func TestEmbed_DocumentIntent(t *testing.T) {
	api := &fakeAPI{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{
			{Values: []float32{0.1, 0.2}},
			{Values: []float32{0.3, 0.4}},
		},
	}}
	p := newWithAPI(api, Config{})

	got, err := p.Embed(context.Background(), []string{"one", "two"}, embeddings.Options{
		Intent:         embeddings.IntentDocument,
		Title:          "The Lighthouse",
		Dimensionality: 768,
	})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(got) != 2 || got[1][0] != 0.3 {
		t.Errorf("Embed = %v, want two vectors in order", got)
	}
	if api.model != DefaultModel {
		t.Errorf("model = %q, want %q", api.model, DefaultModel)
	}
	if len(api.contents) != 2 {
		t.Fatalf("sent %d contents, want 2", len(api.contents))
	}
	if api.config.TaskType != "RETRIEVAL_DOCUMENT" {
		t.Errorf("TaskType = %q, want RETRIEVAL_DOCUMENT", api.config.TaskType)
	}
	if api.config.Title != "The Lighthouse" {
		t.Errorf("Title = %q, want %q", api.config.Title, "The Lighthouse")
	}
	if api.config.OutputDimensionality == nil || *api.config.OutputDimensionality != 768 {
		t.Errorf("OutputDimensionality = %v, want 768", api.config.OutputDimensionality)
	}
}

func TestEmbed_QueryIntentDropsTitle(t *testing.T) {
	api := &fakeAPI{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}},
	}}
	p := newWithAPI(api, Config{Dimension: 256})

	if _, err := p.Embed(context.Background(), []string{"q"}, embeddings.Options{
		Intent: embeddings.IntentQuery,
		Title:  "ignored",
	}); err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if api.config.TaskType != "RETRIEVAL_QUERY" {
		t.Errorf("TaskType = %q, want RETRIEVAL_QUERY", api.config.TaskType)
	}
	if api.config.Title != "" {
		t.Errorf("Title = %q, want empty for queries", api.config.Title)
	}
	if *api.config.OutputDimensionality != 256 {
		t.Errorf("OutputDimensionality = %d, want provider default 256", *api.config.OutputDimensionality)
	}
}

func TestEmbed_EmptyInputSkipsCall(t *testing.T) {
	api := &fakeAPI{}
	p := newWithAPI(api, Config{})

	got, err := p.Embed(context.Background(), nil, embeddings.Options{})
	if err != nil || got != nil {
		t.Errorf("Embed(nil) = %v, %v; want nil, nil", got, err)
	}
	if api.calls != 0 {
		t.Errorf("api called %d times, want 0", api.calls)
	}
}

func TestEmbed_WrapsError(t *testing.T) {
	upstream := errors.New("boom")
	p := newWithAPI(&fakeAPI{err: upstream}, Config{})

	_, err := p.Embed(context.Background(), []string{"x"}, embeddings.Options{})
	if !errors.Is(err, upstream) {
		t.Errorf("expected wrapped upstream error, got %v", err)
	}
}

func TestEmbed_NilResponse(t *testing.T) {
	p := newWithAPI(&fakeAPI{}, Config{})

	_, err := p.Embed(context.Background(), []string{"x"}, embeddings.Options{})
	if !errors.Is(err, embeddings.ErrNoEmbedding) {
		t.Errorf("expected ErrNoEmbedding, got %v", err)
	}
}

func TestEmbed_PreservesReturnedCount(t *testing.T) {
	api := &fakeAPI{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}},
	}}
	p := newWithAPI(api, Config{})

	got, err := p.Embed(context.Background(), []string{"a", "b", "c"}, embeddings.Options{})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d vectors, want the 1 returned by the service", len(got))
	}
}
