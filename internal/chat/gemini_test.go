package chat

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/folio-writing/folio/pkg/models"
)

type fakeGenerateAPI struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerateAPI) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestNewGeminiCompleter_RequiresKey(t *testing.T) {
	if _, err := NewGeminiCompleter(GeminiConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestGeminiCompleter_Complete(t *testing.T) {
	api := &fakeGenerateAPI{resp: textResponse("Boss Kevin wrote it.")}
	g := newGeminiWithAPI(api, "")

	text, err := g.Complete(context.Background(), "be a crab", []models.ChatMessage{
		{Role: models.ChatRoleUser, Content: "hi"},
		{Role: models.ChatRoleAssistant, Content: "hello!"},
		{Role: models.ChatRoleUser, Content: "   "},
		{Role: models.ChatRoleUser, Content: "who wrote Tides?"},
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if text != "Boss Kevin wrote it." {
		t.Errorf("text = %q", text)
	}
	if api.model != DefaultModel || g.Model() != DefaultModel {
		t.Errorf("model = %q", api.model)
	}

	wantRoles := []string{"user", "model", "user"}
	if len(api.contents) != len(wantRoles) {
		t.Fatalf("contents = %d, want %d (blank dropped)", len(api.contents), len(wantRoles))
	}
	for i, c := range api.contents {
		if string(c.Role) != wantRoles[i] {
			t.Errorf("content %d role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
	if api.config.SystemInstruction == nil || api.config.SystemInstruction.Parts[0].Text != "be a crab" {
		t.Errorf("system instruction not set: %+v", api.config.SystemInstruction)
	}
}

func TestGeminiCompleter_Errors(t *testing.T) {
	api := &fakeGenerateAPI{err: genai.APIError{Code: 429, Message: "Resource has been exhausted"}}
	g := newGeminiWithAPI(api, "custom-model")

	_, err := g.Complete(context.Background(), "", []models.ChatMessage{{Role: models.ChatRoleUser, Content: "hi"}})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.Status != 429 {
		t.Fatalf("error = %v, want 429 UpstreamError", err)
	}
	if api.model != "custom-model" {
		t.Errorf("model = %q", api.model)
	}
	if api.config.SystemInstruction != nil {
		t.Error("empty system instruction should be omitted")
	}

	if _, err := g.Complete(context.Background(), "sys", nil); err == nil {
		t.Error("expected error for empty conversation")
	}
}

func TestGeminiCompleter_NilResponse(t *testing.T) {
	g := newGeminiWithAPI(&fakeGenerateAPI{}, "")
	text, err := g.Complete(context.Background(), "", []models.ChatMessage{{Role: models.ChatRoleUser, Content: "hi"}})
	if err != nil || text != "" {
		t.Errorf("Complete = %q, %v; want empty text", text, err)
	}
}
