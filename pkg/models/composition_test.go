package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompositionChunk_Key(t *testing.T) {
	a := CompositionChunk{CompositionID: "c-1", ChunkIndex: 2, Content: "x"}
	b := CompositionChunk{CompositionID: "c-1", ChunkIndex: 2, Content: "y"}
	c := CompositionChunk{CompositionID: "c-1", ChunkIndex: 3}

	if a.Key() != b.Key() {
		t.Errorf("expected equal keys for same composition/index, got %v and %v", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("expected different keys for different indexes")
	}
}

func TestChatRequest_JSONFieldNames(t *testing.T) {
	payload := `{"message":"hi","currentCompositionId":"c-9","currentGenre":"poetry","history":[{"role":"assistant","content":"hello"}]}`

	var req ChatRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if req.CurrentCompositionID != "c-9" {
		t.Errorf("CurrentCompositionID = %q, want %q", req.CurrentCompositionID, "c-9")
	}
	if req.CurrentGenre != "poetry" {
		t.Errorf("CurrentGenre = %q, want %q", req.CurrentGenre, "poetry")
	}
	if len(req.History) != 1 || req.History[0].Role != ChatRoleAssistant {
		t.Errorf("History = %+v, want one assistant message", req.History)
	}
}

func TestCompositionChunk_OmitsEmptyEmbedding(t *testing.T) {
	data, err := json.Marshal(CompositionChunk{CompositionID: "c-1", Content: "text"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if strings.Contains(string(data), "embedding") {
		t.Errorf("expected embedding to be omitted, got %s", data)
	}
}
