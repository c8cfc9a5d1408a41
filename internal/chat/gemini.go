package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/folio-writing/folio/pkg/models"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Completer produces the assistant's next message.
type Completer interface {
	// Complete answers the last message of messages under the system instruction.
	Complete(ctx context.Context, system string, messages []models.ChatMessage) (string, error)

	// Model returns the model identifier for metrics and traces.
	Model() string
}

// generateAPI is the subset of *genai.Models used by GeminiCompleter.
type generateAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini completer.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// GeminiCompleter calls the Gemini generateContent API.
type GeminiCompleter struct {
	api   generateAPI
	model string
}

// NewGeminiCompleter creates a completer backed by the Gemini API.
func NewGeminiCompleter(cfg GeminiConfig) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return newGeminiWithAPI(client.Models, cfg.Model), nil
}

func newGeminiWithAPI(api generateAPI, model string) *GeminiCompleter {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiCompleter{api: api, model: model}
}

// Model returns the configured model.
func (g *GeminiCompleter) Model() string {
	return g.model
}

// Complete sends the conversation and returns the response text.
// API errors are returned as *UpstreamError.
func (g *GeminiCompleter) Complete(ctx context.Context, system string, messages []models.ChatMessage) (string, error) {
	contents := convertMessages(messages)
	if len(contents) == 0 {
		return "", errors.New("gemini: no messages to send")
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	resp, err := g.api.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", upstreamFromGenai(err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}

// convertMessages maps chat history to Gemini contents. The assistant role
// becomes "model"; anything else is sent as the user. Blank messages are dropped.
func convertMessages(messages []models.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.Role == models.ChatRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
