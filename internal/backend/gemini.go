package backend

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"mediachat/internal/config"
	"mediachat/internal/conversation"
)

// GeminiAssistant answers through the Gemini API.
type GeminiAssistant struct {
	client       *genai.Client
	model        string
	systemPrompt string
	catalog      *Catalog
}

// NewGeminiAssistant creates a Gemini-backed assistant.
func NewGeminiAssistant(ctx context.Context, cfg config.LLMConfig, catalog *Catalog) (*GeminiAssistant, error) {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create genai client")
	}
	return &GeminiAssistant{
		client:       client,
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		catalog:      catalog,
	}, nil
}

func (a *GeminiAssistant) Name() string { return "gemini:" + a.model }

func (a *GeminiAssistant) Reply(ctx context.Context, message string, history []conversation.Turn) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.Role(genai.RoleUser)
		if t.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(a.systemPrompt+catalogContext(ctx, a.catalog), genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return "", geminiError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", upstream(http.StatusBadGateway, "gemini returned empty text")
	}
	return text, nil
}

// geminiError maps Gemini status codes onto the error tokens clients know.
func geminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return upstream(http.StatusBadGateway, "%s", err.Error())
	}
	switch apiErr.Code {
	case http.StatusNotFound:
		return upstream(apiErr.Code, "model_not_found: %s", apiErr.Message)
	case http.StatusTooManyRequests:
		return upstream(apiErr.Code, "rate_limit: %s", apiErr.Message)
	case http.StatusBadRequest:
		return upstream(apiErr.Code, "invalid_request_error: %s", apiErr.Message)
	default:
		return upstream(apiErr.Code, "%s: %s", apiErr.Status, apiErr.Message)
	}
}
