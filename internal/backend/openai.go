package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"mediachat/internal/config"
	"mediachat/internal/conversation"
)

// OpenAIAssistant answers through an OpenAI-compatible chat completion API.
type OpenAIAssistant struct {
	client       *openai.Client
	model        string
	systemPrompt string
	catalog      *Catalog
}

// NewOpenAIAssistant creates an assistant for cfg. BaseURL may point at any
// OpenAI-compatible server.
func NewOpenAIAssistant(cfg config.LLMConfig, catalog *Catalog) *OpenAIAssistant {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIAssistant{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		catalog:      catalog,
	}
}

func (a *OpenAIAssistant) Name() string { return "openai:" + a.model }

func (a *OpenAIAssistant) Reply(ctx context.Context, message string, history []conversation.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.systemPrompt + catalogContext(ctx, a.catalog),
	})
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", upstream(http.StatusBadGateway, "empty chat response")
	}
	return resp.Choices[0].Message.Content, nil
}

// openAIError renders API errors as "<type>: <code>: <message>" so the
// error tokens survive to the client.
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		text := apiErr.Message
		if code := fmt.Sprint(apiErr.Code); apiErr.Code != nil && code != "" {
			text = code + ": " + text
		}
		if apiErr.Type != "" {
			text = apiErr.Type + ": " + text
		}
		return upstream(apiErr.HTTPStatusCode, "%s", text)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return upstream(reqErr.HTTPStatusCode, "%s", reqErr.Error())
	}
	return upstream(http.StatusBadGateway, "%s", err.Error())
}
