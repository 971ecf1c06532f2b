package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mediachat/internal/conversation"
	"mediachat/internal/dispatch"
	"mediachat/internal/failure"
	"mediachat/internal/logging"
)

// maxErrorBody bounds how much of a failed response is read for its text.
const maxErrorBody = 64 << 10

// Error is a failed round trip. Text is the raw message the classifier sees.
type Error struct {
	Status int // 0 for transport-level failures
	Text   string
}

func (e *Error) Error() string { return e.Text }

// Client implements dispatch.Dispatcher against an assistant service.
// It applies no timeout of its own; a cycle waits as long as HTTPClient does.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient creates a client for the service rooted at endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		HTTPClient: &http.Client{},
	}
}

var _ dispatch.Dispatcher = (*Client)(nil)

// Send posts message and history to /api/chat. Every failure is returned as
// an *Error whose text is taken from the response when it has one.
func (c *Client) Send(ctx context.Context, message string, history []conversation.Turn) (dispatch.Reply, error) {
	log := logging.Get(logging.CategoryAPI)

	body, err := json.Marshal(ChatRequest{Message: message, History: EncodeHistory(history)})
	if err != nil {
		return dispatch.Reply{}, &Error{Text: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return dispatch.Reply{}, &Error{Text: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debug("POST %s: %d history turns", c.url(), len(history))

	resp, err := c.httpClient().Do(req)
	if err != nil {
		log.Warn("request failed: %v", err)
		return dispatch.Reply{}, &Error{Text: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := ErrorText(raw)
		if text == "" {
			text = failure.DefaultText
		}
		log.Warn("service returned status %d: %s", resp.StatusCode, text)
		return dispatch.Reply{}, &Error{Status: resp.StatusCode, Text: text}
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return dispatch.Reply{}, &Error{Status: resp.StatusCode, Text: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if out.Response == nil {
		return dispatch.Reply{}, &Error{Status: resp.StatusCode, Text: "malformed response: missing response field"}
	}

	reply := dispatch.Reply{Text: *out.Response}
	if out.Data != nil {
		stats := out.Data.Stats()
		reply.Data = &stats
	}
	log.Debug("reply received: %d chars, data=%v", len(reply.Text), reply.Data != nil)
	return reply, nil
}

func (c *Client) url() string {
	return strings.TrimRight(c.Endpoint, "/") + ChatPath
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// ErrorText extracts the message from a failed response body. JSON bodies
// are searched for "error" (a string or an object with "message"), then
// "detail", then "message"; anything else is used trimmed. An empty result
// means the body carried no text.
func ErrorText(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return trimmed
	}

	if v, ok := fields["error"]; ok {
		if s, ok := stringField(v); ok {
			return s
		}
		var nested struct {
			Message string          `json:"message"`
			Type    string          `json:"type"`
			Code    json.RawMessage `json:"code"`
		}
		if err := json.Unmarshal(v, &nested); err == nil && nested.Message != "" {
			code, _ := stringField(nested.Code)
			parts := make([]string, 0, 3)
			for _, p := range []string{nested.Type, code, nested.Message} {
				if p != "" {
					parts = append(parts, p)
				}
			}
			return strings.Join(parts, ": ")
		}
	}
	for _, key := range []string{"detail", "message"} {
		if v, ok := fields[key]; ok {
			if s, ok := stringField(v); ok {
				return s
			}
		}
	}
	return trimmed
}

func stringField(v json.RawMessage) (string, bool) {
	if len(v) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}
