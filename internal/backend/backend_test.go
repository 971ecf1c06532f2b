package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mediachat/internal/config"
	"mediachat/internal/conversation"
	"mediachat/internal/dispatch"
	"mediachat/internal/failure"
	"mediachat/internal/logging"
	"mediachat/internal/metadata"
	"mediachat/internal/transport"
)

// =============================================================================
// HELPERS
// =============================================================================

func openTestCatalog(t *testing.T, seed bool) *Catalog {
	t.Helper()
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	if seed {
		_, err := c.SeedDemo(context.Background())
		require.NoError(t, err)
	}
	return c
}

type fakeAssistant struct {
	reply   string
	err     error
	message string
	history []conversation.Turn
}

func (f *fakeAssistant) Name() string { return "fake" }

func (f *fakeAssistant) Reply(_ context.Context, message string, history []conversation.Turn) (string, error) {
	f.message, f.history = message, history
	return f.reply, f.err
}

func serverConfig() config.ServerConfig {
	return config.DefaultConfig().Server
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_SeedAndStats(t *testing.T) {
	c := openTestCatalog(t, false)
	ctx := context.Background()

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
	assert.Equal(t, []string{}, stats.Types)
	assert.Nil(t, stats.LatestUpdate)

	n, err := c.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DemoRecords(time.Now())), n)

	n, err = c.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a non-empty catalog is a no-op")

	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.TotalRecords)
	assert.Equal(t, []string{"audio", "document", "image", "video"}, stats.Types)
	require.NotNil(t, stats.RelatedRecords)
	assert.Equal(t, 3, *stats.RelatedRecords)
	require.NotNil(t, stats.LatestUpdate)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), *stats.LatestUpdate, time.Minute)
}

func TestCatalog_AddAndFind(t *testing.T) {
	c := openTestCatalog(t, false)
	ctx := context.Background()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	id, err := c.Add(ctx, Record{Title: "Uno", Type: "Audio", Language: "ES", UpdatedAt: older})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = c.Add(ctx, Record{ID: "b", Title: "Dos", Type: "audio", Language: "en", UpdatedAt: newer, RelatedTo: id})
	require.NoError(t, err)

	all, err := c.Find(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID, "newest first")
	assert.Equal(t, id, all[0].RelatedTo)
	assert.True(t, all[0].UpdatedAt.Equal(newer))

	es, err := c.Find(ctx, Query{Type: "audio", Language: "es"})
	require.NoError(t, err)
	require.Len(t, es, 1)
	assert.Equal(t, "Uno", es[0].Title)
	assert.Equal(t, "audio", es[0].Type)

	limited, err := c.Find(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// =============================================================================
// ASSISTANTS
// =============================================================================

func TestParseQuery(t *testing.T) {
	tests := []struct {
		in   string
		want Query
	}{
		{"¿Hay audios en español?", Query{Type: "audio", Language: "es"}},
		{"Muéstrame las imágenes", Query{Type: "image"}},
		{"any english videos?", Query{Type: "video", Language: "en"}},
		{"hola", Query{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuery(tt.in))
		})
	}
}

func TestCatalogAssistant_Reply(t *testing.T) {
	a := NewCatalogAssistant(openTestCatalog(t, true))
	ctx := context.Background()

	got, err := a.Reply(ctx, "¿Hay audios en español?", nil)
	require.NoError(t, err)
	assert.Contains(t, got, "Encontré 2 registro(s)")
	assert.Contains(t, got, "Entrevista con la alcaldesa")
	assert.NotContains(t, got, "Morning news briefing")

	got, err = a.Reply(ctx, "hola", nil)
	require.NoError(t, err)
	assert.Contains(t, got, "9 registros")

	got, err = a.Reply(ctx, "¿Hay imágenes en inglés?", nil)
	require.NoError(t, err)
	assert.Contains(t, got, "No encontré")
}

func TestNewAssistant(t *testing.T) {
	ctx := context.Background()
	a, err := NewAssistant(ctx, config.LLMConfig{Provider: "echo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo", a.Name())

	a, err = NewAssistant(ctx, config.LLMConfig{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o", a.Name())

	a, err = NewAssistant(ctx, config.DefaultConfig().Server.LLM, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo", a.Name())

	gem := config.DefaultConfig().Server.LLM
	gem.Provider = "gemini"
	gem.APIKey = "gem-test"
	a, err = NewAssistant(ctx, gem, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini:gemini-2.5-flash", a.Name())

	_, err = NewAssistant(ctx, config.LLMConfig{Provider: "nope"}, nil)
	assert.Error(t, err)
}

func TestOpenAIError_KeepsTokens(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantText   string
		wantStatus int
		wantCat    failure.Category
	}{
		{
			name:       "model not found",
			err:        &openai.APIError{Type: "invalid_request_error", Code: "model_not_found", Message: "The model `gpt-9` does not exist", HTTPStatusCode: 404},
			wantText:   "invalid_request_error: model_not_found: The model `gpt-9` does not exist",
			wantStatus: 404,
			wantCat:    failure.ModelUnavailable,
		},
		{
			name:       "rate limited",
			err:        &openai.APIError{Type: "requests", Code: "rate_limit_exceeded", Message: "Rate limit reached", HTTPStatusCode: 429},
			wantText:   "requests: rate_limit_exceeded: Rate limit reached",
			wantStatus: 429,
			wantCat:    failure.RateLimited,
		},
		{
			name:       "no code",
			err:        &openai.APIError{Type: "invalid_request_error", Message: "bad field", HTTPStatusCode: 400},
			wantText:   "invalid_request_error: bad field",
			wantStatus: 400,
			wantCat:    failure.InvalidRequest,
		},
		{
			name:       "plain error",
			err:        errors.New("dial tcp: refused"),
			wantText:   "dial tcp: refused",
			wantStatus: http.StatusBadGateway,
			wantCat:    failure.Unknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := openAIError(errors.Wrap(tt.err, "create completion"))
			var ue *UpstreamError
			require.True(t, errors.As(err, &ue))
			if tt.name == "plain error" {
				assert.Contains(t, ue.Text, tt.wantText)
			} else {
				assert.Equal(t, tt.wantText, ue.Text)
			}
			assert.Equal(t, tt.wantStatus, ue.Status)
			assert.Equal(t, tt.wantCat, failure.Classify(ue.Text))
		})
	}
}

// =============================================================================
// HTTP
// =============================================================================

func TestServer_Chat(t *testing.T) {
	fa := &fakeAssistant{reply: "hola"}
	catalog := openTestCatalog(t, true)
	s := NewServer(serverConfig(), fa, catalog)

	rec := post(t, s.Handler(), `{"message":"  ¿Hay audios?  ","history":[{"content":"a","role":"user"},{"content":"b","role":"assistant"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transport.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Response)
	assert.Equal(t, "hola", *resp.Response)
	require.NotNil(t, resp.Data)
	assert.Equal(t, 9, resp.Data.TotalRecords)

	assert.Equal(t, "¿Hay audios?", fa.message)
	assert.Equal(t, []conversation.Turn{
		{Content: "a", Role: conversation.RoleUser},
		{Content: "b", Role: conversation.RoleAssistant},
	}, fa.history)
}

func TestServer_ChatErrors(t *testing.T) {
	tests := []struct {
		name       string
		assistant  *fakeAssistant
		body       string
		wantStatus int
		wantError  string
	}{
		{"malformed body", &fakeAssistant{}, `{"message":`, 400, "invalid_request_error: malformed request body"},
		{"blank message", &fakeAssistant{}, `{"message":"   ","history":[]}`, 400, "invalid_request_error: message is required"},
		{"upstream", &fakeAssistant{err: &UpstreamError{Status: 404, Text: "model_not_found: x"}}, `{"message":"hi"}`, 404, "model_not_found: x"},
		{"internal", &fakeAssistant{err: errors.New("db locked")}, `{"message":"hi"}`, 500, "db locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(serverConfig(), tt.assistant, nil)
			rec := post(t, s.Handler(), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var er transport.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(t, tt.wantError, er.Error)
		})
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := serverConfig()
	cfg.RateLimit = config.RateLimitConfig{PerSecond: 0.001, Burst: 2}
	s := NewServer(cfg, &fakeAssistant{reply: "ok"}, nil)

	assert.Equal(t, http.StatusOK, post(t, s.Handler(), `{"message":"1"}`).Code)
	assert.Equal(t, http.StatusOK, post(t, s.Handler(), `{"message":"2"}`).Code)

	rec := post(t, s.Handler(), `{"message":"3"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate_limit: too many requests"}`, rec.Body.String())

	// Health checks are never limited.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	hrec := httptest.NewRecorder()
	s.Handler().ServeHTTP(hrec, req)
	assert.Equal(t, http.StatusOK, hrec.Code)
}

func TestServer_UnknownRouteUsesErrorShape(t *testing.T) {
	s := NewServer(serverConfig(), &fakeAssistant{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var er transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.NotEmpty(t, er.Error)
}

// =============================================================================
// END TO END
// =============================================================================

func TestEndToEnd_SessionAgainstService(t *testing.T) {
	catalog := openTestCatalog(t, true)
	s := NewServer(serverConfig(), NewCatalogAssistant(catalog), catalog)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := transport.NewClient(srv.URL)
	client.HTTPClient = srv.Client()
	session := dispatch.NewSession(client)

	ev, ok := session.SelectSuggestion(context.Background(), "¿Hay audios en español?")
	require.True(t, ok)
	assert.Equal(t, dispatch.OutcomeSuccess, ev.Outcome)
	assert.True(t, ev.StatsUpdated)

	v := session.View()
	require.Len(t, v.Messages, 2)
	assert.Contains(t, v.Messages[1].Content, "Entrevista con la alcaldesa")
	require.NotNil(t, v.Stats)
	assert.Equal(t, 9, v.Stats.TotalRecords)
	assert.Equal(t, metadata.NormalizeTypes([]string{"audio", "document", "image", "video"}), v.Stats.Types)
	assert.NotNil(t, v.Stats.LatestUpdate)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := serverConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewServer(cfg, &fakeAssistant{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_OpensSeedsAndStops(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logging.SetCore(core)
	defer restore()

	cfg := serverConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "serve.db")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}

	opened := logs.FilterMessage("serving catalog " + cfg.DatabasePath + " with 9 records")
	assert.Equal(t, 1, opened.Len())
}
