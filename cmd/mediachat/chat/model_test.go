package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"mediachat/cmd/mediachat/ui"
	"mediachat/internal/conversation"
	"mediachat/internal/dispatch"
	"mediachat/internal/failure"
	"mediachat/internal/metadata"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HARNESS
// =============================================================================

type recorder struct {
	mu      sync.Mutex
	sent    []string
	replies []dispatch.Result
}

func (r *recorder) Send(_ context.Context, message string, _ []conversation.Turn) (dispatch.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, message)
	if len(r.replies) == 0 {
		return dispatch.Reply{Text: "ok"}, nil
	}
	res := r.replies[0]
	r.replies = r.replies[1:]
	return res.Reply, res.Err
}

func newTestModel(t *testing.T, rec *recorder, locale string) Model {
	t.Helper()
	m := New(Config{
		Session:  dispatch.NewSession(rec, dispatch.WithCatalog(failure.CatalogFor(locale))),
		Styles:   ui.NewStyles(ui.LightTheme()),
		Locale:   locale,
		Endpoint: "http://localhost:8080",
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

// press sends a key and returns the model plus any cycleDoneMsg produced by
// the returned command. Only commands that complete immediately are run.
func press(t *testing.T, m Model, k tea.KeyMsg) (Model, *cycleDoneMsg) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), findCycle(cmd)
}

func findCycle(cmd tea.Cmd) *cycleDoneMsg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case cycleDoneMsg:
		return &msg
	case tea.BatchMsg:
		for _, c := range msg {
			if done := findCycle(c); done != nil {
				return done
			}
		}
	}
	return nil
}

func deliver(t *testing.T, m Model, msg *cycleDoneMsg) Model {
	t.Helper()
	require.NotNil(t, msg)
	next, _ := m.Update(*msg)
	return next.(Model)
}

func typeText(m Model, s string) Model {
	m.textarea.SetValue(s)
	return m
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestEnter_SubmitsAndResolves(t *testing.T) {
	rec := &recorder{replies: []dispatch.Result{{Reply: dispatch.Reply{Text: "Hay 2 audios.", Data: &metadata.DbStats{TotalRecords: 5, Types: []string{"image"}}}}}}
	m := newTestModel(t, rec, "es")

	m = typeText(m, "  ¿Hay audios?  ")
	m, done := press(t, m, key(tea.KeyEnter))

	// Optimistic state before the reply arrives.
	v := m.session.View()
	require.Len(t, v.Messages, 1)
	assert.True(t, v.Typing)
	assert.Empty(t, m.textarea.Value())
	assert.False(t, m.textarea.Focused())
	assert.Contains(t, m.View(), "El asistente está escribiendo")

	m = deliver(t, m, done)
	v = m.session.View()
	require.Len(t, v.Messages, 2)
	assert.Equal(t, "Hay 2 audios.", v.Messages[1].Content)
	assert.False(t, v.Typing)
	assert.True(t, m.textarea.Focused(), "focus returns to the input")
	assert.True(t, m.viewport.AtBottom())

	out := m.View()
	assert.Contains(t, out, "Hay 2 audios.")
	assert.Contains(t, out, "5 registros")
	assert.Equal(t, []string{"¿Hay audios?"}, rec.sent)
}

func TestEnter_EmptyInputIsIgnored(t *testing.T) {
	rec := &recorder{}
	m := newTestModel(t, rec, "es")

	m = typeText(m, "   ")
	m, done := press(t, m, key(tea.KeyEnter))

	assert.Nil(t, done)
	assert.Empty(t, m.session.View().Messages)
	assert.Empty(t, rec.sent)
}

func TestEnter_WhilePendingKeepsDraft(t *testing.T) {
	rec := &recorder{}
	m := newTestModel(t, rec, "es")

	m = typeText(m, "primera")
	m, first := press(t, m, key(tea.KeyEnter))
	require.NotNil(t, first)

	m = typeText(m, "segunda")
	m, second := press(t, m, key(tea.KeyEnter))
	assert.Nil(t, second)
	assert.Equal(t, "segunda", m.textarea.Value(), "dropped send leaves the draft in place")
	assert.Len(t, m.session.View().Messages, 1)

	m = deliver(t, m, first)
	assert.Len(t, m.session.View().Messages, 2)
	assert.Equal(t, []string{"primera"}, rec.sent)
}

func TestFailure_RenderedAsAssistantMessage(t *testing.T) {
	rec := &recorder{replies: []dispatch.Result{{Err: errors.New("rate_limit exceeded")}}}
	m := newTestModel(t, rec, "en")

	m = typeText(m, "hello")
	m, done := press(t, m, key(tea.KeyEnter))
	m = deliver(t, m, done)

	v := m.session.View()
	require.Len(t, v.Messages, 2)
	assert.Equal(t, failure.English.Message(failure.RateLimited), v.Messages[1].Content)
	assert.True(t, m.textarea.Focused())
	assert.NotContains(t, m.View(), "rate_limited", "category names stay out of the screen")
	assert.Empty(t, m.statusMessage)
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

func TestCtrlS_SendsHighlightedSuggestion(t *testing.T) {
	rec := &recorder{}
	m := newTestModel(t, rec, "es")
	suggestions := dispatch.SuggestedQueries()
	require.GreaterOrEqual(t, len(suggestions), 2)

	m, _ = press(t, m, key(tea.KeyTab))
	assert.Equal(t, 1, m.suggestion)

	m = typeText(m, "borrador")
	m, done := press(t, m, key(tea.KeyCtrlS))
	m = deliver(t, m, done)

	assert.Equal(t, []string{suggestions[1]}, rec.sent)
	assert.Equal(t, "borrador", m.textarea.Value(), "suggestions do not consume the draft")
}

func TestCtrlS_MatchesSelectSuggestion(t *testing.T) {
	stats := &metadata.DbStats{TotalRecords: 4, Types: []string{"audio"}}
	reply := dispatch.Result{Reply: dispatch.Reply{Text: "Hay 1 audio.", Data: stats}}
	suggestion := dispatch.SuggestedQueries()[2]

	m := newTestModel(t, &recorder{replies: []dispatch.Result{reply}}, "es")
	m, _ = press(t, m, key(tea.KeyTab))
	m, _ = press(t, m, key(tea.KeyTab))
	m, done := press(t, m, key(tea.KeyCtrlS))
	m = deliver(t, m, done)

	direct := dispatch.NewSession(&recorder{replies: []dispatch.Result{reply}}, dispatch.WithCatalog(failure.CatalogFor("es")))
	_, ok := direct.SelectSuggestion(context.Background(), suggestion)
	require.True(t, ok)

	ignoreIdentity := cmpopts.IgnoreFields(conversation.Message{}, "ID", "Timestamp")
	if diff := cmp.Diff(direct.View(), m.session.View(), ignoreIdentity); diff != "" {
		t.Errorf("Ctrl+S differs from SelectSuggestion (-direct +ctrl+s):\n%s", diff)
	}
}

func TestSuggestions_ShowsHighlightedPosition(t *testing.T) {
	m := newTestModel(t, &recorder{}, "en")
	suggestions := dispatch.SuggestedQueries()

	m, _ = press(t, m, key(tea.KeyTab))
	out := m.View()
	assert.Contains(t, out, fmt.Sprintf("Suggestions (2/%d):", len(suggestions)))
	assert.Contains(t, out, suggestions[1])
	assert.NotContains(t, out, suggestions[0])
}

func TestTab_WrapsAround(t *testing.T) {
	m := newTestModel(t, &recorder{}, "es")
	n := len(dispatch.SuggestedQueries())
	for i := 0; i < n; i++ {
		m, _ = press(t, m, key(tea.KeyTab))
	}
	assert.Equal(t, 0, m.suggestion)
}

// =============================================================================
// CLEAR
// =============================================================================

func TestCtrlL_ClearsConversationKeepsStats(t *testing.T) {
	rec := &recorder{replies: []dispatch.Result{{Reply: dispatch.Reply{Text: "hi", Data: &metadata.DbStats{TotalRecords: 5}}}}}
	m := newTestModel(t, rec, "es")

	m = typeText(m, "hola")
	m, done := press(t, m, key(tea.KeyEnter))
	m = deliver(t, m, done)

	m, _ = press(t, m, key(tea.KeyCtrlL))
	v := m.session.View()
	assert.Empty(t, v.Messages)
	assert.NotNil(t, v.Stats)
	assert.Contains(t, m.View(), "Conversación borrada")

	m, _ = press(t, m, key(tea.KeyCtrlR))
	assert.Nil(t, m.session.View().Stats)
	assert.NotContains(t, m.View(), "5 registros")
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

func TestUpDown_RecallsSentInput(t *testing.T) {
	m := newTestModel(t, &recorder{}, "es")
	for _, text := range []string{"uno", "dos"} {
		m = typeText(m, text)
		var done *cycleDoneMsg
		m, done = press(t, m, key(tea.KeyEnter))
		m = deliver(t, m, done)
	}

	m = typeText(m, "borrador")
	m, _ = press(t, m, key(tea.KeyUp))
	assert.Equal(t, "dos", m.textarea.Value())
	m, _ = press(t, m, key(tea.KeyUp))
	assert.Equal(t, "uno", m.textarea.Value())
	m, _ = press(t, m, key(tea.KeyUp))
	assert.Equal(t, "uno", m.textarea.Value(), "stops at the oldest entry")
	m, _ = press(t, m, key(tea.KeyDown))
	m, _ = press(t, m, key(tea.KeyDown))
	assert.Equal(t, "borrador", m.textarea.Value(), "draft restored")
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestQuitKeys(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		m := newTestModel(t, &recorder{}, "es")
		next, cmd := m.Update(key(k))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, next.(Model).View())
	}
}

func TestView_BeforeResize(t *testing.T) {
	m := New(Config{Session: dispatch.NewSession(&recorder{}), Styles: ui.NewStyles(ui.LightTheme())})
	assert.Equal(t, "Initializing...", m.View())
}

func TestView_EmptyTranscriptShowsHint(t *testing.T) {
	m := newTestModel(t, &recorder{}, "en")
	out := m.View()
	assert.Contains(t, out, "pick a suggestion")
	assert.True(t, strings.Contains(out, "Suggestions"))
}

func TestView_FitsWindow(t *testing.T) {
	long := strings.Repeat("Resultado con un título bastante largo para el catálogo. ", 12)
	stats := &metadata.DbStats{
		TotalRecords: 1234,
		Types:        []string{"audio", "document", "image", "video"},
		RelatedRecords: func() *int {
			n := 56
			return &n
		}(),
	}

	sizes := []tea.WindowSizeMsg{{Width: 80, Height: 24}, {Width: 120, Height: 40}, {Width: 60, Height: 16}}
	for _, size := range sizes {
		for _, locale := range []string{"es", "en"} {
			t.Run(fmt.Sprintf("%dx%d/%s", size.Width, size.Height, locale), func(t *testing.T) {
				rec := &recorder{replies: []dispatch.Result{
					{Reply: dispatch.Reply{Text: long, Data: stats}},
					{Err: errors.New("rate_limit exceeded")},
				}}
				m := newTestModel(t, rec, locale)
				next, _ := m.Update(size)
				m = next.(Model)
				assertFits(t, m, size, "idle")

				m = typeText(m, long)
				m, done := press(t, m, key(tea.KeyEnter))
				assertFits(t, m, size, "pending")

				m = deliver(t, m, done)
				assertFits(t, m, size, "answered")

				m = typeText(m, "otra")
				m, done = press(t, m, key(tea.KeyEnter))
				m = deliver(t, m, done)
				assertFits(t, m, size, "failed")

				m, _ = press(t, m, key(tea.KeyCtrlL))
				assertFits(t, m, size, "cleared")
			})
		}
	}
}

func assertFits(t *testing.T, m Model, size tea.WindowSizeMsg, state string) {
	t.Helper()
	lines := strings.Split(m.View(), "\n")
	assert.LessOrEqual(t, len(lines), size.Height, "%s: too many lines", state)
	for i, line := range lines {
		assert.LessOrEqual(t, lipgloss.Width(line), size.Width, "%s: line %d too wide: %q", state, i, line)
	}
}

func TestFormatStats(t *testing.T) {
	m := newTestModel(t, &recorder{}, "en")
	related := 3
	got := m.formatStats(metadata.DbStats{TotalRecords: 9, Types: []string{"audio", "video"}, RelatedRecords: &related})
	assert.Equal(t, "9 records · audio, video · 3 related", got)
}
