package chat

import (
	"fmt"
	"strings"

	"mediachat/internal/conversation"
	"mediachat/internal/metadata"

	"github.com/charmbracelet/lipgloss"
)

// labels is the user-facing chrome text for one locale.
type labels struct {
	title       string
	you         string
	assistant   string
	typing      string
	placeholder string
	suggestions string
	empty       string
	help        string
	cleared     string
	clearedAll  string
	records     string
	related     string
	updated     string
}

var spanishLabels = labels{
	title:       "mediachat",
	you:         "Tú",
	assistant:   "Asistente",
	typing:      "El asistente está escribiendo…",
	placeholder: "Escribe tu pregunta… (Enter para enviar)",
	suggestions: "Sugerencias",
	empty:       "Pregunta lo que quieras sobre el catálogo o elige una sugerencia.",
	help:        "Enter enviar · Tab sugerencia · Ctrl+S enviar sugerencia · Ctrl+L limpiar · Ctrl+R limpiar todo · Esc salir",
	cleared:     "Conversación borrada",
	clearedAll:  "Conversación y estadísticas borradas",
	records:     "registros",
	related:     "relacionados",
	updated:     "actualizado",
}

var englishLabels = labels{
	title:       "mediachat",
	you:         "You",
	assistant:   "Assistant",
	typing:      "The assistant is typing…",
	placeholder: "Ask a question… (Enter to send)",
	suggestions: "Suggestions",
	empty:       "Ask anything about the catalog or pick a suggestion.",
	help:        "Enter send · Tab suggestion · Ctrl+S send suggestion · Ctrl+L clear · Ctrl+R clear all · Esc quit",
	cleared:     "Conversation cleared",
	clearedAll:  "Conversation and stats cleared",
	records:     "records",
	related:     "related",
	updated:     "updated",
}

func labelsFor(locale string) labels {
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return englishLabels
	}
	return spanishLabels
}

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	v := m.session.View()

	// Every row is capped to the window; heights add up in resize.
	return lipgloss.JoinVertical(lipgloss.Left,
		m.fit(m.renderHeader(v.Stats)),
		m.fit(m.styles.Content.Render(m.viewport.View())),
		m.fit(m.renderStatus(v.Typing)),
		m.fit(m.renderSuggestions(v.Suggestions)),
		m.fit(m.styles.Content.Render(m.styles.InputBox.Render(m.textarea.View()))),
		m.fit(m.renderFooter()),
	)
}

// fit truncates each line of s to the window width.
func (m Model) fit(s string) string {
	return lipgloss.NewStyle().MaxWidth(m.width).Render(s)
}

// renderHistory renders the transcript for the viewport.
func (m Model) renderHistory() string {
	msgs := m.session.View().Messages
	if len(msgs) == 0 {
		return m.styles.Muted.Render(m.labels.empty)
	}

	width := m.viewport.Width - 4
	if width < 10 {
		width = 10
	}

	var sb strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case conversation.RoleUser:
			sb.WriteString(m.styles.UserLabel.Render(m.labels.you) + "\n")
			sb.WriteString(m.styles.UserInput.Width(width).Render(msg.Content))
		default:
			sb.WriteString(m.styles.AssistantLabel.Render(m.labels.assistant) + "\n")
			sb.WriteString(m.styles.AgentResponse.Width(width).Render(msg.Content))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderHeader(stats *metadata.DbStats) string {
	title := m.styles.Header.Render(m.labels.title)
	parts := []string{title}
	if m.endpoint != "" {
		parts = append(parts, m.styles.Muted.Render(" "+m.endpoint))
	}
	if stats != nil {
		parts = append(parts, " ", m.styles.Badge.Render(m.formatStats(*stats)))
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return lipgloss.JoinVertical(lipgloss.Left, line, m.styles.RenderDivider(m.width))
}

// formatStats renders the catalog summary shown in the header badge.
func (m Model) formatStats(s metadata.DbStats) string {
	out := fmt.Sprintf("%d %s", s.TotalRecords, m.labels.records)
	if len(s.Types) > 0 {
		out += " · " + strings.Join(s.Types, ", ")
	}
	if s.RelatedRecords != nil {
		out += fmt.Sprintf(" · %d %s", *s.RelatedRecords, m.labels.related)
	}
	if s.LatestUpdate != nil {
		out += fmt.Sprintf(" · %s %s", m.labels.updated, s.LatestUpdate.Format("2006-01-02"))
	}
	return out
}

// renderStatus is the single row between transcript and suggestions: the
// typing indicator while a reply is pending, otherwise the last notice.
func (m Model) renderStatus(typing bool) string {
	switch {
	case typing:
		return m.styles.Content.Render(m.spinner.View() + " " + m.styles.Muted.Render(m.labels.typing))
	case m.statusMessage != "":
		return m.styles.Content.Render(m.styles.Muted.Render(m.statusMessage))
	}
	return ""
}

// renderSuggestions shows the highlighted suggestion and its position; Tab
// moves through the rest.
func (m Model) renderSuggestions(suggestions []string) string {
	if len(suggestions) == 0 {
		return ""
	}
	i := m.suggestion % len(suggestions)
	label := fmt.Sprintf("%s (%d/%d):", m.labels.suggestions, i+1, len(suggestions))
	return m.styles.Content.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Muted.Render(label),
		m.styles.Selected.Render(suggestions[i]),
	))
}

func (m Model) renderFooter() string {
	return m.styles.Footer.Render(m.labels.help)
}
