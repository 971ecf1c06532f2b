package chat

import (
	"strings"

	"mediachat/internal/logging"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	headerHeight      = 2
	statusHeight      = 1
	suggestionsHeight = 1
	inputHeight       = 4
	footerHeight      = 1
)

// Update handles key presses, resize events, spinner ticks and resolved cycles.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit

		case tea.KeyEnter:
			return m.handleSubmit(m.textarea.Value(), true)

		case tea.KeyTab:
			if n := len(m.session.View().Suggestions); n > 0 {
				m.suggestion = (m.suggestion + 1) % n
			}
			return m, nil

		// Ctrl+S runs the highlighted suggestion through the same async
		// cycle as Enter, leaving the draft in place.
		case tea.KeyCtrlS:
			suggestions := m.session.View().Suggestions
			if len(suggestions) == 0 {
				return m, nil
			}
			return m.handleSubmit(suggestions[m.suggestion%len(suggestions)], false)

		case tea.KeyCtrlL:
			m.session.Clear()
			m.statusMessage = m.labels.cleared
			m.refresh(true)
			return m, nil

		case tea.KeyCtrlR:
			m.session.ClearAll()
			m.statusMessage = m.labels.clearedAll
			m.refresh(true)
			return m, nil

		case tea.KeyUp:
			if !strings.Contains(m.textarea.Value(), "\n") {
				m.recall(-1)
				return m, nil
			}

		case tea.KeyDown:
			if !strings.Contains(m.textarea.Value(), "\n") {
				m.recall(1)
				return m, nil
			}

		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if m.session.View().Typing {
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
		return m, nil

	case cycleDoneMsg:
		return m.handleCycleDone(msg)
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// handleSubmit starts a cycle for text. typed marks input that came from the
// textarea, which is cleared and remembered only when the send is accepted.
func (m Model) handleSubmit(text string, typed bool) (tea.Model, tea.Cmd) {
	c, ok := m.session.Begin(text)
	if !ok {
		if strings.TrimSpace(text) != "" {
			logging.Get(logging.CategoryUI).Debug("send ignored while a reply is pending")
		}
		return m, nil
	}

	if typed {
		m.rememberInput(c.Message())
		m.textarea.Reset()
	}
	m.textarea.Blur()
	m.statusMessage = ""
	m.refresh(true)
	logging.Get(logging.CategoryUI).Debug("cycle %d sent (typed=%v)", c.ID(), typed)

	return m, tea.Batch(m.spinner.Tick, sendCmd(c))
}

func (m Model) handleCycleDone(msg cycleDoneMsg) (tea.Model, tea.Cmd) {
	ev, ok := m.session.Complete(msg.cycle, msg.result)
	if !ok {
		return m, nil
	}

	var cmd tea.Cmd
	if ev.FocusInput {
		cmd = m.textarea.Focus()
	}
	m.refresh(ev.ScrollToBottom)
	return m, cmd
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh(scrollToBottom bool) {
	m.viewport.SetContent(m.renderHistory())
	if scrollToBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	chatWidth := width - 4
	if chatWidth < 1 {
		chatWidth = 1
	}
	vpHeight := height - headerHeight - statusHeight - suggestionsHeight - inputHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	m.viewport.Width = chatWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(chatWidth - 4)
	m.ready = true
	m.refresh(true)
}

func (m *Model) rememberInput(text string) {
	if n := len(m.inputHistory); n == 0 || m.inputHistory[n-1] != text {
		m.inputHistory = append(m.inputHistory, text)
	}
	m.historyIdx = len(m.inputHistory)
	m.draft = ""
}

// recall moves through sent inputs; dir is -1 for older, +1 for newer.
func (m *Model) recall(dir int) {
	if len(m.inputHistory) == 0 {
		return
	}
	if m.historyIdx == len(m.inputHistory) {
		m.draft = m.textarea.Value()
	}

	idx := m.historyIdx + dir
	if idx < 0 || idx > len(m.inputHistory) {
		return
	}
	m.historyIdx = idx
	if idx == len(m.inputHistory) {
		m.textarea.SetValue(m.draft)
		return
	}
	m.textarea.SetValue(m.inputHistory[idx])
}
