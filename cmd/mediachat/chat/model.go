// Package chat implements the interactive terminal client: a bubbletea
// Model that renders a dispatch.Session and turns key presses into
// session intents.
package chat

import (
	"context"

	"mediachat/cmd/mediachat/ui"
	"mediachat/internal/dispatch"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Config configures a chat Model.
type Config struct {
	Session  *dispatch.Session
	Styles   ui.Styles
	Locale   string
	Endpoint string
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	// UI components
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	labels   labels

	session  *dispatch.Session
	endpoint string

	width  int
	height int
	ready  bool

	// Highlighted entry in the suggestions row
	suggestion int

	// Sent inputs for Up/Down recall; historyIdx == len(inputHistory) means
	// the draft line is being edited.
	inputHistory []string
	historyIdx   int
	draft        string

	statusMessage string
	quitting      bool
}

// cycleDoneMsg carries a resolved send back into Update.
type cycleDoneMsg struct {
	cycle  *dispatch.Cycle
	result dispatch.Result
}

// New creates the chat model around cfg.Session.
func New(cfg Config) Model {
	lbl := labelsFor(cfg.Locale)

	ta := textarea.New()
	ta.Placeholder = lbl.placeholder
	ta.Prompt = "┃ "
	ta.CharLimit = 4096
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return Model{
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		styles:   cfg.Styles,
		labels:   lbl,
		session:  cfg.Session,
		endpoint: cfg.Endpoint,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// sendCmd performs the network half of a cycle off the Update loop.
func sendCmd(c *dispatch.Cycle) tea.Cmd {
	return func() tea.Msg {
		return cycleDoneMsg{cycle: c, result: c.Send(context.Background())}
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
