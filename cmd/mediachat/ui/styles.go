// Package ui provides the visual styling for the mediachat terminal client,
// with light and dark variants of the palette.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light mode
	LightForeground = lipgloss.Color("#1b2433")
	LightPrimary    = lipgloss.Color("#1f4e79")
	LightAccent     = lipgloss.Color("#d9822b")
	LightMuted      = lipgloss.Color("#8a94a6")
	LightBorder     = lipgloss.Color("#d5dae1")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark mode
	DarkForeground = lipgloss.Color("#eef1f5")
	DarkPrimary    = lipgloss.Color("#f0a45d")
	DarkAccent     = lipgloss.Color("#6fa8dc")
	DarkMuted      = lipgloss.Color("#6b7588")
	DarkBorder     = lipgloss.Color("#2c3647")
	DarkCard       = lipgloss.Color("#19202b")

	// Semantic, shared by both modes
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#43a047")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds the current color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
	}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme guesses the terminal background from COLORFGBG, then
// MEDIACHAT_DARK_MODE, and falls back to light.
func DetectTheme() Theme {
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		// ANSI 0-6 and 8 are dark backgrounds.
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("MEDIACHAT_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// ThemeFor resolves a configured theme name; "auto" and unknown names detect.
func ThemeFor(name string) Theme {
	switch strings.ToLower(name) {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	default:
		return DetectTheme()
	}
}

// Styles holds all the styled components.
type Styles struct {
	Theme Theme

	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	Muted lipgloss.Style
	Bold  lipgloss.Style

	UserLabel      lipgloss.Style
	UserInput      lipgloss.Style
	AssistantLabel lipgloss.Style
	AgentResponse  lipgloss.Style
	InputBox       lipgloss.Style

	Error   lipgloss.Style
	Success lipgloss.Style

	Spinner    lipgloss.Style
	Divider    lipgloss.Style
	Badge      lipgloss.Style
	Suggestion lipgloss.Style
	Selected   lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Content: lipgloss.NewStyle().
			Padding(0, 2),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginTop(1),

		UserInput: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		AssistantLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true).
			MarginTop(1),

		AgentResponse: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),

		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(Success),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		Suggestion: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Selected: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Underline(true).
			Bold(true).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// RenderDivider returns a horizontal divider of width cells.
func (s Styles) RenderDivider(width int) string {
	if width < 0 {
		width = 0
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
