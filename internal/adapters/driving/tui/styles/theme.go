// Package styles holds the colours and lipgloss styles of the chat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour palette.
type Theme struct {
	Accent   lipgloss.Color
	User     lipgloss.Color
	Answer   lipgloss.Color
	Text     lipgloss.Color
	Dim      lipgloss.Color
	Error    lipgloss.Color
	Frame    lipgloss.Color
	StatusBg lipgloss.Color
}

// DefaultTheme returns the dark palette used when none is configured.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:   lipgloss.Color("#5B8DEF"),
		User:     lipgloss.Color("#E0AF68"),
		Answer:   lipgloss.Color("#9ECE6A"),
		Text:     lipgloss.Color("#C0CAF5"),
		Dim:      lipgloss.Color("#737AA2"),
		Error:    lipgloss.Color("#F7768E"),
		Frame:    lipgloss.Color("#3B4261"),
		StatusBg: lipgloss.Color("#16161E"),
	}
}

// Styles are the rendered styles built from a Theme.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Help     lipgloss.Style

	// InputField frames the question box.
	InputField lipgloss.Style
	StatusBar  lipgloss.Style

	// Question and Answer label transcript turns.
	Question lipgloss.Style
	Answer   lipgloss.Style

	// Citation renders a source excerpt under an answer.
	Citation lipgloss.Style
}

// NewStyles builds styles from theme. A nil theme means DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme:    theme,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		Subtitle: lipgloss.NewStyle().Bold(true).Foreground(theme.Text),
		Normal:   lipgloss.NewStyle().Foreground(theme.Text),
		Muted:    lipgloss.NewStyle().Foreground(theme.Dim),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(theme.StatusBg).Background(theme.Accent),
		Error:    lipgloss.NewStyle().Foreground(theme.Error),
		Help:     lipgloss.NewStyle().Foreground(theme.Dim),
		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Frame).
			Padding(0, 1),
		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Dim).
			Background(theme.StatusBg).
			Padding(0, 1),
		Question: lipgloss.NewStyle().Bold(true).Foreground(theme.User),
		Answer:   lipgloss.NewStyle().Bold(true).Foreground(theme.Answer),
		Citation: lipgloss.NewStyle().Foreground(theme.Dim).Italic(true).PaddingLeft(2),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette these styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
