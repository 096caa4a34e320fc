package status

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rccm-quiz/sessionguard/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Push      bool // false when the status feed is disabled
	State     string
	Text      string
	Warning   bool
	Server    string
	Width     int
}

// New creates a status bar model.
func New(server string, push bool) Model {
	return Model{Server: server, Push: push, State: "active"}
}

// SetText updates the remaining-time text.
func (m *Model) SetText(text string, warning bool) {
	m.Text = text
	m.Warning = warning
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case !m.Push:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDimmed).Render("◌ Polling")
	case m.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	text := m.Text
	if text == "" {
		text = "..."
	}
	textStyle := lipgloss.NewStyle().Foreground(theme.ColorBright)
	if m.Warning {
		textStyle = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWarning)
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := theme.StateBadge(m.State) + sep + textStyle.Render(text) + sep + connStr
	if m.Server != "" {
		content += sep + theme.StyleDimmed.Render(m.Server)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
