// Package toast renders short-lived notifications.
package toast

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rccm-quiz/sessionguard/internal/theme"
)

const (
	// TTL is how long a toast stays visible.
	TTL = 3 * time.Second
	// maxVisible caps the stack; older toasts are dropped first.
	maxVisible = 4
)

// Toast is one notification.
type Toast struct {
	ID       int
	Message  string
	Severity string
	Expires  time.Time
}

// Model is the toast stack, oldest first.
type Model struct {
	Toasts []Toast
	nextID int
}

func New() Model {
	return Model{}
}

// Add pushes a toast and returns its id.
func (m *Model) Add(message, severity string, now time.Time) int {
	m.nextID++
	m.Toasts = append(m.Toasts, Toast{
		ID:       m.nextID,
		Message:  message,
		Severity: severity,
		Expires:  now.Add(TTL),
	})
	if len(m.Toasts) > maxVisible {
		m.Toasts = m.Toasts[len(m.Toasts)-maxVisible:]
	}
	return m.nextID
}

// Dismiss removes the toast with the given id.
func (m *Model) Dismiss(id int) {
	for i, t := range m.Toasts {
		if t.ID == id {
			m.Toasts = append(m.Toasts[:i], m.Toasts[i+1:]...)
			return
		}
	}
}

// Expire drops every toast whose deadline has passed.
func (m *Model) Expire(now time.Time) {
	kept := m.Toasts[:0]
	for _, t := range m.Toasts {
		if now.Before(t.Expires) {
			kept = append(kept, t)
		}
	}
	m.Toasts = kept
}

// View renders the stack, one toast per line. Empty when there are none.
func (m Model) View(width int) string {
	if len(m.Toasts) == 0 {
		return ""
	}
	if width < 20 {
		width = 20
	}
	lines := make([]string, 0, len(m.Toasts))
	for _, t := range m.Toasts {
		color := theme.SeverityColor(t.Severity)
		glyph := lipgloss.NewStyle().Bold(true).Foreground(color).Render(theme.SeverityGlyph(t.Severity))
		lines = append(lines, lipgloss.NewStyle().
			MaxWidth(width).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(color).
			Render(glyph+" "+t.Message))
	}
	return strings.Join(lines, "\n")
}
