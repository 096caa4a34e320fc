// Package debug provides a scrollable event log overlay for the monitor.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rccm-quiz/sessionguard/internal/theme"
)

const maxEntries = 200

// Entry kinds.
const (
	KindFeed   = "feed" // status push connection
	KindState  = "stat" // monitor state changes
	KindNotice = "ui"   // toasts and prompts
	KindOp     = "op"   // user-triggered operations
	KindError  = "err"
)

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds debug log state.
type Model struct {
	Entries    []Entry
	Offset     int // lines scrolled up from the newest entry
	ErrorsOnly bool
}

func New() Model {
	return Model{}
}

// Add appends an entry, caps the buffer and jumps back to the newest line.
func (m *Model) Add(at time.Time, kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: at, Kind: kind, Message: message})
	if over := len(m.Entries) - maxEntries; over > 0 {
		m.Entries = append(m.Entries[:0], m.Entries[over:]...)
	}
	m.Offset = 0
}

// Addf is Add with formatting.
func (m *Model) Addf(at time.Time, kind, format string, args ...any) {
	m.Add(at, kind, fmt.Sprintf(format, args...))
}

// ToggleErrorsOnly switches between all entries and errors only.
func (m *Model) ToggleErrorsOnly() {
	m.ErrorsOnly = !m.ErrorsOnly
	m.Offset = 0
}

func (m Model) visible() []Entry {
	if !m.ErrorsOnly {
		return m.Entries
	}
	var out []Entry
	for _, e := range m.Entries {
		if e.Kind == KindError {
			out = append(out, e)
		}
	}
	return out
}

// ScrollUp moves toward older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.visible())-1, 0))
}

// ScrollDown moves toward newer entries.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log as an overlay panel of the given size.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-6, 3)
	entries := m.visible()

	filter := "all"
	if m.ErrorsOnly {
		filter = "errors"
	}
	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  f:filter (%s)  esc:close  %d entries", filter, len(entries)))

	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing logged yet.")
		return panel(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(entries)-m.Offset, 0)
	start := max(end-rows, 0)
	msgW := innerW - 20

	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		msg := e.Message
		if msgW > 3 && lipgloss.Width(msg) > msgW {
			msg = truncate(msg, msgW-3) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")),
			lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(e.Kind),
			msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d newer", m.Offset))
	}
	return panel(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func panel(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// truncate cuts s to at most w display cells, keeping runes whole.
func truncate(s string, w int) string {
	var b strings.Builder
	used := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if used+rw > w {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	return b.String()
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindFeed:
		return theme.ColorInfo
	case KindState:
		return theme.ColorWarning
	case KindNotice:
		return theme.ColorAccent
	case KindOp:
		return theme.ColorSuccess
	case KindError:
		return theme.ColorError
	default:
		return theme.ColorDimmed
	}
}
