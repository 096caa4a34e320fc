// Package help renders the key reference overlay from Markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/rccm-quiz/sessionguard/internal/theme"
)

const intro = `# sessionguard

Watches the quiz session and warns before it runs out.

| State | Meaning |
|---|---|
| active | more than the warning threshold left |
| warning | extend now, or keep working and it extends itself |
| critical | under a minute left, countdown running |
| expired | restore a backup or start a new session |
`

// Model caches the page rendered for the last width.
type Model struct {
	markdown string
	width    int
	rendered string
}

// New builds the page from the key bindings.
func New(bindings []key.Binding) Model {
	return Model{markdown: Markdown(bindings)}
}

// Markdown is the page source: intro plus a table of bindings.
func Markdown(bindings []key.Binding) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n## Keys\n\n| Key | Action |\n|---|---|\n")
	for _, kb := range bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	return b.String()
}

// SetWidth renders the page for the given terminal width. Rendering falls
// back to the raw Markdown if glamour fails.
func (m *Model) SetWidth(width int) {
	innerW := max(width-6, 30)
	if m.rendered != "" && m.width == innerW {
		return
	}
	m.width = innerW
	m.rendered = strings.TrimRight(render(m.markdown, innerW), "\n")
}

// View returns the rendered page. Call SetWidth first.
func (m Model) View() string {
	body := m.rendered
	if body == "" {
		body = m.markdown
	}
	style := lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)
	if m.width > 0 {
		style = style.Width(m.width + 2)
	}
	return style.Render(body + "\n" + theme.StyleDimmed.Render("esc:close"))
}

func render(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
