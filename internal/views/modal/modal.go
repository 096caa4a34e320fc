// Package modal draws the monitor's prompts: title, message, an optional
// countdown with a sprung progress bar, and a row of selectable actions.
package modal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/rccm-quiz/sessionguard/internal/monitor"
	"github.com/rccm-quiz/sessionguard/internal/theme"
)

const (
	fps        = 60
	settleEps  = 0.001
	minWidth   = 36
	maxWidth   = 72
	barPadding = 8
)

// FrameMsg advances the countdown bar animation.
type FrameMsg struct{ id int }

// Model is the visible prompt, if any.
type Model struct {
	Modal    monitor.Modal
	Visible  bool
	Selected int

	bar       progress.Model
	spring    harmonica.Spring
	pos, vel  float64
	target    float64
	animating bool
	frameID   int
}

func New() Model {
	return Model{
		bar: progress.New(
			progress.WithSolidFill(string(theme.ColorCritical)),
			progress.WithoutPercentage(),
		),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

// Show replaces the prompt. The selection resets to the first action.
func (m *Model) Show(md monitor.Modal) {
	if md.Countdown != nil {
		c := *md.Countdown
		md.Countdown = &c
		m.pos = c.Fraction()
		m.target = m.pos
		m.vel = 0
	}
	m.Modal = md
	m.Visible = true
	m.Selected = 0
	m.animating = false
}

// Hide removes the prompt.
func (m *Model) Hide() {
	m.Modal = monitor.Modal{}
	m.Visible = false
	m.Selected = 0
	m.animating = false
}

// SetCountdown moves the countdown and starts the bar animation toward the
// new fraction. Ignored when the prompt has no countdown.
func (m *Model) SetCountdown(c monitor.Countdown) tea.Cmd {
	if !m.Visible || m.Modal.Countdown == nil {
		return nil
	}
	m.Modal.Countdown = &c
	m.target = c.Fraction()
	if m.animating {
		return nil
	}
	m.animating = true
	m.frameID++
	return m.frame()
}

func (m Model) frame() tea.Cmd {
	id := m.frameID
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{id: id} })
}

// Update handles animation frames.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	f, ok := msg.(FrameMsg)
	if !ok || !m.animating || f.id != m.frameID {
		return m, nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < settleEps && math.Abs(m.vel) < settleEps {
		m.pos = m.target
		m.animating = false
		return m, nil
	}
	return m, m.frame()
}

// Next moves the selection right, wrapping around.
func (m *Model) Next() {
	if n := len(m.Modal.Actions); n > 0 {
		m.Selected = (m.Selected + 1) % n
	}
}

// Prev moves the selection left, wrapping around.
func (m *Model) Prev() {
	if n := len(m.Modal.Actions); n > 0 {
		m.Selected = (m.Selected - 1 + n) % n
	}
}

// Current returns the selected action.
func (m Model) Current() (monitor.Action, bool) {
	if !m.Visible || m.Selected < 0 || m.Selected >= len(m.Modal.Actions) {
		return monitor.Action{}, false
	}
	return m.Modal.Actions[m.Selected], true
}

// View renders the prompt box, or "" when hidden.
func (m Model) View(width int) string {
	if !m.Visible {
		return ""
	}
	w := width - 4
	if w > maxWidth {
		w = maxWidth
	}
	if w < minWidth {
		w = minWidth
	}
	inner := w - 4
	color := theme.SeverityColor(string(m.Modal.Severity))

	title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(m.Modal.Title)
	msg := lipgloss.NewStyle().Width(inner).Foreground(theme.ColorBright).Render(m.Modal.Message)
	sections := []string{title, "", msg}

	if c := m.Modal.Countdown; c != nil {
		num := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorCritical).
			Render(fmt.Sprintf("%d秒", c.Remaining))
		bar := m.bar
		bar.Width = inner - barPadding
		sections = append(sections, "", num+"  "+bar.ViewAs(m.pos))
	}

	if len(m.Modal.Actions) > 0 {
		sections = append(sections, "", m.actionsView(inner))
	}
	sections = append(sections, "", theme.StyleDimmed.Render("tab/←/→:select  enter:confirm"))

	return lipgloss.NewStyle().
		Width(w).
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) actionsView(width int) string {
	button := lipgloss.NewStyle().Padding(0, 1).Foreground(theme.ColorBright)
	labels := make([]string, len(m.Modal.Actions))
	total := 0
	for i, a := range m.Modal.Actions {
		if i == m.Selected {
			labels[i] = theme.StyleSelected.Padding(0, 1).Render(a.Label)
		} else {
			labels[i] = button.Render(a.Label)
		}
		total += lipgloss.Width(labels[i]) + 1
	}
	// Long lists (the restore picker) go one per line.
	if total > width {
		return strings.Join(labels, "\n")
	}
	return strings.Join(labels, " ")
}
