package modal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rccm-quiz/sessionguard/internal/monitor"
)

func critical(remaining int, ran *string) monitor.Modal {
	return monitor.Modal{
		Kind:      monitor.ModalCritical,
		Title:     "緊急",
		Message:   "まもなく期限切れ",
		Severity:  monitor.SeverityError,
		Countdown: &monitor.Countdown{Remaining: remaining, Total: 60},
		Actions: []monitor.Action{
			{Label: "今すぐ延長", Run: func() { *ran = "extend" }},
			{Label: "保存", Run: func() { *ran = "save" }},
		},
	}
}

func TestShowAndSelect(t *testing.T) {
	var ran string
	m := New()
	m.Show(critical(60, &ran))
	require.True(t, m.Visible)

	a, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "今すぐ延長", a.Label)

	m.Next()
	a, _ = m.Current()
	a.Run()
	assert.Equal(t, "save", ran)

	m.Next()
	assert.Equal(t, 0, m.Selected, "selection wraps")
	m.Prev()
	assert.Equal(t, 1, m.Selected)
}

func TestShowCopiesCountdown(t *testing.T) {
	var ran string
	md := critical(60, &ran)
	m := New()
	m.Show(md)
	md.Countdown.Remaining = 5
	assert.Equal(t, 60, m.Modal.Countdown.Remaining)
}

func TestHide(t *testing.T) {
	var ran string
	m := New()
	m.Show(critical(60, &ran))
	m.Hide()
	assert.False(t, m.Visible)
	_, ok := m.Current()
	assert.False(t, ok)
	assert.Empty(t, m.View(80))
}

func TestCountdownAnimates(t *testing.T) {
	var ran string
	m := New()
	m.Show(critical(60, &ran))

	cmd := m.SetCountdown(monitor.Countdown{Remaining: 30, Total: 60})
	require.NotNil(t, cmd, "first update starts the animation")
	assert.Nil(t, m.SetCountdown(monitor.Countdown{Remaining: 30, Total: 60}), "already animating")
	assert.Equal(t, 30, m.Modal.Countdown.Remaining)

	for i := 0; i < 10*fps && m.animating; i++ {
		m, _ = m.Update(FrameMsg{id: m.frameID})
	}
	assert.False(t, m.animating, "spring settles")
	assert.InDelta(t, 0.5, m.pos, settleEps)
}

func TestStaleFrameIgnored(t *testing.T) {
	var ran string
	m := New()
	m.Show(critical(60, &ran))
	m.SetCountdown(monitor.Countdown{Remaining: 59, Total: 60})
	stale := FrameMsg{id: m.frameID}
	m.Hide()

	next, cmd := m.Update(stale)
	assert.Nil(t, cmd)
	assert.False(t, next.animating)
}

func TestCountdownIgnoredWithoutBar(t *testing.T) {
	m := New()
	m.Show(monitor.Modal{Kind: monitor.ModalWarning, Title: "警告"})
	assert.Nil(t, m.SetCountdown(monitor.Countdown{Remaining: 10, Total: 60}))
	assert.Nil(t, m.Modal.Countdown)
}

func TestView(t *testing.T) {
	var ran string
	m := New()
	m.Show(critical(42, &ran))
	v := m.View(80)
	for _, want := range []string{"緊急", "まもなく期限切れ", "42秒", "今すぐ延長", "保存"} {
		assert.True(t, strings.Contains(v, want), "view missing %q", want)
	}
}
