package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rccm-quiz/sessionguard/internal/monitor"
)

type notifyMsg struct {
	message  string
	severity monitor.Severity
}

type statusTextMsg struct {
	text    string
	warning bool
}

type showModalMsg struct{ modal monitor.Modal }
type hideModalMsg struct{}
type countdownMsg struct{ countdown monitor.Countdown }
type stateMsg struct{ change monitor.StateChange }
type reloadedMsg struct{}

// Bridge implements monitor.Presenter by queueing Bubble Tea messages. It
// never blocks, so the monitor may call it while holding its lock; the
// program drains it through Wait.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	signal chan struct{}
}

var (
	_ monitor.Presenter    = (*Bridge)(nil)
	_ monitor.StatusTexter = (*Bridge)(nil)
)

// NewBridge returns an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{signal: make(chan struct{}, 1)}
}

// Notify queues a toast.
func (b *Bridge) Notify(message string, severity monitor.Severity) {
	b.post(notifyMsg{message: message, severity: severity})
}

// ShowModal queues a modal. The countdown is copied so later ticks from
// the monitor cannot change a queued frame.
func (b *Bridge) ShowModal(m monitor.Modal) {
	if m.Countdown != nil {
		c := *m.Countdown
		m.Countdown = &c
	}
	b.post(showModalMsg{modal: m})
}

// HideModal queues closing the visible modal.
func (b *Bridge) HideModal() { b.post(hideModalMsg{}) }

// UpdateCountdown queues a countdown tick for the critical modal.
func (b *Bridge) UpdateCountdown(c monitor.Countdown) { b.post(countdownMsg{countdown: c}) }

// UpdateStatusText queues new status bar text.
func (b *Bridge) UpdateStatusText(text string, warning bool) {
	b.post(statusTextMsg{text: text, warning: warning})
}

func (b *Bridge) post(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *Bridge) pop() (tea.Msg, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	msg := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return msg, true
}

// Wait returns a command that delivers the next queued message. Re-issue it
// after each message. It returns nil once ctx is done.
func (b *Bridge) Wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		for {
			if msg, ok := b.pop(); ok {
				return msg
			}
			select {
			case <-ctx.Done():
				return nil
			case <-b.signal:
			}
		}
	}
}
