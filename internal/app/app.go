// Package app is the Bubble Tea host for the session monitor. It turns key
// and mouse input into activity, draws the monitor's prompts and toasts, and
// feeds pushed statuses back into the monitor.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rccm-quiz/sessionguard/internal/client"
	"github.com/rccm-quiz/sessionguard/internal/monitor"
	"github.com/rccm-quiz/sessionguard/internal/theme"
	"github.com/rccm-quiz/sessionguard/internal/views/debug"
	"github.com/rccm-quiz/sessionguard/internal/views/help"
	"github.com/rccm-quiz/sessionguard/internal/views/modal"
	"github.com/rccm-quiz/sessionguard/internal/views/status"
	"github.com/rccm-quiz/sessionguard/internal/views/toast"
)

// Overlay identifies which full-screen panel is open.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

const quitConfirmNotice = "セッションの対応が必要です。終了するにはもう一度 q を押してください"

// feedMsg tags a status feed message with the feed generation that produced
// it. A reload bumps the generation so the old session's feed is ignored.
type feedMsg struct {
	gen int
	msg tea.Msg
}

// opDoneMsg reports a user-triggered monitor operation.
type opDoneMsg struct {
	op  string
	err error
}

type toastExpiredMsg struct{}

// Option configures the model.
type Option func(*Model)

// WithFeed enables the WebSocket status feed.
func WithFeed(ws *client.WSClient) Option {
	return func(m *Model) { m.ws = ws }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.log = l }
}

// WithNow replaces the wall clock used for toasts and the event log.
func WithNow(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithServer labels the status bar with the backend address.
func WithServer(addr string) Option {
	return func(m *Model) { m.server = addr }
}

// Model is the root Bubble Tea model.
type Model struct {
	mon    *monitor.Monitor
	bridge *Bridge
	ws     *client.WSClient
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
	now    func() time.Time
	server string

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	statusBar status.Model
	toasts    toast.Model
	modal     modal.Model
	debugLog  debug.Model
	help      help.Model

	connected   bool
	feedGen     int
	quitArmed   bool
	unsubscribe []func()
}

// New creates the root model. bridge must be the presenter mon was built
// with.
func New(mon *monitor.Monitor, bridge *Bridge, opts ...Option) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		mon:    mon,
		bridge: bridge,
		ctx:    ctx,
		cancel: cancel,
		log:    slog.Default(),
		now:    time.Now,
		keys:   DefaultKeyMap(),
		toasts: toast.New(),
		modal:  modal.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.log = m.log.With("component", "app")
	m.statusBar = status.New(m.server, m.ws != nil)
	m.debugLog = debug.New()
	m.help = help.New(m.keys.Bindings())

	m.unsubscribe = append(m.unsubscribe,
		mon.OnStateChange(func(c monitor.StateChange) { bridge.post(stateMsg{change: c}) }),
		mon.OnReload(func() { bridge.post(reloadedMsg{}) }),
	)
	return m
}

// Init starts the monitor, the presenter bridge and the status feed.
func (m Model) Init() tea.Cmd {
	ctx, mon := m.ctx, m.mon
	cmds := []tea.Cmd{
		m.bridge.Wait(m.ctx),
		call(func() { mon.Start(ctx) }),
	}
	if m.ws != nil {
		cmds = append(cmds, m.feed(m.ws.Listen(m.ctx)))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.help.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if tea.MouseEvent(msg).IsWheel() {
			return m, m.activity(monitor.ActivityScroll)
		}
		if msg.Action == tea.MouseActionPress {
			return m, m.activity(monitor.ActivityPointer)
		}
		return m, nil

	case feedMsg:
		if msg.gen != m.feedGen {
			return m, nil
		}
		return m.handleFeed(msg.msg)

	case opDoneMsg:
		if msg.err != nil {
			m.debugLog.Addf(m.now(), debug.KindError, "%s: %v", msg.op, msg.err)
		} else {
			m.debugLog.Addf(m.now(), debug.KindOp, "%s done", msg.op)
		}
		return m, nil

	case toastExpiredMsg:
		m.toasts.Expire(m.now())
		return m, nil

	case modal.FrameMsg:
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		return m, cmd
	}

	if cmd, ok := m.handleBridge(msg); ok {
		return m, tea.Batch(cmd, m.bridge.Wait(m.ctx))
	}
	return m, nil
}

// handleBridge applies a presenter message. ok is false for foreign messages.
func (m *Model) handleBridge(msg tea.Msg) (cmd tea.Cmd, ok bool) {
	switch msg := msg.(type) {
	case notifyMsg:
		m.debugLog.Addf(m.now(), debug.KindNotice, "[%s] %s", msg.severity, msg.message)
		return m.toast(msg.message, string(msg.severity)), true

	case showModalMsg:
		m.overlay = OverlayNone
		m.modal.Show(msg.modal)
		m.debugLog.Addf(m.now(), debug.KindNotice, "prompt: %s", msg.modal.Title)
		return nil, true

	case hideModalMsg:
		m.modal.Hide()
		return nil, true

	case countdownMsg:
		return m.modal.SetCountdown(msg.countdown), true

	case statusTextMsg:
		m.statusBar.SetText(msg.text, msg.warning)
		return nil, true

	case stateMsg:
		m.statusBar.State = msg.change.To.String()
		m.quitArmed = false
		m.debugLog.Addf(m.now(), debug.KindState, "%s → %s", msg.change.From, msg.change.To)
		return nil, true

	case reloadedMsg:
		m.debugLog.Add(m.now(), debug.KindState, "session reloaded")
		return m.reconnect(), true
	}
	return nil, false
}

func (m Model) handleFeed(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.debugLog.Add(m.now(), debug.KindFeed, "status feed connected")
		return m, m.feed(m.ws.ReadLoop(m.ctx))

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.debugLog.Addf(m.now(), debug.KindFeed, "status feed lost: %v", msg.Err)
		return m, m.feed(m.ws.Listen(m.ctx))

	case client.WSStatusMsg:
		st, mon := msg.Status, m.mon
		m.debugLog.Addf(m.now(), debug.KindFeed, "pushed %s, %ds left", st.Status, st.RemainingTime)
		return m, tea.Batch(call(func() { mon.Apply(st) }), m.feed(m.ws.ReadLoop(m.ctx)))

	case client.WSErrorMsg:
		m.debugLog.Addf(m.now(), debug.KindError, "feed error: %s", string(msg.Raw))
		return m, m.feed(m.ws.ReadLoop(m.ctx))
	}
	return m, nil
}

// reconnect drops the feed of the previous session and dials again so the
// new session cookie is used.
func (m *Model) reconnect() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	m.feedGen++
	m.connected = false
	m.statusBar.Connected = false
	m.ws.Close()
	return m.feed(m.ws.Listen(m.ctx))
}

func (m Model) feed(cmd tea.Cmd) tea.Cmd {
	gen := m.feedGen
	return func() tea.Msg {
		msg := cmd()
		if msg == nil {
			return nil
		}
		return feedMsg{gen: gen, msg: msg}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.handleQuit(msg)
	}
	m.quitArmed = false
	activity := m.activity(monitor.ActivityKey)

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Filter):
			m.debugLog.ToggleErrorsOnly()
		}
		return m, activity
	}

	if m.modal.Visible {
		switch {
		case key.Matches(msg, m.keys.Next):
			m.modal.Next()
			return m, activity
		case key.Matches(msg, m.keys.Prev):
			m.modal.Prev()
			return m, activity
		case key.Matches(msg, m.keys.Confirm):
			a, ok := m.modal.Current()
			if !ok {
				return m, activity
			}
			m.debugLog.Addf(m.now(), debug.KindOp, "pressed %q", a.Label)
			return m, tea.Batch(activity, call(a.Run))
		}
	}

	mon := m.mon
	switch {
	case key.Matches(msg, m.keys.Extend):
		return m, tea.Batch(activity, m.op("extend", func(ctx context.Context) error {
			return mon.Extend(ctx, false)
		}))

	case key.Matches(msg, m.keys.Save):
		return m, tea.Batch(activity, m.op("save", mon.Save))

	case key.Matches(msg, m.keys.Restore):
		return m, tea.Batch(activity, call(mon.ShowRestoreOptions))

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug

	case key.Matches(msg, m.keys.Help):
		m.help.SetWidth(m.width)
		m.overlay = OverlayHelp
	}
	return m, activity
}

// handleQuit asks for a second q while the session needs attention.
// ctrl+c always quits.
func (m Model) handleQuit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" || m.quitArmed || m.statusBar.State == monitor.StateActive.String() {
		m.shutdown()
		return m, tea.Quit
	}
	m.quitArmed = true
	return m, m.toast(quitConfirmNotice, string(monitor.SeverityWarning))
}

func (m *Model) shutdown() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	if m.ws != nil {
		m.ws.Close()
	}
	m.cancel()
}

func (m *Model) toast(message, severity string) tea.Cmd {
	m.toasts.Add(message, severity, m.now())
	return tea.Tick(toast.TTL, func(time.Time) tea.Msg { return toastExpiredMsg{} })
}

func (m Model) activity(kind monitor.ActivityKind) tea.Cmd {
	mon := m.mon
	return call(func() { mon.RecordActivity(kind) })
}

func (m Model) op(name string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return opDoneMsg{op: name, err: fn(ctx)} }
}

// call runs fn off the UI loop. Monitor methods may block on the network.
func call(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.statusBar.View()
	toasts := m.toasts.View(m.width)
	footer := theme.StyleDimmed.Render("  e:extend  s:save  r:restore  d:log  ?:help  q:quit")
	bodyH := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer)-lipgloss.Height(toasts), 3)

	var body string
	switch m.overlay {
	case OverlayDebug:
		body = m.debugLog.View(m.width, bodyH)
	case OverlayHelp:
		body = m.help.View()
	default:
		body = m.mainView(bodyH)
	}

	sections := []string{header, body}
	if toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) mainView(height int) string {
	if m.modal.Visible {
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, m.modal.View(m.width))
	}
	text := m.statusBar.Text
	if text == "" {
		text = "セッション状態を確認しています..."
	}
	color := theme.StateColor(m.statusBar.State)
	panel := lipgloss.JoinVertical(lipgloss.Center,
		theme.StateBadge(m.statusBar.State),
		"",
		lipgloss.NewStyle().Bold(true).Foreground(color).Render(text),
	)
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, panel)
}
