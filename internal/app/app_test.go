package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rccm-quiz/sessionguard/internal/backup"
	"github.com/rccm-quiz/sessionguard/internal/client"
	"github.com/rccm-quiz/sessionguard/internal/clock"
	"github.com/rccm-quiz/sessionguard/internal/monitor"
)

type stubAPI struct {
	mu    sync.Mutex
	calls map[string]int
}

func (a *stubAPI) hit(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[name]++
}

func (a *stubAPI) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

func (a *stubAPI) Status(context.Context) (*client.SessionStatus, error) {
	a.hit("status")
	return &client.SessionStatus{Status: client.StatusActive, RemainingTime: 1800}, nil
}

func (a *stubAPI) Extend(context.Context) (*client.ExtendResult, error) {
	a.hit("extend")
	return &client.ExtendResult{Success: true, RemainingTime: 3600}, nil
}

func (a *stubAPI) Save(context.Context) (*client.SaveResult, error) {
	a.hit("save")
	return &client.SaveResult{Success: true, BackupID: "bk-1"}, nil
}

func (a *stubAPI) Restore(context.Context, string) (*client.RestoreResult, error) {
	a.hit("restore")
	return &client.RestoreResult{Success: true}, nil
}

func (a *stubAPI) Start(context.Context) (*client.StartResult, error) {
	a.hit("start")
	return &client.StartResult{Success: true, RemainingTime: 3600}, nil
}

type env struct {
	api     *stubAPI
	clk     *clock.Fake
	mon     *monitor.Monitor
	backups *backup.MemoryStore
}

func newModel(t *testing.T, opts ...Option) (Model, *env) {
	t.Helper()
	e := &env{
		api:     &stubAPI{calls: make(map[string]int)},
		clk:     clock.NewFake(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)),
		backups: backup.NewMemoryStore(),
	}
	bridge := NewBridge()
	e.mon = monitor.NewMonitor(monitor.Config{
		Clock:        e.clk,
		AutoExtend:   true,
		ShowWarnings: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, e.api, e.backups, bridge)

	opts = append([]Option{WithNow(e.clk.Now)}, opts...)
	m := New(e.mon, bridge, opts...)
	t.Cleanup(m.cancel)
	return m, e
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// pump feeds every queued presenter message through Update. The returned
// commands are dropped: they re-arm Bridge.Wait.
func pump(t *testing.T, m Model) Model {
	t.Helper()
	for {
		msg, ok := m.bridge.pop()
		if !ok {
			return m
		}
		m, _ = update(t, m, msg)
	}
}

// drain runs cmd and every command of a batch, collecting their messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func warning(secs int) client.SessionStatus {
	return client.SessionStatus{Status: client.StatusWarning, RemainingTime: secs, Warning: true}
}

func TestBridgeDeliversInOrder(t *testing.T) {
	b := NewBridge()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Notify("one", monitor.SeverityInfo)
	b.HideModal()
	b.UpdateStatusText("残り", true)

	assert.Equal(t, notifyMsg{message: "one", severity: monitor.SeverityInfo}, b.Wait(ctx)())
	assert.Equal(t, hideModalMsg{}, b.Wait(ctx)())
	assert.Equal(t, statusTextMsg{text: "残り", warning: true}, b.Wait(ctx)())

	cancel()
	assert.Nil(t, b.Wait(ctx)(), "empty queue after cancel")
}

func TestBridgeWaitBlocksUntilPost(t *testing.T) {
	b := NewBridge()
	done := make(chan tea.Msg, 1)
	go func() { done <- b.Wait(context.Background())() }()

	select {
	case <-done:
		t.Fatal("Wait returned before anything was posted")
	case <-time.After(20 * time.Millisecond):
	}
	b.UpdateCountdown(monitor.Countdown{Remaining: 9, Total: 60})
	select {
	case msg := <-done:
		assert.Equal(t, countdownMsg{countdown: monitor.Countdown{Remaining: 9, Total: 60}}, msg)
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake up")
	}
}

func TestBridgeNeverBlocks(t *testing.T) {
	b := NewBridge()
	for i := 0; i < 1000; i++ {
		b.Notify("x", monitor.SeverityInfo)
	}
	assert.Len(t, b.queue, 1000)
}

func TestBridgeCopiesCountdown(t *testing.T) {
	b := NewBridge()
	cd := &monitor.Countdown{Remaining: 60, Total: 60}
	b.ShowModal(monitor.Modal{Kind: monitor.ModalCritical, Countdown: cd})
	cd.Remaining = 1

	msg, ok := b.pop()
	require.True(t, ok)
	assert.Equal(t, 60, msg.(showModalMsg).modal.Countdown.Remaining)
}

func TestViewBeforeSize(t *testing.T) {
	m, _ := newModel(t)
	assert.Equal(t, "Initializing...", m.View())
}

func TestPushedStatusDrivesMonitor(t *testing.T) {
	ws := client.NewWSClient("ws://127.0.0.1:1/ws", "", nil)
	m, e := newModel(t, WithFeed(ws))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, cmd := update(t, m, feedMsg{gen: 0, msg: client.WSStatusMsg{Status: warning(240)}})
	msgs := drain(cmd)
	assert.Equal(t, monitor.StateWarning, e.mon.State())
	require.Len(t, msgs, 1, "the read loop reports the missing connection")
	assert.IsType(t, client.WSDisconnectedMsg{}, msgs[0].(feedMsg).msg)

	m = pump(t, m)
	assert.True(t, m.modal.Visible)
	assert.Equal(t, monitor.ModalWarning, m.modal.Modal.Kind)
	assert.Equal(t, "warning", m.statusBar.State)
	assert.Equal(t, "セッション残り時間: 4分", m.statusBar.Text)
	assert.True(t, m.statusBar.Warning)
	assert.Contains(t, m.View(), "セッション期限切れ警告")
}

func TestStaleFeedIgnoredAfterReload(t *testing.T) {
	ws := client.NewWSClient("ws://127.0.0.1:1/ws", "", nil)
	m, e := newModel(t, WithFeed(ws))
	m.connected = true

	m, _ = update(t, m, reloadedMsg{})
	assert.Equal(t, 1, m.feedGen)
	assert.False(t, m.connected)

	expired := client.SessionStatus{Status: client.StatusExpired, Expired: true}
	_, cmd := update(t, m, feedMsg{gen: 0, msg: client.WSStatusMsg{Status: expired}})
	assert.Nil(t, cmd)
	assert.Equal(t, monitor.StateActive, e.mon.State())
}

func TestModalActionRunsOffLoop(t *testing.T) {
	m, e := newModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	e.mon.Apply(warning(240))
	m = pump(t, m)
	require.True(t, m.modal.Visible)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.modal.Selected)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	drain(cmd)

	assert.Equal(t, 1, e.api.count("save"))
	list, err := e.mon.Backups()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Manual)

	m = pump(t, m)
	assert.False(t, m.modal.Visible, "pressing a button dismisses the prompt")
	require.Len(t, m.toasts.Toasts, 1)
	assert.Equal(t, "現在の進行状況を保存しました", m.toasts.Toasts[0].Message)
}

func TestExtendKey(t *testing.T) {
	m, e := newModel(t)
	_, cmd := update(t, m, runes("e"))
	msgs := drain(cmd)

	assert.Equal(t, 1, e.api.count("extend"))
	assert.Contains(t, msgs, opDoneMsg{op: "extend"})
}

func TestRestoreKeyWithEmptyLedger(t *testing.T) {
	m, _ := newModel(t)
	m, cmd := update(t, m, runes("r"))
	drain(cmd)
	m = pump(t, m)

	require.Len(t, m.toasts.Toasts, 1)
	assert.Equal(t, "warning", m.toasts.Toasts[0].Severity)
	assert.False(t, m.modal.Visible)
}

func TestInputRecordsActivity(t *testing.T) {
	m, e := newModel(t)

	e.clk.Advance(time.Minute)
	_, cmd := update(t, m, runes("x"))
	drain(cmd)
	assert.Equal(t, e.clk.Now(), e.mon.Snapshot().LastActivityAt)

	e.clk.Advance(time.Minute)
	_, cmd = update(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	drain(cmd)
	assert.Equal(t, e.clk.Now(), e.mon.Snapshot().LastActivityAt)

	e.clk.Advance(time.Minute)
	_, cmd = update(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	drain(cmd)
	assert.Equal(t, e.clk.Now(), e.mon.Snapshot().LastActivityAt)

	_, cmd = update(t, m, tea.MouseMsg{Action: tea.MouseActionMotion})
	assert.Nil(t, cmd, "pointer motion is not activity")
}

func TestQuitGuard(t *testing.T) {
	m, _ := newModel(t)
	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd(), "active session quits at once")

	m, _ = newModel(t)
	m, _ = update(t, m, stateMsg{change: monitor.StateChange{From: monitor.StateWarning, To: monitor.StateCritical}})
	m, _ = update(t, m, runes("q"))
	assert.True(t, m.quitArmed)
	require.Len(t, m.toasts.Toasts, 1)
	assert.Equal(t, quitConfirmNotice, m.toasts.Toasts[0].Message)

	_, cmd = update(t, m, runes("q"))
	assert.Equal(t, tea.QuitMsg{}, cmd())

	m, _ = update(t, m, runes("x"))
	assert.False(t, m.quitArmed, "any other key disarms")

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestOverlays(t *testing.T) {
	m, _ := newModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, runes("d"))
	assert.Equal(t, OverlayDebug, m.overlay)
	assert.Contains(t, m.View(), "EVENT LOG")
	m, _ = update(t, m, runes("f"))
	assert.True(t, m.debugLog.ErrorsOnly)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, OverlayNone, m.overlay)

	m, _ = update(t, m, runes("?"))
	assert.Equal(t, OverlayHelp, m.overlay)
	assert.Contains(t, m.View(), "esc:close")

	m, _ = update(t, m, showModalMsg{modal: monitor.Modal{Kind: monitor.ModalExpired, Title: "期限切れ"}})
	assert.Equal(t, OverlayNone, m.overlay, "a prompt closes overlays")
	assert.Contains(t, m.View(), "期限切れ")
}

func TestToastsExpire(t *testing.T) {
	m, e := newModel(t)
	m, cmd := update(t, m, notifyMsg{message: "セッションを延長しました", severity: monitor.SeveritySuccess})
	require.NotNil(t, cmd)
	require.Len(t, m.toasts.Toasts, 1)

	e.clk.Advance(5 * time.Second)
	m, _ = update(t, m, toastExpiredMsg{})
	assert.Empty(t, m.toasts.Toasts)
}

func TestFeedConnectionState(t *testing.T) {
	ws := client.NewWSClient("ws://127.0.0.1:1/ws", "", nil)
	m, _ := newModel(t, WithFeed(ws))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, feedMsg{gen: 0, msg: client.WSConnectedMsg{}})
	assert.True(t, m.connected)
	assert.Contains(t, m.View(), "Live")

	m, _ = update(t, m, feedMsg{gen: 0, msg: client.WSErrorMsg{Raw: []byte(`{"message":"nope"}`)}})
	last := m.debugLog.Entries[len(m.debugLog.Entries)-1]
	assert.True(t, strings.Contains(last.Message, "nope"))
}
