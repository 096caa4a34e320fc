// Package monitor watches the lifetime of the quiz session: it polls the
// backend, classifies the remaining time, prompts the user before the session
// runs out and drives extend, save and restore.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rccm-quiz/sessionguard/internal/backup"
	"github.com/rccm-quiz/sessionguard/internal/client"
	"github.com/rccm-quiz/sessionguard/internal/clock"
)

// ErrExtendInFlight is returned when an extend request is already running.
var ErrExtendInFlight = errors.New("session extend already in flight")

// API is the subset of the backend the monitor talks to. *client.HTTPClient
// satisfies it.
type API interface {
	Status(ctx context.Context) (*client.SessionStatus, error)
	Extend(ctx context.Context) (*client.ExtendResult, error)
	Save(ctx context.Context) (*client.SaveResult, error)
	Restore(ctx context.Context, backupID string) (*client.RestoreResult, error)
	Start(ctx context.Context) (*client.StartResult, error)
}

var _ API = (*client.HTTPClient)(nil)

// Config holds the monitor tunables.
type Config struct {
	CheckInterval     time.Duration
	WarningThreshold  time.Duration
	CriticalThreshold time.Duration
	AutoExtend        bool
	ShowWarnings      bool
	AutoBackup        bool
	// ReloadDelay separates a successful restore from the reload, so the
	// success toast stays visible.
	ReloadDelay time.Duration

	Clock  clock.Clock  // nil means clock.Real()
	Logger *slog.Logger // nil means slog.Default()
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		CheckInterval:     30 * time.Second,
		WarningThreshold:  5 * time.Minute,
		CriticalThreshold: time.Minute,
		AutoExtend:        true,
		ShowWarnings:      true,
		ReloadDelay:       time.Second,
	}
}

const countdownTick = time.Second

// events collects what happened under the lock so subscribers run after it
// is released.
type events struct {
	status   *StatusChange
	states   []StateChange
	expired  bool
	reloaded bool
	autoSave bool
}

// Monitor is the session lifecycle state machine. All methods are safe for
// concurrent use. Network calls never run under the lock.
type Monitor struct {
	cfg     Config
	api     API
	backups backup.Store
	ui      Presenter
	clock   clock.Clock
	log     *slog.Logger

	mu             sync.Mutex
	parent         context.Context
	ctx            context.Context
	cancel         context.CancelFunc
	running        bool
	state          State
	last           *client.SessionStatus
	warningShown   bool
	criticalShown  bool
	lastActivityAt time.Time
	extending      bool
	modal          ModalKind
	countdown      Countdown
	countdownGen   uint64
	pollTask       clock.Task
	countdownTask  clock.Task
	reloadTask     clock.Task

	subMu     sync.Mutex
	onStatus  []func(StatusChange)
	onState   []func(StateChange)
	onExpired []func()
	onReload  []func()
}

// NewMonitor wires a monitor. It does nothing until Start.
func NewMonitor(cfg Config, api API, backups backup.Store, ui Presenter) *Monitor {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = def.WarningThreshold
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = def.CriticalThreshold
	}
	if cfg.ReloadDelay < 0 {
		cfg.ReloadDelay = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if ui == nil {
		ui = NopPresenter{}
	}
	if backups == nil {
		backups = backup.NewMemoryStore()
	}
	return &Monitor{
		cfg:            cfg,
		api:            api,
		backups:        backups,
		ui:             ui,
		clock:          cfg.Clock,
		log:            cfg.Logger.With("component", "monitor"),
		lastActivityAt: cfg.Clock.Now(),
	}
}

// Start begins polling: one status check right away, then one every
// CheckInterval. Calling Start on a running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.parent = ctx
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.lastActivityAt = m.clock.Now()
	pollCtx := m.ctx
	m.pollTask = m.clock.Every(m.cfg.CheckInterval, func() { m.Poll(pollCtx) })
	m.mu.Unlock()

	m.log.Info("session monitor started",
		"check_interval", m.cfg.CheckInterval,
		"warning_threshold", m.cfg.WarningThreshold,
		"critical_threshold", m.cfg.CriticalThreshold,
		"auto_extend", m.cfg.AutoExtend)
	m.Poll(pollCtx)
}

// Stop cancels every timer and in-flight request and hides the modal.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.mu.Unlock()
	m.log.Info("session monitor stopped")
}

func (m *Monitor) teardownLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	stopTask(&m.pollTask)
	stopTask(&m.reloadTask)
	m.stopCountdownLocked()
	m.hideModalLocked()
	m.running = false
}

// Poll fetches the status once and applies it. Failures are logged and leave
// the state untouched; the next tick retries.
func (m *Monitor) Poll(ctx context.Context) {
	m.mu.Lock()
	expired := m.state == StateExpired
	m.mu.Unlock()
	if expired {
		return
	}

	st, err := m.api.Status(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("session status check failed", "error", err)
		}
		return
	}
	m.Apply(*st)
}

// Apply classifies a status and runs the resulting transition. Statuses
// pushed by the server go through here as well as polled ones. Once the
// monitor is expired every status is ignored until a reload.
func (m *Monitor) Apply(st client.SessionStatus) {
	m.mu.Lock()
	if m.state == StateExpired {
		m.mu.Unlock()
		return
	}
	var ev events
	prev := m.last
	cp := st
	m.last = &cp
	if prev != nil && prev.Status != st.Status {
		ev.status = &StatusChange{Old: *prev, New: st}
	}

	if st.IsExpired() {
		m.expireLocked(&ev)
	} else {
		m.classifyLocked(st, &ev)
		m.updateStatusTextLocked(st)
	}
	m.mu.Unlock()

	m.emit(ev)
}

func (m *Monitor) classifyLocked(st client.SessionStatus, ev *events) {
	remaining := time.Duration(st.RemainingTime) * time.Second
	switch {
	case remaining <= m.cfg.CriticalThreshold && !m.criticalShown:
		m.showCriticalLocked(st, ev)
	case remaining <= m.cfg.CriticalThreshold && st.Warning:
		m.resyncCountdownLocked(st)
	case st.Warning && !m.warningShown:
		fromCritical := m.criticalShown
		if fromCritical {
			// The server granted more time than the critical window.
			m.criticalShown = false
			m.stopCountdownLocked()
		}
		m.showWarningLocked(st, ev)
		if fromCritical {
			ev.autoSave = false
		}
	case !st.Warning && (m.warningShown || m.criticalShown):
		m.warningShown = false
		m.criticalShown = false
		m.stopCountdownLocked()
		m.hideModalLocked()
		m.setStateLocked(StateActive, ev)
	}
}

func (m *Monitor) showWarningLocked(st client.SessionStatus, ev *events) {
	m.warningShown = true
	m.setStateLocked(StateWarning, ev)
	if m.cfg.AutoBackup {
		ev.autoSave = true
	}
	if !m.cfg.ShowWarnings {
		return
	}
	m.showModalLocked(Modal{
		Kind:     ModalWarning,
		Title:    titleWarning,
		Message:  fmt.Sprintf(msgWarningFmt, st.RemainingMinutes()),
		Severity: SeverityWarning,
		Actions: []Action{
			m.action(labelExtend, func(ctx context.Context) { _ = m.Extend(ctx, false) }),
			m.action(labelSave, func(ctx context.Context) { _ = m.Save(ctx) }),
		},
	})
}

func (m *Monitor) showCriticalLocked(st client.SessionStatus, ev *events) {
	m.criticalShown = true
	m.warningShown = false
	m.setStateLocked(StateCritical, ev)

	m.stopCountdownLocked()
	m.countdown = Countdown{Remaining: st.RemainingTime, Total: st.RemainingTime}
	m.countdownGen++
	gen := m.countdownGen
	m.countdownTask = m.clock.Every(countdownTick, func() { m.tick(gen) })

	if !m.cfg.ShowWarnings {
		return
	}
	cd := m.countdown
	m.showModalLocked(Modal{
		Kind:      ModalCritical,
		Title:     titleCritical,
		Message:   fmt.Sprintf(msgCriticalFmt, st.RemainingTime),
		Severity:  SeverityError,
		Countdown: &cd,
		Actions: []Action{
			m.action(labelExtendNow, func(ctx context.Context) { _ = m.Extend(ctx, false) }),
		},
	})
}

// resyncCountdownLocked re-anchors the local countdown on the server's
// figure so drift between polls never outlives one status.
func (m *Monitor) resyncCountdownLocked(st client.SessionStatus) {
	if m.countdownTask == nil || m.countdown.Remaining == st.RemainingTime {
		return
	}
	m.countdown.Remaining = st.RemainingTime
	m.countdown.Total = max(m.countdown.Total, st.RemainingTime)
	if m.modal == ModalCritical {
		m.ui.UpdateCountdown(m.countdown)
	}
}

// tick advances the local countdown. It predicts expiry between polls.
func (m *Monitor) tick(gen uint64) {
	m.mu.Lock()
	if gen != m.countdownGen || m.countdownTask == nil {
		m.mu.Unlock()
		return
	}
	var ev events
	m.countdown.Remaining--
	if m.modal == ModalCritical {
		m.ui.UpdateCountdown(m.countdown)
	}
	if m.countdown.Remaining <= 0 {
		m.expireLocked(&ev)
	}
	m.mu.Unlock()
	m.emit(ev)
}

// expireLocked enters the terminal state. It runs at most once per lifecycle.
func (m *Monitor) expireLocked(ev *events) {
	if m.state == StateExpired {
		return
	}
	stopTask(&m.pollTask)
	m.stopCountdownLocked()
	m.warningShown = false
	m.criticalShown = false
	m.setStateLocked(StateExpired, ev)
	m.showExpiredLocked()
	ev.expired = true
}

func (m *Monitor) showExpiredLocked() {
	m.showModalLocked(Modal{
		Kind:     ModalExpired,
		Title:    titleExpired,
		Message:  msgExpired,
		Severity: SeverityError,
		Actions: []Action{
			m.action(labelRestore, func(context.Context) { m.ShowRestoreOptions() }),
			m.action(labelFresh, func(ctx context.Context) { _ = m.StartFresh(ctx) }),
		},
	})
}

// action wraps a modal button: clicking dismisses the modal first. The
// shown flags stay set, so the same prompt is not raised again until the
// status clears.
func (m *Monitor) action(label string, fn func(ctx context.Context)) Action {
	return Action{
		Label: label,
		Run: func() {
			m.mu.Lock()
			ctx := m.ctx
			m.stopCountdownLocked()
			m.hideModalLocked()
			m.mu.Unlock()
			if ctx == nil {
				ctx = context.Background()
			}
			fn(ctx)
		},
	}
}

// Extend asks the server for more time. auto marks extends triggered by
// activity; those succeed silently.
func (m *Monitor) Extend(ctx context.Context, auto bool) error {
	m.mu.Lock()
	if m.extending {
		m.mu.Unlock()
		return ErrExtendInFlight
	}
	m.extending = true
	m.mu.Unlock()

	res, err := m.api.Extend(ctx)

	m.mu.Lock()
	m.extending = false
	if err != nil {
		m.ui.Notify(noticeExtendFailed, SeverityError)
		m.mu.Unlock()
		m.log.Warn("session extend failed", "auto", auto, "error", err)
		return err
	}
	var ev events
	if m.state == StateExpired {
		// Expiry is terminal even if the server still took the extend.
		m.mu.Unlock()
		m.log.Info("extend completed after local expiry; ignoring")
		return nil
	}
	m.warningShown = false
	m.criticalShown = false
	m.stopCountdownLocked()
	m.hideModalLocked()
	m.setStateLocked(StateActive, &ev)
	if res.RemainingTime > 0 {
		st := client.SessionStatus{Status: client.StatusActive, RemainingTime: res.RemainingTime}
		if m.last != nil && m.last.Status != st.Status {
			ev.status = &StatusChange{Old: *m.last, New: st}
		}
		m.last = &st
		m.updateStatusTextLocked(st)
	}
	if !auto {
		m.ui.Notify(noticeExtended, SeveritySuccess)
	}
	m.mu.Unlock()

	m.log.Info("session extended", "auto", auto, "remaining_time", res.RemainingTime)
	m.emit(ev)
	return nil
}

// Save asks the server to snapshot the session and records the backup id.
func (m *Monitor) Save(ctx context.Context) error {
	return m.save(ctx, true)
}

func (m *Monitor) save(ctx context.Context, manual bool) error {
	res, err := m.api.Save(ctx)
	if err != nil {
		m.log.Warn("session save failed", "manual", manual, "error", err)
		if manual {
			m.ui.Notify(noticeSaveFailed, SeverityError)
		}
		return err
	}

	rec := backup.Record{BackupID: res.BackupID, Timestamp: m.clock.Now(), Manual: manual}
	if _, err := m.backups.Add(rec); err != nil {
		m.log.Error("recording backup failed", "backup_id", res.BackupID, "error", err)
		if manual {
			m.ui.Notify(noticeLedgerFailed, SeverityWarning)
		}
		return fmt.Errorf("recording backup %s: %w", res.BackupID, err)
	}

	m.log.Info("session saved", "backup_id", res.BackupID, "manual", manual)
	if manual {
		m.ui.Notify(noticeSaved, SeveritySuccess)
	}
	return nil
}

// ShowRestoreOptions lists the recorded backups as a picker, newest first.
func (m *Monitor) ShowRestoreOptions() {
	list, err := m.backups.List()
	if err != nil {
		m.log.Error("reading backup ledger failed", "error", err)
	}
	if len(list) == 0 {
		m.ui.Notify(noticeNoBackups, SeverityWarning)
		m.reshowExpired()
		return
	}

	actions := make([]Action, 0, len(list)+1)
	for _, rec := range list {
		id := rec.BackupID
		actions = append(actions, m.action(backupLabel(rec), func(ctx context.Context) {
			_ = m.Restore(ctx, id)
		}))
	}
	actions = append(actions, m.action(labelCancel, func(context.Context) { m.reshowExpired() }))

	m.mu.Lock()
	m.showModalLocked(Modal{
		Kind:     ModalRestore,
		Title:    titleRestore,
		Message:  msgRestorePick,
		Severity: SeverityInfo,
		Actions:  actions,
	})
	m.mu.Unlock()
}

func backupLabel(rec backup.Record) string {
	kind := labelAuto
	if rec.Manual {
		kind = labelManual
	}
	return rec.Timestamp.Local().Format(backupTimeLayout) + " " + kind
}

// reshowExpired brings the expired notice back after a cancelled or failed
// recovery attempt.
func (m *Monitor) reshowExpired() {
	m.mu.Lock()
	if m.state == StateExpired {
		m.showExpiredLocked()
	}
	m.mu.Unlock()
}

// Restore asks the server to restore a backup and reloads after ReloadDelay.
func (m *Monitor) Restore(ctx context.Context, backupID string) error {
	if _, err := m.api.Restore(ctx, backupID); err != nil {
		m.log.Warn("session restore failed", "backup_id", backupID, "error", err)
		m.ui.Notify(noticeRestoreFailed, SeverityError)
		m.reshowExpired()
		return err
	}

	m.log.Info("session restored", "backup_id", backupID)
	m.ui.Notify(noticeRestored, SeveritySuccess)

	m.mu.Lock()
	stopTask(&m.reloadTask)
	m.reloadTask = m.clock.After(m.cfg.ReloadDelay, m.Reload)
	m.mu.Unlock()
	return nil
}

// StartFresh abandons the expired session, opens a new one and reloads.
func (m *Monitor) StartFresh(ctx context.Context) error {
	if _, err := m.api.Start(ctx); err != nil {
		m.log.Warn("starting new session failed", "error", err)
		m.ui.Notify(noticeStartFailed, SeverityError)
		m.reshowExpired()
		return err
	}
	m.log.Info("new session started")
	m.Reload()
	return nil
}

// Reload resets the monitor to a fresh lifecycle and starts polling again.
func (m *Monitor) Reload() {
	m.mu.Lock()
	parent := m.parent
	wasRunning := m.running
	var ev events
	m.teardownLocked()
	m.setStateLocked(StateActive, &ev)
	m.last = nil
	m.warningShown = false
	m.criticalShown = false
	m.extending = false
	m.countdown = Countdown{}
	ev.reloaded = true
	m.mu.Unlock()

	m.log.Info("session monitor reloading")
	m.emit(ev)
	if wasRunning && parent != nil && parent.Err() == nil {
		m.Start(parent)
	}
}

// RecordActivity notes user input. In the warning state it triggers a
// silent extend when auto-extend is on.
func (m *Monitor) RecordActivity(kind ActivityKind) {
	if _, ok := activityNames[kind]; !ok {
		return
	}
	m.mu.Lock()
	m.lastActivityAt = m.clock.Now()
	fire := m.cfg.AutoExtend && m.running && m.state == StateWarning && !m.extending
	ctx := m.ctx
	m.mu.Unlock()

	if fire {
		m.log.Debug("activity during warning, extending", "kind", kind.String())
		_ = m.Extend(ctx, true)
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the monitor state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		State:          m.state,
		WarningShown:   m.warningShown,
		CriticalShown:  m.criticalShown,
		LastActivityAt: m.lastActivityAt,
		Countdown:      m.countdown,
		Running:        m.running,
	}
	if m.last != nil {
		cp := *m.last
		s.LastStatus = &cp
	}
	return s
}

// Backups returns the recorded backups, newest first.
func (m *Monitor) Backups() ([]backup.Record, error) {
	return m.backups.List()
}

func (m *Monitor) setStateLocked(to State, ev *events) {
	if m.state == to {
		return
	}
	ev.states = append(ev.states, StateChange{From: m.state, To: to})
	m.log.Debug("state change", "from", m.state.String(), "to", to.String())
	m.state = to
}

func (m *Monitor) showModalLocked(md Modal) {
	m.modal = md.Kind
	m.ui.ShowModal(md)
}

func (m *Monitor) hideModalLocked() {
	if m.modal == ModalNone {
		return
	}
	m.modal = ModalNone
	m.ui.HideModal()
}

func (m *Monitor) stopCountdownLocked() {
	stopTask(&m.countdownTask)
}

func (m *Monitor) updateStatusTextLocked(st client.SessionStatus) {
	if t, ok := m.ui.(StatusTexter); ok {
		t.UpdateStatusText(fmt.Sprintf(msgStatusFmt, st.RemainingMinutes()), st.Warning)
	}
}

func stopTask(t *clock.Task) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
