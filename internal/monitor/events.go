package monitor

import (
	"context"
	"slices"
)

// OnStatusChange registers fn to run whenever the server's status string
// differs from the previous status. It returns a function that unregisters.
func (m *Monitor) OnStatusChange(fn func(StatusChange)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.onStatus = append(m.onStatus, fn)
	idx := len(m.onStatus) - 1
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		m.onStatus[idx] = nil
	}
}

// OnStateChange registers fn to run on every monitor state transition.
func (m *Monitor) OnStateChange(fn func(StateChange)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.onState = append(m.onState, fn)
	idx := len(m.onState) - 1
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		m.onState[idx] = nil
	}
}

// OnExpired registers fn to run once per lifecycle when the session expires.
func (m *Monitor) OnExpired(fn func()) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.onExpired = append(m.onExpired, fn)
	idx := len(m.onExpired) - 1
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		m.onExpired[idx] = nil
	}
}

// OnReload registers fn to run when the monitor resets after a restore or a
// fresh start. Hosts use it to rebuild their view of the session.
func (m *Monitor) OnReload(fn func()) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.onReload = append(m.onReload, fn)
	idx := len(m.onReload) - 1
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		m.onReload[idx] = nil
	}
}

// emit delivers collected events. Must be called without m.mu held.
func (m *Monitor) emit(ev events) {
	m.subMu.Lock()
	statusSubs := slices.Clone(m.onStatus)
	stateSubs := slices.Clone(m.onState)
	expiredSubs := slices.Clone(m.onExpired)
	reloadSubs := slices.Clone(m.onReload)
	m.subMu.Unlock()

	if ev.status != nil {
		for _, fn := range statusSubs {
			if fn != nil {
				fn(*ev.status)
			}
		}
	}
	for _, sc := range ev.states {
		for _, fn := range stateSubs {
			if fn != nil {
				fn(sc)
			}
		}
	}
	if ev.expired {
		m.log.Warn("session expired")
		for _, fn := range expiredSubs {
			if fn != nil {
				fn()
			}
		}
	}
	if ev.reloaded {
		for _, fn := range reloadSubs {
			if fn != nil {
				fn()
			}
		}
	}
	if ev.autoSave {
		m.mu.Lock()
		ctx := m.ctx
		m.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		_ = m.save(ctx, false)
	}
}
