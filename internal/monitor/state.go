package monitor

import (
	"time"

	"github.com/rccm-quiz/sessionguard/internal/client"
)

// State is the monitor's urgency classification.
type State int

const (
	StateActive State = iota
	StateWarning
	StateCritical
	StateExpired // terminal until a reload
)

var stateNames = map[State]string{
	StateActive:   "active",
	StateWarning:  "warning",
	StateCritical: "critical",
	StateExpired:  "expired",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// ActivityKind is a class of user input that counts as activity.
type ActivityKind int

const (
	ActivityPointer ActivityKind = iota
	ActivityKey
	ActivityScroll
	ActivityTouch
)

var activityNames = map[ActivityKind]string{
	ActivityPointer: "pointer",
	ActivityKey:     "key",
	ActivityScroll:  "scroll",
	ActivityTouch:   "touch",
}

func (a ActivityKind) String() string {
	if n, ok := activityNames[a]; ok {
		return n
	}
	return "unknown"
}

// StatusChange reports that the server's status string changed between two
// consecutive statuses.
type StatusChange struct {
	Old client.SessionStatus
	New client.SessionStatus
}

// StateChange reports a transition of the monitor's own state.
type StateChange struct {
	From State
	To   State
}

// Snapshot is a copy of the monitor state for display and tests.
type Snapshot struct {
	State          State
	LastStatus     *client.SessionStatus // nil before the first status
	WarningShown   bool
	CriticalShown  bool
	LastActivityAt time.Time
	Countdown      Countdown
	Running        bool
}
