package monitor

// Severity grades a notification or modal.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ModalKind tells the host which prompt it is drawing.
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalWarning
	ModalCritical
	ModalExpired
	ModalRestore
)

// Action is one button of a modal. Run may block on network I/O, so hosts
// must call it off their UI loop.
type Action struct {
	Label string
	Run   func()
}

// Countdown is the live countdown of the critical prompt.
type Countdown struct {
	Remaining int // seconds left
	Total     int // seconds at the start of the countdown
}

// Fraction is the share of the countdown still left, in [0,1].
func (c Countdown) Fraction() float64 {
	if c.Total <= 0 || c.Remaining <= 0 {
		return 0
	}
	if c.Remaining >= c.Total {
		return 1
	}
	return float64(c.Remaining) / float64(c.Total)
}

// Modal is a prompt requiring a decision.
type Modal struct {
	Kind      ModalKind
	Title     string
	Message   string
	Severity  Severity
	Countdown *Countdown // nil when the prompt has no countdown
	Actions   []Action
}

// Presenter is the UI surface the monitor drives. Methods may be called from
// any goroutine, sometimes while the monitor holds its lock: implementations
// must not block on the UI loop and must never call back into the Monitor
// synchronously.
type Presenter interface {
	// Notify shows a transient toast.
	Notify(message string, severity Severity)
	// ShowModal replaces any visible modal with m.
	ShowModal(m Modal)
	// HideModal removes the visible modal, if any.
	HideModal()
	// UpdateCountdown refreshes the countdown of the visible critical modal.
	UpdateCountdown(c Countdown)
}

// StatusTexter is implemented by presenters that have a status line. The
// monitor updates it opportunistically after each applied status.
type StatusTexter interface {
	UpdateStatusText(text string, warning bool)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Notify(string, Severity) {}
func (NopPresenter) ShowModal(Modal) {}
func (NopPresenter) HideModal() {}
func (NopPresenter) UpdateCountdown(Countdown) {}
