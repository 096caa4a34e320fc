// Package session is the backend's model of a quiz session: its lifetime,
// its saved backups and the stores that hold them.
package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown session or backup ids.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned when mutating a session that has run out.
	ErrExpired = errors.New("session expired")
)

// Kind is the coarse status reported to clients.
type Kind string

const (
	KindActive  Kind = "active"
	KindWarning Kind = "warning"
	KindExpired Kind = "expired"
)

// Status is the wire body of GET /api/session/status.
type Status struct {
	Status        Kind `json:"status"`
	RemainingTime int  `json:"remaining_time"` // whole seconds, never negative
	Warning       bool `json:"warning"`
	Expired       bool `json:"expired"`
}

// Session is one user's quiz session.
type Session struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Invalidated bool            `json:"invalidated,omitempty"`
	// Owner ties a chain of sessions started from one another together.
	// It is the id of the first session in the chain.
	Owner string `json:"owner,omitempty"`
	Progress    json.RawMessage `json:"progress,omitempty"`
}

// New starts a session that lives for ttl from now.
func New(now time.Time, ttl time.Duration) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(ttl).UTC(),
		Owner:     id,
	}
}

// Successor starts a session that replaces s and keeps its owner, so
// backups saved before a fresh start stay restorable.
func (s *Session) Successor(now time.Time, ttl time.Duration) *Session {
	next := New(now, ttl)
	next.Owner = s.owner()
	return next
}

func (s *Session) owner() string {
	if s.Owner != "" {
		return s.Owner
	}
	return s.ID
}

// Owns reports whether b was saved by s or an earlier session of its chain.
func (s *Session) Owns(b *Backup) bool {
	if b.Owner != "" {
		return b.Owner == s.owner()
	}
	return b.SessionID == s.ID
}

// Remaining is the time left, clamped at zero.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.Invalidated {
		return 0
	}
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) IsExpired(now time.Time) bool {
	return s.Invalidated || !now.Before(s.ExpiresAt)
}

// Extend pushes the expiry to ttl from now.
func (s *Session) Extend(now time.Time, ttl time.Duration) error {
	if s.IsExpired(now) {
		return ErrExpired
	}
	s.ExpiresAt = now.Add(ttl).UTC()
	return nil
}

// Status classifies the session at now. The warning flag is set once the
// remaining time is at or below warningThreshold.
func (s *Session) Status(now time.Time, warningThreshold time.Duration) Status {
	if s.IsExpired(now) {
		return Status{Status: KindExpired, Expired: true}
	}
	rem := s.Remaining(now)
	st := Status{Status: KindActive, RemainingTime: int(rem / time.Second)}
	if rem <= warningThreshold {
		st.Status = KindWarning
		st.Warning = true
	}
	return st
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Progress = append(json.RawMessage(nil), s.Progress...)
	return &cp
}

// Backup is a server-side snapshot of a session's progress.
type Backup struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Owner     string          `json:"owner,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Progress  json.RawMessage `json:"progress,omitempty"`
}

// Snapshot captures the session's progress as a new backup.
func (s *Session) Snapshot(now time.Time) *Backup {
	return &Backup{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Owner:     s.owner(),
		CreatedAt: now.UTC(),
		Progress:  append(json.RawMessage(nil), s.Progress...),
	}
}

// RestoreFrom revives the session with b's progress and a full ttl.
func (s *Session) RestoreFrom(b *Backup, now time.Time, ttl time.Duration) {
	s.Progress = append(json.RawMessage(nil), b.Progress...)
	s.Invalidated = false
	s.ExpiresAt = now.Add(ttl).UTC()
}

func (b *Backup) clone() *Backup {
	cp := *b
	cp.Progress = append(json.RawMessage(nil), b.Progress...)
	return &cp
}
