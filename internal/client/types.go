// Package client provides HTTP and WebSocket clients for the quiz session backend.
// Types mirror the backend wire protocol without importing backend packages.
package client

import (
	"encoding/json"
	"fmt"
)

// Status is the server's classification of a session.
type Status string

const (
	StatusActive  Status = "active"
	StatusWarning Status = "warning"
	StatusExpired Status = "expired"
)

// SessionStatus is the body of GET /api/session/status.
type SessionStatus struct {
	Status        Status `json:"status"`
	RemainingTime int    `json:"remaining_time"` // seconds
	Warning       bool   `json:"warning"`
	Expired       bool   `json:"expired"`
}

// IsExpired reports whether the server considers the session gone.
func (s SessionStatus) IsExpired() bool {
	return s.Status == StatusExpired || s.Expired
}

// RemainingMinutes rounds the remaining time up to whole minutes.
func (s SessionStatus) RemainingMinutes() int {
	return (s.RemainingTime + 59) / 60
}

func (s SessionStatus) validate() error {
	switch s.Status {
	case StatusActive, StatusWarning, StatusExpired:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, s.Status)
	}
	if s.RemainingTime < 0 {
		return fmt.Errorf("%w: negative remaining_time %d", ErrMalformedResponse, s.RemainingTime)
	}
	return nil
}

// ExtendResult is the body of POST /api/session/extend.
type ExtendResult struct {
	Success       bool   `json:"success"`
	RemainingTime int    `json:"remaining_time"`
	Message       string `json:"message,omitempty"`
}

// SaveResult is the body of POST /api/session/save.
type SaveResult struct {
	Success  bool   `json:"success"`
	BackupID string `json:"backup_id"`
	Message  string `json:"message,omitempty"`
}

// RestoreRequest is the body sent to POST /api/session/restore.
type RestoreRequest struct {
	BackupID string `json:"backup_id"`
}

// RestoreResult is the body of POST /api/session/restore.
type RestoreResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StartResult is the body of POST /api/session/start.
type StartResult struct {
	Success       bool   `json:"success"`
	RemainingTime int    `json:"remaining_time"`
	Message       string `json:"message,omitempty"`
}

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgStatus MessageType = "status"
	MsgError  MessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}
