package server

import "time"

type MessageType string

const (
	MsgStatus MessageType = "status"
	MsgError  MessageType = "error"
)

// WSMessage is the envelope for every push frame.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type ExtendResponse struct {
	Success       bool      `json:"success"`
	RemainingTime int       `json:"remaining_time"`
	ExpiresAt     time.Time `json:"expires_at"`
	Message       string    `json:"message,omitempty"`
}

type SaveResponse struct {
	Success  bool   `json:"success"`
	BackupID string `json:"backup_id"`
	Message  string `json:"message,omitempty"`
}

type RestoreRequest struct {
	BackupID string `json:"backup_id"`
}

type RestoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type StartResponse struct {
	Success       bool   `json:"success"`
	RemainingTime int    `json:"remaining_time"`
	Message       string `json:"message,omitempty"`
}
