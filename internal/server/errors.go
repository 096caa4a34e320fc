package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rccm-quiz/sessionguard/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError writes err with the status code matching its kind.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// resultLabel is the metrics label for a handler outcome.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, session.ErrExpired):
		return "expired"
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
