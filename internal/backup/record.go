// Package backup keeps the local ledger of server-side session backups: the
// ids a user can later hand to the restore endpoint.
package backup

import (
	"errors"
	"time"
)

// MaxRecords caps the ledger; older records are dropped first.
const MaxRecords = 10

// LedgerKey names the ledger inside a store.
const LedgerKey = "rccm_session_backups"

// ErrDuplicateID is returned when a backup id is already in the ledger.
var ErrDuplicateID = errors.New("backup id already recorded")

// Record references one server-side backup.
type Record struct {
	BackupID  string    `json:"backup_id"`
	Timestamp time.Time `json:"timestamp"` // RFC 3339
	Manual    bool      `json:"manual"`
}

// Store persists the ledger, newest record first.
type Store interface {
	// List returns the ledger, newest first. A missing ledger is empty.
	List() ([]Record, error)
	// Add prepends rec, evicting beyond MaxRecords, and returns the new ledger.
	Add(rec Record) ([]Record, error)
	Close() error
}

// Prepend returns a new ledger with rec first and at most MaxRecords entries.
// The input slice is not modified.
func Prepend(list []Record, rec Record) []Record {
	n := len(list) + 1
	if n > MaxRecords {
		n = MaxRecords
	}
	out := make([]Record, 0, n)
	out = append(out, rec)
	for _, r := range list {
		if len(out) == n {
			break
		}
		out = append(out, r)
	}
	return out
}

func contains(list []Record, id string) bool {
	for _, r := range list {
		if r.BackupID == id {
			return true
		}
	}
	return false
}

// add is the shared Add logic for stores that load and save the whole ledger.
func add(list []Record, rec Record) ([]Record, error) {
	if rec.BackupID == "" {
		return nil, errors.New("backup id is empty")
	}
	if contains(list, rec.BackupID) {
		return nil, ErrDuplicateID
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return Prepend(list, rec), nil
}
