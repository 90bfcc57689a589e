// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists search sessions between daemon restarts and CLI runs.
// The backing store (bbolt) keeps one encoded snapshot per session ID.
//
// Crash safety: SaveSession must be transactional. A crash mid-write must not
// corrupt previously committed data.
type SessionStore interface {
	// SaveSession persists a snapshot. Overwrites any prior snapshot with the same ID.
	SaveSession(snap *SessionSnapshot) error

	// LoadSession retrieves a snapshot.
	// Returns nil, nil if no session exists with that ID.
	LoadSession(id string) (*SessionSnapshot, error)

	// ListSessions returns every stored snapshot, most recently updated first.
	ListSessions() ([]*SessionSnapshot, error)

	// DeleteSession removes a snapshot.
	// Idempotent: deleting a nonexistent session is not an error.
	DeleteSession(id string) error
}

// SessionSnapshot is the durable form of a search session.
//
// Volatile state (the scanning flag and the progress line) is deliberately
// absent: a restored session always starts idle.
type SessionSnapshot struct {
	ID           string           `json:"id"`
	Keywords     []string         `json:"keywords"`
	SourceFilter string           `json:"source_filter"`
	Groups       []RecordingGroup `json:"groups"`
	Cursor       Cursor           `json:"cursor"`
	Exhausted    bool             `json:"exhausted"`
	Searched     bool             `json:"searched"`
	LastError    string           `json:"last_error,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TotalMatches returns the number of matches across all groups.
func (s *SessionSnapshot) TotalMatches() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Matches)
	}
	return n
}
