// Package bbolt implements ports.SessionStore using bbolt (embedded B+ tree).
// All snapshots live in a single "sessions" bucket keyed by session ID.
// Writes are transactional, so a crash mid-write cannot corrupt previously
// committed snapshots.
package bbolt

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/corey/chatscan/internal/ports"
	bolt "go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// Store implements ports.SessionStore backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession persists a snapshot, replacing any prior one with the same ID.
func (s *Store) SaveSession(snap *ports.SessionSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil session snapshot")
	}
	if snap.ID == "" {
		return fmt.Errorf("session snapshot without id")
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.ID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketSessions)
		if err != nil {
			return err
		}
		return b.Put([]byte(snap.ID), data)
	})
}

// LoadSession retrieves a snapshot.
// Returns nil, nil if no session exists with that ID.
func (s *Store) LoadSession(id string) (*ports.SessionSnapshot, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return nil
		}
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := b.Get([]byte(id)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return snap, nil
}

// ListSessions returns every stored snapshot, most recently updated first.
// Snapshots that fail to decode are skipped.
func (s *Store) ListSessions() ([]*ports.SessionSnapshot, error) {
	var out []*ports.SessionSnapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			// decodeSnapshot copies everything it keeps, so v need not outlive tx
			snap, err := decodeSnapshot(v)
			if err != nil {
				return nil
			}
			out = append(out, snap)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteSession removes a snapshot.
// Idempotent: deleting a nonexistent session is not an error.
func (s *Store) DeleteSession(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}

// IsLocked reports whether err is the open timeout bbolt returns when another
// process holds the database file.
func IsLocked(err error) bool {
	return errors.Is(err, bolt.ErrTimeout)
}
