// Package sqlite implements a local mirror of the chat corpus on SQLite
// (modernc.org/sqlite, no cgo). It serves the same stable page order as the
// remote API, so a session can be pointed at either without its cursor
// meaning something different.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corey/chatscan/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	owner_id   TEXT NOT NULL DEFAULT '',
	owner_name TEXT NOT NULL DEFAULT '',
	created_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_recordings_owner ON recordings(owner_id);

CREATE TABLE IF NOT EXISTS messages (
	id             TEXT PRIMARY KEY,
	recording_id   TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	author         TEXT NOT NULL DEFAULT '',
	text           TEXT NOT NULL DEFAULT '',
	offset_seconds INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_recording ON messages(recording_id, offset_seconds);
`

// Page order: newest recording first (unknown creation time last), then
// ascending offset within a recording.
const pageOrder = `ORDER BY r.created_at IS NULL, r.created_at DESC, r.id, m.offset_seconds, m.id`

// Store is a SQLite-backed corpus. It implements ports.PageSource,
// ports.ContextSource and ports.Directory.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the mirror at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchPage implements ports.PageSource. One extra row is requested to tell
// whether a further page exists.
func (s *Store) FetchPage(ctx context.Context, filter ports.Filter, page, pageSize int) (ports.Page, error) {
	if page < 1 || pageSize < 1 {
		return ports.Page{Messages: []ports.Message{}}, nil
	}

	q := `SELECT m.id, m.author, m.text, m.offset_seconds, r.id, r.title, r.owner_name, r.created_at
		FROM messages m JOIN recordings r ON r.id = m.recording_id`
	args := []any{}
	if !filter.IsZero() {
		q += ` WHERE r.owner_id = ?`
		args = append(args, filter.SourceOwnerID)
	}
	q += " " + pageOrder + ` LIMIT ? OFFSET ?`
	args = append(args, pageSize+1, (page-1)*pageSize)

	msgs, err := s.queryMessages(ctx, q, args...)
	if err != nil {
		return ports.Page{}, fmt.Errorf("fetch page %d: %w", page, err)
	}

	hasNext := len(msgs) > pageSize
	if hasNext {
		msgs = msgs[:pageSize]
	}
	return ports.Page{Messages: msgs, HasNext: hasNext}, nil
}

// FetchContext implements ports.ContextSource.
func (s *Store) FetchContext(ctx context.Context, recordingID string, offset int) ([]ports.Message, error) {
	from := max(0, offset-ports.ContextBefore)
	to := offset + ports.ContextAfter
	msgs, err := s.queryMessages(ctx, `
		SELECT m.id, m.author, m.text, m.offset_seconds, r.id, r.title, r.owner_name, r.created_at
		FROM messages m JOIN recordings r ON r.id = m.recording_id
		WHERE m.recording_id = ? AND m.offset_seconds BETWEEN ? AND ?
		ORDER BY m.offset_seconds, m.id
	`, recordingID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch context: %w", err)
	}
	return msgs, nil
}

// ListStreamers implements ports.Directory: every distinct recording owner.
func (s *Store) ListStreamers(ctx context.Context) ([]ports.Streamer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, MAX(owner_name)
		FROM recordings
		WHERE owner_id <> ''
		GROUP BY owner_id
		ORDER BY LOWER(MAX(owner_name)), owner_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query streamers: %w", err)
	}
	defer rows.Close()

	out := []ports.Streamer{}
	for rows.Next() {
		var st ports.Streamer
		if err := rows.Scan(&st.ID, &st.DisplayName); err != nil {
			return nil, fmt.Errorf("scan streamer: %w", err)
		}
		if st.DisplayName == "" {
			st.DisplayName = st.ID
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Counts returns the number of recordings and messages in the mirror.
func (s *Store) Counts(ctx context.Context) (recordings, messages int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM recordings), (SELECT COUNT(*) FROM messages)`,
	).Scan(&recordings, &messages)
	if err != nil {
		return 0, 0, fmt.Errorf("count: %w", err)
	}
	return recordings, messages, nil
}

func (s *Store) queryMessages(ctx context.Context, q string, args ...any) ([]ports.Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []ports.Message{}
	for rows.Next() {
		var m ports.Message
		var created sql.NullInt64
		if err := rows.Scan(&m.ID, &m.Author, &m.Text, &m.Offset,
			&m.RecordingID, &m.RecordingTitle, &m.RecordingOwner, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if created.Valid {
			m.RecordingCreatedAt = time.Unix(created.Int64, 0).UTC()
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
