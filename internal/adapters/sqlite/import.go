package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Record is one line of a JSONL corpus dump. Field names follow the archive
// API's comment rows, plus video_streamer_id for the owner filter.
type Record struct {
	ID             string    `json:"id"`
	RecordingID    string    `json:"video_id"`
	RecordingTitle string    `json:"video_title"`
	OwnerID        string    `json:"video_streamer_id"`
	OwnerName      string    `json:"video_streamer"`
	CreatedAt      time.Time `json:"video_created_at"`
	Author         string    `json:"commenter_display_name"`
	Text           string    `json:"message"`
	Offset         int       `json:"content_offset_seconds"`
}

// ImportStats summarises an Import.
type ImportStats struct {
	Messages int
	Skipped  int // blank lines and rows without id or video_id
}

// Import loads a JSONL dump in a single transaction. Existing messages with
// the same id are replaced; recording metadata is filled in, never blanked.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recordings (id, title, owner_id, owner_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = CASE WHEN excluded.title <> '' THEN excluded.title ELSE recordings.title END,
			owner_id   = CASE WHEN excluded.owner_id <> '' THEN excluded.owner_id ELSE recordings.owner_id END,
			owner_name = CASE WHEN excluded.owner_name <> '' THEN excluded.owner_name ELSE recordings.owner_name END,
			created_at = COALESCE(excluded.created_at, recordings.created_at)
	`)
	if err != nil {
		return stats, fmt.Errorf("prepare recordings: %w", err)
	}
	defer recStmt.Close()

	msgStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO messages (id, recording_id, author, text, offset_seconds)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return stats, fmt.Errorf("prepare messages: %w", err)
	}
	defer msgStmt.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			stats.Skipped++
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.ID == "" || rec.RecordingID == "" {
			stats.Skipped++
			continue
		}

		var created any
		if !rec.CreatedAt.IsZero() {
			created = rec.CreatedAt.Unix()
		}
		if _, err := recStmt.ExecContext(ctx, rec.RecordingID, strings.TrimSpace(rec.RecordingTitle),
			rec.OwnerID, rec.OwnerName, created); err != nil {
			return stats, fmt.Errorf("line %d: upsert recording: %w", line, err)
		}
		if _, err := msgStmt.ExecContext(ctx, rec.ID, rec.RecordingID, rec.Author, rec.Text, rec.Offset); err != nil {
			return stats, fmt.Errorf("line %d: insert message: %w", line, err)
		}
		stats.Messages++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read dump: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}
