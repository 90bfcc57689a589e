package ports

import (
	"context"
	"time"
)

// PageSource reads the chat corpus one page at a time. The corpus is owned
// elsewhere; chatscan never writes to it.
//
// Ordering must be stable under repeated identical calls: the scan controller
// uses page numbers as a resumable cursor, so page N must mean the same slice
// of the corpus on every call for a given filter and page size.
//
// Implementations must honour ctx cancellation for an outstanding fetch.
type PageSource interface {
	// FetchPage returns the 1-based page of messages matching filter.
	// A page past the end returns an empty Page with HasNext=false.
	FetchPage(ctx context.Context, filter Filter, page, pageSize int) (Page, error)
}

// ContextSource returns the chat surrounding a single message, used to show
// a match in context.
type ContextSource interface {
	// FetchContext returns messages of recordingID whose offset lies in
	// [offset-30s, offset+120s], ascending by offset.
	FetchContext(ctx context.Context, recordingID string, offset int) ([]Message, error)
}

// Directory lists recording owners (streamers). Used to pick a source filter.
type Directory interface {
	ListStreamers(ctx context.Context) ([]Streamer, error)
}

// Context window bounds around a target offset, in seconds.
const (
	ContextBefore = 30
	ContextAfter  = 120
)

// Filter constrains a page fetch. Zero value means no constraint.
type Filter struct {
	SourceOwnerID string `json:"source_owner_id,omitempty"`
}

// IsZero reports whether the filter carries no constraint.
func (f Filter) IsZero() bool {
	return f.SourceOwnerID == ""
}

// Page is one slice of the corpus.
type Page struct {
	Messages []Message
	HasNext  bool
}

// Message is a single chat line of a recording. Immutable once fetched.
type Message struct {
	ID                 string    `json:"id"`
	Author             string    `json:"author"`
	Text               string    `json:"text"`
	Offset             int       `json:"offset"` // seconds into the recording
	RecordingID        string    `json:"recording_id"`
	RecordingTitle     string    `json:"recording_title,omitempty"`
	RecordingOwner     string    `json:"recording_owner,omitempty"`
	RecordingCreatedAt time.Time `json:"recording_created_at,omitempty"` // zero = unknown
}

// Streamer is an owner of recordings.
type Streamer struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}
