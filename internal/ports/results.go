package ports

import "time"

// ScoredMatch is a message admitted by the match evaluator.
// Score is in [0,1]; MatchedKeyword is the keyword that produced it.
type ScoredMatch struct {
	Message
	Score          float64 `json:"score"`
	MatchedKeyword string  `json:"matched_keyword"`
}

// RecordingGroup holds every match of a single recording.
//
// Matches are unique by Message.ID and ordered by ascending Offset.
type RecordingGroup struct {
	RecordingID string        `json:"recording_id"`
	Title       string        `json:"title"`
	Owner       string        `json:"owner"`
	CreatedAt   time.Time     `json:"created_at,omitempty"` // zero = unknown, sorts last
	Matches     []ScoredMatch `json:"matches"`
}

// Cursor marks where the next page fetch resumes.
//
// LastScannedPage is non-decreasing within one filter configuration. A fresh
// scan resets it to 0 (the next page fetched is StartPage, i.e. 1).
type Cursor struct {
	StartPage       int    `json:"start_page"`
	LastScannedPage int    `json:"last_scanned_page"`
	SourceFilter    string `json:"source_filter,omitempty"`
}

// NewCursor returns a cursor positioned before page 1 for filter.
func NewCursor(sourceFilter string) Cursor {
	return Cursor{StartPage: 1, SourceFilter: sourceFilter}
}

// Filter returns the page-source filter the cursor was built for.
func (c Cursor) Filter() Filter {
	return Filter{SourceOwnerID: c.SourceFilter}
}
