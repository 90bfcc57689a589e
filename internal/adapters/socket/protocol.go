// Package socket implements a JSON-over-Unix-socket protocol for the chatscan daemon.
// The protocol uses newline-delimited JSON: each message is one JSON object + \n.
package socket

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corey/chatscan/internal/domain/session"
	"github.com/corey/chatscan/internal/ports"
)

// SocketPath returns the Unix socket path for a given session database.
// Format: {tmpdir}/chatscan-{first12hex}.sock
func SocketPath(dbPath string) string {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}
	h := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), fmt.Sprintf("chatscan-%x.sock", h[:6]))
}

// Method names for the protocol.
const (
	MethodHealth          = "health"
	MethodShutdown        = "shutdown"
	MethodSessionCreate   = "session.create"
	MethodSessionGet      = "session.get"
	MethodSessionList     = "session.list"
	MethodSessionContinue = "session.continue"
	MethodSessionRestart  = "session.restart"
	MethodSessionKeywords = "session.keywords"
	MethodSessionFilter   = "session.filter"
	MethodSessionDelete   = "session.delete"
	MethodContext         = "context"
	MethodStreamers       = "streamers"
)

// Request is the wire format for client-to-server messages.
type Request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// AppQueries is what the server needs from the application.
// Thread safety is the implementor's responsibility.
type AppQueries interface {
	CreateSession(ctx context.Context, keywords []string, sourceFilter string) (session.Status, error)
	SessionStatus(id string) (session.Status, error)
	SessionList() SessionListResult
	ContinueSession(ctx context.Context, id string) (session.Status, error)
	RestartSession(ctx context.Context, id string) (session.Status, error)
	SetSessionKeywords(ctx context.Context, id string, keywords []string) (session.Status, error)
	SetSessionFilter(ctx context.Context, id, sourceFilter string) (session.Status, error)
	DeleteSession(id string) error
	Context(ctx context.Context, recordingID string, offset int) (ContextResult, error)
	Streamers(ctx context.Context) (StreamersResult, error)
	Health() HealthResult
}

// SessionParams addresses a single session.
type SessionParams struct {
	ID string `json:"id"`
}

// CreateParams is the params for a session.create request.
type CreateParams struct {
	Keywords     []string `json:"keywords"`
	SourceFilter string   `json:"source_filter,omitempty"`
}

// KeywordsParams is the params for a session.keywords request.
type KeywordsParams struct {
	ID       string   `json:"id"`
	Keywords []string `json:"keywords"`
}

// FilterParams is the params for a session.filter request.
type FilterParams struct {
	ID           string `json:"id"`
	SourceFilter string `json:"source_filter"`
}

// ContextParams is the params for a context request.
type ContextParams struct {
	RecordingID string `json:"recording_id"`
	Offset      int    `json:"offset"`
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status   string `json:"status"`
	Corpus   string `json:"corpus"`
	Sessions int    `json:"sessions"`
	Scanning int    `json:"scanning"`
	Uptime   string `json:"uptime"`
}

// SessionSummary is one row of a session listing.
type SessionSummary struct {
	ID           string    `json:"id"`
	Keywords     []string  `json:"keywords"`
	SourceFilter string    `json:"source_filter,omitempty"`
	Recordings   int       `json:"recordings"`
	TotalMatches int       `json:"total_matches"`
	PagesScanned int       `json:"pages_scanned"`
	Exhausted    bool      `json:"exhausted"`
	Scanning     bool      `json:"scanning"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionListResult is the result of a session.list request.
type SessionListResult struct {
	Sessions []SessionSummary `json:"sessions"`
	Count    int              `json:"count"`
}

// ContextResult is the result of a context request.
type ContextResult struct {
	RecordingID string          `json:"recording_id"`
	Offset      int             `json:"offset"`
	Messages    []ports.Message `json:"messages"`
	Count       int             `json:"count"`
}

// StreamersResult is the result of a streamers request.
type StreamersResult struct {
	Streamers []ports.Streamer `json:"streamers"`
	Count     int              `json:"count"`
}

// Summarize builds the listing row for a session status.
func Summarize(st session.Status) SessionSummary {
	return SessionSummary{
		ID:           st.ID,
		Keywords:     st.Keywords,
		SourceFilter: st.SourceFilter,
		Recordings:   len(st.Groups),
		TotalMatches: st.TotalMatches,
		PagesScanned: st.Cursor.LastScannedPage,
		Exhausted:    st.Exhausted,
		Scanning:     st.Scanning,
		LastError:    st.LastError,
		UpdatedAt:    st.UpdatedAt,
	}
}
