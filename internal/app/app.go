// Package app wires together all adapters and domain logic.
// It provides lifecycle management for the chatscan daemon: create, start, stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/corey/chatscan/internal/adapters/bbolt"
	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/corey/chatscan/internal/adapters/web"
	"github.com/corey/chatscan/internal/domain/match"
	"github.com/corey/chatscan/internal/domain/scan"
	"github.com/corey/chatscan/internal/domain/session"
	"github.com/corey/chatscan/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = ports.ErrSessionNotFound

// ErrUnsupported is returned when the corpus lacks an optional capability.
var ErrUnsupported = errors.New("not supported by this corpus")

// App is the top-level container wiring all components together.
type App struct {
	Store     *bbolt.Store
	Sources   Sources
	Server    *socket.Server
	WebServer *web.Server
	Paths     *Paths

	runner   session.Runner
	log      zerolog.Logger
	httpPort int
	started  time.Time

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// Config holds initialization parameters for the App.
type Config struct {
	DBPath    string       // path to bbolt file
	HTTPPort  int          // preferred HTTP port (0 = computed from DBPath)
	Scan      scan.Options // pass bounds; zero fields take defaults
	Threshold float64      // match threshold; out of range = match.DefaultThreshold
	Sources   Sources      // corpus access; Pages is required
	Logger    zerolog.Logger
}

// New creates an App with all dependencies wired and every stored session
// restored. Does not start services.
func New(cfg Config) (*App, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path required")
	}
	if cfg.Sources.Pages == nil {
		return nil, fmt.Errorf("page source required")
	}

	paths := NewPaths(cfg.DBPath)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := bbolt.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	controller := scan.NewController(cfg.Sources.Pages, match.New(cfg.Threshold), cfg.Scan)

	a := &App{
		Store:    store,
		Sources:  cfg.Sources,
		Paths:    paths,
		runner:   &instrumentedRunner{next: controller},
		log:      cfg.Logger,
		httpPort: cfg.HTTPPort,
		started:  time.Now(),
		sessions: make(map[string]*session.Session),
	}

	if err := a.restoreSessions(); err != nil {
		store.Close()
		return nil, err
	}

	a.Server = socket.NewServer(a, socket.SocketPath(cfg.DBPath), cfg.Logger.With().Str("component", "socket").Logger())
	a.WebServer = web.NewServer(a, paths.PortFile, cfg.Logger.With().Str("component", "web").Logger())
	return a, nil
}

// restoreSessions loads every persisted snapshot. Restored sessions are idle.
func (a *App) restoreSessions() error {
	snaps, err := a.Store.ListSessions()
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, snap := range snaps {
		a.register(session.Restore(snap, a.runner))
	}
	a.log.Debug().Int("sessions", len(snaps)).Msg("sessions restored")
	return nil
}

// register attaches logging and persistence to s and adds it to the registry.
func (a *App) register(s *session.Session) {
	s.SetLogger(a.log)
	s.SetOnChange(a.persist)
	a.mu.Lock()
	a.sessions[s.ID()] = s
	n := len(a.sessions)
	a.mu.Unlock()
	activeSessions.Set(float64(n))
}

// persist is the session change listener: every mutation lands in bbolt.
func (a *App) persist(snap ports.SessionSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, live := a.sessions[snap.ID]; !live {
		return // deleted while a pass was finishing
	}
	if err := a.Store.SaveSession(&snap); err != nil {
		a.log.Error().Err(err).Str("session", snap.ID).Msg("persist session")
	}
}

func (a *App) lookup(id string) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Start begins the daemon (socket server + HTTP server).
func (a *App) Start() error {
	a.started = time.Now()
	if err := a.Server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	// HTTP is non-fatal if the port is unavailable
	httpPort := a.httpPort
	if httpPort == 0 {
		httpPort = web.DefaultPort(a.Paths.DB)
	}
	if err := a.WebServer.Start(httpPort); err != nil {
		a.log.Warn().Err(err).Msg("HTTP API unavailable")
	}
	return nil
}

// Stop shuts down all services, cancels in-flight scans and closes the store.
func (a *App) Stop() error {
	a.WebServer.Stop()
	a.Server.Stop()
	a.Close()
	return nil
}

// Close cancels every in-flight scan, waits briefly for them to record
// their final state, then closes the store and the corpus. Used directly
// by in-process CLI runs that never Start the servers.
func (a *App) Close() {
	a.mu.Lock()
	all := make([]*session.Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		all = append(all, s)
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range all {
		s.Close()
	}
	for _, s := range all {
		s.Wait(ctx)
	}

	a.Store.Close()
	if a.Sources.Close != nil {
		if err := a.Sources.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close corpus")
		}
	}
}

// ---------------------------------------------------------------------------
// socket.AppQueries
// ---------------------------------------------------------------------------

// CreateSession registers a new session and runs its first pass.
// A page-fetch failure is not returned: it is recorded in LastError and the
// session stays usable.
func (a *App) CreateSession(ctx context.Context, keywords []string, sourceFilter string) (session.Status, error) {
	s := session.New(uuid.NewString(), a.runner)
	a.register(s)
	a.log.Info().Str("session", s.ID()).Strs("keywords", keywords).Str("filter", sourceFilter).Msg("session created")

	if sourceFilter != "" {
		// no keywords yet, so this only records the filter
		if err := s.SetSourceFilter(ctx, sourceFilter); err != nil {
			return s.Status(), err
		}
	}
	return a.settle(s, s.SetKeywords(ctx, keywords))
}

// SessionStatus returns the current view of a session.
func (a *App) SessionStatus(id string) (session.Status, error) {
	s, err := a.lookup(id)
	if err != nil {
		return session.Status{}, err
	}
	return s.Status(), nil
}

// SessionList returns every session, most recently updated first.
func (a *App) SessionList() socket.SessionListResult {
	a.mu.Lock()
	rows := make([]socket.SessionSummary, 0, len(a.sessions))
	for _, s := range a.sessions {
		rows = append(rows, socket.Summarize(s.Status()))
	}
	a.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return socket.SessionListResult{Sessions: rows, Count: len(rows)}
}

// ContinueSession runs a Continue pass ("scan more").
func (a *App) ContinueSession(ctx context.Context, id string) (session.Status, error) {
	s, err := a.lookup(id)
	if err != nil {
		return session.Status{}, err
	}
	return a.settle(s, s.ContinueScan(ctx))
}

// RestartSession discards results and rescans from page 1.
func (a *App) RestartSession(ctx context.Context, id string) (session.Status, error) {
	s, err := a.lookup(id)
	if err != nil {
		return session.Status{}, err
	}
	return a.settle(s, s.StartScan(ctx))
}

// SetSessionKeywords replaces the keyword set, superseding any running pass.
func (a *App) SetSessionKeywords(ctx context.Context, id string, keywords []string) (session.Status, error) {
	s, err := a.lookup(id)
	if err != nil {
		return session.Status{}, err
	}
	return a.settle(s, s.SetKeywords(ctx, keywords))
}

// SetSessionFilter changes the source filter and rescans.
func (a *App) SetSessionFilter(ctx context.Context, id, sourceFilter string) (session.Status, error) {
	s, err := a.lookup(id)
	if err != nil {
		return session.Status{}, err
	}
	return a.settle(s, s.SetSourceFilter(ctx, sourceFilter))
}

// DeleteSession cancels and forgets a session.
func (a *App) DeleteSession(id string) error {
	a.mu.Lock()
	s, ok := a.sessions[id]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(a.sessions, id)
	activeSessions.Set(float64(len(a.sessions)))
	err := a.Store.DeleteSession(id)
	a.mu.Unlock()

	s.Close()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	a.log.Info().Str("session", id).Msg("session deleted")
	return nil
}

// Context returns the chat around one message.
func (a *App) Context(ctx context.Context, recordingID string, offset int) (socket.ContextResult, error) {
	if a.Sources.Context == nil {
		return socket.ContextResult{}, fmt.Errorf("context: %w", ErrUnsupported)
	}
	msgs, err := a.Sources.Context.FetchContext(ctx, recordingID, offset)
	if err != nil {
		return socket.ContextResult{}, fmt.Errorf("fetch context: %w", err)
	}
	return socket.ContextResult{RecordingID: recordingID, Offset: offset, Messages: msgs, Count: len(msgs)}, nil
}

// Streamers lists recording owners for picking a source filter.
func (a *App) Streamers(ctx context.Context) (socket.StreamersResult, error) {
	if a.Sources.Directory == nil {
		return socket.StreamersResult{}, fmt.Errorf("streamers: %w", ErrUnsupported)
	}
	list, err := a.Sources.Directory.ListStreamers(ctx)
	if err != nil {
		return socket.StreamersResult{}, fmt.Errorf("list streamers: %w", err)
	}
	return socket.StreamersResult{Streamers: list, Count: len(list)}, nil
}

// Health reports liveness and registry counts.
func (a *App) Health() socket.HealthResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	scanning := 0
	for _, s := range a.sessions {
		if s.Scanning() {
			scanning++
		}
	}
	return socket.HealthResult{
		Status:   "ok",
		Corpus:   a.Sources.Name,
		Sessions: len(a.sessions),
		Scanning: scanning,
		Uptime:   time.Since(a.started).Round(time.Second).String(),
	}
}

// settle folds a page-fetch failure into the returned status; the session
// has already recorded it as LastError.
func (a *App) settle(s *session.Session, err error) (session.Status, error) {
	if errors.Is(err, scan.ErrFetch) {
		a.log.Warn().Err(err).Str("session", s.ID()).Msg("scan failed")
		err = nil
	}
	return s.Status(), err
}
