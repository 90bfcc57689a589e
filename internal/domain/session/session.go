// Package session holds the state of one incremental keyword search and the
// operations a presentation layer drives it with.
//
// A Session owns its keyword set, source filter, grouped results, cursor and
// exhaustion flag. At most one scan pass runs at a time: StartScan and
// ContinueScan calls that arrive while a pass is in flight are dropped, not
// queued. Keyword and filter edits are different: they supersede an
// in-flight pass (cancel it, discard its results) and start a fresh one.
package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/corey/chatscan/internal/domain/aggregate"
	"github.com/corey/chatscan/internal/domain/scan"
	"github.com/corey/chatscan/internal/ports"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by scan operations on a closed session.
var ErrClosed = errors.New("session closed")

// Runner executes scan passes. *scan.Controller implements it.
type Runner interface {
	RunPass(ctx context.Context, req scan.PassRequest, exhausted bool, onProgress func(scan.Progress)) (scan.PassResult, error)
}

// Status is a point-in-time view of a session, volatile flags included.
type Status struct {
	ports.SessionSnapshot
	Scanning     bool   `json:"scanning"`
	Progress     string `json:"progress,omitempty"`
	TotalMatches int    `json:"total_matches"`
	CanContinue  bool   `json:"can_continue"`
}

// Session is a single search. Safe for concurrent use.
type Session struct {
	id     string
	runner Runner
	log    zerolog.Logger
	now    func() time.Time

	life       context.Context
	lifeCancel context.CancelFunc

	mu        sync.Mutex
	keywords  []string
	filter    string
	groups    []ports.RecordingGroup
	cursor    ports.Cursor
	exhausted bool
	searched  bool
	lastErr   string
	updatedAt time.Time
	closed    bool

	// single-flight guard and the handles of the pass holding it
	scanning   bool
	progress   string
	gen        uint64 // bumped by every reset; a pass only applies results of its own generation
	passCancel context.CancelFunc
	passDone   chan struct{}

	onChange func(ports.SessionSnapshot)
}

// New creates an empty, idle session.
func New(id string, runner Runner) *Session {
	life, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		runner:     runner,
		log:        zerolog.Nop(),
		now:        time.Now,
		life:       life,
		lifeCancel: cancel,
		groups:     []ports.RecordingGroup{},
		cursor:     ports.NewCursor(""),
	}
}

// Restore rebuilds a session from a persisted snapshot. Whatever the
// snapshot says, the restored session is idle with no progress line.
func Restore(snap *ports.SessionSnapshot, runner Runner) *Session {
	s := New(snap.ID, runner)
	s.keywords = NormalizeKeywords(snap.Keywords)
	s.filter = snap.SourceFilter
	if snap.Groups != nil {
		s.groups = snap.Groups
	}
	s.cursor = snap.Cursor
	if s.cursor.StartPage <= 0 {
		s.cursor.StartPage = 1
	}
	s.exhausted = snap.Exhausted
	s.searched = snap.Searched
	s.lastErr = snap.LastError
	s.updatedAt = snap.UpdatedAt
	return s
}

// SetLogger attaches a logger. The default discards everything.
func (s *Session) SetLogger(l zerolog.Logger) {
	s.log = l.With().Str("session", s.id).Logger()
}

// SetOnChange registers a callback invoked with a fresh snapshot after every
// completed pass and every state mutation. It runs outside the session lock.
func (s *Session) SetOnChange(fn func(ports.SessionSnapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// NormalizeKeywords trims and lower-cases keywords, dropping blanks and
// duplicates while preserving first-seen order.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || slices.Contains(out, kw) {
			continue
		}
		out = append(out, kw)
	}
	return out
}

// SetKeywords replaces the keyword set. A non-empty set starts a fresh scan;
// an empty one clears results without fetching anything.
func (s *Session) SetKeywords(ctx context.Context, keywords []string) error {
	norm := NormalizeKeywords(keywords)
	if err := s.supersede(ctx, func() { s.keywords = norm }); err != nil {
		return err
	}
	if len(norm) == 0 {
		s.notify()
		return nil
	}
	return s.StartScan(ctx)
}

// AddKeyword appends one keyword. Blank or already present keywords are ignored.
func (s *Session) AddKeyword(ctx context.Context, keyword string) error {
	kw := NormalizeKeywords([]string{keyword})
	current := s.Keywords()
	if len(kw) == 0 || slices.Contains(current, kw[0]) {
		return nil
	}
	return s.SetKeywords(ctx, append(current, kw[0]))
}

// RemoveKeyword drops one keyword. Removing an absent keyword is a no-op.
func (s *Session) RemoveKeyword(ctx context.Context, keyword string) error {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	current := s.Keywords()
	idx := slices.Index(current, kw)
	if idx < 0 {
		return nil
	}
	return s.SetKeywords(ctx, slices.Delete(current, idx, idx+1))
}

// SetSourceFilter changes the recording-owner constraint ("" = none) and
// starts a fresh scan.
func (s *Session) SetSourceFilter(ctx context.Context, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if err := s.supersede(ctx, func() { s.filter = ownerID }); err != nil {
		return err
	}
	return s.StartScan(ctx)
}

// StartScan resets results and runs an Initial pass.
//
// A call made while a pass is in flight is a no-op. With no keywords the
// results are cleared and nothing is fetched.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.scanning {
		s.mu.Unlock()
		s.log.Debug().Msg("start dropped: scan in flight")
		return nil
	}

	s.resetLocked()
	if len(s.keywords) == 0 {
		s.mu.Unlock()
		s.notify()
		return nil
	}

	s.searched = true
	req := scan.PassRequest{Mode: scan.Initial, Keywords: slices.Clone(s.keywords), Cursor: s.cursor}
	passCtx := s.acquireLocked(ctx)
	gen := s.gen
	s.mu.Unlock()

	return s.runPass(passCtx, req, false, gen)
}

// ContinueScan fetches one more page from the stored cursor and merges its
// matches into the existing groups.
//
// No-op while a pass is in flight, once the corpus is exhausted, with no
// keywords, or before any scan has run.
func (s *Session) ContinueScan(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.scanning {
		s.mu.Unlock()
		s.log.Debug().Msg("continue dropped: scan in flight")
		return nil
	}
	if s.exhausted || len(s.keywords) == 0 || !s.searched {
		s.mu.Unlock()
		return nil
	}

	req := scan.PassRequest{Mode: scan.Continue, Keywords: slices.Clone(s.keywords), Cursor: s.cursor}
	exhausted := s.exhausted
	passCtx := s.acquireLocked(ctx)
	gen := s.gen
	s.mu.Unlock()

	return s.runPass(passCtx, req, exhausted, gen)
}

// Close cancels any in-flight pass. Partial results already merged stay;
// no further pages are requested. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.lifeCancel()
}

// Wait blocks until no pass is in flight or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.passDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquireLocked takes the single-flight guard and returns the pass context,
// cancelled by the caller's ctx, a superseding edit, or Close.
func (s *Session) acquireLocked(ctx context.Context) context.Context {
	passCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	s.scanning = true
	s.passCancel = func() {
		stop()
		cancel()
	}
	s.passDone = make(chan struct{})
	return passCtx
}

func (s *Session) runPass(ctx context.Context, req scan.PassRequest, exhausted bool, gen uint64) error {
	defer s.release()

	log := s.log.With().Str("mode", req.Mode.String()).Int("from_page", req.Cursor.LastScannedPage).Logger()
	res, err := s.runner.RunPass(ctx, req, exhausted, func(p scan.Progress) {
		s.mu.Lock()
		if s.gen == gen {
			s.progress = p.Message
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Debug().Msg("pass superseded, results discarded")
		return nil
	}
	s.cursor = res.Cursor
	s.exhausted = res.Exhausted
	if len(res.Matches) > 0 {
		s.groups = aggregate.Merge(s.groups, res.Matches, req.Mode == scan.Continue)
	}
	s.updatedAt = s.now()
	switch {
	case err == nil:
		s.lastErr = ""
	case errors.Is(err, scan.ErrFetch):
		s.lastErr = err.Error()
	}
	total := aggregate.TotalMatches(s.groups)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, scan.ErrFetch) {
			log.Warn().Err(err).Int("pages", res.PagesFetched).Msg("scan pass failed")
		} else {
			log.Debug().Err(err).Int("pages", res.PagesFetched).Msg("scan pass cancelled")
		}
		return err
	}
	log.Debug().
		Int("pages", res.PagesFetched).
		Int("new_matches", len(res.Matches)).
		Int("total_matches", total).
		Bool("exhausted", res.Exhausted).
		Msg("scan pass done")
	return nil
}

// release clears the single-flight guard. Deferred by runPass so a failing
// or panicking pass cannot leave the session locked.
func (s *Session) release() {
	s.mu.Lock()
	s.scanning = false
	s.progress = ""
	if s.passCancel != nil {
		s.passCancel()
	}
	s.passCancel = nil
	done := s.passDone
	s.passDone = nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	s.notify()
}

// supersede applies an edit, invalidates any in-flight pass and waits for it
// to release the guard.
func (s *Session) supersede(ctx context.Context, edit func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	edit()
	s.resetLocked()
	cancel, done := s.passCancel, s.passDone
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resetLocked clears results and rewinds the cursor for the current filter.
func (s *Session) resetLocked() {
	s.gen++
	s.groups = []ports.RecordingGroup{}
	s.cursor = ports.NewCursor(s.filter)
	s.exhausted = false
	s.searched = false
	s.lastErr = ""
	s.progress = ""
	s.updatedAt = s.now()
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.Snapshot())
	}
}

// Snapshot returns the durable part of the session state.
func (s *Session) Snapshot() ports.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() ports.SessionSnapshot {
	// groups is replaced wholesale by Merge and never mutated in place, so
	// sharing the slice with the snapshot is safe.
	return ports.SessionSnapshot{
		ID:           s.id,
		Keywords:     slices.Clone(s.keywords),
		SourceFilter: s.filter,
		Groups:       s.groups,
		Cursor:       s.cursor,
		Exhausted:    s.exhausted,
		Searched:     s.searched,
		LastError:    s.lastErr,
		UpdatedAt:    s.updatedAt,
	}
}

// Status returns the full view, volatile flags included.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionSnapshot: s.snapshotLocked(),
		Scanning:        s.scanning,
		Progress:        s.progress,
		TotalMatches:    aggregate.TotalMatches(s.groups),
		CanContinue:     !s.exhausted,
	}
}

// Groups returns the current grouped results. The slice must not be modified.
func (s *Session) Groups() []ports.RecordingGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups
}

// TotalMatches sums the sizes of all groups.
func (s *Session) TotalMatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.TotalMatches(s.groups)
}

// CanContinue reports whether the server may have more pages.
func (s *Session) CanContinue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.exhausted
}

// Scanning reports whether a pass is in flight.
func (s *Session) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Exhausted reports whether the server said there are no further pages.
func (s *Session) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// Progress returns the human-readable progress line of the in-flight pass.
func (s *Session) Progress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Keywords returns a copy of the active keyword set.
func (s *Session) Keywords() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.keywords)
}

// SourceFilter returns the active recording-owner filter.
func (s *Session) SourceFilter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Cursor returns the resumption cursor.
func (s *Session) Cursor() ports.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// LastError returns the message of the last failed pass, or "".
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
