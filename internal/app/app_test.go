package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/corey/chatscan/internal/domain/session"
	"github.com/corey/chatscan/internal/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCorpus serves fixed pages and doubles as context source and directory.
type fakeCorpus struct {
	mu    sync.Mutex
	pages [][]ports.Message
	fail  error
	calls int
}

func (f *fakeCorpus) FetchPage(ctx context.Context, filter ports.Filter, page, pageSize int) (ports.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return ports.Page{}, f.fail
	}
	var msgs []ports.Message
	if page >= 1 && page <= len(f.pages) {
		for _, m := range f.pages[page-1] {
			if filter.SourceOwnerID == "" || m.RecordingOwner == filter.SourceOwnerID {
				msgs = append(msgs, m)
			}
		}
	}
	return ports.Page{Messages: msgs, HasNext: page < len(f.pages)}, nil
}

func (f *fakeCorpus) FetchContext(ctx context.Context, recordingID string, offset int) ([]ports.Message, error) {
	return []ports.Message{{ID: "ctx", RecordingID: recordingID, Offset: offset, Text: "around"}}, nil
}

func (f *fakeCorpus) ListStreamers(ctx context.Context) ([]ports.Streamer, error) {
	return []ports.Streamer{{ID: "7", Login: "streamer", DisplayName: "Streamer"}}, nil
}

func (f *fakeCorpus) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCorpus) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func msg(id, rec, owner, text string, offset int) ports.Message {
	return ports.Message{ID: id, RecordingID: rec, RecordingOwner: owner, RecordingTitle: "VOD " + rec, Text: text, Offset: offset}
}

func testCorpus() *fakeCorpus {
	return &fakeCorpus{pages: [][]ports.Message{
		{msg("m1", "r1", "7", "gg wp", 10), msg("m2", "r1", "7", "hello", 20)},
		{msg("m3", "r2", "8", "gg", 5)},
	}}
}

func newTestApp(t *testing.T, dbPath string, corpus *fakeCorpus) *App {
	t.Helper()
	a, err := New(Config{
		DBPath:  dbPath,
		Sources: Sources{Name: "fake", Pages: corpus, Context: corpus, Directory: corpus},
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return a
}

func TestNew_RequiresDBAndPages(t *testing.T) {
	_, err := New(Config{Sources: Sources{Pages: testCorpus()}})
	assert.Error(t, err)

	_, err = New(Config{DBPath: filepath.Join(t.TempDir(), "s.db")})
	assert.Error(t, err)
}

func TestCreateSession_ScansAndPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	a := newTestApp(t, dbPath, testCorpus())
	defer a.Close()

	st, err := a.CreateSession(context.Background(), []string{" GG "}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, []string{"gg"}, st.Keywords)
	assert.Equal(t, 1, st.TotalMatches, "initial pass stops at the first page with a hit")
	assert.Len(t, st.Groups, 1)
	assert.False(t, st.Scanning)
	assert.False(t, st.Exhausted)
	assert.True(t, st.CanContinue)

	st, err = a.ContinueSession(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalMatches)
	assert.Len(t, st.Groups, 2)
	assert.True(t, st.Exhausted)

	snap, err := a.Store.LoadSession(st.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.TotalMatches())
	assert.Equal(t, 2, snap.Cursor.LastScannedPage)
	assert.True(t, snap.Searched)
}

func TestCreateSession_WithFilter(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), testCorpus())
	defer a.Close()

	st, err := a.CreateSession(context.Background(), []string{"gg"}, "7")
	require.NoError(t, err)
	assert.Equal(t, "7", st.SourceFilter)
	require.Len(t, st.Groups, 1)
	assert.Equal(t, "r1", st.Groups[0].RecordingID)
}

func TestCreateSession_FetchFailureRecorded(t *testing.T) {
	corpus := testCorpus()
	corpus.setFail(errors.New("connection refused"))
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), corpus)
	defer a.Close()

	st, err := a.CreateSession(context.Background(), []string{"gg"}, "")
	require.NoError(t, err, "fetch failures surface through LastError")
	assert.Contains(t, st.LastError, "connection refused")
	assert.Empty(t, st.Groups)

	// the session stays usable once the corpus recovers
	corpus.setFail(nil)
	st, err = a.RestartSession(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 1, st.TotalMatches)
}

func TestSessionsSurviveRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	a := newTestApp(t, dbPath, testCorpus())
	st, err := a.CreateSession(context.Background(), []string{"gg"}, "")
	require.NoError(t, err)
	a.Close()

	b := newTestApp(t, dbPath, testCorpus())
	defer b.Close()
	got, err := b.SessionStatus(st.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"gg"}, got.Keywords)
	assert.Equal(t, 1, got.TotalMatches)
	assert.Equal(t, 1, got.Cursor.LastScannedPage)
	assert.True(t, got.CanContinue)
	assert.False(t, got.Scanning)
	assert.Equal(t, 1, b.Health().Sessions)
}

func TestUnknownSession(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), testCorpus())
	defer a.Close()
	ctx := context.Background()

	_, err := a.SessionStatus("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = a.ContinueSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = a.RestartSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = a.SetSessionKeywords(ctx, "nope", []string{"x"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = a.SetSessionFilter(ctx, "nope", "7")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, a.DeleteSession("nope"), ErrSessionNotFound)
}

func TestSetSessionKeywordsAndFilter(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), testCorpus())
	defer a.Close()
	ctx := context.Background()

	st, err := a.CreateSession(ctx, []string{"gg"}, "")
	require.NoError(t, err)

	st, err = a.SetSessionKeywords(ctx, st.ID, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, st.Keywords)
	assert.Equal(t, 1, st.TotalMatches)

	st, err = a.SetSessionFilter(ctx, st.ID, "8")
	require.NoError(t, err)
	assert.Equal(t, "8", st.SourceFilter)
	assert.Equal(t, 0, st.TotalMatches)

	st, err = a.SetSessionKeywords(ctx, st.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, st.Keywords)
	assert.Empty(t, st.Groups)
}

func TestContinueSession_ExhaustedIsNoop(t *testing.T) {
	corpus := testCorpus()
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), corpus)
	defer a.Close()
	ctx := context.Background()

	st, err := a.CreateSession(ctx, []string{"gg"}, "")
	require.NoError(t, err)
	require.False(t, st.Exhausted)

	st, err = a.ContinueSession(ctx, st.ID)
	require.NoError(t, err)
	require.True(t, st.Exhausted)
	assert.False(t, st.CanContinue)

	before := corpus.callCount()
	st, err = a.ContinueSession(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalMatches)
	assert.Equal(t, before, corpus.callCount(), "no fetch once exhausted")
}

func TestSessionListAndDelete(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), testCorpus())
	defer a.Close()
	ctx := context.Background()

	s1, err := a.CreateSession(ctx, []string{"gg"}, "")
	require.NoError(t, err)
	_, err = a.CreateSession(ctx, []string{"hello"}, "")
	require.NoError(t, err)

	list := a.SessionList()
	assert.Equal(t, 2, list.Count)
	require.Len(t, list.Sessions, 2)
	assert.False(t, list.Sessions[0].UpdatedAt.Before(list.Sessions[1].UpdatedAt))

	require.NoError(t, a.DeleteSession(s1.ID))
	assert.Equal(t, 1, a.SessionList().Count)
	snap, err := a.Store.LoadSession(s1.ID)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestContextAndStreamers(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), testCorpus())
	defer a.Close()
	ctx := context.Background()

	c, err := a.Context(ctx, "r1", 42)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count)
	assert.Equal(t, "r1", c.RecordingID)

	s, err := a.Streamers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, "streamer", s.Streamers[0].Login)
}

func TestContextAndStreamers_Unsupported(t *testing.T) {
	a, err := New(Config{
		DBPath:  filepath.Join(t.TempDir(), "sessions.db"),
		Sources: Sources{Name: "pages-only", Pages: testCorpus()},
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Context(context.Background(), "r1", 0)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = a.Streamers(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestHealth(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), testCorpus())
	defer a.Close()

	h := a.Health()
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "fake", h.Corpus)
	assert.Equal(t, 0, h.Sessions)
	assert.Equal(t, 0, h.Scanning)
}

func TestClose_ReleasesSourcesAndRejectsScans(t *testing.T) {
	closed := false
	corpus := testCorpus()
	a, err := New(Config{
		DBPath: filepath.Join(t.TempDir(), "sessions.db"),
		Sources: Sources{Name: "fake", Pages: corpus, Close: func() error {
			closed = true
			return nil
		}},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	st, err := a.CreateSession(context.Background(), []string{"gg"}, "")
	require.NoError(t, err)
	a.Close()
	assert.True(t, closed)

	_, err = a.RestartSession(context.Background(), st.ID)
	assert.ErrorIs(t, err, session.ErrClosed)
}

func TestParseKeywordFile(t *testing.T) {
	data := "# raid keywords\nGG, pog\n\n  hello  \npog\n#gg\nwp,,\n"
	assert.Equal(t, []string{"gg", "pog", "hello", "wp"}, ParseKeywordFile(data))
	assert.Empty(t, ParseKeywordFile("# nothing\n\n"))
}

// manualWatcher lets a test fire change events by hand.
type manualWatcher struct {
	mu       sync.Mutex
	onChange func(string)
	stopped  bool
}

func (w *manualWatcher) Watch(path string, onChange func(string)) error {
	w.mu.Lock()
	w.onChange = onChange
	w.mu.Unlock()
	return nil
}

func (w *manualWatcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	return nil
}

func (w *manualWatcher) fire(path string) {
	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()
	fn(path)
}

func TestWatchKeywords_AppliesFileOnStartAndChange(t *testing.T) {
	dir := t.TempDir()
	a := newTestApp(t, filepath.Join(dir, "sessions.db"), testCorpus())
	defer a.Close()

	st, err := a.CreateSession(context.Background(), []string{"hello"}, "")
	require.NoError(t, err)

	kwFile := filepath.Join(dir, "keywords.txt")
	require.NoError(t, os.WriteFile(kwFile, []byte("gg\n"), 0644))

	updates := make(chan session.Status, 4)
	w := &manualWatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- FollowKeywordFile(ctx, w, kwFile, a.keywordSetter(st.ID), func(s session.Status) { updates <- s }, zerolog.Nop())
	}()

	select {
	case s := <-updates:
		assert.Equal(t, []string{"gg"}, s.Keywords)
		assert.Equal(t, 1, s.TotalMatches)
	case <-time.After(2 * time.Second):
		t.Fatal("initial keyword file not applied")
	}

	require.NoError(t, os.WriteFile(kwFile, []byte("hello, wp\n"), 0644))
	w.fire(kwFile)

	select {
	case s := <-updates:
		assert.Equal(t, []string{"hello", "wp"}, s.Keywords)
	case <-time.After(2 * time.Second):
		t.Fatal("keyword change not applied")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.True(t, w.stopped)
}

func TestFollowKeywordFile_LastSaveWins(t *testing.T) {
	kwFile := filepath.Join(t.TempDir(), "keywords.txt")
	require.NoError(t, os.WriteFile(kwFile, []byte("one\n"), 0644))

	var (
		mu      sync.Mutex
		applied [][]string
	)
	firstStarted := make(chan struct{})
	set := func(ctx context.Context, kws []string) (session.Status, error) {
		mu.Lock()
		first := len(applied) == 0
		applied = append(applied, kws)
		mu.Unlock()
		if first {
			// hold the first apply until a later save cancels it
			close(firstStarted)
			<-ctx.Done()
			return session.Status{}, ctx.Err()
		}
		return session.Status{SessionSnapshot: ports.SessionSnapshot{Keywords: kws}}, nil
	}
	lastApplied := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return applied[len(applied)-1]
	}

	var (
		umu  sync.Mutex
		last []string
	)
	onUpdate := func(s session.Status) {
		umu.Lock()
		last = s.Keywords
		umu.Unlock()
	}

	w := &manualWatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- FollowKeywordFile(ctx, w, kwFile, set, onUpdate, zerolog.Nop()) }()

	select {
	case <-firstStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("initial apply never started")
	}

	require.NoError(t, os.WriteFile(kwFile, []byte("two\n"), 0644))
	w.fire(kwFile)
	require.NoError(t, os.WriteFile(kwFile, []byte("three\n"), 0644))
	w.fire(kwFile)

	assert.Eventually(t, func() bool {
		umu.Lock()
		defer umu.Unlock()
		return len(last) == 1 && last[0] == "three"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not return after cancel")
	}
	assert.Equal(t, []string{"three"}, lastApplied(), "no older save applied after the newest")
	assert.True(t, w.stopped)

	// events delivered after return are dropped
	w.fire(kwFile)
}

func TestWatchKeywordFile_UnknownSession(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "sessions.db"), testCorpus())
	defer a.Close()

	err := a.WatchKeywordFile(context.Background(), "nope", "/tmp/x", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
