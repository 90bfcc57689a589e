package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	fsw "github.com/corey/chatscan/internal/adapters/fsnotify"
	"github.com/corey/chatscan/internal/domain/session"
	"github.com/corey/chatscan/internal/ports"
	"github.com/rs/zerolog"
)

// ParseKeywordFile reads a keyword list: one or more keywords per line,
// separated by commas. Blank lines and lines starting with # are ignored.
func ParseKeywordFile(data string) []string {
	var out []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.Split(line, ",")...)
	}
	return session.NormalizeKeywords(out)
}

// SetKeywordsFunc replaces a session's keyword set and returns its status.
type SetKeywordsFunc func(ctx context.Context, keywords []string) (session.Status, error)

// FollowKeywordFile applies the contents of path through set now and after
// every save reported by w, until ctx is done. onUpdate, if non-nil, sees
// the status after every applied change. w is stopped on return.
//
// One worker applies saves in order. A save cancels the apply in flight and
// queues a single re-read, so the last contents written always win.
func FollowKeywordFile(ctx context.Context, w ports.Watcher, path string, set SetKeywordsFunc, onUpdate func(session.Status), log zerolog.Logger) error {
	apply := func(ctx context.Context, file string) {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("read keyword file")
			return
		}
		kws := ParseKeywordFile(string(data))
		st, err := set(ctx, kws)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("file", file).Msg("apply keyword file")
			}
			return
		}
		log.Info().Str("session", st.ID).Strs("keywords", kws).Msg("keywords reloaded")
		if onUpdate != nil {
			onUpdate(st)
		}
	}

	var (
		mu          sync.Mutex
		closed      bool
		cancelApply context.CancelFunc = func() {}
	)
	pending := make(chan string, 1)
	enqueue := func(file string) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		cancelApply()
		select {
		case pending <- file:
		default: // a re-read is already queued
		}
	}

	if err := w.Watch(path, enqueue); err != nil {
		w.Stop()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case file := <-pending:
				mu.Lock()
				applyCtx, cancel := context.WithCancel(ctx)
				cancelApply = cancel
				mu.Unlock()
				apply(applyCtx, file)
				cancel()
			}
		}
	}()

	if _, err := os.Stat(path); err == nil {
		enqueue(path)
	}
	<-ctx.Done()
	mu.Lock()
	closed = true
	mu.Unlock()
	w.Stop()
	<-done
	return nil
}

// WatchKeywordFile follows path for session id until ctx is done. Each
// change supersedes whatever pass is running.
func (a *App) WatchKeywordFile(ctx context.Context, id, path string, onUpdate func(session.Status)) error {
	if _, err := a.lookup(id); err != nil {
		return err
	}
	w, err := fsw.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	return FollowKeywordFile(ctx, w, path, a.keywordSetter(id), onUpdate, a.log)
}

func (a *App) keywordSetter(id string) SetKeywordsFunc {
	return func(ctx context.Context, keywords []string) (session.Status, error) {
		return a.SetSessionKeywords(ctx, id, keywords)
	}
}
