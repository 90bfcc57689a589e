package cmd

import (
	"context"
	"fmt"

	"github.com/corey/chatscan/internal/adapters/fsnotify"
	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/corey/chatscan/internal/app"
	"github.com/corey/chatscan/internal/config"
	"github.com/corey/chatscan/internal/domain/session"
	"github.com/rs/zerolog"
)

// backend is what the commands talk to: the daemon when it is up, an
// in-process app otherwise.
type backend interface {
	CreateSession(ctx context.Context, keywords []string, sourceFilter string) (session.Status, error)
	Session(id string) (session.Status, error)
	Sessions() (socket.SessionListResult, error)
	Continue(ctx context.Context, id string) (session.Status, error)
	Restart(ctx context.Context, id string) (session.Status, error)
	SetKeywords(ctx context.Context, id string, keywords []string) (session.Status, error)
	SetFilter(ctx context.Context, id, sourceFilter string) (session.Status, error)
	Delete(id string) error
	Context(ctx context.Context, recordingID string, offset int) (socket.ContextResult, error)
	Streamers(ctx context.Context) (socket.StreamersResult, error)
	WatchKeywords(ctx context.Context, id, path string, onUpdate func(session.Status)) error
	Close()
}

// openBackend connects to the daemon for cfg, falling back to an in-process
// app over the same session database.
func openBackend(cfg *config.Config, log zerolog.Logger) (backend, error) {
	client := socket.NewClient(socket.SocketPath(cfg.Store.DBPath))
	if client.Ping() {
		return &daemonBackend{client: client, log: log}, nil
	}

	a, err := app.NewFromConfig(cfg, log)
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("%s", diagnoseDBLock(cfg.Store.DBPath))
		}
		return nil, fmt.Errorf("init: %w", err)
	}
	return &localBackend{app: a}, nil
}

// localBackend runs sessions inside the CLI process.
type localBackend struct {
	app *app.App
}

func (b *localBackend) CreateSession(ctx context.Context, keywords []string, sourceFilter string) (session.Status, error) {
	return b.app.CreateSession(ctx, keywords, sourceFilter)
}

func (b *localBackend) Session(id string) (session.Status, error) {
	return b.app.SessionStatus(id)
}

func (b *localBackend) Sessions() (socket.SessionListResult, error) {
	return b.app.SessionList(), nil
}

func (b *localBackend) Continue(ctx context.Context, id string) (session.Status, error) {
	return b.app.ContinueSession(ctx, id)
}

func (b *localBackend) Restart(ctx context.Context, id string) (session.Status, error) {
	return b.app.RestartSession(ctx, id)
}

func (b *localBackend) SetKeywords(ctx context.Context, id string, keywords []string) (session.Status, error) {
	return b.app.SetSessionKeywords(ctx, id, keywords)
}

func (b *localBackend) SetFilter(ctx context.Context, id, sourceFilter string) (session.Status, error) {
	return b.app.SetSessionFilter(ctx, id, sourceFilter)
}

func (b *localBackend) Delete(id string) error {
	return b.app.DeleteSession(id)
}

func (b *localBackend) Context(ctx context.Context, recordingID string, offset int) (socket.ContextResult, error) {
	return b.app.Context(ctx, recordingID, offset)
}

func (b *localBackend) Streamers(ctx context.Context) (socket.StreamersResult, error) {
	return b.app.Streamers(ctx)
}

func (b *localBackend) WatchKeywords(ctx context.Context, id, path string, onUpdate func(session.Status)) error {
	return b.app.WatchKeywordFile(ctx, id, path, onUpdate)
}

func (b *localBackend) Close() {
	b.app.Close()
}

// daemonBackend forwards every call over the daemon socket. The daemon owns
// cancellation of its passes, so ctx only bounds the keyword watch.
type daemonBackend struct {
	client *socket.Client
	log    zerolog.Logger
}

func deref[T any](v *T, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return *v, nil
}

func (b *daemonBackend) CreateSession(_ context.Context, keywords []string, sourceFilter string) (session.Status, error) {
	return deref(b.client.CreateSession(keywords, sourceFilter))
}

func (b *daemonBackend) Session(id string) (session.Status, error) {
	return deref(b.client.Session(id))
}

func (b *daemonBackend) Sessions() (socket.SessionListResult, error) {
	return deref(b.client.Sessions())
}

func (b *daemonBackend) Continue(_ context.Context, id string) (session.Status, error) {
	return deref(b.client.Continue(id))
}

func (b *daemonBackend) Restart(_ context.Context, id string) (session.Status, error) {
	return deref(b.client.Restart(id))
}

func (b *daemonBackend) SetKeywords(_ context.Context, id string, keywords []string) (session.Status, error) {
	return deref(b.client.SetKeywords(id, keywords))
}

func (b *daemonBackend) SetFilter(_ context.Context, id, sourceFilter string) (session.Status, error) {
	return deref(b.client.SetFilter(id, sourceFilter))
}

func (b *daemonBackend) Delete(id string) error {
	return b.client.DeleteSession(id)
}

func (b *daemonBackend) Context(_ context.Context, recordingID string, offset int) (socket.ContextResult, error) {
	return deref(b.client.Context(recordingID, offset))
}

func (b *daemonBackend) Streamers(_ context.Context) (socket.StreamersResult, error) {
	return deref(b.client.Streamers())
}

func (b *daemonBackend) WatchKeywords(ctx context.Context, id, path string, onUpdate func(session.Status)) error {
	if _, err := b.client.Session(id); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	set := func(_ context.Context, keywords []string) (session.Status, error) {
		return deref(b.client.SetKeywords(id, keywords))
	}
	return app.FollowKeywordFile(ctx, w, path, set, onUpdate, b.log)
}

func (b *daemonBackend) Close() {}
