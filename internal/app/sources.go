package app

import (
	"fmt"

	"github.com/corey/chatscan/internal/adapters/drf"
	"github.com/corey/chatscan/internal/adapters/resilient"
	"github.com/corey/chatscan/internal/adapters/sqlite"
	"github.com/corey/chatscan/internal/config"
	"github.com/corey/chatscan/internal/domain/scan"
	"github.com/corey/chatscan/internal/ports"
	"github.com/rs/zerolog"
)

// Sources bundles the corpus capabilities a driver provides. Only Pages is
// required; Context and Directory may be nil.
type Sources struct {
	Name      string
	Pages     ports.PageSource
	Context   ports.ContextSource
	Directory ports.Directory
	Close     func() error
}

// OpenSources builds the corpus for the configured driver. Page fetches go
// through the retrying decorator; the remote API is also rate limited.
func OpenSources(cfg config.CorpusConfig, log zerolog.Logger) (Sources, error) {
	switch cfg.Driver {
	case config.DriverDRF, "":
		client := drf.New(drf.Config{
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
			UserAgent: "chatscan",
		})
		pages := resilient.New(client, resilient.Options{
			Name:          config.DriverDRF,
			MaxAttempts:   cfg.RetryAttempts,
			RatePerSecond: cfg.RateLimit,
			Burst:         cfg.Burst,
			Logger:        log.With().Str("component", "corpus").Logger(),
		})
		return Sources{
			Name:      config.DriverDRF,
			Pages:     pages,
			Context:   client,
			Directory: client,
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return Sources{}, fmt.Errorf("open corpus mirror: %w", err)
		}
		// local reads only fail on SQLITE_BUSY, so no rate limit
		pages := resilient.New(store, resilient.Options{
			Name:        config.DriverSQLite,
			MaxAttempts: cfg.RetryAttempts,
			Logger:      log.With().Str("component", "corpus").Logger(),
		})
		return Sources{
			Name:      config.DriverSQLite,
			Pages:     pages,
			Context:   store,
			Directory: store,
			Close:     store.Close,
		}, nil

	default:
		return Sources{}, fmt.Errorf("unknown corpus driver %q", cfg.Driver)
	}
}

// NewFromConfig opens the configured corpus and builds an App over it.
func NewFromConfig(cfg *config.Config, log zerolog.Logger) (*App, error) {
	sources, err := OpenSources(cfg.Corpus, log)
	if err != nil {
		return nil, err
	}
	a, err := New(Config{
		DBPath:   cfg.Store.DBPath,
		HTTPPort: cfg.Server.HTTPPort,
		Scan: scan.Options{
			PageSize:   cfg.Scan.PageSize,
			BatchPages: cfg.Scan.BatchPages,
			MaxPages:   cfg.Scan.MaxPages,
		},
		Threshold: cfg.Scan.Threshold,
		Sources:   sources,
		Logger:    log,
	})
	if err != nil {
		if sources.Close != nil {
			sources.Close()
		}
		return nil, err
	}
	return a, nil
}
