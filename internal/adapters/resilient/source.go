// Package resilient wraps a ports.PageSource with caller-side retry and rate
// limiting. The scan controller never retries on its own; this decorator is
// where that policy lives.
package resilient

import (
	"context"
	"errors"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/corey/chatscan/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Defaults applied to zero Options fields.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// Options configures retry and rate limiting.
type Options struct {
	Name            string        // metrics label; "" = "default"
	MaxAttempts     int           // total attempts per fetch, including the first
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // cap on a single backoff delay
	RatePerSecond   float64       // fetch attempts per second; 0 = unlimited
	Burst           int           // limiter burst; 0 = 1
	Logger          zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = DefaultInitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultMaxInterval
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	return o
}

// Source is a retrying, rate-limited ports.PageSource.
type Source struct {
	next    ports.PageSource
	opts    Options
	limiter *rate.Limiter
}

// New wraps next.
func New(next ports.PageSource, opts Options) *Source {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Source{
		next:    next,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
	}
}

// FetchPage implements ports.PageSource. Transient failures are retried with
// exponential backoff; client errors (4xx other than 408 and 429) and
// cancellation are returned at once.
func (s *Source) FetchPage(ctx context.Context, filter ports.Filter, page, pageSize int) (ports.Page, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.InitialInterval
	exp.MaxInterval = s.opts.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.opts.MaxAttempts-1)), ctx)

	var result ports.Page
	op := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		p, err := s.next.FetchPage(ctx, filter, page, pageSize)
		fetchDuration.WithLabelValues(s.opts.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			if !Retryable(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(s.opts.Name).Inc()
		s.opts.Logger.Warn().Err(err).Int("page", page).Dur("wait", wait).Msg("page fetch failed, retrying")
	}

	err := backoff.RetryNotify(op, policy, notify)
	switch {
	case err == nil:
		fetchTotal.WithLabelValues(s.opts.Name, "ok").Inc()
	case ctx.Err() != nil:
		fetchTotal.WithLabelValues(s.opts.Name, "cancelled").Inc()
	default:
		fetchTotal.WithLabelValues(s.opts.Name, "error").Inc()
	}
	if err != nil {
		return ports.Page{}, err
	}
	return result, nil
}

// Retryable reports whether a fetch error is worth another attempt.
// Errors carrying an HTTP status are retryable for 5xx, 408 and 429 only.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		switch {
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
			return true
		case code >= 400 && code < 500:
			return false
		}
	}
	return true
}
