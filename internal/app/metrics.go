package app

import (
	"context"
	"errors"

	"github.com/corey/chatscan/internal/domain/scan"
	"github.com/corey/chatscan/internal/domain/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatscan_scan_passes_total",
		Help: "Scan passes by mode and outcome.",
	}, []string{"mode", "outcome"})

	pagesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatscan_pages_scanned_total",
		Help: "Corpus pages fetched and evaluated by scan passes.",
	})

	matchesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatscan_matches_found_total",
		Help: "Messages admitted by the match evaluator.",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatscan_active_sessions",
		Help: "Sessions currently held by the registry.",
	})
)

// instrumentedRunner counts passes, pages and matches around a scan runner.
type instrumentedRunner struct {
	next session.Runner
}

func (r *instrumentedRunner) RunPass(ctx context.Context, req scan.PassRequest, exhausted bool, onProgress func(scan.Progress)) (scan.PassResult, error) {
	res, err := r.next.RunPass(ctx, req, exhausted, onProgress)

	outcome := "ok"
	switch {
	case errors.Is(err, scan.ErrFetch):
		outcome = "fetch_error"
	case err != nil:
		outcome = "cancelled"
	}
	scanPasses.WithLabelValues(req.Mode.String(), outcome).Inc()
	pagesScanned.Add(float64(res.PagesFetched))
	matchesFound.Add(float64(len(res.Matches)))
	return res, err
}
