package resilient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatscan",
			Subsystem: "source",
			Name:      "fetch_total",
			Help:      "Page fetches by final outcome (ok, error, cancelled).",
		},
		[]string{"source", "outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatscan",
			Subsystem: "source",
			Name:      "retries_total",
			Help:      "Page fetch attempts that were retried after a transient failure.",
		},
		[]string{"source"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatscan",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of a single page fetch attempt.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)
