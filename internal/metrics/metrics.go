// Package metrics exposes collector instrumentation via Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchesTotal counts upstream fetch attempts by outcome.
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyscope",
		Name:      "fetches_total",
		Help:      "Upstream state fetches by outcome.",
	}, []string{"outcome"})

	// FetchDuration observes upstream fetch latency.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skyscope",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of upstream state fetches.",
		Buckets:   prometheus.DefBuckets,
	})

	// TrackedAircraft reports the size of the latest snapshot.
	TrackedAircraft = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyscope",
		Name:      "tracked_aircraft",
		Help:      "Aircraft in the most recent snapshot.",
	})

	// RateLimitRemaining reports the last known request quota.
	RateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyscope",
		Name:      "rate_limit_remaining",
		Help:      "Remaining upstream requests from the last response headers.",
	})

	// SnapshotsStored counts snapshots written to the database.
	SnapshotsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyscope",
		Name:      "snapshots_stored_total",
		Help:      "Snapshots persisted to the database.",
	})
)

// Outcome labels for FetchesTotal.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeUpstream    = "upstream_error"
	OutcomeTransport   = "transport_error"
)

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
