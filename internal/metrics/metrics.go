// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TMDBRequests counts upstream TMDB calls by endpoint and outcome (ok, error, cancelled, rejected).
	TMDBRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_requests_total",
		Help: "Total TMDB API requests",
	}, []string{"endpoint", "outcome"})

	// TMDBRequestDuration tracks upstream latency.
	TMDBRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tmdb_request_duration_seconds",
		Help:    "TMDB API request latency",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})

	// CircuitBreakerState is 0=closed, 1=open, 2=half-open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	// DetailSubFetchFailures counts detail sub-fetches that degraded to their default.
	DetailSubFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detail_subfetch_failures_total",
		Help: "Detail aggregation sub-fetches that failed and were replaced by defaults",
	}, []string{"part"})

	// StaleSelectionsDiscarded counts detail results dropped because a newer selection superseded them.
	StaleSelectionsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detail_stale_results_discarded_total",
		Help: "Detail aggregation results discarded for a superseded selection",
	})

	// CacheLookups counts Redis cache lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Response cache lookups",
	}, []string{"result"})

	// StoreWriteFailures counts failed watchlist/profile writes.
	StoreWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_write_failures_total",
		Help: "Failed persistence store writes",
	}, []string{"op"})

	// ActiveSessions is the number of open viewer sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_sessions_active",
		Help: "Open viewer sessions",
	})
)
