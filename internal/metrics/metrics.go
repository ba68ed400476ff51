// Package metrics holds the Prometheus collectors. Collectors are built at
// package init so any package can record into them; Register exposes them.
package metrics

import (
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_votes_total",
			Help: "Ballots written, by category and outcome (created, updated, unchanged).",
		},
		[]string{"category", "outcome"},
	)

	VoteRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_vote_rejections_total",
			Help: "Rejected vote submissions, by error code.",
		},
		[]string{"code"},
	)

	MatchupsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_matchups_created_total",
			Help: "Matchups created, by source (manual, seed).",
		},
		[]string{"source"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_result_cache_hits_total",
			Help: "Result cache hits, by endpoint.",
		},
		[]string{"endpoint"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_result_cache_misses_total",
			Help: "Result cache misses, by endpoint.",
		},
		[]string{"endpoint"},
	)

	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_aggregation_duration_seconds",
			Help:    "Time spent recomputing an aggregate on cache miss.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PairingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_pairing_runs_total",
			Help: "Scheduled pairing batches, by result.",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. pool may be nil when
// running on the in-memory store. Safe to call more than once.
func Register(pool *pgxpool.Pool) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			VotesTotal,
			VoteRejections,
			MatchupsCreated,
			RequestDuration,
			RequestsInFlight,
			CacheHits,
			CacheMisses,
			AggregationDuration,
			PairingRuns,
		)

		if pool == nil {
			return
		}

		// DB pool gauges read live stats from pgxpool
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "arena_db_connection_pool_active",
					Help: "Number of active database connections.",
				},
				func() float64 { return float64(pool.Stat().AcquiredConns()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "arena_db_connection_pool_idle",
					Help: "Number of idle database connections.",
				},
				func() float64 { return float64(pool.Stat().IdleConns()) },
			),
		)
	})
}
