// Package metrics defines the Prometheus metric collectors for the
// verification pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	CheckRequestsTotal     *prometheus.CounterVec
	CheckLatency           *prometheus.HistogramVec
	StageLatency           *prometheus.HistogramVec
	CandidateCount         *prometheus.HistogramVec
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	DocsIndexedTotal       prometheus.Counter
	DocsSkippedTotal       prometheus.Counter
	SnapshotLoadsTotal     *prometheus.CounterVec
	CollaboratorCallsTotal *prometheus.CounterVec
	IndexedDocuments       prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		CheckRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "check_requests_total",
				Help: "Total article check requests by outcome (match, no_match, error).",
			},
			[]string{"outcome"},
		),
		CheckLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "check_latency_seconds",
				Help:    "End-to-end article check latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"cache_status"},
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_latency_seconds",
				Help:    "Latency per pipeline stage (prefilter, lexical, cross, fuse).",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),
		CandidateCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_candidates",
				Help:    "Number of candidates surviving each pipeline stage.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"stage"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_cache_hits_total",
				Help: "Total number of verdict cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_cache_misses_total",
				Help: "Total number of verdict cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total trusted documents indexed.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_skipped_total",
				Help: "Documents skipped during bulk indexing due to per-document failures.",
			},
		),
		SnapshotLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_loads_total",
				Help: "Index snapshot load attempts by status (ok, malformed, mismatch).",
			},
			[]string{"status"},
		),
		CollaboratorCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collaborator_calls_total",
				Help: "Calls to external NLP collaborators by service and status.",
			},
			[]string{"collaborator", "status"},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexed_documents",
				Help: "Number of documents in the currently served snapshot.",
			},
		),
	}

	prometheus.MustRegister(
		m.CheckRequestsTotal,
		m.CheckLatency,
		m.StageLatency,
		m.CandidateCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.SnapshotLoadsTotal,
		m.CollaboratorCallsTotal,
		m.IndexedDocuments,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
