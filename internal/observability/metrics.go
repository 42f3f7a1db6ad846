// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	SignaturePagesFetched prometheus.Counter
	TransactionsFetched   prometheus.Counter
	BatchFetchFailures    prometheus.Counter
	UpstreamErrors        *prometheus.CounterVec

	// Parser metrics
	TradesParsed  *prometheus.CounterVec
	TradesSkipped *prometheus.CounterVec

	// Pricing metrics
	PriceCacheHits     prometheus.Counter
	PriceCacheMisses   prometheus.Counter
	PriceUpstreamCalls prometheus.Counter
	PriceUnavailable   prometheus.Counter
	PriceCoverage      prometheus.Gauge

	// Snapshot metrics
	SnapshotsComputed  *prometheus.CounterVec
	SnapshotsStale     prometheus.Counter
	SnapshotIncomplete prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	PositionsBuilt    prometheus.Gauge

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_pnl"
	}

	return &Metrics{
		// Ingestion metrics
		SignaturePagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signature_pages_fetched_total",
			Help:      "Total number of signature pages fetched",
		}),
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_fetched_total",
			Help:      "Total number of enriched transactions fetched",
		}),
		BatchFetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batch_fetch_failures_total",
			Help:      "Total number of transaction batches that failed after retries",
		}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "upstream_errors_total",
			Help:      "Total number of upstream errors by kind",
		}, []string{"kind"}),

		// Parser metrics
		TradesParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "trades_parsed_total",
			Help:      "Total number of trades parsed by source",
		}, []string{"source"}),
		TradesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "trades_skipped_total",
			Help:      "Total number of transactions skipped by reason",
		}, []string{"reason"}),

		// Pricing metrics
		PriceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_hits_total",
			Help:      "Total number of price cache hits",
		}),
		PriceCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_misses_total",
			Help:      "Total number of price cache misses",
		}),
		PriceUpstreamCalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "upstream_calls_total",
			Help:      "Total number of price lookups that reached a source chain",
		}),
		PriceUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "unavailable_total",
			Help:      "Total number of lookups where no source produced a price",
		}),
		PriceCoverage: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "coverage_ratio",
			Help:      "Share of open positions with a usable price in the last run",
		}),

		// Snapshot metrics
		SnapshotsComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "computed_total",
			Help:      "Total number of snapshot computations by status",
		}, []string{"status"}),
		SnapshotsStale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "stale_served_total",
			Help:      "Total number of stale snapshots served after a failed recompute",
		}),
		SnapshotIncomplete: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "incomplete_total",
			Help:      "Total number of snapshots built from a partial history",
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of extraction runs by status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Extraction run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		PositionsBuilt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "positions_built",
			Help:      "Number of positions produced by the last run",
		}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful extraction run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordUpstreamError records an upstream error by kind.
func RecordUpstreamError(kind string) {
	DefaultMetrics.UpstreamErrors.WithLabelValues(kind).Inc()
}
