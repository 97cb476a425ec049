package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Business metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayd_active_sessions",
		Help: "Number of channels with a running timed session",
	})

	UsageRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayd_usage_records_total",
		Help: "Total usage records appended to the ledger",
	})

	BilledAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayd_billed_amount_total",
		Help: "Total billed amount in currency minor units",
	})

	AggregationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayd_aggregation_runs_total",
		Help: "Total monthly aggregation runs",
	}, []string{"status"})

	// Infrastructure metrics
	LedgerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relayd_ledger_latency_seconds",
		Help:    "Latency of ledger appends and scans",
		Buckets: prometheus.DefBuckets,
	})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relayd_aggregation_duration_seconds",
		Help:    "Duration of full aggregation runs",
		Buckets: prometheus.DefBuckets,
	})
)
