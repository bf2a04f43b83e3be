// Package metrics holds the process-wide Prometheus collectors for ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradeloader"

var (
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_fetched_total",
		Help:      "Pages returned by a source.",
	}, []string{"source"})

	TradesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_written_total",
		Help:      "Trades accepted by the writer.",
	}, []string{"source"})

	TradesHeldBack = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_held_back_total",
		Help:      "Trades at a page boundary deferred to the next fetch.",
	}, []string{"source"})

	RunErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_errors_total",
		Help:      "Errors by kind: transport, conversion, empty_page, write, state_parse, overflow, caught_up, canceled, other.",
	}, []string{"source", "kind"})

	LastAdvance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_advance_timestamp_seconds",
		Help:      "Unix time of the last persisted cursor advance.",
	}, []string{"source"})

	FetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Latency of source page fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	SourceUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_running",
		Help:      "1 while a supervised source is inside a run.",
	}, []string{"source"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuitbreaker_state",
		Help:      "Circuit breaker state per source client (0 closed, 1 half-open, 2 open).",
	}, []string{"source"})
)
