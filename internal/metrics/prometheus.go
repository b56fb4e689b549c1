// Package metrics exposes prometheus collectors for the analysis pipeline and
// the HTTP API, plus in-process latency statistics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "competitor_discovery"

var (
	analysisRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by outcome",
		},
		[]string{"status"}, // "ok" / "no_results" / "error"
	)

	analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	fetchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serp_fetch_total",
			Help:      "Per-keyword result fetches by source and outcome",
		},
		[]string{"source", "status"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "serp_fetch_duration_seconds",
			Help:      "Per-keyword fetch duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	resultRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_rows_total",
			Help:      "Result rows aggregated, by disposition",
		},
		[]string{"disposition"}, // "scored" / "dropped" / "excluded"
	)

	competitorsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_competitors",
			Help:      "Ranked competitors in the most recent analysis",
		},
	)
)

func init() {
	prometheus.MustRegister(
		analysisRunsTotal,
		analysisDuration,
		fetchRequestsTotal,
		fetchDuration,
		resultRowsTotal,
		competitorsGauge,
		httpRequestDuration,
		httpRequestsTotal,
	)
}
