package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Run outcomes reported to RecordRun.
const (
	StatusOK        = "ok"
	StatusNoResults = "no_results"
	StatusError     = "error"
)

// PipelineMetrics records analysis activity. Every recording goes to the
// prometheus collectors and to in-process counters read by Stats.
type PipelineMetrics struct {
	FetchLatency    *Histogram
	AnalysisLatency *Histogram

	runs        atomic.Uint64
	failedRuns  atomic.Uint64
	fetches     atomic.Uint64
	fetchErrors atomic.Uint64
	rowsScored  atomic.Uint64
	rowsDropped atomic.Uint64

	mu        sync.RWMutex
	startTime time.Time
}

// PipelineStats is a point-in-time view of PipelineMetrics.
type PipelineStats struct {
	FetchLatency     LatencyStats `json:"fetch_latency"`
	AnalysisLatency  LatencyStats `json:"analysis_latency"`
	Runs             uint64       `json:"runs"`
	FailedRuns       uint64       `json:"failed_runs"`
	Fetches          uint64       `json:"fetches"`
	FetchErrors      uint64       `json:"fetch_errors"`
	FetchSuccessRate float64      `json:"fetch_success_rate"` // percentage
	RowsScored       uint64       `json:"rows_scored"`
	RowsDropped      uint64       `json:"rows_dropped"`
	Uptime           string       `json:"uptime"`
}

// NewPipelineMetrics creates a collector.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		FetchLatency:    NewHistogram(1000),
		AnalysisLatency: NewHistogram(200),
		startTime:       time.Now(),
	}
}

// RecordFetch records one keyword fetch.
func (m *PipelineMetrics) RecordFetch(source string, d time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
		m.fetchErrors.Add(1)
	}
	m.fetches.Add(1)
	m.FetchLatency.Record(d)

	fetchRequestsTotal.WithLabelValues(source, status).Inc()
	fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordRows records how the rows of one aggregation were used.
func (m *PipelineMetrics) RecordRows(scored, dropped, excluded int) {
	m.rowsScored.Add(uint64(scored))
	m.rowsDropped.Add(uint64(dropped))

	resultRowsTotal.WithLabelValues("scored").Add(float64(scored))
	resultRowsTotal.WithLabelValues("dropped").Add(float64(dropped))
	resultRowsTotal.WithLabelValues("excluded").Add(float64(excluded))
}

// RecordRun records a finished analysis.
func (m *PipelineMetrics) RecordRun(status string, d time.Duration, competitors int) {
	m.runs.Add(1)
	if status != StatusOK {
		m.failedRuns.Add(1)
	}
	m.AnalysisLatency.Record(d)

	analysisRunsTotal.WithLabelValues(status).Inc()
	analysisDuration.Observe(d.Seconds())
	if status == StatusOK {
		competitorsGauge.Set(float64(competitors))
	}
}

// Stats returns a snapshot of the in-process counters.
func (m *PipelineMetrics) Stats() *PipelineStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fetches := m.fetches.Load()
	fetchErrors := m.fetchErrors.Load()

	successRate := 0.0
	if fetches > 0 {
		successRate = float64(fetches-fetchErrors) / float64(fetches) * 100
	}

	return &PipelineStats{
		FetchLatency:     m.FetchLatency.Stats(),
		AnalysisLatency:  m.AnalysisLatency.Stats(),
		Runs:             m.runs.Load(),
		FailedRuns:       m.failedRuns.Load(),
		Fetches:          fetches,
		FetchErrors:      fetchErrors,
		FetchSuccessRate: successRate,
		RowsScored:       m.rowsScored.Load(),
		RowsDropped:      m.rowsDropped.Load(),
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
	}
}

// Reset clears the in-process counters. Prometheus collectors are cumulative
// and are not affected.
func (m *PipelineMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchLatency.Reset()
	m.AnalysisLatency.Reset()
	m.runs.Store(0)
	m.failedRuns.Store(0)
	m.fetches.Store(0)
	m.fetchErrors.Store(0)
	m.rowsScored.Store(0)
	m.rowsDropped.Store(0)
	m.startTime = time.Now()
}
