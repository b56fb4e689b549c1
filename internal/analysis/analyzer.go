// Package analysis runs the discovery pipeline: fetch results for a keyword
// batch, rank the competing domains and persist the run.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/keywords"
	"github.com/ramonehamilton/competitor-discovery/internal/logger"
	"github.com/ramonehamilton/competitor-discovery/internal/metrics"
	"github.com/ramonehamilton/competitor-discovery/internal/ranking"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// Defaults for Request. Depth and MinAppearances fall back when zero;
// MaxResults 0 means unlimited, so callers apply DefaultMaxResults themselves.
const (
	DefaultDepth          = serp.MaxDepth
	DefaultMinAppearances = 1
	DefaultMaxResults     = 50
)

// ErrNoResults is returned when no keyword produced a single result row.
var ErrNoResults = errors.New("no search results found")

// RunStore persists finished runs.
type RunStore interface {
	CreateRun(ctx context.Context, run models.NewRun) (int64, error)
}

// Request describes one analysis.
type Request struct {
	Keywords       []string
	Depth          int
	MinAppearances int
	MaxResults     int
	Engine         string
	Notes          string
	Save           bool
}

// Outcome is the result of an analysis. RunID is 0 when the run was not saved.
type Outcome struct {
	RunID       int64
	Report      *ranking.Report
	FetchErrors map[string]error
	Duration    time.Duration
}

// Options configures an Analyzer.
type Options struct {
	// Normalizer overrides the public-suffix based default.
	Normalizer *domain.Normalizer

	// Exclude removes platforms from every ranking.
	Exclude domain.ExcludeList

	// Metrics receives pipeline measurements. Nil creates a private collector.
	Metrics *metrics.PipelineMetrics
}

// Analyzer wires a result source, the aggregator and the run store.
type Analyzer struct {
	source     serp.Source
	store      RunStore
	aggregator *ranking.Aggregator
	exclude    domain.ExcludeList
	metrics    *metrics.PipelineMetrics
}

// NewAnalyzer creates an Analyzer. source may be nil when only Aggregate is
// used; store may be nil when runs are never saved.
func NewAnalyzer(source serp.Source, store RunStore, opts Options) *Analyzer {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewPipelineMetrics()
	}
	return &Analyzer{
		source:     source,
		store:      store,
		aggregator: ranking.NewAggregator(opts.Normalizer),
		exclude:    opts.Exclude,
		metrics:    opts.Metrics,
	}
}

// HasSource reports whether Run can fetch results.
func (a *Analyzer) HasSource() bool {
	return a.source != nil
}

// Metrics returns the analyzer's collector.
func (a *Analyzer) Metrics() *metrics.PipelineMetrics {
	return a.metrics
}

// Run validates the keywords, fetches results for each of them, then ranks
// and optionally saves the run. Keywords that fail to fetch are reported in
// Outcome.FetchErrors and count as empty.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Outcome, error) {
	if a.source == nil {
		return nil, fmt.Errorf("analyzer has no result source")
	}

	start := time.Now()
	log := logger.FromContext(ctx)

	kws, err := keywords.Validate(ctx, req.Keywords)
	if err != nil {
		return nil, err
	}
	req.Keywords = kws
	req = withDefaults(req)
	if req.Engine == "" {
		req.Engine = a.source.Name()
	}

	log.Info("Fetching search results",
		zap.Int("keywords", len(kws)),
		zap.Int("depth", req.Depth),
		zap.String("source", a.source.Name()),
	)

	batch, err := serp.FetchAll(ctx, &instrumentedSource{Source: a.source, metrics: a.metrics}, kws, req.Depth)
	if err != nil {
		a.metrics.RecordRun(metrics.StatusError, time.Since(start), 0)
		return nil, err
	}

	outcome, err := a.aggregate(ctx, req, batch.Results, start)
	if outcome != nil {
		outcome.FetchErrors = batch.Errors
	}
	return outcome, err
}

// Aggregate ranks already fetched results. Keywords are validated the same
// way as in Run; result keys are matched case-insensitively.
func (a *Analyzer) Aggregate(ctx context.Context, req Request, results map[string][]serp.Result) (*Outcome, error) {
	kws, err := keywords.Validate(ctx, req.Keywords)
	if err != nil {
		return nil, err
	}
	req.Keywords = kws
	req = withDefaults(req)

	normalized := make(map[string][]serp.Result, len(results))
	for kw, rows := range results {
		key := keywords.Canonical(kw)
		normalized[key] = append(normalized[key], rows...)
	}

	return a.aggregate(ctx, req, normalized, time.Now())
}

func (a *Analyzer) aggregate(ctx context.Context, req Request, results map[string][]serp.Result, start time.Time) (*Outcome, error) {
	log := logger.FromContext(ctx)

	report, err := a.aggregator.Aggregate(req.Keywords, results, ranking.Options{
		Depth:          req.Depth,
		MinAppearances: req.MinAppearances,
		MaxResults:     req.MaxResults,
		Exclude:        a.exclude,
	})
	if err != nil {
		a.metrics.RecordRun(metrics.StatusError, time.Since(start), 0)
		return nil, err
	}

	if report.TotalRows == 0 {
		a.metrics.RecordRun(metrics.StatusNoResults, time.Since(start), 0)
		return nil, ErrNoResults
	}

	scored := report.TotalRows - report.DroppedRows - report.ExcludedRows
	a.metrics.RecordRows(scored, report.DroppedRows, report.ExcludedRows)

	if len(report.EmptyKeywords) > 0 {
		log.Warn("Keywords without usable results", zap.Strings("keywords", report.EmptyKeywords))
	}
	log.Info("Ranked competitors",
		zap.Int("competitors", len(report.Scores)),
		zap.Int("rows", report.TotalRows),
		zap.Int("dropped_rows", report.DroppedRows),
		zap.Int("excluded_rows", report.ExcludedRows),
		zap.String("top_competitor", report.Summary.TopCompetitor),
	)

	outcome := &Outcome{Report: report}

	if req.Save {
		if a.store == nil {
			a.metrics.RecordRun(metrics.StatusError, time.Since(start), 0)
			return nil, fmt.Errorf("analyzer has no run store")
		}

		id, err := a.store.CreateRun(ctx, models.NewRun{
			Keywords:       report.Keywords,
			Depth:          req.Depth,
			MinAppearances: req.MinAppearances,
			Engine:         req.Engine,
			Notes:          req.Notes,
			DroppedRows:    report.DroppedRows,
			DomainScores:   report.Scores,
		})
		if err != nil {
			a.metrics.RecordRun(metrics.StatusError, time.Since(start), 0)
			log.Error("Failed to save analysis run", zap.Error(err))
			return nil, fmt.Errorf("save run: %w", err)
		}
		outcome.RunID = id
		log.Info("Saved analysis run", zap.Int64("run_id", id))
	}

	outcome.Duration = time.Since(start)
	a.metrics.RecordRun(metrics.StatusOK, outcome.Duration, len(report.Scores))

	return outcome, nil
}

// withDefaults fills zero fields and clamps Depth to serp.MaxDepth.
// A negative Depth is left for the aggregator to reject.
func withDefaults(req Request) Request {
	if req.Depth == 0 {
		req.Depth = DefaultDepth
	}
	if req.Depth > serp.MaxDepth {
		req.Depth = serp.MaxDepth
	}
	if req.MinAppearances <= 0 {
		req.MinAppearances = DefaultMinAppearances
	}
	if req.MaxResults < 0 {
		req.MaxResults = 0
	}
	return req
}

// instrumentedSource records every fetch in the pipeline metrics.
type instrumentedSource struct {
	serp.Source
	metrics *metrics.PipelineMetrics
}

func (s *instrumentedSource) Fetch(ctx context.Context, keyword string, depth int) ([]serp.Result, error) {
	start := time.Now()
	rows, err := s.Source.Fetch(ctx, keyword, depth)
	s.metrics.RecordFetch(s.Source.Name(), time.Since(start), err)
	return rows, err
}
