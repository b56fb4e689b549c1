package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/ramonehamilton/competitor-discovery/internal/analysis"
	"github.com/ramonehamilton/competitor-discovery/internal/api/response"
	"github.com/ramonehamilton/competitor-discovery/internal/keywords"
	"github.com/ramonehamilton/competitor-discovery/internal/ranking"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// Pipeline is the subset of analysis.Analyzer the analyze handler uses.
type Pipeline interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Outcome, error)
	Aggregate(ctx context.Context, req analysis.Request, results map[string][]serp.Result) (*analysis.Outcome, error)
	HasSource() bool
}

// AnalyzeHandler runs analyses on request.
type AnalyzeHandler struct {
	pipeline Pipeline
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(pipeline Pipeline) *AnalyzeHandler {
	return &AnalyzeHandler{pipeline: pipeline}
}

// AnalyzeRequest represents a request to analyze a keyword batch. When
// Results is set the supplied rows are ranked as-is; otherwise they are
// fetched from the configured source.
type AnalyzeRequest struct {
	Keywords       []string                 `json:"keywords"`
	Depth          int                      `json:"depth,omitempty"`
	MinAppearances int                      `json:"min_appearances,omitempty"`
	MaxResults     int                      `json:"max_results,omitempty"`
	Engine         string                   `json:"engine,omitempty"`
	Notes          string                   `json:"notes,omitempty"`
	Save           *bool                    `json:"save,omitempty"` // default true
	Results        map[string][]serp.Result `json:"results,omitempty"`
}

// AnalyzeResponse is the outcome of an analysis.
type AnalyzeResponse struct {
	RunID         int64                `json:"run_id,omitempty"`
	Keywords      []string             `json:"keywords"`
	Scores        []models.DomainScore `json:"scores"`
	TotalRows     int                  `json:"total_rows"`
	DroppedRows   int                  `json:"dropped_rows"`
	ExcludedRows  int                  `json:"excluded_rows"`
	EmptyKeywords []string             `json:"empty_keywords"`
	FetchErrors   map[string]string    `json:"fetch_errors,omitempty"`
	Summary       ranking.Summary      `json:"summary"`
	DurationMs    int64                `json:"duration_ms"`
}

// Analyze ranks competitors for a keyword batch and stores the run unless
// save is false.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}
	if len(req.Keywords) == 0 {
		response.BadRequest(w, errors.New("keywords are required"))
		return
	}

	areq := analysis.Request{
		Keywords:       req.Keywords,
		Depth:          req.Depth,
		MinAppearances: req.MinAppearances,
		MaxResults:     req.MaxResults,
		Engine:         req.Engine,
		Notes:          req.Notes,
		Save:           req.Save == nil || *req.Save,
	}

	var (
		outcome *analysis.Outcome
		err     error
	)
	switch {
	case req.Results != nil:
		if areq.Engine == "" {
			areq.Engine = "inline"
		}
		outcome, err = h.pipeline.Aggregate(r.Context(), areq, req.Results)
	case h.pipeline.HasSource():
		outcome, err = h.pipeline.Run(r.Context(), areq)
	default:
		response.BadRequest(w, errors.New("results are required: no search source is configured"))
		return
	}
	if err != nil {
		writeAnalysisError(w, err)
		return
	}

	resp := newAnalyzeResponse(outcome)
	if outcome.RunID > 0 {
		response.Created(w, resp)
		return
	}
	response.Success(w, resp)
}

func newAnalyzeResponse(o *analysis.Outcome) *AnalyzeResponse {
	report := o.Report
	resp := &AnalyzeResponse{
		RunID:         o.RunID,
		Keywords:      report.Keywords,
		Scores:        report.Scores,
		TotalRows:     report.TotalRows,
		DroppedRows:   report.DroppedRows,
		ExcludedRows:  report.ExcludedRows,
		EmptyKeywords: report.EmptyKeywords,
		Summary:       report.Summary,
		DurationMs:    o.Duration.Milliseconds(),
	}
	if resp.Scores == nil {
		resp.Scores = []models.DomainScore{}
	}
	if resp.EmptyKeywords == nil {
		resp.EmptyKeywords = []string{}
	}

	if len(o.FetchErrors) > 0 {
		resp.FetchErrors = make(map[string]string, len(o.FetchErrors))
		kws := make([]string, 0, len(o.FetchErrors))
		for kw := range o.FetchErrors {
			kws = append(kws, kw)
		}
		sort.Strings(kws)
		for _, kw := range kws {
			resp.FetchErrors[kw] = o.FetchErrors[kw].Error()
		}
	}
	return resp
}

func writeAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keywords.ErrNoKeywords),
		errors.Is(err, ranking.ErrInvalidDepth),
		errors.Is(err, analysis.ErrNoResults):
		response.BadRequest(w, err)
	default:
		response.InternalError(w, err)
	}
}
