package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/competitor-discovery/internal/analysis"
	"github.com/ramonehamilton/competitor-discovery/internal/keywords"
	"github.com/ramonehamilton/competitor-discovery/internal/ranking"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// mockRunStore is a mock implementation of RunStore for testing.
type mockRunStore struct {
	run         *models.AnalysisRun
	runs        []*models.RunSummary
	stats       *models.StoreStats
	history     []*models.DomainHistoryEntry
	err         error
	lastLimit   int
	lastDomain  string
	deletedRuns []int64
}

func (m *mockRunStore) GetRun(_ context.Context, id int64) (*models.AnalysisRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.run == nil || m.run.ID != id {
		return nil, fmt.Errorf("%w: %d", storage.ErrNotFound, id)
	}
	return m.run, nil
}

func (m *mockRunStore) ListRuns(_ context.Context, limit int) ([]*models.RunSummary, error) {
	m.lastLimit = limit
	return m.runs, m.err
}

func (m *mockRunStore) DeleteRun(_ context.Context, id int64) error {
	m.deletedRuns = append(m.deletedRuns, id)
	return m.err
}

func (m *mockRunStore) Stats(_ context.Context) (*models.StoreStats, error) {
	return m.stats, m.err
}

func (m *mockRunStore) DomainHistory(_ context.Context, domain string, limit int) ([]*models.DomainHistoryEntry, error) {
	m.lastDomain = domain
	m.lastLimit = limit
	return m.history, m.err
}

// mockPipeline is a mock implementation of Pipeline for testing.
type mockPipeline struct {
	outcome   *analysis.Outcome
	err       error
	hasSource bool
	lastReq   analysis.Request
	ranLive   bool
}

func (m *mockPipeline) Run(_ context.Context, req analysis.Request) (*analysis.Outcome, error) {
	m.lastReq = req
	m.ranLive = true
	return m.outcome, m.err
}

func (m *mockPipeline) Aggregate(_ context.Context, req analysis.Request, _ map[string][]serp.Result) (*analysis.Outcome, error) {
	m.lastReq = req
	return m.outcome, m.err
}

func (m *mockPipeline) HasSource() bool { return m.hasSource }

func sampleRun() *models.AnalysisRun {
	return &models.AnalysisRun{
		ID:        3,
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Keywords:  []string{"nike shoes"},
		DomainScores: []models.DomainScore{
			{Domain: "nike.com", Appearances: 1, WeightedScore: 20, KeywordFlags: map[string]int{"nike shoes": 1}},
		},
	}
}

func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestRunHandler_GetRun(t *testing.T) {
	tests := []struct {
		name       string
		runID      string
		store      *mockRunStore
		wantStatus int
	}{
		{"found", "3", &mockRunStore{run: sampleRun()}, http.StatusOK},
		{"missing", "4", &mockRunStore{run: sampleRun()}, http.StatusNotFound},
		{"not a number", "abc", &mockRunStore{}, http.StatusBadRequest},
		{"zero", "0", &mockRunStore{}, http.StatusBadRequest},
		{"storage failure", "3", &mockRunStore{err: fmt.Errorf("%w: boom", storage.ErrStorage)}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRunHandler(tt.store)
			req := withURLParams(httptest.NewRequest(http.MethodGet, "/runs/"+tt.runID, nil), map[string]string{"runID": tt.runID})
			rec := httptest.NewRecorder()

			h.GetRun(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRunHandler_ListRunsLimit(t *testing.T) {
	store := &mockRunStore{runs: []*models.RunSummary{{ID: 1}}}
	h := NewRunHandler(store)

	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, store.lastLimit)

	rec = httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=100000", nil))
	assert.Equal(t, maxListLimit, store.lastLimit)

	rec = httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=-2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHandler_ExportRun(t *testing.T) {
	h := NewRunHandler(&mockRunStore{run: sampleRun()})

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/runs/3/export?format=json", nil), map[string]string{"runID": "3"})
	rec := httptest.NewRecorder()
	h.ExportRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"domain":"nike.com","appearances":1,"weighted_score":20,"kw_nike_shoes":1}]`, rec.Body.String())
}

func TestRunHandler_ExportSummary(t *testing.T) {
	h := NewRunHandler(&mockRunStore{run: sampleRun()})

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/runs/3/export?summary=true", nil), map[string]string{"runID": "3"})
	rec := httptest.NewRecorder()
	h.ExportRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "run_3_summary.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "run_id,analysis_date"))
}

func TestRunHandler_ExportRejectsFormat(t *testing.T) {
	h := NewRunHandler(&mockRunStore{run: sampleRun()})

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/runs/3/export?format=xml", nil), map[string]string{"runID": "3"})
	rec := httptest.NewRecorder()
	h.ExportRun(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHandler_DomainHistoryNormalizes(t *testing.T) {
	store := &mockRunStore{}
	h := NewRunHandler(store)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/domains/x/history?limit=5", nil), map[string]string{"domain": "shop.example.co.uk"})
	rec := httptest.NewRecorder()
	h.GetDomainHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "example.co.uk", store.lastDomain)
	assert.Equal(t, 5, store.lastLimit)

	req = withURLParams(httptest.NewRequest(http.MethodGet, "/domains/x/history", nil), map[string]string{"domain": "localhost"})
	rec = httptest.NewRecorder()
	h.GetDomainHistory(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no keywords", keywords.ErrNoKeywords, http.StatusBadRequest},
		{"bad depth", ranking.ErrInvalidDepth, http.StatusBadRequest},
		{"no results", analysis.ErrNoResults, http.StatusBadRequest},
		{"storage", fmt.Errorf("save run: %w", storage.ErrStorage), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAnalyzeHandler(&mockPipeline{err: tt.err, hasSource: true})
			rec := httptest.NewRecorder()
			h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"keywords":["nike shoes"]}`)))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAnalyzeHandler_LiveRunDefaults(t *testing.T) {
	p := &mockPipeline{
		hasSource: true,
		outcome: &analysis.Outcome{
			Report:      &ranking.Report{Keywords: []string{"nike shoes"}},
			FetchErrors: map[string]error{"nike shoes": errors.New("blocked")},
		},
	}
	h := NewAnalyzeHandler(p)

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"keywords":["nike shoes"],"depth":5}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, p.ranLive)
	assert.True(t, p.lastReq.Save)
	assert.Equal(t, 5, p.lastReq.Depth)
	assert.Contains(t, rec.Body.String(), `"fetch_errors":{"nike shoes":"blocked"}`)
	assert.Contains(t, rec.Body.String(), `"scores":[]`)
}

func TestAnalyzeHandler_BadBody(t *testing.T) {
	h := NewAnalyzeHandler(&mockPipeline{})

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"keywords":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystemHandler_PipelineStatsWithoutMetrics(t *testing.T) {
	h := NewSystemHandler(nil, nil, "test")

	rec := httptest.NewRecorder()
	h.GetPipelineStats(rec, httptest.NewRequest(http.MethodGet, "/pipeline/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestRunHandler_DomainHistoryUnknownDomain(t *testing.T) {
	h := NewRunHandler(&mockRunStore{})

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/domains/x/history", nil), map[string]string{"domain": "nike.com"})
	rec := httptest.NewRecorder()
	h.GetDomainHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"domain":"nike.com","history":[]}}`, rec.Body.String())
}

func TestRunHandler_ListRunsEmpty(t *testing.T) {
	h := NewRunHandler(&mockRunStore{})

	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"count":0}`, rec.Body.String())
}

func TestRunHandler_DeleteRun(t *testing.T) {
	store := &mockRunStore{}
	h := NewRunHandler(store)

	rec := httptest.NewRecorder()
	h.DeleteRun(rec, withURLParams(httptest.NewRequest(http.MethodDelete, "/runs/7", nil), map[string]string{"runID": "7"}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{7}, store.deletedRuns)

	store.err = fmt.Errorf("%w: 8", storage.ErrNotFound)
	rec = httptest.NewRecorder()
	h.DeleteRun(rec, withURLParams(httptest.NewRequest(http.MethodDelete, "/runs/8", nil), map[string]string{"runID": "8"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
