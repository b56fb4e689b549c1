package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/api/response"
	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/export"
	"github.com/ramonehamilton/competitor-discovery/internal/logger"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// RunStore is the subset of storage.Service the run handlers use.
type RunStore interface {
	GetRun(ctx context.Context, id int64) (*models.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error)
	DeleteRun(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*models.StoreStats, error)
	DomainHistory(ctx context.Context, domain string, limit int) ([]*models.DomainHistoryEntry, error)
}

// RunHandler handles stored-run API requests.
type RunHandler struct {
	store      RunStore
	normalizer *domain.Normalizer
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(store RunStore) *RunHandler {
	return &RunHandler{store: store, normalizer: domain.NewNormalizer(nil)}
}

// ListRuns returns run summaries, newest first.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		response.InternalError(w, err)
		return
	}

	response.List(w, runs)
}

// GetRun returns a single run with its full domain table.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := runIDParam(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	response.Success(w, run)
}

// DeleteRun removes a run and its scores.
func (h *RunHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id, err := runIDParam(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	if err := h.store.DeleteRun(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	response.NoContent(w)
}

// ExportRun streams a run's domain table as CSV or JSON. ?summary=true
// exports the one-row summary instead; ?rank=true adds a rank column.
func (h *RunHandler) ExportRun(w http.ResponseWriter, r *http.Request) {
	id, err := runIDParam(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	format := export.FormatCSV
	if f := r.URL.Query().Get("format"); f != "" {
		if format, err = export.ParseFormat(f); err != nil {
			response.BadRequest(w, err)
			return
		}
	}

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var table *export.Table
	prefix := fmt.Sprintf("run_%d", run.ID)
	if boolParam(r, "summary") {
		table = export.SummaryRows(run)
		prefix += "_summary"
	} else {
		var opts []export.TableOption
		if boolParam(r, "rank") {
			opts = append(opts, export.WithRank())
		}
		table = export.RowsFromRun(run, opts...)
	}

	filename := prefix + "." + string(format)
	switch format {
	case export.FormatJSON:
		response.Attachment(w, filename, "application/json")
		err = export.WriteJSON(w, table, false)
	default:
		response.Attachment(w, filename, "text/csv; charset=utf-8")
		err = export.WriteCSV(w, table)
	}
	if err != nil {
		// Headers are already sent.
		logger.FromContext(r.Context()).Warn("Export response failed", zap.Int64("run_id", run.ID), zap.Error(err))
	}
}

// GetStats returns store-wide statistics.
func (h *RunHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		response.InternalError(w, err)
		return
	}

	response.Success(w, stats)
}

// GetDomainHistory returns how a domain ranked across runs. The path value
// may be a URL or host; it is reduced to its root domain first.
func (h *RunHandler) GetDomainHistory(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "domain")
	if raw == "" {
		response.BadRequest(w, errors.New("domain is required"))
		return
	}

	root, err := h.normalizer.Normalize(raw)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	limit, err := limitParam(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	history, err := h.store.DomainHistory(r.Context(), root, limit)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	if history == nil {
		history = []*models.DomainHistoryEntry{}
	}

	response.Success(w, map[string]any{
		"domain":  root,
		"history": history,
	})
}

func runIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "runID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid run id %q", raw)
	}
	return id, nil
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return v
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		response.NotFound(w, err)
		return
	}
	response.InternalError(w, err)
}
