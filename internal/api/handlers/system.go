package handlers

import (
	"context"
	"net/http"

	"github.com/ramonehamilton/competitor-discovery/internal/api/response"
	"github.com/ramonehamilton/competitor-discovery/internal/metrics"
)

// Pinger reports whether the run store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health and pipeline status.
type SystemHandler struct {
	store   Pinger
	metrics *metrics.PipelineMetrics
	version string
}

// NewSystemHandler creates a new SystemHandler. metrics may be nil.
func NewSystemHandler(store Pinger, m *metrics.PipelineMetrics, version string) *SystemHandler {
	return &SystemHandler{store: store, metrics: m, version: version}
}

// Health reports whether the service and its database are up.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			response.ServiceUnavailable(w, err)
			return
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "competitor-discovery-api",
		"version": h.version,
	})
}

// GetPipelineStats returns in-process pipeline counters and latencies.
func (h *SystemHandler) GetPipelineStats(w http.ResponseWriter, _ *http.Request) {
	if h.metrics == nil {
		response.Success(w, metrics.NewPipelineMetrics().Stats())
		return
	}
	response.Success(w, h.metrics.Stats())
}
