package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ramonehamilton/competitor-discovery/internal/api/handlers"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	systemHandler := handlers.NewSystemHandler(s.store, s.metrics, s.version)

	// Unversioned endpoints
	s.router.Get("/health", systemHandler.Health)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		runHandler := handlers.NewRunHandler(s.store)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", runHandler.ListRuns)
			r.Get("/{runID}", runHandler.GetRun)
			r.Delete("/{runID}", runHandler.DeleteRun)
			r.Get("/{runID}/export", runHandler.ExportRun)
		})

		r.Get("/stats", runHandler.GetStats)
		r.Get("/domains/{domain}/history", runHandler.GetDomainHistory)
		r.Get("/pipeline/stats", systemHandler.GetPipelineStats)

		if s.pipeline != nil {
			analyzeHandler := handlers.NewAnalyzeHandler(s.pipeline)
			r.Post("/analyze", analyzeHandler.Analyze)
		}
	})
}
