// Package api serves stored runs and on-demand analysis over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/api/handlers"
	"github.com/ramonehamilton/competitor-discovery/internal/logger"
	"github.com/ramonehamilton/competitor-discovery/internal/metrics"
)

// Server represents the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	addr       string
	timeout    time.Duration
	origins    []string
	log        *zap.Logger

	store    Store
	pipeline handlers.Pipeline
	metrics  *metrics.PipelineMetrics
	version  string
}

// Store is everything the API needs from the run store.
type Store interface {
	handlers.RunStore
	handlers.Pinger
}

// Config holds configuration for the API server.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	CORSOrigins    []string
	Version        string
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "127.0.0.1:8080",
		RequestTimeout: 60 * time.Second,
		CORSOrigins:    []string{"http://localhost:*", "http://127.0.0.1:*"},
		Version:        "dev",
	}
}

// Dependencies holds the services the API exposes. Pipeline and Metrics may
// be nil, which disables POST /analyze and pipeline stats respectively.
type Dependencies struct {
	Store    Store
	Pipeline handlers.Pipeline
	Metrics  *metrics.PipelineMetrics
	Logger   *zap.Logger
}

// NewServer creates a new API server.
func NewServer(cfg *Config, deps Dependencies) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		router:   chi.NewRouter(),
		addr:     cfg.Addr,
		timeout:  cfg.RequestTimeout,
		origins:  cfg.CORSOrigins,
		log:      log,
		store:    deps.Store,
		pipeline: deps.Pipeline,
		metrics:  deps.Metrics,
		version:  cfg.Version,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	// Request ID for tracing
	s.router.Use(middleware.RequestID)

	// Real IP detection
	s.router.Use(middleware.RealIP)

	// Request-scoped zap logger
	s.router.Use(s.loggerMiddleware)

	// Panic recovery
	s.router.Use(middleware.Recoverer)

	// Request timeout
	s.router.Use(middleware.Timeout(s.timeout))

	// Prometheus request metrics
	s.router.Use(metrics.Middleware())

	// CORS configuration
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Content-Type enforcement for POST only
	s.router.Use(jsonContentTypeMiddleware)
}

// loggerMiddleware attaches a request logger to the context and logs each
// request once it completes.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := s.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logger.ContextWithLogger(r.Context(), reqLog)))

		reqLog.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// jsonContentTypeMiddleware enforces application/json content-type for requests with bodies.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && !strings.HasPrefix(contentType, "application/json;") {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the address the server is configured to listen on.
func (s *Server) Addr() string {
	return s.addr
}

// Start starts the API server in a goroutine. Listen errors are sent on the
// returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.log.Info("API server starting", zap.String("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server error", zap.Error(err))
			errCh <- fmt.Errorf("listen on %s: %w", s.addr, err)
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.log.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
