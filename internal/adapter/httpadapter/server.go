package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// ProgressSource reports how far the theater run has come.
type ProgressSource interface {
	CountPending(ctx context.Context) (int64, error)
	LastBatchStats(ctx context.Context) (domain.BatchStats, bool, error)
}

// ProgressResponse is the body of GET /progress.
type ProgressResponse struct {
	Pending   int64              `json:"pending"`
	LastBatch *domain.BatchStats `json:"last_batch"`
}

// Server exposes health, readiness and metrics endpoints, plus run progress
// when a ProgressSource is attached, while a long-running command works.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics routes.
// /readyz succeeds only when every checker is ready.
func NewServer(addr string, logger *slog.Logger, checkers ...sharedobs.ReadinessChecker) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(allReady(checkers)))
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:    mux,
		logger: logger,
	}
}

// WithProgress adds GET /progress backed by src. Call before Start.
func (s *Server) WithProgress(src ProgressSource) *Server {
	s.mux.HandleFunc("GET /progress", s.progressHandler(src))
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP lets tests drive the routes without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) progressHandler(src ProgressSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp ProgressResponse
		pending, err := src.CountPending(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Pending = pending

		last, ok, err := src.LastBatchStats(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if ok {
			resp.LastBatch = &last
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Warn("progress query failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type allReady []sharedobs.ReadinessChecker

func (a allReady) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
