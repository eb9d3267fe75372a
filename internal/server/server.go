package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cwbudde/gbseg/internal/metrics"
	"github.com/cwbudde/gbseg/internal/report"
	"github.com/cwbudde/gbseg/internal/segregation"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/remote"
	"github.com/cwbudde/gbseg/internal/trace"
	"github.com/go-chi/chi/v5"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	addr       string
	server     *http.Server

	metrics *metrics.Metrics
	open    OracleFactory

	// service is exposed over the equilibrium service protocol when set.
	service thermo.Oracle

	// traceDir receives jobs/<id>/trace.jsonl per job when set.
	traceDir string

	// ctx is the parent of every job context; stop cancels running jobs.
	ctx  context.Context
	stop context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records job and oracle metrics and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithOracleFactory replaces the backend used by jobs.
func WithOracleFactory(open OracleFactory) Option {
	return func(s *Server) {
		s.open = open
	}
}

// WithOracleService serves oracle under /api/v1/oracle.
func WithOracleService(oracle thermo.Oracle) Option {
	return func(s *Server) {
		s.service = oracle
	}
}

// WithTraceDir writes a step trace for every job below dir.
func WithTraceDir(dir string) Option {
	return func(s *Server) {
		s.traceDir = dir
	}
}

// NewServer creates a new HTTP server
func NewServer(addr string, opts ...Option) *Server {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		jobManager: NewJobManager(),
		addr:       addr,
		ctx:        ctx,
		stop:       stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.open == nil {
		s.open = BackendFactory(s.metrics)
	}
	return s
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware, s.corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleCreateJob)
			r.Get("/", s.handleListJobs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJobStatus)
				r.Get("/status", s.handleGetJobStatus)
				r.Get("/series", s.handleGetSeries)
				r.Get("/stream", s.handleJobStream)
				r.Post("/cancel", s.handleCancelJob)
				r.Delete("/", s.handleCancelJob)
			})
		})
		if s.service != nil {
			r.Mount("/oracle", remote.NewHandler(s.service))
		}
	})
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func jobIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(config)

	ctx, cancel := context.WithCancel(s.ctx)
	s.jobManager.setCancel(job.ID, cancel)
	go func() {
		defer cancel()
		var observers []segregation.Observer
		if tw := s.openTrace(job.ID); tw != nil {
			defer tw.Close()
			observers = append(observers, tw.Observer())
		}
		runJob(ctx, s.jobManager, s.open, s.metrics, job.ID, observers...)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// openTrace opens the trace of a job, or returns nil when tracing is off or
// the file cannot be created.
func (s *Server) openTrace(jobID string) *trace.Writer {
	if s.traceDir == "" {
		return nil
	}
	tw, err := trace.NewWriter(TracePath(s.traceDir, jobID), false)
	if err != nil {
		slog.Warn("Failed to open job trace", "job_id", jobID, "error", err)
		return nil
	}
	return tw
}

// TracePath returns the trace file of a job below dir.
func TracePath(dir, jobID string) string {
	return filepath.Join(dir, "jobs", jobID, "trace.jsonl")
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJobStatus handles GET /api/v1/jobs/{id}/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobManager.GetJob(jobIDParam(r))
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          job.ID,
		"state":       job.State,
		"config":      job.Config,
		"steps":       job.Steps,
		"total":       job.Total,
		"converged":   job.Converged,
		"evaluations": job.Evaluations,
		"elapsed":     elapsed.Seconds(),
		"startTime":   job.StartTime,
		"endTime":     job.EndTime,
		"error":       job.Error,
	})
}

// handleGetSeries handles GET /api/v1/jobs/{id}/series?format=json|csv|table
func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobManager.GetJob(jobIDParam(r))
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if job.Series == nil {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	format := report.JSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := report.ParseFormat(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}

	switch format {
	case report.CSV:
		w.Header().Set("Content-Type", "text/csv")
	case report.Table:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Cache-Control", "no-cache")
	if err := report.Write(w, job.Series, format); err != nil {
		slog.Error("Failed to write series", "job_id", job.ID, "error", err)
	}
}

// handleCancelJob handles POST /api/v1/jobs/{id}/cancel and DELETE /api/v1/jobs/{id}
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := jobIDParam(r)
	job, exists := s.jobManager.GetJob(id)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(id) {
		http.Error(w, fmt.Sprintf("Job already %s", job.State), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}
