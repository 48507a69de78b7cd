package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentra/secintel/internal/config"
	"github.com/sentra/secintel/internal/model"
)

// Pinger checks connectivity to the job store. Satisfied by
// database.Database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource reports the local worker's current state. Satisfied by
// *jobs.Worker.
type StatusSource interface {
	Snapshot() *model.Heartbeat
}

// JobDirectory is the read-only view of the job store the API serves.
// Satisfied by *repository.JobRepository.
type JobDirectory interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, status *model.JobStatus, jobType *string) ([]*model.Job, error)
}

// ExecutionDirectory serves per-job run history. Satisfied by
// *repository.ExecutionRepository.
type ExecutionDirectory interface {
	ListByJob(ctx context.Context, jobID string, limit int) ([]*model.JobExecution, error)
}

// Liveness serves cluster-wide worker and claim liveness. Satisfied by
// *service.LivenessService.
type Liveness interface {
	ActiveWorkers(ctx context.Context) ([]*model.Heartbeat, error)
	Worker(ctx context.Context, workerID string) (*model.Heartbeat, error)
	History(ctx context.Context, workerID string, limit int) ([]*model.HeartbeatHistoryEntry, error)
	StaleClaims(ctx context.Context) ([]*model.Job, error)
	DueForRetry(ctx context.Context) ([]*model.Job, error)
}

// Deps bundles everything the operational endpoints read from.
type Deps struct {
	DB         Pinger
	Worker     StatusSource
	Jobs       JobDirectory
	Executions ExecutionDirectory
	Liveness   Liveness
	Registry   *prometheus.Registry
	Version    string
}

// Server is the operational HTTP server for one worker process.
type Server struct {
	http *http.Server
	deps Deps
}

// New builds the server with all routes registered.
func New(cfg config.OpsConfig, deps Deps) *Server {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Get("/jobs/{jobID}/executions", s.handleListExecutions)
		r.Get("/workers", s.handleListWorkers)
		r.Get("/workers/{workerID}", s.handleGetWorker)
		r.Get("/workers/{workerID}/history", s.handleWorkerHistory)
		r.Get("/claims/stale", s.handleStaleClaims)
		r.Get("/retries/due", s.handleDueRetries)
	})

	s.http = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Uptime     int64             `json:"uptime_seconds"`
	Components map[string]string `json:"components"`
}

// handleHealth reports liveness of this process and its database link.
// Degraded still returns 200 so orchestrators do not restart a worker
// that merely missed a poll; only a dead database link turns the probe red.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshot := s.deps.Worker.Snapshot()
	resp := healthResponse{
		Status:     string(snapshot.Health),
		Version:    s.deps.Version,
		Uptime:     snapshot.UptimeSeconds,
		Components: map[string]string{"database": "ok", "worker": string(snapshot.Health)},
	}

	code := http.StatusOK
	if err := s.deps.DB.Ping(ctx); err != nil {
		resp.Status = string(model.WorkerUnhealthy)
		resp.Components["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, s.deps.Worker.Snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var status *model.JobStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := model.JobStatus(v)
		status = &st
	}
	var jobType *string
	if v := r.URL.Query().Get("type"); v != "" {
		jobType = &v
	}

	jobs, err := s.deps.Jobs.List(r.Context(), status, jobType)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	WriteData(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.deps.Jobs.GetByID(r.Context(), jobID)
	if errors.Is(err, model.ErrJobNotFound) {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	WriteData(w, http.StatusOK, job)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	execs, err := s.deps.Executions.ListByJob(r.Context(), jobID, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	WriteData(w, http.StatusOK, execs)
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.deps.Liveness.ActiveWorkers(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list active workers")
		return
	}
	WriteData(w, http.StatusOK, workers)
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	hb, err := s.deps.Liveness.Worker(r.Context(), workerID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load worker")
		return
	}
	if hb == nil {
		WriteError(w, http.StatusNotFound, "worker not found")
		return
	}
	WriteData(w, http.StatusOK, hb)
}

func (s *Server) handleWorkerHistory(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.deps.Liveness.History(r.Context(), workerID, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load worker history")
		return
	}
	WriteData(w, http.StatusOK, entries)
}

func (s *Server) handleStaleClaims(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.deps.Liveness.StaleClaims(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list stale claims")
		return
	}
	WriteData(w, http.StatusOK, jobs)
}

func (s *Server) handleDueRetries(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.deps.Liveness.DueForRetry(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list due retries")
		return
	}
	WriteData(w, http.StatusOK, jobs)
}
