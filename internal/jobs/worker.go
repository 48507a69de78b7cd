package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentra/secintel/internal/config"
	"github.com/sentra/secintel/internal/metrics"
	"github.com/sentra/secintel/internal/model"
)

// ClaimSource is the claim/release protocol the worker drives. Satisfied
// by *service.ClaimService.
type ClaimSource interface {
	ClaimNext(ctx context.Context, workerID string) (*model.Job, error)
	ReportSuccess(ctx context.Context, job *model.Job, workerID string, result map[string]interface{}) (*model.Job, error)
	ReportFailure(ctx context.Context, job *model.Job, workerID string, failure error) (*model.Job, error)
}

// ExecutionLog records per-run audit entries. Satisfied by
// *repository.ExecutionRepository.
type ExecutionLog interface {
	Append(ctx context.Context, exec *model.JobExecution) error
}

// HeartbeatSink receives liveness snapshots. Satisfied by
// *repository.HeartbeatRepository.
type HeartbeatSink interface {
	Record(ctx context.Context, hb *model.Heartbeat) error
}

// Worker runs the poll and heartbeat loops for one worker process.
type Worker struct {
	cfg        config.WorkerConfig
	claims     ClaimSource
	heartbeats HeartbeatSink
	executions ExecutionLog
	registry   *Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger

	startedAt time.Time

	mu           sync.Mutex
	running      bool
	runningJobs  int
	totalJobs    int
	lastPollErr  error
	lastPollAt   time.Time
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// WorkerDeps bundles the collaborators a Worker needs.
type WorkerDeps struct {
	Claims     ClaimSource
	Heartbeats HeartbeatSink
	Executions ExecutionLog
	Registry   *Registry
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// NewWorker creates a worker from validated configuration.
func NewWorker(cfg config.WorkerConfig, deps WorkerDeps) *Worker {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:        cfg,
		claims:     deps.Claims,
		heartbeats: deps.Heartbeats,
		executions: deps.Executions,
		registry:   deps.Registry,
		metrics:    deps.Metrics,
		logger:     logger.With("worker_id", cfg.WorkerID),
	}
}

// Start launches the poll and heartbeat loops. It returns immediately;
// call Stop to shut down.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.startedAt = time.Now().UTC()
	w.stopCh = make(chan struct{})

	w.wg.Add(2)
	go w.pollLoop()
	go w.heartbeatLoop()

	w.logger.Info("worker started",
		"poll_interval", w.cfg.PollInterval,
		"heartbeat_interval", w.cfg.HeartbeatInterval,
		"job_types", w.registry.Types())
}

// Stop signals both loops and waits for in-flight work, up to the
// configured grace period.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
	case <-time.After(w.cfg.ShutdownGracePeriod):
		w.logger.Warn("shutdown grace period expired with work still in flight",
			"grace_period", w.cfg.ShutdownGracePeriod)
	}
}

func (w *Worker) pollLoop() {
	defer w.wg.Done()

	// Poll immediately on startup, then on the ticker.
	w.pollCycle()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pollCycle()
		}
	}
}

// pollCycle claims and executes due jobs until the store runs dry, the
// concurrency budget for one cycle is spent, or shutdown begins. Store
// errors end the cycle; the next tick retries from scratch.
func (w *Worker) pollCycle() {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	ctx := context.Background()

	var pollErr error
	for i := 0; i < w.cfg.MaxConcurrentJobs; i++ {
		select {
		case <-w.stopCh:
			return
		default:
		}

		job, err := w.claims.ClaimNext(ctx, w.cfg.WorkerID)
		if err != nil {
			w.logger.Error("poll cycle aborted", "error", err)
			pollErr = err
			break
		}
		if job == nil {
			break
		}

		if w.metrics != nil {
			w.metrics.JobsClaimed.WithLabelValues(job.Type).Inc()
		}
		w.executeJob(ctx, job)
	}

	w.mu.Lock()
	w.lastPollErr = pollErr
	w.lastPollAt = time.Now().UTC()
	w.mu.Unlock()
}

// executeJob runs one claimed job to completion and releases the claim.
// The claim must always be released, even on panic, so the job does not
// sit blocked until the staleness window expires.
func (w *Worker) executeJob(ctx context.Context, job *model.Job) {
	w.mu.Lock()
	w.runningJobs++
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.RunningJobs.Inc()
	}
	defer func() {
		w.mu.Lock()
		w.runningJobs--
		w.totalJobs++
		w.mu.Unlock()
		if w.metrics != nil {
			w.metrics.RunningJobs.Dec()
		}
	}()

	logger := w.logger.With("job_id", job.ID, "job_type", job.Type)

	exec := &model.JobExecution{
		ExecutionID: uuid.NewString(),
		JobID:       job.ID,
		JobType:     job.Type,
		WorkerID:    w.cfg.WorkerID,
		Status:      model.ExecutionRunning,
		StartedAt:   time.Now().UTC(),
	}

	result, runErr := w.runHandler(ctx, job)

	exec.Complete(time.Now().UTC(), result, runErr)
	if w.executions != nil {
		if err := w.executions.Append(ctx, exec); err != nil {
			// Audit trail only; the release below still decides the
			// job's fate.
			logger.Error("failed to record execution", "error", err)
		}
	}

	if runErr == nil {
		if _, err := w.claims.ReportSuccess(ctx, job, w.cfg.WorkerID, result); err != nil {
			logger.Error("failed to release job after success", "error", err)
			return
		}
		if w.metrics != nil {
			w.metrics.JobsSucceeded.WithLabelValues(job.Type).Inc()
		}
		logger.Info("job completed", "duration_seconds", *exec.DurationSeconds)
		return
	}

	updated, err := w.claims.ReportFailure(ctx, job, w.cfg.WorkerID, runErr)
	if err != nil {
		logger.Error("failed to release job after failure", "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.JobsFailed.WithLabelValues(job.Type).Inc()
	}
	if updated != nil && updated.PermanentlyFailed {
		if w.metrics != nil {
			w.metrics.JobsPermanentlyFailed.WithLabelValues(job.Type).Inc()
		}
		logger.Error("job permanently failed", "error", runErr, "retry_count", updated.RetryCount)
		return
	}
	if w.metrics != nil {
		w.metrics.JobsRetried.WithLabelValues(job.Type).Inc()
	}
	var nextRetry any
	if updated != nil && updated.NextRetryAt != nil {
		nextRetry = *updated.NextRetryAt
	}
	logger.Warn("job failed, retry scheduled", "error", runErr, "next_retry_at", nextRetry)
}

// runHandler dispatches to the registered handler under the job's timeout,
// converting panics into errors.
func (w *Worker) runHandler(ctx context.Context, job *model.Job) (result map[string]interface{}, runErr error) {
	handler, ok := w.registry.Lookup(job.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownJobType, job.Type)
	}

	if job.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(job.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			runErr = fmt.Errorf("handler panic: %v", r)
		}
	}()

	result, runErr = handler.Run(ctx, job.Config)
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	return result, runErr
}

func (w *Worker) heartbeatLoop() {
	defer w.wg.Done()

	w.sendHeartbeat()

	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sendHeartbeat()
		}
	}
}

func (w *Worker) sendHeartbeat() {
	hb := w.Snapshot()
	if w.metrics != nil {
		w.metrics.WorkerUptime.Set(float64(hb.UptimeSeconds))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.heartbeats.Record(ctx, hb); err != nil {
		// A missed heartbeat costs liveness visibility, nothing more;
		// the next tick tries again.
		w.logger.Error("failed to record heartbeat", "error", err)
	}
}

// Snapshot builds the current liveness snapshot. Also serves the /status
// endpoint.
func (w *Worker) Snapshot() *model.Heartbeat {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UTC()
	health := model.WorkerHealthy
	status := map[string]interface{}{}
	if w.lastPollErr != nil {
		health = model.WorkerDegraded
		status["last_poll_error"] = w.lastPollErr.Error()
	}
	if !w.lastPollAt.IsZero() {
		status["last_poll_at"] = w.lastPollAt.Format(time.RFC3339)
	}

	return &model.Heartbeat{
		WorkerID:                 w.cfg.WorkerID,
		Health:                   health,
		UptimeSeconds:            int64(now.Sub(w.startedAt).Seconds()),
		StartedAt:                w.startedAt,
		TotalJobs:                w.totalJobs,
		RunningJobs:              w.runningJobs,
		JobTypes:                 w.registry.Types(),
		Version:                  w.cfg.Version,
		PollIntervalSeconds:      int(w.cfg.PollInterval.Seconds()),
		HeartbeatIntervalSeconds: int(w.cfg.HeartbeatInterval.Seconds()),
		Status:                   status,
		RecordedAt:               now,
	}
}
