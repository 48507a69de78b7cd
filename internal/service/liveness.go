package service

import (
	"context"
	"time"

	"github.com/sentra/secintel/internal/model"
)

// ActiveWorkerWindow is how recently a worker must have heartbeated to
// count as alive. Independent of StaleClaimThreshold by design: claim
// staleness is judged by claim age alone, never by the claiming worker's
// heartbeat, so a small risk of duplicate execution is traded for keeping
// the two subsystems' clocks decoupled.
const ActiveWorkerWindow = 5 * time.Minute

// HeartbeatStore defines the heartbeat registry operations the liveness
// monitor uses
type HeartbeatStore interface {
	Record(ctx context.Context, hb *model.Heartbeat) error
	GetByWorker(ctx context.Context, workerID string) (*model.Heartbeat, error)
	ActiveWorkers(ctx context.Context, now time.Time, window time.Duration) ([]*model.Heartbeat, error)
	History(ctx context.Context, workerID string, limit int) ([]*model.HeartbeatHistoryEntry, error)
}

// LivenessService derives worker and claim liveness from stored
// timestamps. It is purely read-side: nothing here writes state.
type LivenessService struct {
	heartbeats HeartbeatStore
	jobs       JobStore
	window     time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// LivenessServiceConfig holds configuration for the liveness service
type LivenessServiceConfig struct {
	HeartbeatStore HeartbeatStore
	JobStore       JobStore

	// Window overrides the active-worker window; zero means
	// ActiveWorkerWindow.
	Window time.Duration

	// StaleAfter overrides the stale-claim threshold; zero means
	// StaleClaimThreshold.
	StaleAfter time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewLivenessService creates a new liveness service
func NewLivenessService(cfg LivenessServiceConfig) *LivenessService {
	window := cfg.Window
	if window == 0 {
		window = ActiveWorkerWindow
	}
	staleAfter := cfg.StaleAfter
	if staleAfter == 0 {
		staleAfter = StaleClaimThreshold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &LivenessService{
		heartbeats: cfg.HeartbeatStore,
		jobs:       cfg.JobStore,
		window:     window,
		staleAfter: staleAfter,
		now:        now,
	}
}

// ActiveWorkers returns workers whose latest heartbeat falls inside the
// liveness window, most recent first.
func (s *LivenessService) ActiveWorkers(ctx context.Context) ([]*model.Heartbeat, error) {
	return s.heartbeats.ActiveWorkers(ctx, s.now(), s.window)
}

// Worker returns the latest snapshot for one worker, or (nil, nil) when
// the worker has never heartbeated.
func (s *LivenessService) Worker(ctx context.Context, workerID string) (*model.Heartbeat, error) {
	return s.heartbeats.GetByWorker(ctx, workerID)
}

// History returns the append-only heartbeat trail for one worker, most
// recent first.
func (s *LivenessService) History(ctx context.Context, workerID string, limit int) ([]*model.HeartbeatHistoryEntry, error) {
	return s.heartbeats.History(ctx, workerID, limit)
}

// StaleClaims returns jobs whose claim is older than the stale-claim
// threshold. The claiming worker's heartbeat is deliberately not consulted:
// staleness is claim-age-based.
func (s *LivenessService) StaleClaims(ctx context.Context) ([]*model.Job, error) {
	active := model.JobStatusActive
	jobs, err := s.jobs.List(ctx, &active, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stale := make([]*model.Job, 0)
	for _, job := range jobs {
		if job.ClaimedAt == nil || job.ClaimedBy == nil {
			continue
		}
		if now.Sub(*job.ClaimedAt) > s.staleAfter {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

// DueForRetry returns active, non-frozen jobs whose next_retry_at has
// passed, ordered by ascending retry time.
func (s *LivenessService) DueForRetry(ctx context.Context) ([]*model.Job, error) {
	return s.jobs.JobsPendingRetry(ctx, s.now())
}
