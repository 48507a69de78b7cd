package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentra/secintel/internal/model"
)

// StaleClaimThreshold is the claim age beyond which any worker may reclaim
// a job, whether or not the claiming worker is still alive. Kept deliberately
// independent of ActiveWorkerWindow; see the package documentation.
const StaleClaimThreshold = 10 * time.Minute

// JobStore defines the job store operations the coordination services use
type JobStore interface {
	Register(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, status *model.JobStatus, jobType *string) ([]*model.Job, error)
	Claim(ctx context.Context, jobID, workerID string, now time.Time, staleAfter time.Duration) (*model.Job, error)
	ReleaseSuccess(ctx context.Context, jobID, workerID string, now time.Time, result map[string]interface{}, nextRunAt *time.Time, status model.JobStatus) (*model.Job, error)
	ReleaseFailure(ctx context.Context, jobID, workerID string, now time.Time, errMsg string, retryCount int, nextRetryAt *time.Time, permanent bool) (*model.Job, error)
	ClaimableJobs(ctx context.Context, now time.Time, staleAfter time.Duration) ([]*model.Job, error)
	JobsPendingRetry(ctx context.Context, now time.Time) ([]*model.Job, error)
}

// ClaimService implements the claim/release protocol over the job store
type ClaimService struct {
	jobs       JobStore
	staleAfter time.Duration
	allowed    map[string]struct{}
	now        func() time.Time
	onConflict func(jobID string)
}

// ClaimServiceConfig holds configuration for the claim service
type ClaimServiceConfig struct {
	JobStore JobStore

	// StaleAfter overrides the stale-claim threshold; zero means
	// StaleClaimThreshold.
	StaleAfter time.Duration

	// JobTypes restricts claiming to the listed types. Empty means no
	// restriction. A worker without a handler for a type must not claim
	// it: every such run fails and burns the job's retry budget.
	JobTypes []string

	// Now overrides the clock, for tests.
	Now func() time.Time

	// OnClaimConflict, if set, is invoked for every claim attempt lost
	// to another worker. Used for conflict metrics.
	OnClaimConflict func(jobID string)
}

// NewClaimService creates a new claim service
func NewClaimService(cfg ClaimServiceConfig) *ClaimService {
	staleAfter := cfg.StaleAfter
	if staleAfter == 0 {
		staleAfter = StaleClaimThreshold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	var allowed map[string]struct{}
	if len(cfg.JobTypes) > 0 {
		allowed = make(map[string]struct{}, len(cfg.JobTypes))
		for _, t := range cfg.JobTypes {
			allowed[t] = struct{}{}
		}
	}
	return &ClaimService{
		jobs:       cfg.JobStore,
		staleAfter: staleAfter,
		allowed:    allowed,
		now:        now,
		onConflict: cfg.OnClaimConflict,
	}
}

// Register registers a job definition, idempotent on the identifier.
func (s *ClaimService) Register(ctx context.Context, job *model.Job) error {
	return s.jobs.Register(ctx, job)
}

// ClaimNext claims the next due job for a worker, or returns (nil, nil)
// when nothing is claimable right now.
//
// Candidates come back ordered by ascending next_run_at (never-run jobs
// first) so the oldest-due job is attempted first. Types outside the
// configured restriction are skipped before any write. Each attempt is a
// conditional write; a conflict means another worker got there first and
// is not an error — the next candidate is tried. Only store failures
// propagate, aborting the whole poll cycle.
func (s *ClaimService) ClaimNext(ctx context.Context, workerID string) (*model.Job, error) {
	now := s.now()

	candidates, err := s.jobs.ClaimableJobs(ctx, now, s.staleAfter)
	if err != nil {
		return nil, fmt.Errorf("listing claimable jobs: %w", err)
	}

	for _, job := range candidates {
		if !s.claimableType(job.Type) {
			continue
		}
		if !job.IsDue(now) {
			continue
		}
		claimed, err := s.jobs.Claim(ctx, job.ID, workerID, now, s.staleAfter)
		if errors.Is(err, model.ErrClaimConflict) {
			if s.onConflict != nil {
				s.onConflict(job.ID)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claiming job %s: %w", job.ID, err)
		}
		return claimed, nil
	}

	return nil, nil
}

// ReportSuccess releases the claim after a successful run: the result is
// stored, run_count advances, retry state resets to zero, and the schedule
// decides what happens next — recurring jobs get a new next_run_at,
// one-shot jobs go inactive and never reappear in the claimable view.
func (s *ClaimService) ReportSuccess(ctx context.Context, job *model.Job, workerID string, result map[string]interface{}) (*model.Job, error) {
	now := s.now()

	status := model.JobStatusActive
	var nextRun *time.Time
	if job.Schedule.IsOnce() {
		status = model.JobStatusInactive
	} else {
		nr, err := job.Schedule.NextRun(now)
		if err != nil {
			return nil, fmt.Errorf("computing next run for job %s: %w", job.ID, err)
		}
		nextRun = nr
	}

	return s.jobs.ReleaseSuccess(ctx, job.ID, workerID, now, result, nextRun, status)
}

// ReportFailure releases the claim after a failed run and applies the
// retry scheduler's decision: book the next attempt with exponential
// backoff, or freeze the job as permanently failed once retries are
// exhausted.
func (s *ClaimService) ReportFailure(ctx context.Context, job *model.Job, workerID string, failure error) (*model.Job, error) {
	now := s.now()
	decision := NextRetryState(job, now)

	errMsg := "unknown error"
	if failure != nil {
		errMsg = failure.Error()
	}

	return s.jobs.ReleaseFailure(ctx, job.ID, workerID, now, errMsg, decision.RetryCount, decision.NextRetryAt, decision.Permanent)
}

func (s *ClaimService) claimableType(jobType string) bool {
	if s.allowed == nil {
		return true
	}
	_, ok := s.allowed[jobType]
	return ok
}

// StaleAfter returns the stale-claim threshold in force.
func (s *ClaimService) StaleAfter() time.Duration {
	return s.staleAfter
}
