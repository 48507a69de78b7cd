package model

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle status of a job definition
type JobStatus string

const (
	// JobStatusActive means the job participates in scheduling.
	JobStatusActive JobStatus = "active"

	// JobStatusInactive means the job is done (one-shot completed) or
	// administratively disabled; it is never selected for claiming.
	JobStatusInactive JobStatus = "inactive"

	// JobStatusFailed means the job exhausted its retries and requires an
	// explicit operator reset before it can run again.
	JobStatusFailed JobStatus = "failed"
)

// Known job types executed by workers across the platform.
const (
	JobTypeSyncOSV             = "sync_osv"
	JobTypeSyncGHSA            = "sync_ghsa"
	JobTypeSyncNVD             = "sync_nvd"
	JobTypeSyncEPSS            = "sync_epss"
	JobTypeSyncMediaRSS        = "sync_media_rss"
	JobTypeSyncMediaHackerNews = "sync_media_hackernews"
	JobTypeSyncMediaReddit     = "sync_media_reddit"
	JobTypeSyncMediaBluesky    = "sync_media_bluesky"
	JobTypeAnalyzePackage      = "analyze_package"
	JobTypeAIAnalysis          = "ai_analysis"
	JobTypeScanBinary          = "scan_binary"
	JobTypeScanLicense         = "scan_license"
	JobTypeAnalyzeContributors = "analyze_contributors"
)

// Default retry and timeout settings applied at registration when a job
// definition leaves them unset.
const (
	DefaultMaxRetries        = 3
	DefaultRetryDelayMinutes = 5
	DefaultTimeoutMinutes    = 60
)

// Job is a unit of recurring or one-shot work persisted in the job store.
//
// A claim is represented by the (ClaimedBy, ClaimedAt) pair; both are set
// or both are empty, never one without the other. The worker identifier in
// ClaimedBy is a value reference, not a foreign key — a worker can vanish
// without invalidating the claim record, which is exactly the failure mode
// the staleness window exists to recover from.
type Job struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Status   JobStatus              `json:"status"`
	Config   map[string]interface{} `json:"config,omitempty"`
	Schedule Schedule               `json:"schedule"`

	NextRunAt  *time.Time             `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time             `json:"last_run_at,omitempty"`
	RunCount   int                    `json:"run_count"`
	LastResult map[string]interface{} `json:"last_result,omitempty"`
	LastError  *string                `json:"last_error,omitempty"`

	ClaimedBy *string    `json:"claimed_by,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	RetryCount        int        `json:"retry_count"`
	MaxRetries        int        `json:"max_retries"`
	RetryDelayMinutes int        `json:"retry_delay_minutes"`
	NextRetryAt       *time.Time `json:"next_retry_at,omitempty"`
	LastRetryError    *string    `json:"last_retry_error,omitempty"`

	PermanentlyFailed      bool       `json:"permanently_failed"`
	PermanentFailureAt     *time.Time `json:"permanent_failure_at,omitempty"`
	PermanentFailureReason *string    `json:"permanent_failure_reason,omitempty"`

	TimeoutMinutes int `json:"timeout_minutes"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// SchedulingState is the explicit lifecycle state derived from a Job's
// stored columns. It exists so that the status × permanently_failed ×
// claim-fields combinations are interpreted in exactly one place.
type SchedulingState int

const (
	// StateDue: active, unclaimed (or stale-claimed) and eligible to be
	// claimed right now.
	StateDue SchedulingState = iota

	// StateScheduled: active but not yet due; next_run_at is in the future.
	StateScheduled

	// StateClaimed: a worker holds a live (non-stale) claim.
	StateClaimed

	// StateRetryWait: active, waiting for next_retry_at to pass.
	StateRetryWait

	// StateInactive: terminal; one-shot completed or disabled.
	StateInactive

	// StatePermanentlyFailed: terminal; retries exhausted, operator reset
	// required.
	StatePermanentlyFailed
)

// String returns a human-readable name for the state.
func (s SchedulingState) String() string {
	switch s {
	case StateDue:
		return "due"
	case StateScheduled:
		return "scheduled"
	case StateClaimed:
		return "claimed"
	case StateRetryWait:
		return "retry_wait"
	case StateInactive:
		return "inactive"
	case StatePermanentlyFailed:
		return "permanently_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SchedulingState derives the explicit lifecycle state at the given instant.
// staleAfter is the claim-age threshold beyond which a claim no longer
// counts as live. Permanent failure dominates every other column: a row
// with permanently_failed = true is terminal even if it also carries claim
// fields that would otherwise read as a live claim.
func (j *Job) SchedulingState(now time.Time, staleAfter time.Duration) SchedulingState {
	if j.PermanentlyFailed {
		return StatePermanentlyFailed
	}
	if j.Status != JobStatusActive {
		if j.Status == JobStatusFailed {
			return StatePermanentlyFailed
		}
		return StateInactive
	}
	if j.HasLiveClaim(now, staleAfter) {
		return StateClaimed
	}
	if j.NextRetryAt != nil && j.NextRetryAt.After(now) {
		return StateRetryWait
	}
	if j.NextRunAt != nil && j.NextRunAt.After(now) {
		// A retry that has come due overrides the regular schedule.
		if j.NextRetryAt != nil && !j.NextRetryAt.After(now) {
			return StateDue
		}
		return StateScheduled
	}
	return StateDue
}

// HasLiveClaim reports whether the job carries a claim younger than both
// the stale-claim threshold and the job's own execution budget. A claim
// older than either is treated as abandoned and does not block reclaiming.
func (j *Job) HasLiveClaim(now time.Time, staleAfter time.Duration) bool {
	if j.ClaimedBy == nil || j.ClaimedAt == nil {
		return false
	}
	age := now.Sub(*j.ClaimedAt)
	if age > staleAfter {
		return false
	}
	if j.TimeoutMinutes > 0 && age > time.Duration(j.TimeoutMinutes)*time.Minute {
		return false
	}
	return true
}

// IsClaimable reports whether the job satisfies the claim predicate at the
// given instant: active, not permanently failed, and without a live claim.
// This mirrors the condition the store re-checks at write time; callers must
// never treat a true result as a guarantee that a subsequent claim succeeds.
func (j *Job) IsClaimable(now time.Time, staleAfter time.Duration) bool {
	if j.PermanentlyFailed || j.Status != JobStatusActive {
		return false
	}
	return !j.HasLiveClaim(now, staleAfter)
}

// IsDue reports whether the job's schedule or retry clock has come due.
// A pending retry dominates the regular schedule in both directions: a due
// retry makes the job eligible despite a future next_run_at, and a future
// retry holds the job back even when next_run_at has passed.
func (j *Job) IsDue(now time.Time) bool {
	if j.NextRetryAt != nil {
		return !j.NextRetryAt.After(now)
	}
	return j.NextRunAt == nil || !j.NextRunAt.After(now)
}

// Validate checks a job definition prior to registration.
func (j *Job) Validate() []FieldError {
	var errs []FieldError

	if j.ID == "" {
		errs = append(errs, FieldError{Field: "id", Message: "id is required"})
	}
	if j.Type == "" {
		errs = append(errs, FieldError{Field: "type", Message: "type is required"})
	}
	switch j.Status {
	case JobStatusActive, JobStatusInactive, JobStatusFailed, "":
	default:
		errs = append(errs, FieldError{Field: "status", Message: fmt.Sprintf("invalid status %q", j.Status)})
	}
	if j.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "max_retries", Message: "max_retries must be >= 0"})
	}
	if j.RetryDelayMinutes < 0 {
		errs = append(errs, FieldError{Field: "retry_delay_minutes", Message: "retry_delay_minutes must be >= 0"})
	}
	if j.TimeoutMinutes < 0 {
		errs = append(errs, FieldError{Field: "timeout_minutes", Message: "timeout_minutes must be >= 0"})
	}
	if (j.ClaimedBy == nil) != (j.ClaimedAt == nil) {
		errs = append(errs, FieldError{Field: "claimed_by", Message: "claimed_by and claimed_at must be set together"})
	}
	errs = append(errs, j.Schedule.Validate()...)

	return errs
}

// ApplyDefaults fills the status when a definition leaves it unset. Retry
// and timeout fields are deliberately not defaulted here: zero is meaningful
// for all of them (max_retries = 0 fails permanently on the first error,
// timeout_minutes = 0 leaves only the stale-claim window in force).
func (j *Job) ApplyDefaults() {
	if j.Status == "" {
		j.Status = JobStatusActive
	}
}
