package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentra/secintel/internal/database"
	"github.com/sentra/secintel/internal/model"
)

// claimablePredicate gates every claim write and the claimable view. It is
// re-evaluated by the store at write time, which is what makes the claim
// protocol safe under concurrent polling: exactly one racing UPDATE matches
// the row, the others match zero rows.
const claimablePredicate = `
	status = 'active'
	AND permanently_failed = false
	AND (
		claimed_by = NONE
		OR claimed_at = NONE
		OR claimed_at < <datetime>$stale_before
		OR (timeout_minutes > 0 AND claimed_at + duration::from::mins(timeout_minutes) < <datetime>$now)
	)`

// JobRepository handles job store access and the claim protocol
type JobRepository struct {
	db database.Database
}

// NewJobRepository creates a new job repository
func NewJobRepository(db database.Database) *JobRepository {
	return &JobRepository{db: db}
}

// Register creates a job definition. Registration is idempotent on the job
// identifier: creating an existing job is a no-op, not an error.
func (r *JobRepository) Register(ctx context.Context, job *model.Job) error {
	job.ApplyDefaults()
	if errs := job.Validate(); len(errs) > 0 {
		return model.NewValidationError(errs)
	}

	nextRunExpr := "NONE"
	vars := map[string]interface{}{
		"id":                  job.ID,
		"type":                job.Type,
		"status":              string(job.Status),
		"config":              job.Config,
		"schedule_kind":       string(job.Schedule.Kind),
		"schedule_expression": job.Schedule.Expression,
		"schedule_interval":   job.Schedule.IntervalMinutes,
		"max_retries":         job.MaxRetries,
		"retry_delay_minutes": job.RetryDelayMinutes,
		"timeout_minutes":     job.TimeoutMinutes,
	}
	if job.NextRunAt != nil {
		nextRunExpr = "<datetime>$next_run_at"
		vars["next_run_at"] = formatTime(*job.NextRunAt)
	}

	query := `
		CREATE type::thing('job', $id) SET
			type = $type,
			status = $status,
			config = $config,
			schedule = {
				kind: $schedule_kind,
				expression: $schedule_expression,
				interval_minutes: $schedule_interval
			},
			next_run_at = ` + nextRunExpr + `,
			run_count = 0,
			retry_count = 0,
			max_retries = $max_retries,
			retry_delay_minutes = $retry_delay_minutes,
			permanently_failed = false,
			timeout_minutes = $timeout_minutes,
			created_on = time::now(),
			updated_on = time::now()
	`

	if err := classifyWriteError(r.db.Execute(ctx, query, vars)); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// Already registered; registration is idempotent.
			return nil
		}
		return err
	}
	return nil
}

// GetByID retrieves a job by its identifier. Returns model.ErrJobNotFound
// when the job does not exist.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT * FROM type::thing('job', $id)`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected job record shape %T", result)
	}
	return parseJobRecord(row)
}

// List retrieves jobs matching the optional status and type filters.
func (r *JobRepository) List(ctx context.Context, status *model.JobStatus, jobType *string) ([]*model.Job, error) {
	query := `SELECT * FROM job`
	vars := map[string]interface{}{}

	conds := make([]string, 0, 2)
	if status != nil {
		conds = append(conds, "status = $status")
		vars["status"] = string(*status)
	}
	if jobType != nil {
		conds = append(conds, "type = $type")
		vars["type"] = *jobType
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY id ASC"

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseJobRows(results)
}

// Claim atomically claims a job for a worker. The claimable predicate is
// re-checked by the store at write time; a zero-row result means another
// worker won and is surfaced as model.ErrClaimConflict.
func (r *JobRepository) Claim(ctx context.Context, jobID, workerID string, now time.Time, staleAfter time.Duration) (*model.Job, error) {
	query := `
		UPDATE type::thing('job', $id) SET
			claimed_by = $worker_id,
			claimed_at = <datetime>$claim_time,
			updated_on = time::now()
		WHERE ` + claimablePredicate + `
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":           jobID,
		"worker_id":    workerID,
		"claim_time":   formatTime(now),
		"now":          formatTime(now),
		"stale_before": formatTime(now.Add(-staleAfter)),
	}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryRows(results)
	if len(rows) == 0 {
		return nil, model.ErrClaimConflict
	}
	return parseJobRecord(rows[0])
}

// ReleaseSuccess clears the claim after a successful run, records the
// result, advances the schedule, and resets retry state. The write is gated
// on the caller still holding the claim; losing that race surfaces as
// model.ErrClaimConflict.
func (r *JobRepository) ReleaseSuccess(ctx context.Context, jobID, workerID string, now time.Time, result map[string]interface{}, nextRunAt *time.Time, status model.JobStatus) (*model.Job, error) {
	nextRunExpr := "NONE"
	vars := map[string]interface{}{
		"id":        jobID,
		"worker_id": workerID,
		"run_time":  formatTime(now),
		"result":    result,
		"status":    string(status),
	}
	if nextRunAt != nil {
		nextRunExpr = "<datetime>$next_run_at"
		vars["next_run_at"] = formatTime(*nextRunAt)
	}

	query := `
		UPDATE type::thing('job', $id) SET
			claimed_by = NONE,
			claimed_at = NONE,
			run_count += 1,
			last_run_at = <datetime>$run_time,
			last_result = $result,
			last_error = NONE,
			retry_count = 0,
			next_retry_at = NONE,
			last_retry_error = NONE,
			next_run_at = ` + nextRunExpr + `,
			status = $status,
			updated_on = time::now()
		WHERE claimed_by = $worker_id
		RETURN AFTER
	`

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryRows(results)
	if len(rows) == 0 {
		return nil, model.ErrClaimConflict
	}
	return parseJobRecord(rows[0])
}

// ReleaseFailure clears the claim after a failed run and applies the retry
// scheduler's decision: either book the next retry or freeze the job as
// permanently failed. Gated on the caller still holding the claim.
func (r *JobRepository) ReleaseFailure(ctx context.Context, jobID, workerID string, now time.Time, errMsg string, retryCount int, nextRetryAt *time.Time, permanent bool) (*model.Job, error) {
	vars := map[string]interface{}{
		"id":          jobID,
		"worker_id":   workerID,
		"error":       errMsg,
		"retry_count": retryCount,
	}

	var query string
	if permanent {
		query = `
			UPDATE type::thing('job', $id) SET
				claimed_by = NONE,
				claimed_at = NONE,
				last_error = $error,
				last_retry_error = $error,
				retry_count = $retry_count,
				next_retry_at = NONE,
				permanently_failed = true,
				permanent_failure_at = <datetime>$failed_at,
				permanent_failure_reason = $error,
				status = 'failed',
				updated_on = time::now()
			WHERE claimed_by = $worker_id
			RETURN AFTER
		`
		vars["failed_at"] = formatTime(now)
	} else {
		query = `
			UPDATE type::thing('job', $id) SET
				claimed_by = NONE,
				claimed_at = NONE,
				last_error = $error,
				last_retry_error = $error,
				retry_count = $retry_count,
				next_retry_at = <datetime>$next_retry_at,
				updated_on = time::now()
			WHERE claimed_by = $worker_id
			RETURN AFTER
		`
		vars["next_retry_at"] = formatTime(*nextRetryAt)
	}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryRows(results)
	if len(rows) == 0 {
		return nil, model.ErrClaimConflict
	}
	return parseJobRecord(rows[0])
}

// ClaimableJobs returns jobs satisfying the claimable predicate, ordered by
// ascending next_run_at. SurrealDB sorts NONE before any datetime, which
// gives never-run jobs first place in the queue.
func (r *JobRepository) ClaimableJobs(ctx context.Context, now time.Time, staleAfter time.Duration) ([]*model.Job, error) {
	query := `
		SELECT * FROM job
		WHERE ` + claimablePredicate + `
		ORDER BY next_run_at ASC
	`
	vars := map[string]interface{}{
		"now":          formatTime(now),
		"stale_before": formatTime(now.Add(-staleAfter)),
	}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseJobRows(results)
}

// JobsPendingRetry returns active jobs whose next_retry_at has passed,
// ordered by ascending retry time.
func (r *JobRepository) JobsPendingRetry(ctx context.Context, now time.Time) ([]*model.Job, error) {
	query := `
		SELECT * FROM job
		WHERE status = 'active'
			AND permanently_failed = false
			AND next_retry_at != NONE
			AND next_retry_at <= <datetime>$now
		ORDER BY next_retry_at ASC
	`
	vars := map[string]interface{}{"now": formatTime(now)}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseJobRows(results)
}

// parseJobRows converts a query response into job models.
func parseJobRows(results []interface{}) ([]*model.Job, error) {
	rows := extractQueryRows(results)
	jobs := make([]*model.Job, 0, len(rows))
	for _, row := range rows {
		job, err := parseJobRecord(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// parseJobRecord converts one stored row into a job model.
func parseJobRecord(data map[string]interface{}) (*model.Job, error) {
	job := &model.Job{
		ID:                bareID(extractRecordID(data["id"])),
		Type:              getString(data, "type"),
		Status:            model.JobStatus(getString(data, "status")),
		Config:            getMap(data, "config"),
		RunCount:          getInt(data, "run_count"),
		LastResult:        getMap(data, "last_result"),
		LastError:         getStringPtr(data, "last_error"),
		ClaimedBy:         getStringPtr(data, "claimed_by"),
		RetryCount:        getInt(data, "retry_count"),
		MaxRetries:        getInt(data, "max_retries"),
		RetryDelayMinutes: getInt(data, "retry_delay_minutes"),
		LastRetryError:    getStringPtr(data, "last_retry_error"),
		PermanentlyFailed: getBool(data, "permanently_failed"),
		TimeoutMinutes:    getInt(data, "timeout_minutes"),
	}

	if sched := getMap(data, "schedule"); sched != nil {
		job.Schedule = model.Schedule{
			Kind:            model.ScheduleKind(getString(sched, "kind")),
			Expression:      getString(sched, "expression"),
			IntervalMinutes: getInt(sched, "interval_minutes"),
		}
	}

	job.NextRunAt = getTime(data, "next_run_at")
	job.LastRunAt = getTime(data, "last_run_at")
	job.ClaimedAt = getTime(data, "claimed_at")
	job.NextRetryAt = getTime(data, "next_retry_at")
	job.PermanentFailureAt = getTime(data, "permanent_failure_at")
	job.PermanentFailureReason = getStringPtr(data, "permanent_failure_reason")

	if t := getTime(data, "created_on"); t != nil {
		job.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		job.UpdatedOn = *t
	}

	return job, nil
}
