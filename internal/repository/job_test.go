package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sentra/secintel/internal/database"
	"github.com/sentra/secintel/internal/model"
)

// ============================================================================
// Mock Database
// ============================================================================

type queryCall struct {
	query string
	vars  map[string]interface{}
}

type mockDatabase struct {
	queryFunc   func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)
	executeFunc func(ctx context.Context, query string, vars map[string]interface{}) error

	queries  []queryCall
	executes []queryCall
}

func (m *mockDatabase) Connect(ctx context.Context) error { return nil }
func (m *mockDatabase) Close() error                      { return nil }
func (m *mockDatabase) Ping(ctx context.Context) error    { return nil }

func (m *mockDatabase) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	m.queries = append(m.queries, queryCall{query: query, vars: vars})
	if m.queryFunc != nil {
		return m.queryFunc(ctx, query, vars)
	}
	return okRows(), nil
}

// QueryOne mirrors the real implementation: unwrap the response envelope
// and surface database.ErrNotFound for an empty result set.
func (m *mockDatabase) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := m.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		resp, ok := result.(map[string]interface{})
		if !ok {
			continue
		}
		if rows, ok := resp["result"].([]interface{}); ok && len(rows) > 0 {
			return rows[0], nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockDatabase) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	m.executes = append(m.executes, queryCall{query: query, vars: vars})
	if m.executeFunc != nil {
		return m.executeFunc(ctx, query, vars)
	}
	return nil
}

// okRows builds a SurrealDB response envelope around the given rows.
func okRows(rows ...map[string]interface{}) []interface{} {
	result := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		result = append(result, row)
	}
	return []interface{}{
		map[string]interface{}{"status": "OK", "result": result},
	}
}

func jobRow(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "job:" + id,
		"type":   id,
		"status": "active",
		"schedule": map[string]interface{}{
			"kind":       "cron",
			"expression": "hourly",
		},
		"run_count":           2,
		"retry_count":         0,
		"max_retries":         3,
		"retry_delay_minutes": 5,
		"permanently_failed":  false,
		"timeout_minutes":     60,
		"created_on":          "2026-03-01T10:00:00Z",
		"updated_on":          "2026-03-01T11:00:00Z",
	}
}

var repoNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ============================================================================
// Claim
// ============================================================================

func TestClaim_ZeroRowsIsConflict(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			return okRows(), nil // predicate matched nothing
		},
	}
	repo := NewJobRepository(db)

	_, err := repo.Claim(context.Background(), "sync_osv", "worker-a", repoNow, 10*time.Minute)
	if !errors.Is(err, model.ErrClaimConflict) {
		t.Fatalf("err = %v, want ErrClaimConflict", err)
	}
}

func TestClaim_QueryCarriesClaimablePredicate(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			row := jobRow("sync_osv")
			row["claimed_by"] = "worker-a"
			row["claimed_at"] = "2026-03-01T12:00:00Z"
			return okRows(row), nil
		},
	}
	repo := NewJobRepository(db)

	job, err := repo.Claim(context.Background(), "sync_osv", "worker-a", repoNow, 10*time.Minute)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if len(db.queries) != 1 {
		t.Fatalf("queries = %d, want exactly one conditional UPDATE", len(db.queries))
	}
	q := db.queries[0].query
	for _, fragment := range []string{
		"UPDATE type::thing('job', $id)",
		"WHERE",
		"permanently_failed = false",
		"claimed_by = NONE",
		"claimed_at < <datetime>$stale_before",
		"duration::from::mins(timeout_minutes)",
		"RETURN AFTER",
	} {
		if !strings.Contains(q, fragment) {
			t.Errorf("claim query missing %q:\n%s", fragment, q)
		}
	}

	vars := db.queries[0].vars
	if vars["worker_id"] != "worker-a" {
		t.Errorf("worker_id var = %v", vars["worker_id"])
	}
	wantStale := repoNow.Add(-10 * time.Minute).UTC().Format(time.RFC3339Nano)
	if vars["stale_before"] != wantStale {
		t.Errorf("stale_before = %v, want %v", vars["stale_before"], wantStale)
	}

	if job.ClaimedBy == nil || *job.ClaimedBy != "worker-a" {
		t.Errorf("parsed claim fields wrong: %+v", job)
	}
	if job.ID != "sync_osv" {
		t.Errorf("record id not stripped: %s", job.ID)
	}
}

// ============================================================================
// Release
// ============================================================================

func TestReleaseSuccess_GatedOnClaimOwnership(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			return okRows(jobRow("sync_osv")), nil
		},
	}
	repo := NewJobRepository(db)

	next := repoNow.Add(time.Hour)
	_, err := repo.ReleaseSuccess(context.Background(), "sync_osv", "worker-a", repoNow,
		map[string]interface{}{"synced": 10}, &next, model.JobStatusActive)
	if err != nil {
		t.Fatalf("ReleaseSuccess: %v", err)
	}

	q := db.queries[0].query
	for _, fragment := range []string{
		"claimed_by = NONE",
		"claimed_at = NONE",
		"run_count += 1",
		"retry_count = 0",
		"next_retry_at = NONE",
		"WHERE claimed_by = $worker_id",
	} {
		if !strings.Contains(q, fragment) {
			t.Errorf("release query missing %q:\n%s", fragment, q)
		}
	}
}

func TestReleaseSuccess_OneShotWritesNoNextRun(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			row := jobRow("seed_once")
			row["status"] = "inactive"
			return okRows(row), nil
		},
	}
	repo := NewJobRepository(db)

	_, err := repo.ReleaseSuccess(context.Background(), "seed_once", "worker-a", repoNow,
		nil, nil, model.JobStatusInactive)
	if err != nil {
		t.Fatalf("ReleaseSuccess: %v", err)
	}

	q := db.queries[0].query
	if !strings.Contains(q, "next_run_at = NONE") {
		t.Errorf("one-shot release must clear next_run_at:\n%s", q)
	}
	if _, ok := db.queries[0].vars["next_run_at"]; ok {
		t.Error("one-shot release must not bind a next_run_at value")
	}
}

func TestReleaseFailure_PermanentFreezesJob(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			row := jobRow("sync_nvd")
			row["status"] = "failed"
			row["permanently_failed"] = true
			return okRows(row), nil
		},
	}
	repo := NewJobRepository(db)

	job, err := repo.ReleaseFailure(context.Background(), "sync_nvd", "worker-a", repoNow,
		"still broken", 3, nil, true)
	if err != nil {
		t.Fatalf("ReleaseFailure: %v", err)
	}

	q := db.queries[0].query
	for _, fragment := range []string{
		"permanently_failed = true",
		"permanent_failure_at",
		"permanent_failure_reason = $error",
		"status = 'failed'",
		"next_retry_at = NONE",
		"WHERE claimed_by = $worker_id",
	} {
		if !strings.Contains(q, fragment) {
			t.Errorf("permanent failure query missing %q:\n%s", fragment, q)
		}
	}
	if !job.PermanentlyFailed {
		t.Error("parsed job must reflect the frozen state")
	}
}

func TestReleaseFailure_RetryBooksNextAttempt(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			return okRows(jobRow("sync_ghsa")), nil
		},
	}
	repo := NewJobRepository(db)

	next := repoNow.Add(10 * time.Minute)
	_, err := repo.ReleaseFailure(context.Background(), "sync_ghsa", "worker-a", repoNow,
		"upstream 503", 1, &next, false)
	if err != nil {
		t.Fatalf("ReleaseFailure: %v", err)
	}

	q := db.queries[0].query
	if !strings.Contains(q, "next_retry_at = <datetime>$next_retry_at") {
		t.Errorf("retry release must book next_retry_at:\n%s", q)
	}
	if strings.Contains(q, "permanently_failed = true") {
		t.Errorf("retry release must not freeze the job:\n%s", q)
	}
	if db.queries[0].vars["retry_count"] != 1 {
		t.Errorf("retry_count var = %v, want 1", db.queries[0].vars["retry_count"])
	}
}

// ============================================================================
// Views
// ============================================================================

func TestClaimableJobs_SharesPredicateAndOrder(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			return okRows(jobRow("sync_osv"), jobRow("sync_ghsa")), nil
		},
	}
	repo := NewJobRepository(db)

	jobs, err := repo.ClaimableJobs(context.Background(), repoNow, 10*time.Minute)
	if err != nil {
		t.Fatalf("ClaimableJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}

	q := db.queries[0].query
	if !strings.Contains(q, "permanently_failed = false") {
		t.Errorf("claimable view must share the claim predicate:\n%s", q)
	}
	if !strings.Contains(q, "ORDER BY next_run_at ASC") {
		t.Errorf("claimable view must order by ascending next_run_at:\n%s", q)
	}
}

func TestJobsPendingRetry_FiltersAndOrders(t *testing.T) {
	db := &mockDatabase{}
	repo := NewJobRepository(db)

	if _, err := repo.JobsPendingRetry(context.Background(), repoNow); err != nil {
		t.Fatalf("JobsPendingRetry: %v", err)
	}

	q := db.queries[0].query
	for _, fragment := range []string{
		"status = 'active'",
		"permanently_failed = false",
		"next_retry_at != NONE",
		"next_retry_at <= <datetime>$now",
		"ORDER BY next_retry_at ASC",
	} {
		if !strings.Contains(q, fragment) {
			t.Errorf("pending retry query missing %q:\n%s", fragment, q)
		}
	}
}

// ============================================================================
// Register / GetByID
// ============================================================================

func TestRegister_DuplicateIsIdempotent(t *testing.T) {
	db := &mockDatabase{
		executeFunc: func(ctx context.Context, query string, vars map[string]interface{}) error {
			return errors.New("there was a problem with the database: record already exists")
		},
	}
	repo := NewJobRepository(db)

	job := &model.Job{
		ID:       "sync_osv",
		Type:     "sync_osv",
		Schedule: model.CronSchedule("hourly"),
	}
	if err := repo.Register(context.Background(), job); err != nil {
		t.Fatalf("duplicate registration must be a no-op, got %v", err)
	}
}

func TestClassifyWriteError_MapsDuplicates(t *testing.T) {
	dup := classifyWriteError(errors.New("index uniq_job: record already exists"))
	if !errors.Is(dup, database.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", dup)
	}

	other := errors.New("connection reset")
	if got := classifyWriteError(other); !errors.Is(got, other) {
		t.Errorf("err = %v, want the original error unchanged", got)
	}
	if classifyWriteError(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestRegister_InvalidJobRejectedBeforeWrite(t *testing.T) {
	db := &mockDatabase{}
	repo := NewJobRepository(db)

	err := repo.Register(context.Background(), &model.Job{Type: "sync_osv"})
	if err == nil {
		t.Fatal("expected validation error for a job without an id")
	}
	if len(db.executes) != 0 {
		t.Error("invalid job must not reach the database")
	}
}

func TestGetByID_MissingReturnsNotFound(t *testing.T) {
	db := &mockDatabase{}
	repo := NewJobRepository(db)

	job, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, model.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
	if job != nil {
		t.Errorf("job = %+v, want nil for a missing record", job)
	}
}

func TestGetByID_ParsesRecord(t *testing.T) {
	db := &mockDatabase{
		queryFunc: func(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
			row := jobRow("sync_epss")
			row["next_retry_at"] = "2026-03-01T12:30:00Z"
			row["retry_count"] = 2
			return okRows(row), nil
		},
	}
	repo := NewJobRepository(db)

	job, err := repo.GetByID(context.Background(), "sync_epss")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.ID != "sync_epss" || job.Type != "sync_epss" {
		t.Errorf("identity wrong: %+v", job)
	}
	if job.Schedule.Kind != model.ScheduleCron || job.Schedule.Expression != "hourly" {
		t.Errorf("schedule wrong: %+v", job.Schedule)
	}
	if job.RetryCount != 2 || job.NextRetryAt == nil {
		t.Errorf("retry fields wrong: count=%d next=%v", job.RetryCount, job.NextRetryAt)
	}
	if job.NextRetryAt != nil && !job.NextRetryAt.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("next_retry_at = %v", job.NextRetryAt)
	}
}
