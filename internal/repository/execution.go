package repository

import (
	"context"

	"github.com/sentra/secintel/internal/database"
	"github.com/sentra/secintel/internal/model"
)

// ExecutionRepository handles the append-only job execution trail
type ExecutionRepository struct {
	db database.Database
}

// NewExecutionRepository creates a new execution repository
func NewExecutionRepository(db database.Database) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Append records one finished (or started) job run. Entries are never
// mutated or deleted by this subsystem; retention is an external concern.
func (r *ExecutionRepository) Append(ctx context.Context, exec *model.JobExecution) error {
	query := `
		CREATE type::thing('job_execution', $execution_id) SET
			job_id = $job_id,
			job_type = $job_type,
			worker_id = $worker_id,
			status = $status,
			started_at = <datetime>$started_at,
			error = $error,
			result = $result
	`
	vars := map[string]interface{}{
		"execution_id": exec.ExecutionID,
		"job_id":       exec.JobID,
		"job_type":     exec.JobType,
		"worker_id":    exec.WorkerID,
		"status":       string(exec.Status),
		"started_at":   formatTime(exec.StartedAt),
		"error":        exec.Error,
		"result":       exec.Result,
	}
	if exec.CompletedAt != nil {
		query += `, completed_at = <datetime>$completed_at, duration_seconds = $duration_seconds`
		vars["completed_at"] = formatTime(*exec.CompletedAt)
		vars["duration_seconds"] = exec.DurationSeconds
	}

	return r.db.Execute(ctx, query, vars)
}

// ListByJob returns the most recent executions of one job.
func (r *ExecutionRepository) ListByJob(ctx context.Context, jobID string, limit int) ([]*model.JobExecution, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT * FROM job_execution
		WHERE job_id = $job_id
		ORDER BY started_at DESC
		LIMIT $limit
	`
	vars := map[string]interface{}{
		"job_id": jobID,
		"limit":  limit,
	}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryRows(results)
	execs := make([]*model.JobExecution, 0, len(rows))
	for _, row := range rows {
		exec := &model.JobExecution{
			ExecutionID: bareID(extractRecordID(row["id"])),
			JobID:       getString(row, "job_id"),
			JobType:     getString(row, "job_type"),
			WorkerID:    getString(row, "worker_id"),
			Status:      model.ExecutionStatus(getString(row, "status")),
			Error:       getStringPtr(row, "error"),
			Result:      getMap(row, "result"),
		}
		if t := getTime(row, "started_at"); t != nil {
			exec.StartedAt = *t
		}
		exec.CompletedAt = getTime(row, "completed_at")
		if d, ok := row["duration_seconds"]; ok && d != nil {
			sec := getFloat(row, "duration_seconds")
			exec.DurationSeconds = &sec
		}
		execs = append(execs, exec)
	}
	return execs, nil
}
