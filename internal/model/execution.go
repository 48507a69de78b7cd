package model

import (
	"time"
)

// ExecutionStatus is the outcome of a single job run.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// JobExecution is an append-only record of one run of a job by one worker.
// It exists for audit and trend analysis; the scheduling protocol itself
// only reads and writes the Job row.
type JobExecution struct {
	ExecutionID string          `json:"execution_id"`
	JobID       string          `json:"job_id"`
	JobType     string          `json:"job_type"`
	WorkerID    string          `json:"worker_id"`
	Status      ExecutionStatus `json:"status"`

	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`

	Error  *string                `json:"error,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
}

// Complete marks the execution finished at the given instant, recording
// duration and either the result or the error.
func (e *JobExecution) Complete(at time.Time, result map[string]interface{}, runErr error) {
	e.CompletedAt = &at
	d := at.Sub(e.StartedAt).Seconds()
	e.DurationSeconds = &d
	if runErr != nil {
		e.Status = ExecutionFailed
		msg := runErr.Error()
		e.Error = &msg
		return
	}
	e.Status = ExecutionCompleted
	e.Result = result
}
