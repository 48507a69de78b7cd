package model

import (
	"time"
)

// WorkerHealth represents a worker's self-reported health status.
type WorkerHealth string

const (
	WorkerHealthy   WorkerHealth = "healthy"
	WorkerDegraded  WorkerHealth = "degraded"
	WorkerUnhealthy WorkerHealth = "unhealthy"
)

// Heartbeat is the latest liveness snapshot for one worker process. Each
// heartbeat overwrites the previous snapshot for that worker; the registry
// holds at most one live row per worker identifier.
type Heartbeat struct {
	WorkerID      string       `json:"worker_id"`
	Health        WorkerHealth `json:"health"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartedAt     time.Time    `json:"started_at"`

	TotalJobs   int      `json:"total_jobs"`
	RunningJobs int      `json:"running_jobs"`
	JobTypes    []string `json:"job_types,omitempty"`

	Version                  string `json:"version,omitempty"`
	PollIntervalSeconds      int    `json:"poll_interval_seconds"`
	HeartbeatIntervalSeconds int    `json:"heartbeat_interval_seconds"`

	Status map[string]interface{} `json:"status,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Validate checks a heartbeat snapshot before it is recorded.
func (h *Heartbeat) Validate() []FieldError {
	var errs []FieldError

	if h.WorkerID == "" {
		errs = append(errs, FieldError{Field: "worker_id", Message: "worker_id is required"})
	}
	switch h.Health {
	case WorkerHealthy, WorkerDegraded, WorkerUnhealthy:
	default:
		errs = append(errs, FieldError{Field: "health", Message: "health must be healthy, degraded, or unhealthy"})
	}
	if h.RunningJobs < 0 || h.TotalJobs < 0 {
		errs = append(errs, FieldError{Field: "total_jobs", Message: "job counts must be >= 0"})
	}

	return errs
}

// IsActive reports whether the snapshot is recent enough for the worker to
// count as alive.
func (h *Heartbeat) IsActive(now time.Time, window time.Duration) bool {
	return now.Sub(h.RecordedAt) <= window
}

// HeartbeatHistoryEntry is the append-only copy of a heartbeat kept for
// trend analysis. Entries are never mutated or deleted by this subsystem.
type HeartbeatHistoryEntry struct {
	ID         string       `json:"id,omitempty"`
	WorkerID   string       `json:"worker_id"`
	Health     WorkerHealth `json:"health"`
	RecordedAt time.Time    `json:"recorded_at"`

	Snapshot map[string]interface{} `json:"snapshot,omitempty"`
}
