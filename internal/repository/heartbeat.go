package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentra/secintel/internal/database"
	"github.com/sentra/secintel/internal/model"
)

// HeartbeatRepository handles the worker liveness registry
type HeartbeatRepository struct {
	db database.Database
}

// NewHeartbeatRepository creates a new heartbeat repository
func NewHeartbeatRepository(db database.Database) *HeartbeatRepository {
	return &HeartbeatRepository{db: db}
}

// Record upserts the live row for a worker and appends one history entry.
// Both writes run in a single transaction: they land together or not at
// all. Each worker only ever writes its own row, so there is no
// read-modify-write race to guard against here.
func (r *HeartbeatRepository) Record(ctx context.Context, hb *model.Heartbeat) error {
	if errs := hb.Validate(); len(errs) > 0 {
		return model.NewValidationError(errs)
	}

	upsert := `
		UPSERT type::thing('heartbeat', $worker_id) SET
			health = $health,
			uptime_seconds = $uptime_seconds,
			started_at = <datetime>$started_at,
			total_jobs = $total_jobs,
			running_jobs = $running_jobs,
			job_types = $job_types,
			version = $version,
			poll_interval_seconds = $poll_interval,
			heartbeat_interval_seconds = $heartbeat_interval,
			status = $status,
			recorded_at = <datetime>$recorded_at
	`
	history := `
		CREATE heartbeat_history SET
			worker_id = $worker_id,
			health = $health,
			recorded_at = <datetime>$recorded_at,
			snapshot = $snapshot
	`

	liveVars := map[string]interface{}{
		"worker_id":          hb.WorkerID,
		"health":             string(hb.Health),
		"uptime_seconds":     hb.UptimeSeconds,
		"started_at":         formatTime(hb.StartedAt),
		"total_jobs":         hb.TotalJobs,
		"running_jobs":       hb.RunningJobs,
		"job_types":          hb.JobTypes,
		"version":            hb.Version,
		"poll_interval":      hb.PollIntervalSeconds,
		"heartbeat_interval": hb.HeartbeatIntervalSeconds,
		"status":             hb.Status,
		"recorded_at":        formatTime(hb.RecordedAt),
	}
	historyVars := map[string]interface{}{
		"worker_id":   hb.WorkerID,
		"health":      string(hb.Health),
		"recorded_at": formatTime(hb.RecordedAt),
		"snapshot": map[string]interface{}{
			"uptime_seconds": hb.UptimeSeconds,
			"total_jobs":     hb.TotalJobs,
			"running_jobs":   hb.RunningJobs,
			"version":        hb.Version,
			"status":         hb.Status,
		},
	}

	batch := database.NewAtomicBatch()
	batch.Add(upsert, liveVars)
	batch.Add(history, historyVars)
	return batch.Execute(ctx, r.db)
}

// GetByWorker retrieves the latest snapshot for one worker. Returns
// (nil, nil) when the worker has never sent a heartbeat.
func (r *HeartbeatRepository) GetByWorker(ctx context.Context, workerID string) (*model.Heartbeat, error) {
	query := `SELECT * FROM type::thing('heartbeat', $worker_id)`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"worker_id": workerID})
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected heartbeat record shape %T", result)
	}
	return parseHeartbeatRecord(row), nil
}

// ActiveWorkers returns heartbeats recorded within the liveness window,
// most recent first.
func (r *HeartbeatRepository) ActiveWorkers(ctx context.Context, now time.Time, window time.Duration) ([]*model.Heartbeat, error) {
	query := `
		SELECT * FROM heartbeat
		WHERE recorded_at >= <datetime>$cutoff
		ORDER BY recorded_at DESC
	`
	vars := map[string]interface{}{"cutoff": formatTime(now.Add(-window))}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryRows(results)
	heartbeats := make([]*model.Heartbeat, 0, len(rows))
	for _, row := range rows {
		heartbeats = append(heartbeats, parseHeartbeatRecord(row))
	}
	return heartbeats, nil
}

// History returns the append-only heartbeat trail for one worker, most
// recent first, capped at limit entries.
func (r *HeartbeatRepository) History(ctx context.Context, workerID string, limit int) ([]*model.HeartbeatHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT * FROM heartbeat_history
		WHERE worker_id = $worker_id
		ORDER BY recorded_at DESC
		LIMIT $limit
	`
	vars := map[string]interface{}{
		"worker_id": workerID,
		"limit":     limit,
	}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryRows(results)
	entries := make([]*model.HeartbeatHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := &model.HeartbeatHistoryEntry{
			ID:       extractRecordID(row["id"]),
			WorkerID: getString(row, "worker_id"),
			Health:   model.WorkerHealth(getString(row, "health")),
			Snapshot: getMap(row, "snapshot"),
		}
		if t := getTime(row, "recorded_at"); t != nil {
			entry.RecordedAt = *t
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseHeartbeatRecord converts one stored row into a heartbeat model.
func parseHeartbeatRecord(data map[string]interface{}) *model.Heartbeat {
	hb := &model.Heartbeat{
		WorkerID:                 bareID(extractRecordID(data["id"])),
		Health:                   model.WorkerHealth(getString(data, "health")),
		UptimeSeconds:            int64(getInt(data, "uptime_seconds")),
		TotalJobs:                getInt(data, "total_jobs"),
		RunningJobs:              getInt(data, "running_jobs"),
		JobTypes:                 getStringSlice(data, "job_types"),
		Version:                  getString(data, "version"),
		PollIntervalSeconds:      getInt(data, "poll_interval_seconds"),
		HeartbeatIntervalSeconds: getInt(data, "heartbeat_interval_seconds"),
		Status:                   getMap(data, "status"),
	}
	if t := getTime(data, "started_at"); t != nil {
		hb.StartedAt = *t
	}
	if t := getTime(data, "recorded_at"); t != nil {
		hb.RecordedAt = *t
	}
	return hb
}
