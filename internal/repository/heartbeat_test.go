package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sentra/secintel/internal/model"
)

func sampleHeartbeat() *model.Heartbeat {
	return &model.Heartbeat{
		WorkerID:                 "worker-a",
		Health:                   model.WorkerHealthy,
		UptimeSeconds:            300,
		StartedAt:                repoNow.Add(-5 * time.Minute),
		TotalJobs:                4,
		RunningJobs:              1,
		JobTypes:                 []string{"sync_osv"},
		Version:                  "dev",
		PollIntervalSeconds:      300,
		HeartbeatIntervalSeconds: 60,
		RecordedAt:               repoNow,
	}
}

func TestRecord_UpsertAndHistoryInOneTransaction(t *testing.T) {
	db := &mockDatabase{}
	repo := NewHeartbeatRepository(db)

	if err := repo.Record(context.Background(), sampleHeartbeat()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(db.queries) != 1 {
		t.Fatalf("queries = %d, want a single transactional batch", len(db.queries))
	}
	q := db.queries[0].query
	for _, fragment := range []string{
		"BEGIN TRANSACTION",
		"UPSERT type::thing('heartbeat'",
		"CREATE heartbeat_history",
		"COMMIT TRANSACTION",
	} {
		if !strings.Contains(q, fragment) {
			t.Errorf("batch missing %q:\n%s", fragment, q)
		}
	}
	if strings.Index(q, "UPSERT") > strings.Index(q, "CREATE heartbeat_history") {
		t.Error("live-row upsert must precede the history append")
	}
}

func TestRecord_RejectsInvalidSnapshot(t *testing.T) {
	db := &mockDatabase{}
	repo := NewHeartbeatRepository(db)

	hb := sampleHeartbeat()
	hb.WorkerID = ""

	if err := repo.Record(context.Background(), hb); err == nil {
		t.Fatal("expected validation error for a heartbeat without a worker id")
	}
	if len(db.queries) != 0 {
		t.Error("invalid heartbeat must not reach the database")
	}
}

func TestActiveWorkers_WindowAndOrder(t *testing.T) {
	db := &mockDatabase{}
	repo := NewHeartbeatRepository(db)

	if _, err := repo.ActiveWorkers(context.Background(), repoNow, 5*time.Minute); err != nil {
		t.Fatalf("ActiveWorkers: %v", err)
	}

	q := db.queries[0].query
	if !strings.Contains(q, "recorded_at >= <datetime>$cutoff") {
		t.Errorf("active workers query missing window cutoff:\n%s", q)
	}
	if !strings.Contains(q, "ORDER BY recorded_at DESC") {
		t.Errorf("active workers must be most-recent first:\n%s", q)
	}

	wantCutoff := repoNow.Add(-5 * time.Minute).UTC().Format(time.RFC3339Nano)
	if db.queries[0].vars["cutoff"] != wantCutoff {
		t.Errorf("cutoff = %v, want %v", db.queries[0].vars["cutoff"], wantCutoff)
	}
}

func TestGetByWorker_MissingReturnsNilNil(t *testing.T) {
	db := &mockDatabase{}
	repo := NewHeartbeatRepository(db)

	hb, err := repo.GetByWorker(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetByWorker: %v", err)
	}
	if hb != nil {
		t.Errorf("hb = %+v, want nil for an unknown worker", hb)
	}
}
