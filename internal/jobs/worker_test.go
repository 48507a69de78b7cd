package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sentra/secintel/internal/config"
	"github.com/sentra/secintel/internal/model"
)

type mockClaimSource struct {
	mu sync.Mutex

	claimNextFunc func(ctx context.Context, workerID string) (*model.Job, error)

	successes []map[string]interface{}
	failures  []error

	failureResult *model.Job
}

func (m *mockClaimSource) ClaimNext(ctx context.Context, workerID string) (*model.Job, error) {
	if m.claimNextFunc != nil {
		return m.claimNextFunc(ctx, workerID)
	}
	return nil, nil
}

func (m *mockClaimSource) ReportSuccess(ctx context.Context, job *model.Job, workerID string, result map[string]interface{}) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, result)
	return job, nil
}

func (m *mockClaimSource) ReportFailure(ctx context.Context, job *model.Job, workerID string, failure error) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure)
	if m.failureResult != nil {
		return m.failureResult, nil
	}
	return job, nil
}

type mockExecutionLog struct {
	mu      sync.Mutex
	entries []*model.JobExecution
}

func (m *mockExecutionLog) Append(ctx context.Context, exec *model.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, exec)
	return nil
}

type mockHeartbeatSink struct {
	mu        sync.Mutex
	recorded  []*model.Heartbeat
	recordErr error
}

func (m *mockHeartbeatSink) Record(ctx context.Context, hb *model.Heartbeat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, hb)
	return m.recordErr
}

func (m *mockHeartbeatSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		WorkerID:            "worker-test",
		Env:                 "test",
		PollInterval:        50 * time.Millisecond,
		HeartbeatInterval:   50 * time.Millisecond,
		MaxConcurrentJobs:   1,
		ShutdownGracePeriod: time.Second,
		Version:             "test",
	}
}

func newTestWorker(claims *mockClaimSource, registry *Registry) (*Worker, *mockExecutionLog, *mockHeartbeatSink) {
	execs := &mockExecutionLog{}
	hbs := &mockHeartbeatSink{}
	w := NewWorker(testWorkerConfig(), WorkerDeps{
		Claims:     claims,
		Heartbeats: hbs,
		Executions: execs,
		Registry:   registry,
		Logger:     slog.New(slog.DiscardHandler),
	})
	return w, execs, hbs
}

func sampleJob(jobType string) *model.Job {
	return &model.Job{
		ID:                jobType,
		Type:              jobType,
		Status:            model.JobStatusActive,
		Schedule:          model.CronSchedule("hourly"),
		MaxRetries:        3,
		RetryDelayMinutes: 5,
	}
}

func TestExecuteJob_SuccessReleasesWithResult(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc(model.JobTypeSyncOSV, func(ctx context.Context, cfg map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"advisories": 17}, nil
	})

	claims := &mockClaimSource{}
	w, execs, _ := newTestWorker(claims, registry)
	w.startedAt = time.Now().UTC()

	w.executeJob(context.Background(), sampleJob(model.JobTypeSyncOSV))

	if len(claims.successes) != 1 {
		t.Fatalf("ReportSuccess calls = %d, want 1", len(claims.successes))
	}
	if claims.successes[0]["advisories"] != 17 {
		t.Errorf("result = %v, want handler output", claims.successes[0])
	}
	if len(execs.entries) != 1 {
		t.Fatalf("execution entries = %d, want 1", len(execs.entries))
	}
	entry := execs.entries[0]
	if entry.Status != model.ExecutionCompleted {
		t.Errorf("execution status = %s, want completed", entry.Status)
	}
	if entry.WorkerID != "worker-test" || entry.JobID != model.JobTypeSyncOSV {
		t.Errorf("execution attribution wrong: %+v", entry)
	}
}

func TestExecuteJob_HandlerErrorReleasesAsFailure(t *testing.T) {
	handlerErr := errors.New("upstream 503")
	registry := NewRegistry()
	registry.RegisterFunc(model.JobTypeSyncGHSA, func(ctx context.Context, cfg map[string]interface{}) (map[string]interface{}, error) {
		return nil, handlerErr
	})

	claims := &mockClaimSource{}
	w, execs, _ := newTestWorker(claims, registry)
	w.startedAt = time.Now().UTC()

	w.executeJob(context.Background(), sampleJob(model.JobTypeSyncGHSA))

	if len(claims.failures) != 1 {
		t.Fatalf("ReportFailure calls = %d, want 1", len(claims.failures))
	}
	if !errors.Is(claims.failures[0], handlerErr) {
		t.Errorf("failure = %v, want handler error", claims.failures[0])
	}
	if len(execs.entries) != 1 || execs.entries[0].Status != model.ExecutionFailed {
		t.Errorf("execution entries = %+v, want one failed entry", execs.entries)
	}
}

func TestExecuteJob_UnknownTypeReleasesAsFailure(t *testing.T) {
	claims := &mockClaimSource{}
	w, _, _ := newTestWorker(claims, NewRegistry())
	w.startedAt = time.Now().UTC()

	w.executeJob(context.Background(), sampleJob("no_such_type"))

	if len(claims.failures) != 1 {
		t.Fatalf("ReportFailure calls = %d, want 1", len(claims.failures))
	}
	if !errors.Is(claims.failures[0], model.ErrUnknownJobType) {
		t.Errorf("failure = %v, want ErrUnknownJobType", claims.failures[0])
	}
}

func TestExecuteJob_PanicIsContained(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc(model.JobTypeSyncNVD, func(ctx context.Context, cfg map[string]interface{}) (map[string]interface{}, error) {
		panic("nil map write")
	})

	claims := &mockClaimSource{}
	w, execs, _ := newTestWorker(claims, registry)
	w.startedAt = time.Now().UTC()

	w.executeJob(context.Background(), sampleJob(model.JobTypeSyncNVD))

	if len(claims.failures) != 1 {
		t.Fatalf("ReportFailure calls = %d, want 1: a panic must release the claim", len(claims.failures))
	}
	if !strings.Contains(claims.failures[0].Error(), "handler panic") {
		t.Errorf("failure = %v, want a handler panic error", claims.failures[0])
	}
	if len(execs.entries) != 1 || execs.entries[0].Status != model.ExecutionFailed {
		t.Errorf("execution entries = %+v, want one failed entry", execs.entries)
	}
}

func TestWorker_PollLoopClaimsAndExecutes(t *testing.T) {
	registry := NewRegistry()
	done := make(chan struct{})
	registry.RegisterFunc(model.JobTypeSyncOSV, func(ctx context.Context, cfg map[string]interface{}) (map[string]interface{}, error) {
		select {
		case <-done:
		default:
			close(done)
		}
		return nil, nil
	})

	var claimed bool
	var mu sync.Mutex
	claims := &mockClaimSource{}
	claims.claimNextFunc = func(ctx context.Context, workerID string) (*model.Job, error) {
		mu.Lock()
		defer mu.Unlock()
		if claimed {
			return nil, nil
		}
		claimed = true
		return sampleJob(model.JobTypeSyncOSV), nil
	}

	w, _, hbs := newTestWorker(claims, registry)

	w.Start()
	defer w.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop never executed the claimed job")
	}

	// The heartbeat loop sends immediately on startup.
	deadline := time.After(2 * time.Second)
	for hbs.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no heartbeat recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorker_SnapshotReportsDegradedAfterPollError(t *testing.T) {
	claims := &mockClaimSource{}
	w, _, _ := newTestWorker(claims, NewRegistry())
	w.startedAt = time.Now().UTC()

	w.mu.Lock()
	w.lastPollErr = errors.New("db unreachable")
	w.lastPollAt = time.Now().UTC()
	w.mu.Unlock()

	hb := w.Snapshot()
	if hb.Health != model.WorkerDegraded {
		t.Errorf("health = %s, want degraded after a poll error", hb.Health)
	}
	if hb.Status["last_poll_error"] == nil {
		t.Error("snapshot must carry the poll error detail")
	}
	if hb.WorkerID != "worker-test" {
		t.Errorf("worker_id = %s", hb.WorkerID)
	}
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	claims := &mockClaimSource{}
	w, _, _ := newTestWorker(claims, NewRegistry())

	w.Start()
	w.Stop()
	w.Stop() // second call must not panic on the closed channel
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := NewRegistry()
	r.RegisterFunc("sync_osv", nil)
	r.RegisterFunc("analyze_package", nil)
	r.RegisterFunc("sync_ghsa", nil)

	got := r.Types()
	want := []string{"analyze_package", "sync_ghsa", "sync_osv"}
	if len(got) != len(want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types = %v, want %v", got, want)
		}
	}
}
