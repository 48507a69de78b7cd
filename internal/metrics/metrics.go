// Package metrics exposes Prometheus instruments for the scheduler loop.
//
// All instruments live on a private registry so the /metrics endpoint
// serves only scheduler series plus the standard Go runtime collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduler loop instruments.
type Metrics struct {
	registry *prometheus.Registry

	JobsClaimed          *prometheus.CounterVec
	JobsSucceeded        *prometheus.CounterVec
	JobsFailed           *prometheus.CounterVec
	JobsRetried          *prometheus.CounterVec
	JobsPermanentlyFailed *prometheus.CounterVec
	ClaimConflicts       prometheus.Counter
	PollCycleDuration    prometheus.Histogram
	WorkerUptime         prometheus.Gauge
	RunningJobs          prometheus.Gauge
}

// New builds the instrument set on a fresh registry. The worker identity
// and version are attached as constant labels so multi-worker scrapes
// stay distinguishable.
func New(workerID, version string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"worker_id": workerID, "version": version}

	return &Metrics{
		registry: reg,
		JobsClaimed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "scheduler_jobs_claimed_total",
			Help:        "Jobs successfully claimed by this worker.",
			ConstLabels: constLabels,
		}, []string{"job_type"}),
		JobsSucceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "scheduler_jobs_succeeded_total",
			Help:        "Job executions that completed successfully.",
			ConstLabels: constLabels,
		}, []string{"job_type"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "scheduler_jobs_failed_total",
			Help:        "Job executions that ended in failure, including panics and timeouts.",
			ConstLabels: constLabels,
		}, []string{"job_type"}),
		JobsRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "scheduler_jobs_retried_total",
			Help:        "Failures that were scheduled for a retry.",
			ConstLabels: constLabels,
		}, []string{"job_type"}),
		JobsPermanentlyFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "scheduler_jobs_permanently_failed_total",
			Help:        "Jobs frozen after exhausting their retry budget.",
			ConstLabels: constLabels,
		}, []string{"job_type"}),
		ClaimConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name:        "scheduler_claim_conflicts_total",
			Help:        "Claim attempts lost to another worker.",
			ConstLabels: constLabels,
		}),
		PollCycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "scheduler_poll_cycle_duration_seconds",
			Help:        "Duration of a full poll cycle, including job execution.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		WorkerUptime: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scheduler_worker_uptime_seconds",
			Help:        "Seconds since this worker process started.",
			ConstLabels: constLabels,
		}),
		RunningJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scheduler_running_jobs",
			Help:        "Jobs currently executing on this worker.",
			ConstLabels: constLabels,
		}),
	}
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
