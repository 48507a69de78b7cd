package service

import (
	"time"

	"github.com/sentra/secintel/internal/model"
)

// maxBackoffShift caps the backoff exponent so the delay computation can
// never overflow a time.Duration, whatever max_retries is configured to.
const maxBackoffShift = 20

// RetryDecision is the next retry state computed for a failed job.
type RetryDecision struct {
	// Permanent is true when retries are exhausted; the job transitions to
	// status=failed with permanently_failed=true and is frozen.
	Permanent bool

	// RetryCount is the retry counter to store. Incremented when another
	// attempt is booked, unchanged when the failure is permanent.
	RetryCount int

	// NextRetryAt is when the job becomes reclaimable. Nil when Permanent.
	NextRetryAt *time.Time
}

// NextRetryState computes the retry transition for a job that just failed.
// It is a pure function of the job's retry fields and the current time.
//
// While retry_count < max_retries the counter is incremented and the next
// attempt is booked at now + retry_delay_minutes * 2^retry_count (using the
// incremented counter, so the delay after the nth failure is delay * 2^n).
// Once retry_count reaches max_retries the failure is permanent. A job with
// max_retries = 0 therefore fails permanently on its first error.
func NextRetryState(job *model.Job, now time.Time) RetryDecision {
	if job.RetryCount >= job.MaxRetries {
		return RetryDecision{Permanent: true, RetryCount: job.RetryCount}
	}

	count := job.RetryCount + 1
	shift := count
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	delay := time.Duration(job.RetryDelayMinutes) * time.Minute * time.Duration(int64(1)<<shift)
	at := now.Add(delay)

	return RetryDecision{RetryCount: count, NextRetryAt: &at}
}
