// Package model defines the core data types for the job scheduling and
// worker coordination subsystem.
//
// # Types
//
// The package defines three persisted entities:
//
//   - Job: a recurring or one-shot unit of work with schedule, claim,
//     and retry state
//   - Heartbeat: the latest liveness snapshot for one worker process
//   - JobExecution: an append-only record of a single job run
//
// # Scheduling State
//
// A Job's lifecycle is encoded across several columns (status,
// permanently_failed, claimed_by, next_retry_at). The SchedulingState
// method derives an explicit state from those columns so that calling
// code never has to reason about raw column combinations:
//
//	switch job.SchedulingState(now, staleAfter) {
//	case model.StateClaimed:
//	    // another worker holds a live claim
//	case model.StateDue:
//	    // eligible for claiming right now
//	}
//
// # Validation
//
// Entities expose Validate() returning a slice of field errors, matching
// the request validation pattern used across the platform.
package model
