// Package service implements the coordination logic of the scheduling
// subsystem: claiming, retry scheduling, and liveness derivation.
//
// # Claim Manager
//
// ClaimService grants at most one live claim per job across arbitrarily
// many polling workers. It never locks: the job store's conditional UPDATE
// is the only synchronization primitive. A lost race surfaces as
// model.ErrClaimConflict and the service simply moves to the next
// candidate.
//
// # Retry Scheduler
//
// NextRetryState is a pure function of a job's retry state. It either
// books the next attempt with exponential backoff or freezes the job as
// permanently failed once retries are exhausted.
//
// # Liveness Monitor
//
// LivenessService is a read-side derivation over the heartbeat registry
// and job store. Nothing is stored: "active worker" and "stale claim" are
// computed from timestamps at query time. Note the deliberate asymmetry
// between the two windows — claim staleness is claim-age-based
// (StaleClaimThreshold, ten minutes) and independent of worker liveness
// (ActiveWorkerWindow, five minutes), so the two subsystems' clocks never
// couple.
package service
