// Package repository implements data access for the scheduling subsystem
// over SurrealDB.
//
// Three repositories map to the three persisted entities:
//
//   - JobRepository: the job store plus the conditional-update claim
//     protocol and the derived read views (claimable, pending retry)
//   - HeartbeatRepository: latest-per-worker liveness snapshots with an
//     append-only history trail
//   - ExecutionRepository: append-only per-run execution records
//
// # Claim protocol
//
// Every mutation that participates in coordination is a SINGLE conditional
// UPDATE whose WHERE clause re-checks the gating predicate at write time.
// Two workers racing for the same job each issue the same statement; the
// store serializes them and exactly one matches the row. The loser gets an
// empty result set, surfaced as model.ErrClaimConflict — a signal to try
// another job, never a fault.
//
// Callers must never cache claim ownership across poll cycles or rely on a
// prior read remaining valid: the row in the store is the only truth.
package repository
