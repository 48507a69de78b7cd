// Package database provides SurrealDB connectivity for the scheduling
// subsystem.
//
// The coordination protocol depends on two properties of the store, both
// provided by SurrealDB and surfaced through this package:
//
//   - Per-row atomicity: a single conditional UPDATE is indivisible. The
//     claim protocol is built entirely on UPDATE statements whose WHERE
//     clause re-checks the claim predicate at write time.
//   - Atomic multi-statement batches: the heartbeat upsert and its history
//     append are wrapped in BEGIN TRANSACTION / COMMIT TRANSACTION via
//     AtomicBatch so they land together or not at all.
//
// # Database Interface
//
// The Database interface defines the operations repositories build on:
//
//	Query(ctx, query, vars)    // multiple results
//	QueryOne(ctx, query, vars) // single result, ErrNotFound when empty
//	Execute(ctx, query, vars)  // mutations with no result
//
// # Error Types
//
// Standard error types for data operations:
//
//   - ErrNotFound: record does not exist
//   - ErrDuplicate: unique constraint violation (idempotent registration
//     relies on this)
//   - ErrConnection: connection failed or lost
//   - ErrQuery: query execution failure
//
// Use errors.Is() to check error types. A failed conditional write is NOT
// an error at this layer: it returns an empty result set, which the
// repository layer translates into a claim conflict.
package database
