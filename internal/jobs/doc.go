// Package jobs runs the scheduler loop inside a worker process.
//
// A Worker owns two background loops: the poll loop, which claims due jobs
// through the claim service and executes them against registered handlers,
// and the heartbeat loop, which records a liveness snapshot on a fixed
// cadence. Both stop when Stop is called, which drains in-flight jobs up
// to the configured grace period.
//
// Handlers are looked up by job type in a Registry. A claimed job with no
// registered handler is released as a failure immediately so its retry
// budget decides whether it keeps coming back.
//
// Handler panics are contained: a panicking job is reported as a failure
// like any other error and never takes the loop down.
package jobs
