// Package server exposes the worker's operational HTTP endpoints.
//
// The surface is read-only: health and status for probes and operators,
// Prometheus metrics for scrapes, and a small /v1 API for inspecting the
// shared job store (job definitions, execution history, worker liveness).
// Job mutation happens only through the scheduling protocol, never HTTP.
package server
