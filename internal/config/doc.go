// Package config manages worker process configuration.
//
// The config package loads and validates configuration from environment
// variables. All configuration is centralized here to provide a single
// source of truth.
//
// # Configuration Loading
//
// Configuration is loaded from environment variables:
//
//	cfg, err := config.Load()
//
// # Configuration Groups
//
// Configuration is organized into logical groups:
//
//   - WorkerConfig: scheduler loop settings (identity, poll and heartbeat cadence)
//   - OpsConfig: operational HTTP endpoint settings (health, status, metrics)
//   - DatabaseConfig: SurrealDB connection settings
//
// # Environment Variables
//
// Key environment variables:
//
//	WORKER_ID                   - unique worker identity (default: hostname + random suffix)
//	WORKER_POLL_INTERVAL        - queue poll cadence (default: 5m)
//	WORKER_HEARTBEAT_INTERVAL   - heartbeat cadence (default: 60s)
//	WORKER_MAX_CONCURRENT_JOBS  - jobs executed at once (default: 1)
//	WORKER_JOB_TYPES            - comma-separated claim restriction (default: all types)
//	WORKER_SHUTDOWN_GRACE_PERIOD - drain budget on SIGTERM (default: 30s)
//	OPS_PORT                    - operational HTTP port (default: 8080)
//	DB_HOST / DB_PORT           - SurrealDB endpoint
//	DB_NAMESPACE / DB_DATABASE  - SurrealDB namespace and database
//	DB_USER / DB_PASSWORD       - database credentials
//
// # Default Values
//
// Sensible defaults are provided for development; Validate rejects the
// default database credentials in production.
package config
