package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentra/secintel/internal/service"
)

// Config holds all worker configuration
type Config struct {
	Worker   WorkerConfig
	Ops      OpsConfig
	Database DatabaseConfig
}

// WorkerConfig holds scheduler loop settings
type WorkerConfig struct {
	// WorkerID identifies this process in claims and heartbeats. Must be
	// unique per process; defaults to hostname plus a random suffix.
	WorkerID string

	Env                 string
	PollInterval        time.Duration
	HeartbeatInterval   time.Duration
	MaxConcurrentJobs   int
	ShutdownGracePeriod time.Duration
	Version             string

	// JobTypes restricts which job types this worker picks up. Empty
	// means all registered types.
	JobTypes []string
}

// OpsConfig holds the operational HTTP endpoint settings
type OpsConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return &Config{
		Worker: WorkerConfig{
			WorkerID:            getEnv("WORKER_ID", defaultWorkerID()),
			Env:                 getEnv("WORKER_ENV", "development"),
			PollInterval:        getDurationEnv("WORKER_POLL_INTERVAL", 5*time.Minute),
			HeartbeatInterval:   getDurationEnv("WORKER_HEARTBEAT_INTERVAL", 60*time.Second),
			MaxConcurrentJobs:   getIntEnv("WORKER_MAX_CONCURRENT_JOBS", 1),
			ShutdownGracePeriod: getDurationEnv("WORKER_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
			Version:             getEnv("WORKER_VERSION", "dev"),
			JobTypes:            getSliceEnv("WORKER_JOB_TYPES", nil),
		},
		Ops: OpsConfig{
			Port:         getEnv("OPS_PORT", "8080"),
			ReadTimeout:  getDurationEnv("OPS_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("OPS_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnv("DB_PORT", "8000"),
			Namespace: getEnv("DB_NAMESPACE", "secintel"),
			Database:  getEnv("DB_DATABASE", "main"),
			User:      getEnv("DB_USER", "root"),
			Password:  getEnv("DB_PASSWORD", "root"),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Worker.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Worker.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Worker validation
	if c.Worker.WorkerID == "" {
		errs = append(errs, errors.New("WORKER_ID is required"))
	}
	if c.Worker.Env != "development" && c.Worker.Env != "production" && c.Worker.Env != "test" {
		errs = append(errs, fmt.Errorf("WORKER_ENV must be 'development', 'production', or 'test', got '%s'", c.Worker.Env))
	}
	if c.Worker.PollInterval <= 0 {
		errs = append(errs, errors.New("WORKER_POLL_INTERVAL must be positive"))
	}
	if c.Worker.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("WORKER_HEARTBEAT_INTERVAL must be positive"))
	}
	if c.Worker.HeartbeatInterval > service.ActiveWorkerWindow/2 {
		// A worker must fit at least two heartbeats into the
		// active-worker window, or a single missed beat drops it from
		// the live view.
		errs = append(errs, fmt.Errorf("WORKER_HEARTBEAT_INTERVAL must be at most half the active-worker window (%s)", service.ActiveWorkerWindow))
	}
	if c.Worker.MaxConcurrentJobs <= 0 {
		errs = append(errs, errors.New("WORKER_MAX_CONCURRENT_JOBS must be positive"))
	}
	if c.Worker.ShutdownGracePeriod <= 0 {
		errs = append(errs, errors.New("WORKER_SHUTDOWN_GRACE_PERIOD must be positive"))
	}

	// Ops endpoint validation
	if c.Ops.Port == "" {
		errs = append(errs, errors.New("OPS_PORT is required"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}
	if c.IsProduction() {
		if c.Database.User == "root" && c.Database.Password == "root" {
			errs = append(errs, errors.New("default database credentials are not allowed in production"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
