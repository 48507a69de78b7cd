package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sentra/secintel/internal/config"
	"github.com/sentra/secintel/internal/database"
	"github.com/sentra/secintel/internal/jobs"
	"github.com/sentra/secintel/internal/metrics"
	"github.com/sentra/secintel/internal/repository"
	"github.com/sentra/secintel/internal/server"
	"github.com/sentra/secintel/internal/service"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	heartbeatRepo := repository.NewHeartbeatRepository(db)
	executionRepo := repository.NewExecutionRepository(db)

	// Initialize metrics
	m := metrics.New(cfg.Worker.WorkerID, cfg.Worker.Version)

	// Initialize services
	claimService := service.NewClaimService(service.ClaimServiceConfig{
		JobStore: jobRepo,
		JobTypes: cfg.Worker.JobTypes,
		OnClaimConflict: func(jobID string) {
			m.ClaimConflicts.Inc()
		},
	})
	livenessService := service.NewLivenessService(service.LivenessServiceConfig{
		HeartbeatStore: heartbeatRepo,
		JobStore:       jobRepo,
	})

	// Register job handlers. Handlers ship separately from the scheduler;
	// a deployment binds its own implementations here before seeding.
	registry := jobs.NewRegistry()

	// Seed standing job definitions for every type this worker can run.
	if err := jobs.SeedCatalog(ctx, claimService, registry); err != nil {
		slog.Error("failed to seed job catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start the scheduler loop
	worker := jobs.NewWorker(cfg.Worker, jobs.WorkerDeps{
		Claims:     claimService,
		Heartbeats: heartbeatRepo,
		Executions: executionRepo,
		Registry:   registry,
		Metrics:    m,
		Logger:     logger,
	})
	worker.Start()

	// Start operational HTTP server
	srv := server.New(cfg.Ops, server.Deps{
		DB:         db,
		Worker:     worker,
		Jobs:       jobRepo,
		Executions: executionRepo,
		Liveness:   livenessService,
		Registry:   m.Registry(),
		Version:    cfg.Worker.Version,
	})

	go func() {
		slog.Info("starting ops server",
			slog.String("port", cfg.Ops.Port),
			slog.String("env", cfg.Worker.Env),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("worker exited")
}
