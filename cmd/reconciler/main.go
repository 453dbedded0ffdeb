package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quillspace/engage/internal/counter"
	"github.com/quillspace/engage/internal/db"
	"github.com/quillspace/engage/pkg/config"
	"github.com/quillspace/engage/pkg/logging"
	"github.com/quillspace/engage/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Engage Counter Reconciler")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect to database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	reconciler := counter.NewReconciler(database.DB, logger.With(zap.String("component", "reconciler")))

	runPass := func(ctx context.Context) {
		start := time.Now()
		report, err := reconciler.ReconcileAll(ctx)
		if err != nil {
			logger.Error("Reconciliation pass failed", zap.Error(err))
			return
		}
		logger.Info("Reconciliation pass complete",
			zap.Int64("reply_counts_fixed", report.ReplyCounts),
			zap.Int64("post_counters_fixed", report.PostCounters),
			zap.Int64("follow_counters_fixed", report.FollowCounters),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runPass(ctx)

	if cfg.Reconciler.RunOnce {
		logger.Info("Run-once mode, exiting")
		return
	}

	ticker := time.NewTicker(cfg.Reconciler.Interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runPass(ctx)
		case <-quit:
			logger.Info("Shutting down reconciler...")
			cancel()
			logger.Info("Reconciler exited")
			return
		}
	}
}
