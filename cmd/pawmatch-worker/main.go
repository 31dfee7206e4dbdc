// Package main is the entry point for the PawMatch background worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pawmatch/pawmatch/internal/app"
	"github.com/pawmatch/pawmatch/internal/config"
	"github.com/pawmatch/pawmatch/internal/jobs"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if cfg.Redis.URL == "" {
		log.Fatal("REDIS_URL is required for the worker")
	}
	if err := telemetry.InitGlobalLogger(&cfg.Logging); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger := telemetry.GetGlobalLogger()
	logger.Info("Starting PawMatch worker...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.InitializeOpenTelemetry(ctx, &cfg.Telemetry)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}
	defer shutdownTelemetry()

	a, err := app.New(ctx, cfg, version)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close backends")
		}
	}()

	worker, err := jobs.NewWorker(cfg.Redis.URL, cfg.Worker.Concurrency)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create worker")
	}
	worker.RegisterHandler(jobs.TypeExpirySweep, jobs.NewExpirySweepHandler(a.Lifecycle, cfg.Worker.ExpirySweepBatch))
	worker.RegisterHandler(jobs.TypeSwipeReconcile, jobs.NewSwipeReconcileHandler(a.Store, a.Swipes, cfg.Worker.ReconcileLookback))

	scheduler, err := jobs.NewScheduler(cfg.Redis.URL, jobs.ScheduleConfig{
		ExpirySweep:    cfg.Worker.ExpirySchedule,
		SwipeReconcile: cfg.Worker.ReconcileSchedule,
		ExpiryBatch:    cfg.Worker.ExpirySweepBatch,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scheduler")
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting task scheduler...")
		return scheduler.Run()
	})

	g.Go(func() error {
		logger.Info("Starting task worker...")
		return worker.Run()
	})

	<-ctx.Done()
	logger.Info("Shutting down worker service...")

	scheduler.Shutdown()
	worker.Shutdown()

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Worker stopped with error")
	}
	logger.Info("Worker service stopped")
}
