// Package main is the entry point for the PawMatch HTTP API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pawmatch/pawmatch/internal/api"
	"github.com/pawmatch/pawmatch/internal/app"
	"github.com/pawmatch/pawmatch/internal/config"
	"github.com/pawmatch/pawmatch/internal/middleware"
	"github.com/pawmatch/pawmatch/internal/monitoring"
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
	if err := telemetry.InitGlobalLogger(&cfg.Logging); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger := telemetry.GetGlobalLogger()

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

	httpMetrics, err := monitoring.NewHTTPMetrics()
	if err != nil {
		logger.WithError(err).Fatal("Failed to create HTTP metrics")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	var serviceName string
	if cfg.Telemetry.Enabled {
		serviceName = cfg.Telemetry.ServiceName
	}
	router := api.NewRouter(api.Deps{
		Discovery:     a.Discovery,
		Swipes:        a.Swipes,
		Lifecycle:     a.Lifecycle,
		Conversations: a.Conversations,
		Playdates:     a.Playdates,
		Health:        a.Health,
		Metrics:       httpMetrics,
		Logging:       middleware.DefaultLoggingConfig(),
		ServiceName:   serviceName,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	a.StartBackground(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", cfg.HTTP.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("HTTP shutdown error")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("Server error")
		os.Exit(1)
	}
	logger.Info("Server exited")
}
