package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/importledger/internal/application"
	"github.com/JonMunkholm/importledger/internal/config"
	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/JonMunkholm/importledger/internal/logging"
	"github.com/JonMunkholm/importledger/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"db_max_conns", cfg.Database.MaxConns,
		"max_streams", cfg.Progress.MaxStreams,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	app, err := application.Open(context.Background(), cfg, application.Options{})
	if err != nil {
		slog.Error("failed to start ledger", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	service := app.Service
	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if cfg.Retention.Enabled {
		go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
			RetentionDays: cfg.Retention.Days,
			BatchSize:     cfg.Retention.BatchSize,
			CheckInterval: cfg.Retention.CheckInterval,
		})
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Shutdown ends open progress streams; wait for them to release
		// their slots.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := service.StreamStatus(); status.Active > 0 {
			slog.Info("waiting for progress streams to close", "active", status.Active)
			if err := service.WaitForStreams(shutdownCtx); err != nil {
				slog.Warn("progress streams did not close in time", "error", err)
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
