package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dailyboard/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := app.Config

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: string(cfg.Environment),
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	}

	slog.Info("starting dailyboard server",
		"environment", cfg.Environment,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"timezone", app.Days.Location().String(),
		"day", app.Days.CurrentDayKey())
	slog.Debug("effective configuration", "config", cfg.String())

	if app.Pruner != nil {
		go app.Pruner.Start(ctx)
	}

	srv := app.Server
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("failed to start server", "error", err)
	}

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("flushing traces", "error", err)
	}

	slog.Info("server stopped")
}
