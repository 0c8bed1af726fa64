package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentgraph/orchestrator/internal/config"
	"github.com/agentgraph/orchestrator/internal/daemon"
	"github.com/spf13/cobra"
)

// runServe implements the serve command: load config, wire the App, and
// run the HTTP server until a shutdown signal arrives.
func runServe(cmd *cobra.Command, configPath string) error {
	slog.Info("starting orchestratord", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := daemon.New(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("error closing app", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: daemon.NewServer(app).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("orchestratord listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
