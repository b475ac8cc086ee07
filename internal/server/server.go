// Package server runs the HTTP service until it receives SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pdfloc/internal/api"
	"github.com/dgallion1/pdfloc/internal/config"
	"github.com/dgallion1/pdfloc/internal/pipeline"
	"github.com/dgallion1/pdfloc/internal/stats"
)

// Run starts the worker pool and serves the API on cfg.Port. It returns
// after a graceful shutdown.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := stats.NewRecorder(time.Hour)
	orch := pipeline.NewOrchestrator(cfg, rec, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, rec, log, cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting pdfloc", "port", cfg.Port, "workers", cfg.WorkerCount)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		orch.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	orch.Stop()
	return err
}
