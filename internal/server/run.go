package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-editor/internal/logger"
)

// Run serves srv until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down, giving in-flight requests up to timeout, and runs cleanup.
func Run(ctx context.Context, srv *http.Server, cleanup func(), timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		// listener failed before any shutdown was requested
		if cleanup != nil {
			cleanup()
		}
		return err
	case <-sigCtx.Done():
	}
	logger.Info("shutting down", logger.String("addr", srv.Addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", err)
	}
	if cleanup != nil {
		cleanup()
	}

	if err := <-serveErr; err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
