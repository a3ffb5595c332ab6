package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/placegw/internal/gateway"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// defaultShutdownTimeout bounds the drain when the configuration has none.
const defaultShutdownTimeout = 30 * time.Second

// shutdownSignals returns a channel receiving SIGINT and SIGTERM.
func shutdownSignals() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}

// waitForShutdown blocks until a signal arrives or the server fails, then
// stops the gateway within timeout.
func waitForShutdown(
	gw *gateway.Gateway,
	signals <-chan os.Signal,
	timeout time.Duration,
	logger observability.Logger,
) error {
	var serveErr error
	select {
	case sig := <-signals:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case serveErr = <-gw.Errors():
		logger.Error("gateway stopped serving", observability.Error(serveErr))
	}

	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
		if serveErr == nil {
			return err
		}
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}

	logger.Info("gateway stopped")
	return nil
}
