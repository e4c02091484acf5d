package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	// Shutdown components in dependency order
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Stop the simulator before the engine so no new orders arrive
	if a.simulator != nil {
		err = a.simulator.Close()
		if err != nil {
			a.logger.Error("simulator-close-error", zap.Error(err))
		}
	}

	// Close engine (closes the price update channel, draining the feed)
	err = a.engine.Close()
	if err != nil {
		a.logger.Error("engine-close-error", zap.Error(err))
	}

	// Close feed hub
	err = a.feedHub.Close()
	if err != nil {
		a.logger.Error("feed-hub-close-error", zap.Error(err))
	}

	// Close ledger
	err = a.store.Close()
	if err != nil {
		a.logger.Error("ledger-close-error", zap.Error(err))
	}

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
