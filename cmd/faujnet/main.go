package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/httpapi"
	"github.com/captvenkat/faujnet-backend/internal/adapters/mailer"
	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/di"
	"github.com/captvenkat/faujnet-backend/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	api *httpapi.Server,
	responder *mailer.Responder,
	dispatcher ports.ReplyDispatcher,
	st core.Store,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the filter
	if err := emailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- api.Start(ctx)
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-apiErr:
		if err != nil {
			logger.Error("HTTP API server failed", zap.Error(err))
		}
	}
	logger.Info("Shutting down...")

	// Stop accepting mail before draining replies
	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}
	cancel()

	responder.Wait()
	if err := dispatcher.Close(); err != nil {
		logger.Error("Failed to close reply dispatcher", zap.Error(err))
	}
	st.Stop()

	logger.Info("Shutdown complete")
	return nil
}
