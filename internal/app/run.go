// Package app runs a service until it returns or the process is signaled.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type Runner func(ctx context.Context) error

// ShutdownGrace bounds how long Run waits for the runner after a signal.
var ShutdownGrace = 30 * time.Second

// Run calls run with a context canceled on SIGINT or SIGTERM and returns a
// process exit code.
func Run(serviceName string, logger zerolog.Logger, run Runner) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runContext(ctx, serviceName, logger, run)
}

func runContext(ctx context.Context, serviceName string, logger zerolog.Logger, run Runner) int {
	logger = logger.With().Str("cmd", serviceName).Logger()
	logger.Info().Msg("starting")

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case err := <-errCh:
		return exitCode(logger, err)
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	select {
	case err := <-errCh:
		return exitCode(logger, err)
	case <-time.After(ShutdownGrace):
		logger.Error().Dur("grace", ShutdownGrace).Msg("shutdown timed out")
		return 1
	}
}

func exitCode(logger zerolog.Logger, err error) int {
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("failed")
		return 1
	}
	logger.Info().Msg("stopped")
	return 0
}
