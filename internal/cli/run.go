package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launch-sniper/internal/orchestrator"
)

// forceExitAfter bounds how long a shutdown may take once a signal arrived.
const forceExitAfter = 30 * time.Second

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the listeners, dispatcher, and metrics server",
		Args:  cobra.NoArgs,
		RunE:  runSniper,
	}
	flags := cmd.Flags()
	flags.String("metrics-addr", "", "address for /health, /status and /metrics (empty disables)")
	flags.Bool("dry-run", false, "validate and announce without buying")
	flags.Int("workers", 0, "number of dispatcher workers")
	return cmd
}

func runSniper(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	orch, cleanup, err := orchestrator.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer cleanup()

	done := make(chan struct{})
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(forceExitAfter):
			logger.Error("shutdown timed out, forcing exit", zap.Duration("after", forceExitAfter))
			os.Exit(1)
		case <-done:
		}
	}()

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sniper stopped with error", zap.Error(err))
		return err
	}
	return nil
}
