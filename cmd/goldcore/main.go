// Command goldcore runs the options-trading orchestration core: a cron-driven
// cycle loop plus an operator HTTP surface, or a one-shot cycle for manual
// invocation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/goldcore/internal/config"
	"github.com/aristath/goldcore/internal/di"
	"github.com/aristath/goldcore/pkg/logger"
)

func main() {
	root := &cobra.Command{
		Use:   "goldcore",
		Short: "Options-trading orchestration core",
	}
	root.AddCommand(serveCmd(), cycleCmd(), validatePlaysCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildContainer() (*di.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	return di.Build(cfg, log)
}

// serveCmd runs the continuous cron loop plus the operator HTTP server until
// it receives SIGINT/SIGTERM, then drains in-flight work and shuts down.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cron-driven cycle loop and the operator HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			c.Log.Info().Msg("starting goldcore")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c.Start(ctx)

			orchErrCh := make(chan error, 1)
			go func() { orchErrCh <- c.Orchestrator.RunForever(ctx) }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
				c.Log.Info().Msg("shutdown signal received")
			case err := <-orchErrCh:
				if err != nil {
					c.Log.Error().Err(err).Msg("orchestrator loop exited")
				}
			}

			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := c.Shutdown(shutdownCtx); err != nil {
				c.Log.Error().Err(err).Msg("shutdown did not complete cleanly")
			}
			c.Log.Info().Msg("goldcore stopped")
			return nil
		},
	}
}

// cycleCmd runs exactly one cycle and prints a summary, for cron-external
// scheduling or manual operator invocation outside the continuous loop.
func cycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run a single evaluation cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			report := c.Orchestrator.RunCycle(context.Background())
			c.Log.Info().
				Int("entries_opened", report.EntriesOpened).
				Int("exits_submitted", report.ExitsSubmitted).
				Int("gates_rejected", report.GatesRejected).
				Strs("errors", report.Errors).
				Msg("cycle complete")
			if len(report.Errors) > 0 {
				return fmt.Errorf("cycle completed with %d error(s)", len(report.Errors))
			}
			return nil
		},
	}
}

// validatePlaysCmd loads every playbook and every stored play, running each
// play's OCC contract symbol through the same OCC check the orchestrator
// relies on and checking its playbook reference, without submitting any
// orders; lifecycle status is not checked — useful after
// hand-editing a play file or a playbook.
func validatePlaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-plays",
		Short: "Validate stored plays and playbooks without running a cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			return runValidation(c)
		},
	}
}
