// Command doctrack is the operator CLI: it serves the API, triggers reminder
// dispatches from cron, manages the schema and archives the reminder outbox.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doctrack/doctrack/internal/config"
	"github.com/doctrack/doctrack/pkg/logger"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "doctrack",
		Short:         "Track document expiry dates and send renewal reminders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Logs go to stderr so commands like remind keep stdout machine-readable.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
		},
	}
	root.AddCommand(serveCmd())
	root.AddCommand(remindCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(outboxCmd())
	return root
}

// loadConfig reads the environment and applies LOG_LEVEL before any
// command does real work.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}
