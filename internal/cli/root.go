// Package cli defines the sniper command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launch-sniper/internal/config"
	"launch-sniper/internal/logging"
)

// Version is set at build time with -ldflags "-X launch-sniper/internal/cli.Version=...".
var Version = "dev"

var configPath string

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sniper",
		Short: "Solana launch sniper: watches token launches, validates them, and buys a few per cycle",
		Long: `sniper subscribes to token creation events on pump.fun and Raydium, runs every
new mint through liquidity, holder, and risk filters, announces the ones that pass,
and buys up to a fixed number of them per cycle.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("memory", false, "use in-memory storage instead of Postgres")

	root.AddCommand(newRunCommand())
	root.AddCommand(newReportCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// setup loads configuration and installs the global logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logging.SetGlobal(logger)
	return cfg, logger, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sniper", Version)
		},
	}
}
