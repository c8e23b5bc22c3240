package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launch-sniper/internal/orchestrator"
	"launch-sniper/internal/reporting"
	"launch-sniper/internal/solana"
)

func newReportCommand() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the current cycle's purchases with PnL at current prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			stores, cleanup, err := orchestrator.OpenStores(ctx, cfg.Storage, logger.Named("storage"))
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := reporting.LoadSnapshot(ctx, stores.Cycles, stores.Purchases, cfg.Trading.NumBuysPerCycle)
			if err != nil {
				return err
			}

			rpc := solana.NewHTTPClient(cfg.Solana.RPCURL, solana.WithTimeout(cfg.Solana.RequestTimeout))
			gw := orchestrator.NewGateway(cfg, rpc, logger.Named("gateway"))
			report := reporting.NewGenerator(gw, logger.Named("reporting")).Generate(ctx, snap)

			var out string
			switch strings.ToLower(format) {
			case "markdown", "md":
				out = reporting.RenderMarkdown(report)
			case "csv":
				out = reporting.RenderCSV(report)
			default:
				return fmt.Errorf("unknown format %q (want markdown or csv)", format)
			}

			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			logger.Info("report written", zap.String("path", output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: markdown or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
