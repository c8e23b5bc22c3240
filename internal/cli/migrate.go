package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"launch-sniper/internal/storage/migrations"
	pgstore "launch-sniper/internal/storage/postgres"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres and ClickHouse migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if cfg.Storage.PostgresDSN == "" {
				return errors.New("storage.postgres_dsn is required for migrate")
			}

			ctx := cmd.Context()
			pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer pool.Close()

			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")

			if cfg.Storage.ClickHouseDSN == "" {
				logger.Info("clickhouse not configured, skipping")
				return nil
			}
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
			if err != nil {
				return fmt.Errorf("clickhouse migrations: %w", err)
			}
			defer conn.Close()
			logger.Info("clickhouse migrations applied")
			return nil
		},
	}
}
