package migrations

import (
	"context"
	"fmt"

	"launch-sniper/internal/storage/postgres"
)

// RunPostgresMigrations applies the purchase, cycle and seen-mint schema.
// Every file uses IF NOT EXISTS, so reruns are no-ops.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(postgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
