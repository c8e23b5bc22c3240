package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"launch-sniper/internal/config"
	"launch-sniper/internal/storage"
	chstore "launch-sniper/internal/storage/clickhouse"
	"launch-sniper/internal/storage/memory"
	pgstore "launch-sniper/internal/storage/postgres"
)

// Stores holds all storage implementations.
type Stores struct {
	Purchases storage.PurchaseStore
	Cycles    storage.CycleStore
	Seen      storage.SeenMintStore
	Decisions storage.DecisionStore
}

// OpenStores creates the configured stores. Postgres backs the ledger and
// seen set; ClickHouse, when configured, backs the decision log.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Stores, func(), error) {
	if cfg.UseMemory {
		stores := &Stores{
			Purchases: memory.NewPurchaseStore(),
			Cycles:    memory.NewCycleStore(),
			Seen:      memory.NewSeenMintStore(),
			Decisions: memory.NewDecisionStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	stores := &Stores{
		Purchases: pgstore.NewPurchaseStore(pool),
		Cycles:    pgstore.NewCycleStore(pool),
		Seen:      pgstore.NewSeenMintStore(pool),
		Decisions: memory.NewDecisionStore(),
	}

	if cfg.ClickHouseDSN == "" {
		logger.Info("clickhouse not configured, decision log kept in memory")
		return stores, pool.Close, nil
	}

	chConn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	stores.Decisions = chstore.NewDecisionStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
