package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"launch-sniper/internal/config"
	"launch-sniper/internal/dispatcher"
	"launch-sniper/internal/domain"
	"launch-sniper/internal/executor"
	"launch-sniper/internal/gateway"
	"launch-sniper/internal/ledger"
	"launch-sniper/internal/listener"
	"launch-sniper/internal/notify"
	"launch-sniper/internal/reporting"
	"launch-sniper/internal/solana"
	"launch-sniper/internal/swap"
	"launch-sniper/internal/validator"
	"launch-sniper/internal/wallet"
)

// Build wires every component from configuration. The returned cleanup
// closes storage connections and must be called after Run returns.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Orchestrator, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	venues, err := cfg.VenueConfigs()
	if err != nil {
		return nil, nil, err
	}

	stores, cleanup, err := OpenStores(ctx, cfg.Storage, logger.Named("storage"))
	if err != nil {
		return nil, nil, err
	}
	fail := func(err error) (*Orchestrator, func(), error) {
		cleanup()
		return nil, nil, err
	}

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL, solana.WithTimeout(cfg.Solana.RequestTimeout))

	gw := NewGateway(cfg, rpc, logger.Named("gateway"))

	val := validator.New(gw, validator.Thresholds{
		MinLiquidityUSD:    cfg.Filters.MinLiquidityUSD,
		MaxTokenAgeMinutes: cfg.Filters.MaxTokenAgeMinutes,
		MaxTop10HoldersPct: cfg.Filters.MaxTop10HoldersPct,
		MaxRiskScore:       cfg.Filters.MaxRiskScore,
	}, validator.WithCallTimeout(cfg.Gateway.Timeout), validator.WithLogger(logger.Named("validator")))

	led := ledger.New(cfg.Trading.NumBuysPerCycle, cfg.Trading.CycleLength(),
		ledger.WithStores(stores.Purchases, stores.Cycles),
		ledger.WithLogger(logger.Named("ledger")))
	if err := led.Restore(ctx); err != nil {
		return fail(fmt.Errorf("restore ledger: %w", err))
	}

	seen := listener.NewSeen(stores.Seen, logger.Named("seen"))
	if err := seen.Warm(ctx); err != nil {
		return fail(err)
	}

	sink, err := buildSinks(cfg, gw, logger)
	if err != nil {
		return fail(err)
	}

	dispatchOpts := []dispatcher.Option{
		dispatcher.WithDecisions(stores.Decisions),
		dispatcher.WithReleaser(seen),
		dispatcher.WithLogger(logger.Named("dispatcher")),
	}
	if cfg.Trading.Enabled {
		exec, err := buildExecutor(cfg, led, rpc, logger)
		if err != nil {
			return fail(err)
		}
		dispatchOpts = append(dispatchOpts, dispatcher.WithExecutor(exec))
	} else {
		logger.Warn("trading disabled, validated candidates are only announced")
	}

	queue := make(chan domain.Candidate, cfg.App.QueueSize)
	disp := dispatcher.New(dispatcher.Config{
		Workers:       cfg.App.Workers,
		AdminIdentity: cfg.Trading.AdminIdentity,
	}, val, led, sink, dispatchOpts...)

	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = logger.Named("ws")
	dial := listener.WSDialer(cfg.Solana.WSURL, wsCfg)

	listeners := make([]*listener.Listener, 0, len(venues))
	for _, vc := range venues {
		opts := []listener.Option{
			listener.WithTransactions(rpc),
			listener.WithLogger(logger.Named("listener")),
		}
		if vc.Venue == domain.VenuePumpFun {
			opts = append(opts, listener.WithVenueAPI(gw))
		}
		listeners = append(listeners, listener.New(listener.Config{
			Venue:         vc,
			ReconnectMin:  cfg.Venues.ReconnectMin,
			ReconnectMax:  cfg.Venues.ReconnectMax,
			LookupTimeout: cfg.Solana.RequestTimeout,
		}, dial, seen, queue, opts...))
	}

	o := New(Options{
		Listeners:       listeners,
		Dispatcher:      disp,
		Queue:           queue,
		Ledger:          led,
		Seen:            seen,
		Health:          rpc,
		MetricsAddr:     cfg.App.MetricsAddr,
		ShutdownTimeout: cfg.App.ShutdownTimeout,
		Logger:          logger.Named("orchestrator"),
	})
	return o, cleanup, nil
}

func buildExecutor(cfg *config.Config, led *ledger.Ledger, rpc *solana.HTTPClient, logger *zap.Logger) (*executor.Executor, error) {
	w, err := wallet.FromBase58(cfg.Trading.WalletKey, rpc)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	logger.Info("trading enabled", zap.String("wallet", w.PublicKey()))

	jup := swap.NewJupiter(w, rpc,
		swap.WithBaseURL(cfg.Trading.JupiterURL),
		swap.WithPriorityFee(cfg.Trading.PriorityFee),
		swap.WithTimeout(cfg.Trading.SwapTimeout),
		swap.WithLogger(logger.Named("jupiter")))

	return executor.New(executor.Config{
		AdminIdentity:  cfg.Trading.AdminIdentity,
		BuyAmount:      cfg.Trading.BuyAmount,
		TransactionFee: cfg.Trading.TransactionFee,
		SlippageBps:    cfg.Trading.SlippageBps,
		CallTimeout:    cfg.Trading.SwapTimeout,
	}, led, w, jup, executor.WithLogger(logger.Named("executor"))), nil
}

func buildSinks(cfg *config.Config, gw *gateway.Gateway, logger *zap.Logger) (notify.Sink, error) {
	sinks := notify.Multi{notify.NewLogSink(logger.Named("events"))}
	if !cfg.Telegram.Enabled {
		return sinks, nil
	}

	bot, err := notify.NewBot(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, 0)
	if err != nil {
		return nil, err
	}
	logger.Info("telegram connected", zap.String("bot", bot.Self.UserName))

	reports := reporting.NewGenerator(gw, logger.Named("reporting"))
	return append(sinks, notify.NewTelegramSink(bot, cfg.Telegram.ChannelID, cfg.Telegram.AdminChatID,
		notify.WithTokenInfo(gw),
		notify.WithReports(reports),
		notify.WithLogger(logger.Named("telegram")))), nil
}

// NewGateway builds the market data gateway from configuration.
func NewGateway(cfg *config.Config, rpc solana.RPCClient, logger *zap.Logger) *gateway.Gateway {
	venues, _ := cfg.VenueConfigs()
	return gateway.New(gateway.Config{
		DexScreenerURL:    cfg.Gateway.DexScreenerURL,
		RugCheckURL:       cfg.Gateway.RugCheckURL,
		PumpFunAPIURL:     cfg.Gateway.PumpFunAPIURL,
		PumpFunProgram:    programFor(venues, domain.VenuePumpFun),
		Timeout:           cfg.Gateway.Timeout,
		RatePerSecond:     cfg.Gateway.RatePerSecond,
		Burst:             cfg.Gateway.Burst,
		MaxRetries:        cfg.Gateway.MaxRetries,
		MaxDevPriorTokens: cfg.Filters.MaxDevPriorTokens,
		RequireSocial:     cfg.Filters.RequireSocial,
	}, rpc, gateway.WithLogger(logger))
}

func programFor(venues []domain.VenueConfig, v domain.Venue) string {
	for _, vc := range venues {
		if vc.Venue == v {
			return vc.ProgramID
		}
	}
	def, _ := domain.DefaultVenueConfig(v)
	return def.ProgramID
}
