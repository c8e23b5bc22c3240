// Package config loads bot configuration from defaults, config.yaml, .env,
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Filters  FiltersConfig  `mapstructure:"filters"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Solana   SolanaConfig   `mapstructure:"solana"`
	Venues   VenuesConfig   `mapstructure:"venues"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	QueueSize       int           `mapstructure:"queue_size"`
	Workers         int           `mapstructure:"workers"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FiltersConfig holds validator thresholds.
type FiltersConfig struct {
	MinLiquidityUSD    float64 `mapstructure:"min_liquidity_usd"`
	MaxTokenAgeMinutes float64 `mapstructure:"max_token_age_minutes"`
	MaxTop10HoldersPct float64 `mapstructure:"max_top_10_holders_percent"`
	MaxRiskScore       float64 `mapstructure:"max_risk_score"`
	MaxDevPriorTokens  int     `mapstructure:"max_dev_prior_tokens"`
	RequireSocial      bool    `mapstructure:"require_social"`
}

// TradingConfig holds purchase and cycle settings.
type TradingConfig struct {
	Enabled         bool            `mapstructure:"enabled"`
	BuyAmount       decimal.Decimal `mapstructure:"buy_amount"`
	TransactionFee  decimal.Decimal `mapstructure:"transaction_fee"`
	NumBuysPerCycle int             `mapstructure:"num_buys_per_cycle"`
	CycleLengthDays int             `mapstructure:"cycle_length_days"`
	SlippageBps     int             `mapstructure:"slippage_bps"`
	AdminIdentity   string          `mapstructure:"admin_identity"`
	WalletKey       string          `mapstructure:"wallet_private_key"`
	PriorityFee     uint64          `mapstructure:"priority_fee_lamports"`
	JupiterURL      string          `mapstructure:"jupiter_url"`
	SwapTimeout     time.Duration   `mapstructure:"swap_timeout"`
}

// CycleLength returns the configured cycle length.
func (t TradingConfig) CycleLength() time.Duration {
	return time.Duration(t.CycleLengthDays) * 24 * time.Hour
}

// SolanaConfig holds node endpoints.
type SolanaConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	WSURL          string        `mapstructure:"ws_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// VenuesConfig selects and tunes the watched venues.
type VenuesConfig struct {
	Enabled      []string      `mapstructure:"enabled"`
	PumpFun      VenueSettings `mapstructure:"pumpfun"`
	Raydium      VenueSettings `mapstructure:"raydium"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
}

// VenueSettings overrides a venue's defaults. Empty fields keep the default.
type VenueSettings struct {
	ProgramID      string `mapstructure:"program_id"`
	CreationMarker string `mapstructure:"creation_marker"`
	Commitment     string `mapstructure:"commitment"`
}

// GatewayConfig holds market data provider endpoints.
type GatewayConfig struct {
	DexScreenerURL string        `mapstructure:"dexscreener_url"`
	RugCheckURL    string        `mapstructure:"rugcheck_url"`
	PumpFunAPIURL  string        `mapstructure:"pumpfun_api_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// TelegramConfig holds notification settings.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BotToken    string `mapstructure:"bot_token"`
	ChannelID   int64  `mapstructure:"channel_id"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"` // Bot API URL format, token then method
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	UseMemory     bool   `mapstructure:"use_memory"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
}

// envBindings maps config keys to the bare environment names operators use.
var envBindings = map[string]string{
	"filters.min_liquidity_usd":          "MIN_LIQUIDITY_USD",
	"filters.max_token_age_minutes":      "MAX_TOKEN_AGE_MINUTES",
	"filters.max_top_10_holders_percent": "MAX_TOP_10_HOLDERS_PERCENT",
	"filters.max_risk_score":             "MAX_RISK_SCORE",
	"filters.max_dev_prior_tokens":       "MAX_DEV_PRIOR_TOKENS",
	"filters.require_social":             "REQUIRE_SOCIAL",
	"trading.enabled":                    "TRADING_ENABLED",
	"trading.buy_amount":                 "BUY_AMOUNT",
	"trading.transaction_fee":            "TRANSACTION_FEE",
	"trading.num_buys_per_cycle":         "NUM_BUYS_PER_CYCLE",
	"trading.cycle_length_days":          "CYCLE_LENGTH_DAYS",
	"trading.slippage_bps":               "SLIPPAGE_BPS",
	"trading.admin_identity":             "ADMIN_IDENTITY",
	"trading.wallet_private_key":         "WALLET_PRIVATE_KEY",
	"solana.rpc_url":                     "SOLANA_RPC_URL",
	"solana.ws_url":                      "SOLANA_WS_URL",
	"venues.enabled":                     "VENUES",
	"venues.pumpfun.program_id":          "PUMPFUN_PROGRAM_ID",
	"venues.pumpfun.creation_marker":     "PUMPFUN_CREATION_MARKER",
	"venues.pumpfun.commitment":          "PUMPFUN_COMMITMENT",
	"venues.raydium.program_id":          "RAYDIUM_PROGRAM_ID",
	"venues.raydium.creation_marker":     "RAYDIUM_CREATION_MARKER",
	"venues.raydium.commitment":          "RAYDIUM_COMMITMENT",
	"telegram.enabled":                   "TELEGRAM_ENABLED",
	"telegram.bot_token":                 "TELEGRAM_BOT_TOKEN",
	"telegram.channel_id":                "TELEGRAM_CHANNEL_ID",
	"telegram.admin_chat_id":             "TELEGRAM_ADMIN_CHAT_ID",
	"telegram.api_endpoint":              "TELEGRAM_API_ENDPOINT",
	"storage.use_memory":                 "STORAGE_USE_MEMORY",
	"storage.postgres_dsn":               "POSTGRES_DSN",
	"storage.clickhouse_dsn":             "CLICKHOUSE_DSN",
	"logging.level":                      "LOG_LEVEL",
	"logging.format":                     "LOG_FORMAT",
	"app.metrics_addr":                   "METRICS_ADDR",
}

// flagBindings maps command-line flag names to config keys.
var flagBindings = map[string]string{
	"log-level":    "logging.level",
	"metrics-addr": "app.metrics_addr",
	"memory":       "storage.use_memory",
	"dry-run":      "trading.enabled",
	"workers":      "app.workers",
}

// Load builds configuration. path may be empty, in which case ./config.yaml
// is used if present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagBindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if name == "dry-run" {
			// dry-run inverts trading.enabled, so it is applied by hand.
			if f.Changed && f.Value.String() == "true" {
				v.Set(key, false)
			}
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.metrics_addr", ":9090")
	v.SetDefault("app.queue_size", 256)
	v.SetDefault("app.workers", 4)
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("filters.min_liquidity_usd", 5000.0)
	v.SetDefault("filters.max_token_age_minutes", 60.0)
	v.SetDefault("filters.max_top_10_holders_percent", 30.0)
	v.SetDefault("filters.max_risk_score", 50.0)
	v.SetDefault("filters.max_dev_prior_tokens", 0)
	v.SetDefault("filters.require_social", false)

	v.SetDefault("trading.enabled", true)
	v.SetDefault("trading.buy_amount", "0.1")
	v.SetDefault("trading.transaction_fee", "0.000005")
	v.SetDefault("trading.num_buys_per_cycle", 3)
	v.SetDefault("trading.cycle_length_days", 30)
	v.SetDefault("trading.slippage_bps", 100)
	v.SetDefault("trading.priority_fee_lamports", 0)
	v.SetDefault("trading.jupiter_url", "https://api.jup.ag/swap/v1")
	v.SetDefault("trading.swap_timeout", "20s")

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.ws_url", "wss://api.mainnet-beta.solana.com")
	v.SetDefault("solana.request_timeout", "10s")

	v.SetDefault("venues.enabled", []string{string(domain.VenuePumpFun)})
	v.SetDefault("venues.reconnect_min", "1s")
	v.SetDefault("venues.reconnect_max", "60s")

	v.SetDefault("gateway.dexscreener_url", "https://api.dexscreener.com")
	v.SetDefault("gateway.rugcheck_url", "https://api.rugcheck.xyz/v1")
	v.SetDefault("gateway.pumpfun_api_url", "https://api.pump.fun")
	v.SetDefault("gateway.timeout", "8s")
	v.SetDefault("gateway.rate_per_second", 10.0)
	v.SetDefault("gateway.burst", 20)
	v.SetDefault("gateway.max_retries", 2)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("storage.use_memory", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToDecimalHookFunc(),
		)
	}
}

func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(decimal.Decimal{})
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != target {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			return decimal.NewFromString(strings.TrimSpace(data.(string)))
		case reflect.Float64:
			return decimal.NewFromFloat(data.(float64)), nil
		case reflect.Int:
			return decimal.NewFromInt(int64(data.(int))), nil
		}
		return data, nil
	}
}

// Validate performs sanity checks. Failures here are the only fatal
// configuration errors.
func (c *Config) Validate() error {
	if c.Filters.MinLiquidityUSD < 0 {
		return fmt.Errorf("filters.min_liquidity_usd cannot be negative")
	}
	if c.Filters.MaxTokenAgeMinutes < 0 {
		return fmt.Errorf("filters.max_token_age_minutes cannot be negative")
	}
	if c.Filters.MaxTop10HoldersPct < 0 || c.Filters.MaxTop10HoldersPct > 100 {
		return fmt.Errorf("filters.max_top_10_holders_percent must be within [0, 100]")
	}
	if c.Filters.MaxRiskScore < 0 {
		return fmt.Errorf("filters.max_risk_score cannot be negative")
	}
	if c.Filters.MaxDevPriorTokens < 0 {
		return fmt.Errorf("filters.max_dev_prior_tokens cannot be negative")
	}

	if !c.Trading.BuyAmount.IsPositive() {
		return fmt.Errorf("trading.buy_amount must be greater than zero")
	}
	if c.Trading.TransactionFee.IsNegative() {
		return fmt.Errorf("trading.transaction_fee cannot be negative")
	}
	if c.Trading.NumBuysPerCycle < 0 {
		return fmt.Errorf("trading.num_buys_per_cycle cannot be negative")
	}
	if c.Trading.CycleLengthDays <= 0 {
		return fmt.Errorf("trading.cycle_length_days must be greater than zero")
	}
	if c.Trading.SlippageBps < 0 || c.Trading.SlippageBps > 10000 {
		return fmt.Errorf("trading.slippage_bps must be within [0, 10000]")
	}
	if c.Trading.Enabled {
		if c.Trading.AdminIdentity == "" {
			return fmt.Errorf("trading.admin_identity is required when trading is enabled")
		}
		if c.Trading.WalletKey == "" {
			return fmt.Errorf("trading.wallet_private_key is required when trading is enabled")
		}
	}

	if c.Solana.RPCURL == "" || c.Solana.WSURL == "" {
		return fmt.Errorf("solana.rpc_url and solana.ws_url are required")
	}
	if c.App.Workers <= 0 {
		return fmt.Errorf("app.workers must be greater than zero")
	}
	if c.App.QueueSize <= 0 {
		return fmt.Errorf("app.queue_size must be greater than zero")
	}

	if _, err := c.VenueConfigs(); err != nil {
		return err
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChannelID == 0 {
			return fmt.Errorf("telegram.channel_id is required when telegram is enabled")
		}
	}

	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required unless storage.use_memory is set")
	}
	return nil
}

// VenueConfigs resolves the enabled venues, applying overrides on top of
// each venue's defaults.
func (c *Config) VenueConfigs() ([]domain.VenueConfig, error) {
	if len(c.Venues.Enabled) == 0 {
		return nil, fmt.Errorf("venues.enabled must list at least one venue")
	}

	seen := make(map[domain.Venue]bool)
	out := make([]domain.VenueConfig, 0, len(c.Venues.Enabled))
	for _, name := range c.Venues.Enabled {
		venue, err := domain.ParseVenue(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("venues.enabled: %w", err)
		}
		if seen[venue] {
			continue
		}
		seen[venue] = true

		vc, _ := domain.DefaultVenueConfig(venue)
		var override VenueSettings
		switch venue {
		case domain.VenuePumpFun:
			override = c.Venues.PumpFun
		case domain.VenueRaydium:
			override = c.Venues.Raydium
		}
		if override.ProgramID != "" {
			vc.ProgramID = override.ProgramID
		}
		if override.CreationMarker != "" {
			vc.CreationMarker = override.CreationMarker
		}
		if override.Commitment != "" {
			vc.Commitment = domain.Commitment(strings.ToLower(override.Commitment))
		}
		if !vc.Commitment.IsValid() {
			return nil, fmt.Errorf("venues.%s.commitment: invalid value %q", venue, vc.Commitment)
		}
		out = append(out, vc)
	}
	return out, nil
}
