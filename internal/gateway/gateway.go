// Package gateway answers market data questions about a candidate mint.
//
// Every provider failure is reported as ErrUnavailable or ErrNotFound so that
// callers can fail closed without inspecting transport errors.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"launch-sniper/internal/httpclient"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/retry"
	"launch-sniper/internal/solana"
)

var (
	// ErrUnavailable means the fact could not be determined.
	ErrUnavailable = errors.New("market data unavailable")
	// ErrNotFound means the provider has no data for the mint.
	ErrNotFound = errors.New("market data not found")
)

// Default provider endpoints.
const (
	DefaultDexScreenerURL = "https://api.dexscreener.com"
	DefaultRugCheckURL    = "https://api.rugcheck.xyz/v1"
	DefaultPumpFunAPIURL  = "https://api.pump.fun"

	defaultCacheTTL = 30 * time.Second
)

// Config configures the gateway providers and the configurable predicates.
type Config struct {
	DexScreenerURL string
	RugCheckURL    string
	PumpFunAPIURL  string
	PumpFunProgram string

	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    int

	// MaxDevPriorTokens fails the developer check when the creator launched
	// more tokens than this. Zero disables the count check.
	MaxDevPriorTokens int
	// RequireSocial makes the social check look for socials or websites.
	RequireSocial bool
}

// Gateway composes the market data providers.
type Gateway struct {
	cfg    Config
	rpc    solana.RPCClient
	logger *zap.Logger
	now    func() time.Time

	dex     *httpclient.Client
	rug     *httpclient.Client
	pumpfun *httpclient.Client

	pairs   *cache[*dexPair]
	reports *cache[*rugReport]
}

// Option configures Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = logging.OrNop(l)
	}
}

// WithClock overrides the time source used for pair age.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New creates a gateway. rpc serves holder distribution and bonding state.
func New(cfg Config, rpc solana.RPCClient, opts ...Option) *Gateway {
	if cfg.DexScreenerURL == "" {
		cfg.DexScreenerURL = DefaultDexScreenerURL
	}
	if cfg.RugCheckURL == "" {
		cfg.RugCheckURL = DefaultRugCheckURL
	}
	if cfg.PumpFunAPIURL == "" {
		cfg.PumpFunAPIURL = DefaultPumpFunAPIURL
	}

	g := &Gateway{
		cfg:     cfg,
		rpc:     rpc,
		logger:  zap.NewNop(),
		now:     time.Now,
		pairs:   newCache[*dexPair](defaultCacheTTL),
		reports: newCache[*rugReport](defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(g)
	}

	r := retry.DefaultOptions
	if cfg.MaxRetries >= 0 {
		r.MaxRetries = cfg.MaxRetries
	}
	clientOpts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRetry(r),
		httpclient.WithLogger(g.logger),
	}
	if cfg.RatePerSecond > 0 {
		clientOpts = append(clientOpts, httpclient.WithRateLimit(cfg.RatePerSecond, cfg.Burst))
	}

	g.dex = httpclient.New("dexscreener", clientOpts...)
	g.rug = httpclient.New("rugcheck", clientOpts...)
	g.pumpfun = httpclient.New("pumpfun", clientOpts...)
	return g
}

// classify maps a provider error onto the gateway sentinels.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, httpclient.ErrNotFound) {
		return fmt.Errorf("%s: %w", provider, ErrNotFound)
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", provider, ErrUnavailable, err)
}

func joinURL(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}

// cache keeps provider payloads for a short time so the validator stages
// and the announcement enrichment share one upstream request per mint.
// Concurrent misses for the same key wait on a single load.
type cache[T any] struct {
	items *ttlcache.Cache[string, T]
	group singleflight.Group
}

func newCache[T any](ttl time.Duration) *cache[T] {
	return &cache[T]{
		items: ttlcache.New[string, T](
			ttlcache.WithTTL[string, T](ttl),
			ttlcache.WithDisableTouchOnHit[string, T](),
		),
	}
}

// fetch returns a cached value or loads and caches it. Errors are not cached.
func (c *cache[T]) fetch(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if item := c.items.Get(key); item != nil {
		return item.Value(), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if item := c.items.Get(key); item != nil {
			return item.Value(), nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.items.Set(key, v, ttlcache.DefaultTTL)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := v.(T)
	return res, nil
}
