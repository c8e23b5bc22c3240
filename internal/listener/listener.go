// Package listener turns venue program logs into unique launch candidates.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/observability"
	"launch-sniper/internal/solana"
)

// Default configuration values.
const (
	DefaultReconnectMin  = 1 * time.Second
	DefaultReconnectMax  = 60 * time.Second
	DefaultLookupTimeout = 5 * time.Second
	DefaultDecodeWorkers = 4
)

// Dialer opens a websocket client. onReconnect fires after every internal
// redial of the returned client.
type Dialer func(ctx context.Context, onReconnect func()) (solana.WSClient, error)

// WSDialer dials endpoint with the given client config.
func WSDialer(endpoint string, cfg solana.WSClientConfig) Dialer {
	return func(ctx context.Context, onReconnect func()) (solana.WSClient, error) {
		c := cfg
		c.OnReconnect = onReconnect
		return solana.NewWSClient(ctx, endpoint, &c)
	}
}

// TransactionSource fetches creation transactions.
type TransactionSource interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// MintSource reports the most recent launch of a venue.
type MintSource interface {
	LatestMint(ctx context.Context) (string, error)
}

// Config configures one listener.
type Config struct {
	Venue         domain.VenueConfig
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
	LookupTimeout time.Duration
	DecodeWorkers int
}

func (c *Config) applyDefaults() {
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = DefaultReconnectMin
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = DefaultReconnectMax
		if c.ReconnectMax < c.ReconnectMin {
			c.ReconnectMax = c.ReconnectMin
		}
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = DefaultLookupTimeout
	}
	if c.DecodeWorkers <= 0 {
		c.DecodeWorkers = DefaultDecodeWorkers
	}
}

// Listener watches one venue.
type Listener struct {
	cfg    Config
	dial   Dialer
	seen   *Seen
	out    chan<- domain.Candidate
	txs    TransactionSource
	api    MintSource
	logger *zap.Logger
	now    func() time.Time
}

// Option configures Listener.
type Option func(*Listener)

// WithTransactions enables mint extraction from creation transactions.
func WithTransactions(txs TransactionSource) Option {
	return func(l *Listener) {
		l.txs = txs
	}
}

// WithVenueAPI enables the venue API fallback.
func WithVenueAPI(api MintSource) Option {
	return func(l *Listener) {
		l.api = api
	}
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Listener) {
		l.logger = logging.OrNop(lg)
	}
}

// WithClock sets the time source for DiscoveredAt.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) {
		l.now = now
	}
}

// New creates a listener emitting into out.
func New(cfg Config, dial Dialer, seen *Seen, out chan<- domain.Candidate, opts ...Option) *Listener {
	cfg.applyDefaults()
	l := &Listener{
		cfg:    cfg,
		dial:   dial,
		seen:   seen,
		out:    out,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("venue", cfg.Venue.Venue.String()))
	return l
}

// Venue returns the watched venue.
func (l *Listener) Venue() domain.Venue {
	return l.cfg.Venue.Venue
}

// Run subscribes and emits candidates until ctx is cancelled. Lost
// connections are re-dialed with exponential backoff.
func (l *Listener) Run(ctx context.Context) {
	venue := l.cfg.Venue.Venue.String()
	delay := l.cfg.ReconnectMin
	first := true

	for {
		if !first {
			observability.RecordReconnect(venue)
		}
		first = false

		subscribed, err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			delay = l.cfg.ReconnectMin
		}
		if err != nil {
			l.logger.Warn("listener session failed", zap.Error(err), zap.Duration("retry_in", delay))
		} else {
			l.logger.Warn("listener stream closed", zap.Duration("retry_in", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > l.cfg.ReconnectMax {
			delay = l.cfg.ReconnectMax
		}
	}
}

// session runs one websocket connection until its stream ends.
func (l *Listener) session(ctx context.Context) (bool, error) {
	venue := l.cfg.Venue.Venue.String()
	client, err := l.dial(ctx, func() { observability.RecordReconnect(venue) })
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	notifications, err := client.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions:   []string{l.cfg.Venue.ProgramID},
		Commitment: string(l.cfg.Venue.Commitment),
	})
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	l.logger.Info("listening",
		zap.String("program", l.cfg.Venue.ProgramID),
		zap.String("marker", l.cfg.Venue.CreationMarker),
		zap.String("commitment", string(l.cfg.Venue.Commitment)))

	sem := make(chan struct{}, l.cfg.DecodeWorkers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case n, ok := <-notifications:
			if !ok {
				return true, nil
			}
			if n.Err != nil || !matchesMarker(n.Logs, l.cfg.Venue.CreationMarker) {
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return true, nil
			}
			wg.Add(1)
			go func(n solana.LogNotification) {
				defer wg.Done()
				defer func() { <-sem }()
				l.handle(ctx, n)
			}(n)
		}
	}
}

// handle decodes one creation event and emits a candidate if it is new.
func (l *Listener) handle(ctx context.Context, n solana.LogNotification) {
	venue := l.cfg.Venue.Venue

	mint, strategy := l.decode(ctx, n)
	if mint == "" {
		observability.RecordEventDropped(venue.String(), "undecodable")
		l.logger.Warn("creation event without decodable mint", l.fields(n)...)
		return
	}
	if !l.seen.Add(ctx, mint, venue) {
		observability.RecordEventDropped(venue.String(), "duplicate")
		l.logger.Debug("duplicate mint", l.fields(n, zap.String("mint", mint))...)
		return
	}

	c := domain.Candidate{
		Mint:         mint,
		Venue:        venue,
		Signature:    n.Signature,
		Slot:         n.Slot,
		DiscoveredAt: l.now(),
	}

	select {
	case l.out <- c:
		observability.RecordCandidateDiscovered(venue.String())
		l.logger.Info("candidate discovered",
			zap.String("mint", mint),
			zap.String("decoded_by", string(strategy)),
			zap.String("signature", n.Signature))
	case <-ctx.Done():
		// never reached the dispatcher, so it must stay eligible
		l.seen.Release(context.Background(), mint)
	}
}

func (l *Listener) fields(n solana.LogNotification, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{zap.String("signature", n.Signature), zap.Int64("slot", n.Slot)}, extra...)
}

// ErrNoVenues is returned by Supervise when no listener is configured.
var ErrNoVenues = errors.New("no venues configured")

// Supervise runs every listener in its own goroutine until ctx is done.
func Supervise(ctx context.Context, listeners []*Listener) error {
	if len(listeners) == 0 {
		return ErrNoVenues
	}
	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l *Listener) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}
	wg.Wait()
	return nil
}
