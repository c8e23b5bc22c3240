// Package orchestrator runs the bot: venue listeners feeding the dispatcher,
// plus the health and metrics HTTP endpoints.
// Flow: listeners → queue → dispatcher → executor / notifications
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"launch-sniper/internal/dispatcher"
	"launch-sniper/internal/domain"
	"launch-sniper/internal/ledger"
	"launch-sniper/internal/listener"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/observability"
)

// DefaultShutdownTimeout bounds the wait for in-flight work after cancel.
const DefaultShutdownTimeout = 10 * time.Second

// ErrShutdownTimeout is returned by Run when components did not stop in time.
var ErrShutdownTimeout = errors.New("graceful shutdown timed out")

// HealthChecker reports whether the Solana node is reachable.
type HealthChecker interface {
	GetSlot(ctx context.Context) (int64, error)
}

// Orchestrator coordinates listeners and the dispatcher.
type Orchestrator struct {
	listeners  []*listener.Listener
	dispatcher *dispatcher.Dispatcher
	queue      chan domain.Candidate
	ledger     *ledger.Ledger
	seen       *listener.Seen
	health     HealthChecker

	metricsAddr     string
	shutdownTimeout time.Duration
	logger          *zap.Logger

	mu      sync.Mutex
	started time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required components
	Listeners  []*listener.Listener
	Dispatcher *dispatcher.Dispatcher
	Queue      chan domain.Candidate
	Ledger     *ledger.Ledger

	// Optional
	Seen            *listener.Seen
	Health          HealthChecker
	MetricsAddr     string // empty disables the HTTP server
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Orchestrator{
		listeners:       opts.Listeners,
		dispatcher:      opts.Dispatcher,
		queue:           opts.Queue,
		ledger:          opts.Ledger,
		seen:            opts.Seen,
		health:          opts.Health,
		metricsAddr:     opts.MetricsAddr,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          logging.OrNop(opts.Logger),
	}
}

// Listeners returns the configured venue listeners.
func (o *Orchestrator) Listeners() []*listener.Listener {
	return o.listeners
}

// Run starts every component and blocks until ctx is cancelled, then waits
// up to the shutdown timeout for them to stop.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.listeners) == 0 {
		return listener.ErrNoVenues
	}

	o.mu.Lock()
	o.started = time.Now()
	o.mu.Unlock()

	var srv *http.Server
	if o.metricsAddr != "" {
		srv = &http.Server{Addr: o.metricsAddr, Handler: o.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			o.logger.Info("http server listening", zap.String("addr", o.metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				o.logger.Error("http server failed", zap.Error(err))
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := listener.Supervise(ctx, o.listeners); err != nil {
			o.logger.Error("listeners stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		o.dispatcher.Run(ctx, o.queue)
	}()

	venues := make([]string, len(o.listeners))
	for i, l := range o.listeners {
		venues[i] = l.Venue().String()
	}
	o.logger.Info("sniper started", zap.Strings("venues", venues))

	<-ctx.Done()
	o.logger.Info("shutting down")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(o.shutdownTimeout):
		err = ErrShutdownTimeout
		o.logger.Warn("components did not stop in time", zap.Duration("timeout", o.shutdownTimeout))
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			o.logger.Warn("http server shutdown failed", zap.Error(serr))
		}
	}

	o.logger.Info("shutdown complete")
	return err
}

// Handler serves /health, /status and /metrics.
func (o *Orchestrator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", o.handleHealth)
	mux.HandleFunc("/status", o.handleStatus)
	mux.Handle("/metrics", observability.Handler())
	return mux
}

func (o *Orchestrator) handleHealth(w http.ResponseWriter, r *http.Request) {
	if o.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if _, err := o.health.GetSlot(ctx); err != nil {
			http.Error(w, "rpc unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	Venues        []string  `json:"venues"`
	QueueDepth    int       `json:"queue_depth"`
	SeenMints     int       `json:"seen_mints"`
	CycleStart    time.Time `json:"cycle_start"`
	BuysCompleted int       `json:"buys_completed"`
	MaxBuys       int       `json:"max_buys"`
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, _ *http.Request) {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()

	resp := StatusResponse{Status: "running", Venues: make([]string, 0, len(o.listeners))}
	if !started.IsZero() {
		resp.Uptime = time.Since(started).Truncate(time.Second).String()
	}
	for _, l := range o.listeners {
		resp.Venues = append(resp.Venues, l.Venue().String())
	}
	if o.queue != nil {
		resp.QueueDepth = len(o.queue)
	}
	if o.seen != nil {
		resp.SeenMints = o.seen.Len()
	}
	if o.ledger != nil {
		snap := o.ledger.Snapshot()
		resp.CycleStart = snap.CycleStart
		resp.BuysCompleted = snap.BuysCompleted
		resp.MaxBuys = snap.MaxBuys
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
