// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Discovery metrics
	CandidatesDiscovered *prometheus.CounterVec
	EventsDropped        *prometheus.CounterVec
	WSReconnects         *prometheus.CounterVec
	QueueDepth           prometheus.Gauge

	// Validation metrics
	Validations *prometheus.CounterVec

	// Purchase metrics
	Purchases     *prometheus.CounterVec
	BuysInCycle   prometheus.Gauge
	CycleStart    prometheus.Gauge
	SwapLatency   prometheus.Histogram
	Notifications *prometheus.CounterVec

	// Outbound call metrics
	GatewayLatency *prometheus.HistogramVec
	GatewayErrors  *prometheus.CounterVec
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "launch_sniper"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CandidatesDiscovered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "candidates_discovered_total",
			Help:      "Total number of unique candidates emitted by venue",
		}, []string{"venue"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "events_dropped_total",
			Help:      "Total number of creation events dropped by venue and reason",
		}, []string{"venue", "reason"}),
		WSReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "ws_reconnects_total",
			Help:      "Total number of websocket reconnects by venue",
		}, []string{"venue"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "queue_depth",
			Help:      "Number of candidates waiting in the dispatch queue",
		}),

		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "validations_total",
			Help:      "Total number of validations by failed stage (none when passed)",
		}, []string{"stage", "retryable"}),

		Purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "purchases_total",
			Help:      "Total number of purchase attempts by outcome",
		}, []string{"outcome"}),
		BuysInCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "buys_in_cycle",
			Help:      "Purchases completed in the current cycle",
		}),
		CycleStart: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "cycle_start_timestamp",
			Help:      "Unix timestamp of the current cycle start",
		}),
		SwapLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "swap_latency_seconds",
			Help:      "Swap (quote, sign, send) latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Total number of notification events by kind and status",
		}, []string{"kind", "status"}),

		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "call_latency_seconds",
			Help:      "Market data call latency in seconds by provider",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		GatewayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "errors_total",
			Help:      "Total number of failed market data calls by provider",
		}, []string{"provider"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordCandidateDiscovered increments the discovered counter for a venue.
func RecordCandidateDiscovered(venue string) {
	DefaultMetrics.CandidatesDiscovered.WithLabelValues(venue).Inc()
}

// RecordEventDropped records a creation event that produced no candidate.
func RecordEventDropped(venue, reason string) {
	DefaultMetrics.EventsDropped.WithLabelValues(venue, reason).Inc()
}

// RecordReconnect records a websocket reconnect.
func RecordReconnect(venue string) {
	DefaultMetrics.WSReconnects.WithLabelValues(venue).Inc()
}

// UpdateQueueDepth sets the dispatch queue gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordValidation records a validation outcome. Pass "none" for a passed candidate.
func RecordValidation(stage string, retryable bool) {
	r := "false"
	if retryable {
		r = "true"
	}
	DefaultMetrics.Validations.WithLabelValues(stage, r).Inc()
}

// RecordPurchase records a purchase outcome ("bought" or a rejection reason).
func RecordPurchase(outcome string) {
	DefaultMetrics.Purchases.WithLabelValues(outcome).Inc()
}

// RecordSwapLatency records the duration of a swap.
func RecordSwapLatency(seconds float64) {
	DefaultMetrics.SwapLatency.Observe(seconds)
}

// UpdateCycle sets the ledger gauges.
func UpdateCycle(start time.Time, buys int) {
	DefaultMetrics.CycleStart.Set(float64(start.Unix()))
	DefaultMetrics.BuysInCycle.Set(float64(buys))
}

// RecordNotification records a notification delivery.
func RecordNotification(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.Notifications.WithLabelValues(kind, status).Inc()
}

// RecordGatewayCall records latency and failure of an outbound HTTP call.
func RecordGatewayCall(provider string, seconds float64, err error) {
	DefaultMetrics.GatewayLatency.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		DefaultMetrics.GatewayErrors.WithLabelValues(provider).Inc()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
