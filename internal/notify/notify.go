// Package notify delivers pipeline events to operators.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/logging"
)

// Sink receives pipeline events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Notify(ctx context.Context, ev domain.Event) error
}

// Multi fans an event out to every sink. All sinks are called even when
// one fails.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes every event to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logging.OrNop(logger)}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, ev domain.Event) error {
	fields := []zap.Field{zap.String("event", string(ev.Kind))}
	if ev.Candidate != nil {
		fields = append(fields,
			zap.String("mint", ev.Candidate.Mint),
			zap.String("venue", ev.Candidate.Venue.String()))
	}

	switch ev.Kind {
	case domain.EventRejected:
		if v := ev.Validation; v != nil {
			fields = append(fields,
				zap.String("stage", v.FailedStage.String()),
				zap.String("reason", v.Reason),
				zap.Bool("retryable", v.Retryable))
		}
		s.logger.Info("candidate rejected", fields...)
	case domain.EventAnnounced:
		s.logger.Info("candidate announced", fields...)
	case domain.EventBought:
		if r := ev.Record; r != nil {
			fields = append(fields,
				zap.String("mint", r.Mint),
				zap.String("amount", r.Amount.String()),
				zap.String("tx", r.TxID))
		}
		s.logger.Info("purchase completed", fields...)
	case domain.EventPurchaseRejected:
		fields = append(fields, zap.String("reason", ev.Reason.String()))
		if ev.Detail != "" {
			fields = append(fields, zap.String("detail", ev.Detail))
		}
		s.logger.Warn("purchase rejected", fields...)
	case domain.EventNewCycle:
		if c := ev.ClosedCycle; c != nil {
			fields = append(fields,
				zap.Time("closed_cycle_start", c.CycleStart),
				zap.Int("buys", c.BuysCompleted))
		}
		s.logger.Info("new cycle started", fields...)
	default:
		s.logger.Debug("event", fields...)
	}
	return nil
}
