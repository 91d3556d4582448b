// Package notify defines the notification sink boundary.
//
// Sinks receive orchestrator progress, failure, and completion events and
// forward them to an external messaging channel. Delivery is
// fire-and-forget from the orchestrator's perspective: sink failures are
// logged and never roll back pipeline state.
package notify

import (
	"context"

	"github.com/deckhand-io/deckhand/log"
	"github.com/deckhand-io/deckhand/types"
)

// Sink receives pipeline events.
// Implementations must respect context cancellation and deadlines.
type Sink interface {
	// Notify delivers one event for a run.
	Notify(ctx context.Context, runID string, event types.Event) error

	// Close releases sink resources.
	Close() error
}

// Noop is a Sink that discards events.
type Noop struct{}

// Notify implements Sink.
func (Noop) Notify(context.Context, string, types.Event) error { return nil }

// Close implements Sink.
func (Noop) Close() error { return nil }

// Multi fans one event out to several sinks. Every sink is attempted; the
// first error is returned after all deliveries.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, runID string, event types.Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Notify(ctx, runID, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close implements Sink.
func (m Multi) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeliveryMetrics counts sink delivery outcomes. *metrics.Collector
// satisfies it.
type DeliveryMetrics interface {
	IncNotifyDelivered()
	IncNotifyDropped()
}

// BestEffort decorates a sink with the fire-and-forget delivery policy:
// delivery errors are counted, logged, and absorbed, never propagated.
// The orchestrator wraps its configured sink in this decorator, so a dead
// webhook or chat endpoint can never roll back pipeline state.
type BestEffort struct {
	sink   Sink
	logger *log.Logger
	stats  DeliveryMetrics
}

// NewBestEffort wraps sink with error absorption. stats may be nil.
func NewBestEffort(sink Sink, logger *log.Logger, stats DeliveryMetrics) *BestEffort {
	return &BestEffort{sink: sink, logger: logger, stats: stats}
}

// Notify implements Sink. Always returns nil.
func (b *BestEffort) Notify(ctx context.Context, runID string, event types.Event) error {
	if err := b.sink.Notify(ctx, runID, event); err != nil {
		if b.stats != nil {
			b.stats.IncNotifyDropped()
		}
		b.logger.Warn("notification dropped", map[string]any{
			"event": string(event.Type),
			"error": err.Error(),
		})
		return nil
	}
	if b.stats != nil {
		b.stats.IncNotifyDelivered()
	}
	return nil
}

// Close implements Sink.
func (b *BestEffort) Close() error {
	return b.sink.Close()
}

// Chan delivers events to an in-process channel. Used by the --watch TUI
// and by tests. Sends are non-blocking: a full channel drops the event
// rather than stalling the pipeline.
type Chan struct {
	// C receives every delivered event.
	C chan types.Event
}

// NewChan creates a channel sink with the given buffer size.
func NewChan(buffer int) *Chan {
	return &Chan{C: make(chan types.Event, buffer)}
}

// Notify implements Sink.
func (c *Chan) Notify(_ context.Context, _ string, event types.Event) error {
	select {
	case c.C <- event:
	default:
	}
	return nil
}

// Close implements Sink.
func (c *Chan) Close() error {
	close(c.C)
	return nil
}

// Verify implementations.
var (
	_ Sink = Noop{}
	_ Sink = Multi{}
	_ Sink = (*BestEffort)(nil)
	_ Sink = (*Chan)(nil)
)
