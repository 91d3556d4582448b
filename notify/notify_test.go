package notify

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/deckhand-io/deckhand/log"
	"github.com/deckhand-io/deckhand/types"
)

// recordSink captures delivered events and returns a scripted error.
type recordSink struct {
	events []types.Event
	err    error
	closed bool
}

func (r *recordSink) Notify(_ context.Context, _ string, event types.Event) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordSink) Close() error {
	r.closed = true
	return r.err
}

func testEvent(typ types.EventType) types.Event {
	return types.Event{Type: typ, RunID: "run-001", Sector: "climate-tech", Region: "nordics"}
}

func testLogger() *log.Logger {
	meta := &types.RunMeta{RunID: "run-001", Sector: "climate-tech", Region: "nordics"}
	return log.NewLogger(meta).WithOutput(io.Discard)
}

func TestNoop(t *testing.T) {
	var s Noop
	if err := s.Notify(t.Context(), "run-001", testEvent(types.EventPhaseStarted)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMulti_DeliversToAll(t *testing.T) {
	a := &recordSink{}
	b := &recordSink{}
	m := Multi{a, b}

	if err := m.Notify(t.Context(), "run-001", testEvent(types.EventPhaseStarted)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("expected 1 event each, got %d and %d", len(a.events), len(b.events))
	}
}

func TestMulti_ErrorDoesNotStopDelivery(t *testing.T) {
	failErr := errors.New("delivery failed")
	a := &recordSink{err: failErr}
	b := &recordSink{}
	m := Multi{a, b}

	err := m.Notify(t.Context(), "run-001", testEvent(types.EventPhaseFinished))
	if !errors.Is(err, failErr) {
		t.Errorf("expected first error returned, got %v", err)
	}

	// Every sink is attempted even when an earlier one fails
	if len(b.events) != 1 {
		t.Errorf("expected second sink to receive event, got %d", len(b.events))
	}
}

func TestMulti_Close(t *testing.T) {
	a := &recordSink{err: errors.New("close failed")}
	b := &recordSink{}
	m := Multi{a, b}

	if err := m.Close(); err == nil {
		t.Error("expected close error propagated")
	}
	if !a.closed || !b.closed {
		t.Error("expected both sinks closed")
	}
}

// countStats records delivery outcomes for assertions.
type countStats struct {
	delivered int
	dropped   int
}

func (c *countStats) IncNotifyDelivered() { c.delivered++ }
func (c *countStats) IncNotifyDropped()   { c.dropped++ }

func TestBestEffort_AbsorbsErrors(t *testing.T) {
	inner := &recordSink{err: errors.New("sink down")}
	s := NewBestEffort(inner, testLogger(), nil)

	if err := s.Notify(t.Context(), "run-001", testEvent(types.EventRunFinalized)); err != nil {
		t.Fatalf("best-effort sink must never return an error, got %v", err)
	}
	if len(inner.events) != 1 {
		t.Errorf("expected delivery attempted, got %d events", len(inner.events))
	}
}

func TestBestEffort_CountsOutcomes(t *testing.T) {
	stats := &countStats{}

	ok := NewBestEffort(&recordSink{}, testLogger(), stats)
	if err := ok.Notify(t.Context(), "run-001", testEvent(types.EventPhaseStarted)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	down := NewBestEffort(&recordSink{err: errors.New("sink down")}, testLogger(), stats)
	if err := down.Notify(t.Context(), "run-001", testEvent(types.EventPhaseFinished)); err != nil {
		t.Fatalf("best-effort sink must never return an error, got %v", err)
	}

	if stats.delivered != 1 {
		t.Errorf("delivered = %d, want 1", stats.delivered)
	}
	if stats.dropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.dropped)
	}
}

func TestBestEffort_Close(t *testing.T) {
	inner := &recordSink{}
	s := NewBestEffort(inner, testLogger(), nil)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !inner.closed {
		t.Error("expected inner sink closed")
	}
}

func TestChan_Delivers(t *testing.T) {
	c := NewChan(4)

	if err := c.Notify(t.Context(), "run-001", testEvent(types.EventPhaseStarted)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case event := <-c.C:
		if event.Type != types.EventPhaseStarted {
			t.Errorf("expected phase_started, got %s", event.Type)
		}
	default:
		t.Fatal("expected event on channel")
	}
}

func TestChan_FullChannelDropsEvent(t *testing.T) {
	c := NewChan(1)

	if err := c.Notify(t.Context(), "run-001", testEvent(types.EventPhaseStarted)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	// Buffer is full; this must drop rather than block
	if err := c.Notify(t.Context(), "run-001", testEvent(types.EventPhaseFinished)); err != nil {
		t.Fatalf("notify on full channel: %v", err)
	}

	event := <-c.C
	if event.Type != types.EventPhaseStarted {
		t.Errorf("expected first event retained, got %s", event.Type)
	}
	select {
	case event := <-c.C:
		t.Errorf("expected second event dropped, got %s", event.Type)
	default:
	}
}

func TestChan_CloseClosesChannel(t *testing.T) {
	c := NewChan(1)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, ok := <-c.C
	if ok {
		t.Error("expected closed channel")
	}
}
