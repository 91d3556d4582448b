package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deckhand-io/deckhand/collab"
	"github.com/deckhand-io/deckhand/metrics"
	"github.com/deckhand-io/deckhand/notify"
	"github.com/deckhand-io/deckhand/state"
	"github.com/deckhand-io/deckhand/storage"
	"github.com/deckhand-io/deckhand/types"
)

// testTuning keeps retries fast; the injected sleep skips delays entirely.
var testTuning = Tuning{
	ResearchTimeout: 5 * time.Second,
	RenderTimeout:   5 * time.Second,
	MaxAttempts:     3,
	BaseDelay:       time.Millisecond,
	MaxDelay:        10 * time.Millisecond,
}

// scriptAllOK scripts a successful outcome for every thesis plan task.
func scriptAllOK(stub *collab.Stub) {
	for _, name := range ThesisResearchTasks {
		stub.ScriptOK(name)
	}
	stub.ScriptOK("compile")
	stub.Script("render", collab.StubOutcome{Payload: &collab.Payload{
		Name: "deck.pptx", ContentType: "application/vnd.openxmlformats-officedocument.presentationml.presentation", Data: []byte("pptx"),
	}})
	stub.Script("review", collab.StubOutcome{Payload: &collab.Payload{
		Name: "review.md", ContentType: "text/markdown", Data: []byte("lgtm"),
	}})
}

func newTestOrchestrator(t *testing.T, stub *collab.Stub, phases []types.PhaseSpec) (*Orchestrator, *notify.Chan) {
	t.Helper()

	artifacts, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("create fs store: %v", err)
	}
	t.Cleanup(func() { artifacts.Close() })

	sink := notify.NewChan(64)
	orch, err := NewOrchestrator(&Config{
		Meta:          testMeta(),
		Phases:        phases,
		Collaborators: Collaborators{Generator: stub, Renderer: stub, Reviewer: stub},
		Artifacts:     artifacts,
		State:         state.NewMemoryStore(),
		Sink:          sink,
		TemplateRef:   "default-template",
		Sleep:         noSleep,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("create orchestrator: %v", err)
	}
	return orch, sink
}

func drainEvents(sink *notify.Chan) []types.Event {
	var events []types.Event
	for {
		select {
		case e := <-sink.C:
			events = append(events, e)
		default:
			return events
		}
	}
}

func countEvents(events []types.Event, typ types.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestExecute_HappyPath(t *testing.T) {
	stub := collab.NewStub()
	scriptAllOK(stub)
	orch, sink := newTestOrchestrator(t, stub, ThesisPlan(testTuning))

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != types.RunSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.FailureReason)
	}
	if result.ExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode())
	}
	// 5 research + compile + render + review.
	if len(result.Artifacts) != 8 {
		t.Errorf("expected 8 artifacts, got %d", len(result.Artifacts))
	}
	if len(result.Phases) != 4 {
		t.Fatalf("expected 4 phase results, got %d", len(result.Phases))
	}
	for _, p := range result.Phases {
		if p.Status != types.PhaseDone {
			t.Errorf("phase %s: expected done, got %s", p.Name, p.Status)
		}
	}

	events := drainEvents(sink)
	if got := countEvents(events, types.EventPhaseStarted); got != 4 {
		t.Errorf("expected 4 phase_started events, got %d", got)
	}
	if got := countEvents(events, types.EventPhaseFinished); got != 4 {
		t.Errorf("expected 4 phase_finished events, got %d", got)
	}
	if got := countEvents(events, types.EventRunFinalized); got != 1 {
		t.Errorf("expected 1 run_finalized event, got %d", got)
	}
	if got := countEvents(events, types.EventRunFailed); got != 0 {
		t.Errorf("expected no run_failed event, got %d", got)
	}
}

func TestExecute_PartialResearchFailure(t *testing.T) {
	stub := collab.NewStub()
	scriptAllOK(stub)
	stub.Script("macro-thesis", collab.StubOutcome{Err: &collab.Error{Status: 500, Message: "model error"}})
	stub.Script("company-filters", collab.StubOutcome{Err: &collab.Error{Status: 500, Message: "model error"}})

	orch, sink := newTestOrchestrator(t, stub, ThesisPlan(testTuning))
	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != types.RunPartialSuccess {
		t.Fatalf("expected partial_success, got %s", result.Status)
	}
	if result.ExitCode() != 1 {
		t.Errorf("expected exit code 1, got %d", result.ExitCode())
	}

	failed := result.FailedTasks()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed tasks, got %v", failed)
	}

	// Compile still ran, fed only the successful research artifacts.
	if stub.Calls("compile") == 0 {
		t.Error("compile should run when at least one research artifact exists")
	}
	// 3 research + compile + render + review.
	if len(result.Artifacts) != 6 {
		t.Errorf("expected 6 artifacts, got %d", len(result.Artifacts))
	}

	events := drainEvents(sink)
	if got := countEvents(events, types.EventRunFinalized); got != 1 {
		t.Errorf("expected 1 run_finalized event, got %d", got)
	}
}

func TestExecute_AllResearchFailsAbortsRun(t *testing.T) {
	stub := collab.NewStub()
	for _, name := range ThesisResearchTasks {
		stub.Script(name, collab.StubOutcome{Err: &collab.Error{Status: 500, Message: "model error"}})
	}

	orch, sink := newTestOrchestrator(t, stub, ThesisPlan(testTuning))
	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != types.RunFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.ExitCode() != 2 {
		t.Errorf("expected exit code 2, got %d", result.ExitCode())
	}
	if !strings.Contains(result.FailureReason, "compile") {
		t.Errorf("failure reason should name the blocked phase, got %q", result.FailureReason)
	}

	// Compile, present, and review never dispatch.
	if stub.Calls("compile") != 0 {
		t.Error("compile must not run with zero research artifacts")
	}
	if stub.Calls("render") != 0 {
		t.Error("render must not run after abort")
	}

	if len(result.Phases) != 4 {
		t.Fatalf("expected 4 phase results, got %d", len(result.Phases))
	}
	for _, p := range result.Phases[1:] {
		if p.Status != types.PhaseSkipped {
			t.Errorf("phase %s: expected skipped, got %s", p.Name, p.Status)
		}
	}

	events := drainEvents(sink)
	if got := countEvents(events, types.EventRunFailed); got != 1 {
		t.Errorf("expected 1 run_failed event, got %d", got)
	}
}

func TestExecute_TimeoutThenRetrySucceeds(t *testing.T) {
	stub := collab.NewStub()
	scriptAllOK(stub)
	stub.Script("emerging-trends",
		collab.StubOutcome{Hang: true},
		collab.StubOutcome{Payload: &collab.Payload{Name: "emerging-trends.md", ContentType: "text/markdown", Data: []byte("# trends")}},
	)

	tuning := testTuning
	tuning.ResearchTimeout = 50 * time.Millisecond
	orch, _ := newTestOrchestrator(t, stub, ThesisPlan(tuning))

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != types.RunSuccess {
		t.Fatalf("expected success after retry, got %s (%s)", result.Status, result.FailureReason)
	}
	if stub.Calls("emerging-trends") != 2 {
		t.Errorf("expected 2 attempts, got %d", stub.Calls("emerging-trends"))
	}

	// Exactly one artifact for the retried task, under the fresh attempt key.
	for _, ref := range result.Artifacts {
		if ref.TaskName == "emerging-trends" && ref.Attempt != 2 {
			t.Errorf("retried task should surface attempt 2, got %d", ref.Attempt)
		}
	}
}

func TestExecute_NetworkingPlan(t *testing.T) {
	stub := collab.NewStub()
	for _, name := range NetworkingResearchTasks {
		stub.ScriptOK(name)
	}
	stub.ScriptOK("compile")
	stub.Script("render", collab.StubOutcome{Payload: &collab.Payload{
		Name: "strategy.pptx", ContentType: "application/octet-stream", Data: []byte("pptx"),
	}})

	orch, _ := newTestOrchestrator(t, stub, NetworkingPlan(testTuning))
	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != types.RunSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.FailureReason)
	}
	if len(result.Phases) != 3 {
		t.Errorf("expected 3 phases, got %d", len(result.Phases))
	}
	if len(result.Artifacts) != 4 {
		t.Errorf("expected 4 artifacts, got %d", len(result.Artifacts))
	}
}

func TestNewOrchestrator_Validation(t *testing.T) {
	base := func() *Config {
		return &Config{
			Meta:   testMeta(),
			Phases: ThesisPlan(testTuning),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing run id", func(c *Config) { c.Meta.RunID = "" }},
		{"missing sector", func(c *Config) { c.Meta.Sector = "" }},
		{"no phases", func(c *Config) { c.Phases = nil }},
		{"duplicate task name", func(c *Config) {
			c.Phases[1].Tasks = append(c.Phases[1].Tasks, c.Phases[0].Tasks[0])
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base()
			tt.mutate(config)
			if _, err := NewOrchestrator(config); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExecute_EventOrdering(t *testing.T) {
	stub := collab.NewStub()
	scriptAllOK(stub)
	orch, sink := newTestOrchestrator(t, stub, ThesisPlan(testTuning))

	if _, err := orch.Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	events := drainEvents(sink)
	// Phases never overlap: started events arrive in pipeline position order,
	// each followed by its finished event before the next phase starts.
	wantPhases := []string{"research", "compile", "present", "review"}
	i := 0
	for _, e := range events {
		if e.Type != types.EventPhaseStarted {
			continue
		}
		if i >= len(wantPhases) || e.Phase != wantPhases[i] {
			t.Fatalf("phase_started out of order: got %s at position %d", e.Phase, i)
		}
		i++
	}
	if i != len(wantPhases) {
		t.Fatalf("expected %d phase_started events, got %d", len(wantPhases), i)
	}

	last := events[len(events)-1]
	if last.Type != types.EventRunFinalized {
		t.Errorf("final event should be run_finalized, got %s", last.Type)
	}
}

// downSink fails every delivery, simulating a dead notification endpoint.
type downSink struct{}

func (downSink) Notify(context.Context, string, types.Event) error {
	return errors.New("endpoint unreachable")
}

func (downSink) Close() error { return nil }

func TestExecute_FailingSinkNeverAffectsRun(t *testing.T) {
	stub := collab.NewStub()
	scriptAllOK(stub)

	artifacts, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("create fs store: %v", err)
	}
	t.Cleanup(func() { artifacts.Close() })

	collector := metrics.NewCollector("thesis", "fs", "run-test", "climate-tech", "nordics")
	orch, err := NewOrchestrator(&Config{
		Meta:          testMeta(),
		Phases:        ThesisPlan(testTuning),
		Collaborators: Collaborators{Generator: stub, Renderer: stub, Reviewer: stub},
		Artifacts:     artifacts,
		State:         state.NewMemoryStore(),
		Sink:          downSink{},
		Collector:     collector,
		TemplateRef:   "default-template",
		Sleep:         noSleep,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("create orchestrator: %v", err)
	}

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != types.RunSuccess {
		t.Fatalf("dead sink must not change the run: got %s (%s)", result.Status, result.FailureReason)
	}
	if len(result.Artifacts) != 8 {
		t.Errorf("expected 8 artifacts, got %d", len(result.Artifacts))
	}

	snap := collector.Snapshot()
	// 4 phase_started + 4 phase_finished + 1 run_finalized, all dropped.
	if snap.NotifyDropped != 9 {
		t.Errorf("NotifyDropped = %d, want 9", snap.NotifyDropped)
	}
	if snap.NotifyDelivered != 0 {
		t.Errorf("NotifyDelivered = %d, want 0", snap.NotifyDelivered)
	}
}
