package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/deckhand-io/deckhand/log"
	"github.com/deckhand-io/deckhand/metrics"
	"github.com/deckhand-io/deckhand/notify"
	"github.com/deckhand-io/deckhand/state"
	"github.com/deckhand-io/deckhand/storage"
	"github.com/deckhand-io/deckhand/types"
)

// Config configures a single pipeline run.
type Config struct {
	// Meta is the run identity. Required.
	Meta *types.RunMeta
	// Phases is the ordered phase list. Required, non-empty.
	Phases []types.PhaseSpec
	// Collaborators are the external services tasks delegate to. Required.
	Collaborators Collaborators
	// Artifacts is the artifact byte store. Required.
	Artifacts storage.Store
	// State is the run state store. Required.
	State state.Store
	// Sink receives notification events. Delivery is fire-and-forget: sink
	// failures are logged and dropped, never propagated. Nil means no
	// notifications.
	Sink notify.Sink
	// Journal records terminal task states for later inspection. Optional.
	Journal *state.Journal
	// Collector records run metrics. Nil disables metrics (all Collector
	// methods are nil-safe).
	Collector *metrics.Collector
	// TemplateRef is the slide template passed to the renderer.
	TemplateRef string
	// Sleep overrides the backoff clock (for testing). Nil uses real time.
	Sleep SleepFunc
	// Logger overrides the run logger (for testing). Nil builds one from Meta.
	Logger *log.Logger
}

// Orchestrator sequences a run's phases: evaluate the dependency predicate,
// fan the phase's tasks out, fan back in, repeat. Phases never overlap.
type Orchestrator struct {
	config    *Config
	logger    *log.Logger
	executor  *PhaseExecutor
	sink      notify.Sink
	startTime time.Time
}

// NewOrchestrator validates the run configuration and builds an orchestrator.
func NewOrchestrator(config *Config) (*Orchestrator, error) {
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(config.Phases) == 0 {
		return nil, fmt.Errorf("%w: pipeline must contain at least one phase", ErrInvalidInput)
	}

	seen := make(map[string]struct{})
	for i := range config.Phases {
		phase := &config.Phases[i]
		if err := phase.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for j := range phase.Tasks {
			name := phase.Tasks[j].Name
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("%w: duplicate task name %q", ErrInvalidInput, name)
			}
			seen[name] = struct{}{}
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.Meta)
	}

	runner := NewRunner(
		config.Meta,
		config.Collaborators,
		config.Artifacts,
		config.State,
		logger,
		config.Collector,
		config.TemplateRef,
	)

	var sink notify.Sink
	if config.Sink != nil {
		sink = notify.NewBestEffort(config.Sink, logger, config.Collector)
	}

	return &Orchestrator{
		config:   config,
		logger:   logger,
		executor: NewPhaseExecutor(runner, logger, config.Collector, config.Sleep),
		sink:     sink,
	}, nil
}

// Execute runs the pipeline end-to-end and returns the finalized result.
//
// Execution flow per phase:
//  1. Evaluate the dependency predicate against the state snapshot
//  2. If unsatisfiable, skip this and all remaining phases, fail the run
//  3. Otherwise dispatch all tasks concurrently and join
//  4. Journal terminal task states, emit phase events
//
// Cancellation via ctx means stop waiting: in-flight collaborator work may
// keep running remotely, its result is discarded.
func (o *Orchestrator) Execute(ctx context.Context) (*types.RunResult, error) {
	o.startTime = time.Now()
	meta := o.config.Meta
	phaseCount := len(o.config.Phases)

	o.logger.Info("starting run", map[string]any{
		"phases": phaseCount,
	})

	phaseResults := make([]types.PhaseResult, 0, phaseCount)
	attempted := 0
	failureReason := ""

	for i := range o.config.Phases {
		phase := &o.config.Phases[i]

		snapshot, err := o.config.State.Snapshot(ctx, meta.RunID)
		if err != nil {
			return nil, fmt.Errorf("snapshot run state: %w", err)
		}

		// The predicate is evaluated exactly once, after the preceding
		// phase returned. Prior failed tasks have no speculative reads.
		if !phase.Requires.Satisfied(snapshot.Latest) {
			failureReason = fmt.Sprintf("phase %s requires %s, which can no longer be satisfied",
				phase.Name, phase.Requires)
			o.logger.Error("aborting run", map[string]any{
				"phase":  phase.Name,
				"reason": failureReason,
			})
			o.emit(ctx, types.NewRunFailed(meta, failureReason))

			for j := i; j < phaseCount; j++ {
				o.config.Collector.IncPhaseSkipped()
				phaseResults = append(phaseResults, types.PhaseResult{
					Name:   o.config.Phases[j].Name,
					Status: types.PhaseSkipped,
				})
			}
			break
		}

		attempted++
		o.config.Collector.IncPhaseRun()
		o.emit(ctx, types.NewPhaseStarted(meta, phase.Name, phase.Position, phaseCount))
		o.logger.Info("phase started", map[string]any{
			"phase": phase.Name,
			"tasks": len(phase.Tasks),
		})

		upstream := reduceUpstream(phase.Requires, snapshot)
		outcome := o.executor.RunPhase(ctx, phase, upstream)

		result := types.PhaseResult{
			Name:   phase.Name,
			Status: types.PhaseDone,
			Tasks:  outcome.Results,
		}
		phaseResults = append(phaseResults, result)
		o.journalPhase(phase.Name, outcome.Results)

		o.emit(ctx, types.NewPhaseFinished(meta, phase.Name, phase.Position, phaseCount,
			len(outcome.Succeeded), len(outcome.Failed)))
		o.logger.Info("phase finished", map[string]any{
			"phase":     phase.Name,
			"succeeded": len(outcome.Succeeded),
			"failed":    len(outcome.Failed),
		})
	}

	return o.finalize(ctx, phaseResults, attempted, failureReason)
}

// finalize classifies the run, records it, and emits the terminal event.
func (o *Orchestrator) finalize(ctx context.Context, phases []types.PhaseResult, attempted int, failureReason string) (*types.RunResult, error) {
	meta := o.config.Meta
	status := types.ClassifyRun(phases)

	if status == types.RunFailed && failureReason == "" {
		failureReason = describeFailure(phases)
	}

	snapshot, err := o.config.State.Snapshot(ctx, meta.RunID)
	if err != nil {
		return nil, fmt.Errorf("snapshot run state: %w", err)
	}

	result := &types.RunResult{
		Meta:          meta,
		Status:        status,
		Phases:        phases,
		Artifacts:     collectArtifacts(o.config.Phases, snapshot),
		Duration:      time.Since(o.startTime),
		FailureReason: failureReason,
	}

	o.config.Collector.RecordRunStatus(string(status))
	if o.config.Journal != nil {
		if err := o.config.Journal.RecordFinalized(meta.RunID, status); err != nil {
			o.logger.Warn("journal finalize failed", map[string]any{"error": err.Error()})
		}
	}

	if attempted > 0 {
		o.emit(ctx, types.NewRunFinalized(meta, status, result.Artifacts))
	}

	o.logger.Info("run finalized", map[string]any{
		"status":    string(status),
		"artifacts": len(result.Artifacts),
		"duration":  result.Duration.String(),
	})
	return result, nil
}

// emit delivers one notification event through the best-effort wrapper,
// which absorbs, counts, and logs delivery failures.
func (o *Orchestrator) emit(ctx context.Context, event types.Event) {
	if o.sink == nil {
		return
	}
	_ = o.sink.Notify(ctx, o.config.Meta.RunID, event)
}

// journalPhase appends every terminal task record of a completed phase.
func (o *Orchestrator) journalPhase(phase string, results []types.TaskResult) {
	if o.config.Journal == nil {
		return
	}
	for i := range results {
		if err := o.config.Journal.RecordTask(o.config.Meta.RunID, phase, &results[i]); err != nil {
			o.logger.Warn("journal append failed", map[string]any{
				"task":  results[i].Task,
				"error": err.Error(),
			})
		}
	}
}

// reduceUpstream narrows the phase input to the artifacts its predicate
// ranges over that actually exist. Failed upstream tasks contribute nothing.
func reduceUpstream(requires types.Requirement, snapshot *state.RunSnapshot) []types.ArtifactRef {
	if len(requires.Tasks) == 0 {
		return nil
	}
	refs := make([]types.ArtifactRef, 0, len(requires.Tasks))
	for _, name := range requires.Tasks {
		if ref, ok := snapshot.Latest[name]; ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// collectArtifacts gathers the latest artifact per task in pipeline order.
func collectArtifacts(phases []types.PhaseSpec, snapshot *state.RunSnapshot) []types.ArtifactRef {
	var refs []types.ArtifactRef
	for i := range phases {
		for j := range phases[i].Tasks {
			if ref, ok := snapshot.Latest[phases[i].Tasks[j].Name]; ok {
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// describeFailure names the first phase responsible for a failed
// classification, for failure reasons not produced by a dependency abort.
func describeFailure(phases []types.PhaseResult) string {
	for i := range phases {
		p := &phases[i]
		if p.Status == types.PhaseSkipped {
			return fmt.Sprintf("phase %s was skipped", p.Name)
		}
		if p.Status == types.PhaseDone && p.ArtifactCount() == 0 {
			return fmt.Sprintf("phase %s produced no artifacts", p.Name)
		}
	}
	return "run produced no phases"
}
