package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deckhand-io/deckhand/collab"
	"github.com/deckhand-io/deckhand/log"
	"github.com/deckhand-io/deckhand/metrics"
	"github.com/deckhand-io/deckhand/state"
	"github.com/deckhand-io/deckhand/storage"
	"github.com/deckhand-io/deckhand/types"
)

// persistTimeout bounds the artifact write after a collaborator returns.
// Persistence runs under context.WithoutCancel so a run-level cancel does not
// discard an already-produced payload mid-write.
const persistTimeout = 30 * time.Second

// Collaborators bundles the external services a pipeline delegates to.
type Collaborators struct {
	Generator collab.Generator
	Renderer  collab.Renderer
	Reviewer  collab.Reviewer
}

// Runner executes a single task attempt: validate, call the matching
// collaborator under the attempt timeout, persist the produced artifact.
type Runner struct {
	meta        *types.RunMeta
	collabs     Collaborators
	artifacts   storage.Store
	states      state.Store
	logger      *log.Logger
	collector   *metrics.Collector
	templateRef string
}

// NewRunner creates a task runner bound to one run.
func NewRunner(
	meta *types.RunMeta,
	collabs Collaborators,
	artifacts storage.Store,
	states state.Store,
	logger *log.Logger,
	collector *metrics.Collector,
	templateRef string,
) *Runner {
	return &Runner{
		meta:        meta,
		collabs:     collabs,
		artifacts:   artifacts,
		states:      states,
		logger:      logger,
		collector:   collector,
		templateRef: templateRef,
	}
}

// Execute runs one attempt of a task and returns the persisted artifact
// reference. Failures come back as *TaskError classified for retry policy:
// invalid input fails fast, timeouts and collaborator failures are retryable,
// run cancellation is terminal.
func (r *Runner) Execute(ctx context.Context, task *types.TaskSpec, attempt int, upstream []types.ArtifactRef) (*types.ArtifactRef, error) {
	if err := task.Validate(); err != nil {
		return nil, newTaskError(ErrInvalidInput, task.Name, attempt, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	payload, err := r.dispatch(attemptCtx, task, upstream)
	if err != nil {
		return nil, r.classify(ctx, attemptCtx, task, attempt, err)
	}
	if payload == nil {
		return nil, newTaskError(ErrCollaborator, task.Name, attempt,
			errors.New("collaborator returned no payload"))
	}

	ref, err := r.persist(ctx, task, attempt, payload)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("task attempt succeeded", map[string]any{
		"task":    task.Name,
		"attempt": attempt,
		"bytes":   ref.SizeBytes,
	})
	return ref, nil
}

// dispatch routes the attempt to the collaborator matching the task kind.
func (r *Runner) dispatch(ctx context.Context, task *types.TaskSpec, upstream []types.ArtifactRef) (*collab.Payload, error) {
	switch task.Kind {
	case types.TaskResearch, types.TaskCompile:
		return r.collabs.Generator.Generate(ctx, task.Name, r.meta.Sector, r.meta.Region, upstream)

	case types.TaskRender:
		compiled, err := singleUpstream(task, upstream)
		if err != nil {
			return nil, err
		}
		return r.collabs.Renderer.Render(ctx, compiled, r.templateRef)

	case types.TaskReview:
		rendered, err := singleUpstream(task, upstream)
		if err != nil {
			return nil, err
		}
		return r.collabs.Reviewer.Review(ctx, rendered)

	default:
		// Unreachable after Validate, kept for defense against new kinds.
		return nil, fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// singleUpstream extracts the one upstream artifact render/review consume.
func singleUpstream(task *types.TaskSpec, upstream []types.ArtifactRef) (types.ArtifactRef, error) {
	if len(upstream) != 1 {
		return types.ArtifactRef{}, fmt.Errorf("task %s expects exactly one upstream artifact, got %d",
			task.Name, len(upstream))
	}
	return upstream[0], nil
}

// classify maps a collaborator failure to the task error taxonomy.
// The run-level context is checked before the attempt deadline: a canceled
// run must not be misread as a retryable timeout.
func (r *Runner) classify(runCtx, attemptCtx context.Context, task *types.TaskSpec, attempt int, err error) error {
	switch {
	case runCtx.Err() != nil:
		return newTaskError(ErrCanceled, task.Name, attempt, err)

	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		r.collector.IncTaskTimeout()
		r.logger.Warn("task attempt timed out", map[string]any{
			"task":    task.Name,
			"attempt": attempt,
			"timeout": task.Timeout.String(),
		})
		return newTaskError(ErrTimeout, task.Name, attempt, err)

	default:
		r.logger.Warn("collaborator call failed", map[string]any{
			"task":    task.Name,
			"attempt": attempt,
			"error":   err.Error(),
		})
		return newTaskError(ErrCollaborator, task.Name, attempt, err)
	}
}

// persist writes the payload to artifact storage and records the reference in
// the run state store. Storage failures are retryable: the next attempt
// writes under a fresh attempt key, so the half-written key is never reused.
func (r *Runner) persist(ctx context.Context, task *types.TaskSpec, attempt int, payload *collab.Payload) (*types.ArtifactRef, error) {
	ref := &types.ArtifactRef{
		RunID:       r.meta.RunID,
		TaskName:    task.Name,
		Attempt:     attempt,
		Name:        payload.Name,
		ContentType: payload.ContentType,
		SizeBytes:   int64(len(payload.Data)),
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	path, err := r.artifacts.Put(persistCtx, ref, payload.Data)
	if err != nil {
		r.collector.IncArtifactWriteFail()
		r.logger.Error("artifact write failed", map[string]any{
			"task":    task.Name,
			"attempt": attempt,
			"error":   err.Error(),
		})
		return nil, newTaskError(ErrCollaborator, task.Name, attempt,
			fmt.Errorf("persist artifact: %w", err))
	}
	ref.Path = path

	if err := r.states.Put(persistCtx, *ref); err != nil {
		r.collector.IncArtifactWriteFail()
		return nil, newTaskError(ErrCollaborator, task.Name, attempt,
			fmt.Errorf("record artifact: %w", err))
	}

	r.collector.IncArtifactPersisted()
	return ref, nil
}
