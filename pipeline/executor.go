package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deckhand-io/deckhand/log"
	"github.com/deckhand-io/deckhand/metrics"
	"github.com/deckhand-io/deckhand/types"
)

// Default retry tuning, applied when a task spec leaves them zero.
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 30 * time.Second
)

// SleepFunc blocks for d or until ctx is done. Injectable for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the production SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome is the fan-in result of one phase. Order-independent: keyed by
// task name, with Results preserving spec order for reporting.
type Outcome struct {
	// Results holds one terminal record per task, in spec order.
	Results []types.TaskResult
	// Succeeded maps task name to its produced artifact.
	Succeeded map[string]types.ArtifactRef
	// Failed maps task name to its terminal error.
	Failed map[string]error
}

// PhaseExecutor dispatches a phase's tasks concurrently and joins on all of
// them reaching a terminal state. It never short-circuits: a failing task
// does not cancel its siblings.
type PhaseExecutor struct {
	runner    *Runner
	logger    *log.Logger
	collector *metrics.Collector
	sleep     SleepFunc
}

// NewPhaseExecutor creates a phase executor. A nil sleep uses the real clock.
func NewPhaseExecutor(runner *Runner, logger *log.Logger, collector *metrics.Collector, sleep SleepFunc) *PhaseExecutor {
	if sleep == nil {
		sleep = sleepContext
	}
	return &PhaseExecutor{
		runner:    runner,
		logger:    logger,
		collector: collector,
		sleep:     sleep,
	}
}

// RunPhase executes every task of the phase with one goroutine per task and
// waits for all of them. upstream is the reduced set of artifacts the phase's
// dependency predicate ranges over; every task receives the same view.
func (e *PhaseExecutor) RunPhase(ctx context.Context, phase *types.PhaseSpec, upstream []types.ArtifactRef) *Outcome {
	outcome := &Outcome{
		Results:   make([]types.TaskResult, len(phase.Tasks)),
		Succeeded: make(map[string]types.ArtifactRef),
		Failed:    make(map[string]error),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := range phase.Tasks {
		wg.Add(1)
		go func(slot int, task *types.TaskSpec) {
			defer wg.Done()

			result := e.runTask(ctx, task, upstream)

			mu.Lock()
			outcome.Results[slot] = result
			if result.Status == types.TaskSucceeded {
				outcome.Succeeded[task.Name] = *result.Artifact
			} else {
				outcome.Failed[task.Name] = errors.New(result.Error)
			}
			mu.Unlock()
		}(i, &phase.Tasks[i])
	}
	wg.Wait()

	return outcome
}

// runTask drives one task through its retry budget until terminal.
func (e *PhaseExecutor) runTask(ctx context.Context, task *types.TaskSpec, upstream []types.ArtifactRef) types.TaskResult {
	var lastErr error

	for attempt := 1; attempt <= task.MaxAttempts; attempt++ {
		e.collector.IncTaskStarted()

		ref, err := e.runner.Execute(ctx, task, attempt, upstream)
		if err == nil {
			e.collector.IncTaskSucceeded()
			return types.TaskResult{
				Task:     task.Name,
				Status:   types.TaskSucceeded,
				Attempts: attempt,
				Artifact: ref,
			}
		}
		lastErr = err

		if !Retryable(err) || attempt == task.MaxAttempts {
			e.collector.IncTaskFailed()
			return types.TaskResult{
				Task:     task.Name,
				Status:   types.TaskFailed,
				Attempts: attempt,
				Error:    err.Error(),
			}
		}

		delay := backoffDelay(task, attempt)
		e.collector.IncTaskRetry()
		e.logger.Info("retrying task", map[string]any{
			"task":    task.Name,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			// Run canceled mid-backoff.
			e.collector.IncTaskFailed()
			return types.TaskResult{
				Task:     task.Name,
				Status:   types.TaskFailed,
				Attempts: attempt,
				Error:    newTaskError(ErrCanceled, task.Name, attempt, lastErr).Error(),
			}
		}
	}

	// Unreachable: the loop always returns from inside.
	e.collector.IncTaskFailed()
	return types.TaskResult{
		Task:     task.Name,
		Status:   types.TaskFailed,
		Attempts: task.MaxAttempts,
		Error:    lastErr.Error(),
	}
}

// backoffDelay computes the delay before the next attempt: base delay
// doubling per completed attempt, capped at the task's max delay.
func backoffDelay(task *types.TaskSpec, attempt int) time.Duration {
	base := task.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	max := task.MaxDelay
	if max <= 0 {
		max = DefaultMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
