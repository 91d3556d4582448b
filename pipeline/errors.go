// Package pipeline implements the deckhand orchestration core: task
// execution with timeout and retry, phase-level fan-out/fan-in, and the
// run-level state machine that sequences phases.
package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for task failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrInvalidInput indicates parameters failed validation before
	// dispatch. Fatal: fails fast, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates a task attempt exceeded its timeout and the
	// underlying work was abandoned. Retryable up to the task budget.
	ErrTimeout = errors.New("task timed out")

	// ErrCollaborator indicates the external collaborator reported a
	// failure. Retryable up to the task budget.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrCanceled indicates the run-level cancellation signal stopped the
	// task. Not retryable.
	ErrCanceled = errors.New("run canceled")

	// ErrDependencyUnsatisfiable indicates a phase's dependency predicate
	// can never be satisfied. Fatal at the phase level: aborts remaining
	// phases.
	ErrDependencyUnsatisfiable = errors.New("dependency unsatisfiable")
)

// TaskError wraps a task attempt failure with classification.
// It preserves the original error in the chain for errors.Is/As.
type TaskError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Task is the task name.
	Task string
	// Attempt is the attempt number that failed.
	Attempt int
	// Err is the underlying error, if any.
	Err error
}

func (e *TaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %s attempt %d: %v: %v", e.Task, e.Attempt, e.Kind, e.Err)
	}
	return fmt.Sprintf("task %s attempt %d: %v", e.Task, e.Attempt, e.Kind)
}

// Unwrap returns the underlying error for chain traversal.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// newTaskError creates a classified task error.
func newTaskError(kind error, task string, attempt int, err error) *TaskError {
	return &TaskError{Kind: kind, Task: task, Attempt: attempt, Err: err}
}

// Retryable reports whether a failed attempt may be retried.
// Only timeouts and collaborator failures consume retry budget; invalid
// input and cancellation are terminal immediately.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrCollaborator)
}
