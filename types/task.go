package types

import (
	"fmt"
	"time"
)

// TaskKind discriminates which external collaborator a task delegates to.
type TaskKind string

const (
	// TaskResearch delegates to the content-generation collaborator.
	TaskResearch TaskKind = "research"
	// TaskCompile delegates to the content-generation collaborator with
	// upstream research artifacts as input.
	TaskCompile TaskKind = "compile"
	// TaskRender delegates to the document-rendering collaborator.
	TaskRender TaskKind = "render"
	// TaskReview delegates to the review collaborator.
	TaskReview TaskKind = "review"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// TaskPending indicates the task has not been dispatched.
	TaskPending TaskStatus = "pending"
	// TaskRunning indicates an attempt is in flight.
	TaskRunning TaskStatus = "running"
	// TaskSucceeded indicates an attempt produced an artifact.
	TaskSucceeded TaskStatus = "succeeded"
	// TaskFailed indicates the retry budget is exhausted.
	TaskFailed TaskStatus = "failed"
)

// Terminal returns true if the status is a terminal task state.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskSpec describes one unit of work within a phase.
type TaskSpec struct {
	// Name identifies the task within its run. A task belongs to exactly
	// one phase; names are unique across the pipeline.
	Name string
	// Kind selects the collaborator the task delegates to.
	Kind TaskKind
	// Params are free-form input parameters forwarded to the collaborator.
	Params map[string]string
	// Timeout bounds a single attempt. The attempt is abandoned (stop
	// waiting, best-effort cancellation) when it elapses.
	Timeout time.Duration
	// MaxAttempts is the retry budget, counting the first attempt.
	MaxAttempts int
	// BaseDelay is the initial backoff delay, doubling per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
}

// Validate checks the spec before dispatch. Violations surface as
// invalid-input failures: fail fast, never retried.
func (t *TaskSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name must be non-empty")
	}
	switch t.Kind {
	case TaskResearch, TaskCompile, TaskRender, TaskReview:
	default:
		return fmt.Errorf("task %s: unknown kind %q", t.Name, t.Kind)
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("task %s: timeout must be positive, got %s", t.Name, t.Timeout)
	}
	if t.MaxAttempts < 1 {
		return fmt.Errorf("task %s: max attempts must be >= 1, got %d", t.Name, t.MaxAttempts)
	}
	return nil
}

// TaskResult is the terminal record of a task within a run.
type TaskResult struct {
	// Task is the task name.
	Task string `json:"task" msgpack:"task"`
	// Status is the terminal status (succeeded or failed).
	Status TaskStatus `json:"status" msgpack:"status"`
	// Attempts is the number of attempts consumed.
	Attempts int `json:"attempts" msgpack:"attempts"`
	// Artifact references the produced output. Set iff Status is succeeded.
	Artifact *ArtifactRef `json:"artifact,omitempty" msgpack:"artifact,omitempty"`
	// Error is the terminal error detail. Set iff Status is failed.
	Error string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// ArtifactRef is an immutable reference to a produced output, keyed by
// (run id, task name, attempt). Once written it is never mutated; downstream
// phases read by reference only.
type ArtifactRef struct {
	// RunID is the owning run.
	RunID string `json:"run_id" msgpack:"run_id"`
	// TaskName is the producing task.
	TaskName string `json:"task_name" msgpack:"task_name"`
	// Attempt is the producing attempt number, starting at 1. A rerun that
	// eventually succeeds writes under a fresh attempt identifier.
	Attempt int `json:"attempt" msgpack:"attempt"`
	// Name is a human-readable file name (e.g. "thesis.md", "deck.pptx").
	Name string `json:"name" msgpack:"name"`
	// ContentType is the MIME content type.
	ContentType string `json:"content_type" msgpack:"content_type"`
	// SizeBytes is the artifact size.
	SizeBytes int64 `json:"size_bytes" msgpack:"size_bytes"`
	// Path is the physical storage location. Opaque to consumers.
	Path string `json:"path" msgpack:"path"`
}

// Key returns the write-once storage key for this artifact.
func (a *ArtifactRef) Key() string {
	return fmt.Sprintf("%s/%s/%d", a.RunID, a.TaskName, a.Attempt)
}

// Validate checks artifact reference invariants.
func (a *ArtifactRef) Validate() error {
	if a.RunID == "" {
		return fmt.Errorf("artifact run_id must be non-empty")
	}
	if a.TaskName == "" {
		return fmt.Errorf("artifact task_name must be non-empty")
	}
	if a.Attempt < 1 {
		return fmt.Errorf("artifact attempt must be >= 1, got %d", a.Attempt)
	}
	return nil
}
