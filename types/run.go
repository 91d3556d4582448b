// Package types defines core domain types for the deckhand pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"time"
)

// RunMeta contains run identity for one end-to-end pipeline execution.
// A run is created per (sector, region) request and owned exclusively by
// the orchestrator for its lifetime.
type RunMeta struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string `json:"run_id"`
	// Sector is the free-text industry sector under research.
	Sector string `json:"sector"`
	// Region is the free-text geographic region under research.
	Region string `json:"region"`
	// CreatedAt is the request arrival time.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks run identity invariants. Sector and region are free-text
// and validated only for non-emptiness before dispatch.
func (m *RunMeta) Validate() error {
	if m.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if m.Sector == "" {
		return errors.New("sector must be non-empty")
	}
	if m.Region == "" {
		return errors.New("region must be non-empty")
	}
	return nil
}

// RunStatus represents the overall status of a run.
type RunStatus string

const (
	// RunPending indicates the run has been created but not dispatched.
	RunPending RunStatus = "pending"
	// RunRunning indicates at least one phase has been dispatched.
	RunRunning RunStatus = "running"
	// RunSuccess indicates every task in every phase succeeded.
	RunSuccess RunStatus = "success"
	// RunPartialSuccess indicates every phase produced at least one artifact
	// but at least one task failed permanently.
	RunPartialSuccess RunStatus = "partial_success"
	// RunFailed indicates a required dependency could never be satisfied.
	RunFailed RunStatus = "failed"
)

// Terminal returns true if the status is a terminal run state.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunPartialSuccess || s == RunFailed
}

// ClassifyRun derives the overall run status from completed phase results.
// It is a pure function of the phases' statuses:
//   - Failed if any phase was skipped, or any attempted phase produced zero
//     artifacts (its downstream dependency can never be satisfied)
//   - Success if every phase is done and no task failed permanently
//   - PartialSuccess otherwise (every phase has output, some task failed)
func ClassifyRun(phases []PhaseResult) RunStatus {
	if len(phases) == 0 {
		return RunFailed
	}

	anyTaskFailed := false
	for i := range phases {
		p := &phases[i]
		if p.Status == PhaseSkipped {
			return RunFailed
		}
		if p.Status != PhaseDone {
			return RunFailed
		}
		if p.ArtifactCount() == 0 {
			return RunFailed
		}
		for j := range p.Tasks {
			if p.Tasks[j].Status == TaskFailed {
				anyTaskFailed = true
			}
		}
	}

	if anyTaskFailed {
		return RunPartialSuccess
	}
	return RunSuccess
}

// RunResult is the finalized outcome of a pipeline run.
type RunResult struct {
	// Meta is the run identity.
	Meta *RunMeta
	// Status is the terminal run classification.
	Status RunStatus
	// Phases holds the per-phase results in pipeline order.
	Phases []PhaseResult
	// Artifacts lists the latest successful artifact per task, across phases.
	Artifacts []ArtifactRef
	// Duration is the total run duration.
	Duration time.Duration
	// FailureReason is set when Status is RunFailed.
	FailureReason string
}

// FailedTasks returns the names of all permanently failed tasks.
func (r *RunResult) FailedTasks() []string {
	var failed []string
	for i := range r.Phases {
		for j := range r.Phases[i].Tasks {
			if t := &r.Phases[i].Tasks[j]; t.Status == TaskFailed {
				failed = append(failed, t.Task)
			}
		}
	}
	return failed
}

// ExitCode maps a terminal run status to a process exit code.
func (r *RunResult) ExitCode() int {
	switch r.Status {
	case RunSuccess:
		return 0
	case RunPartialSuccess:
		return 1
	default:
		return 2
	}
}

// String summarizes the result for log output.
func (r *RunResult) String() string {
	return fmt.Sprintf("run %s: %s (%d phases, %d artifacts)",
		r.Meta.RunID, r.Status, len(r.Phases), len(r.Artifacts))
}
