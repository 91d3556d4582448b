package types

import (
	"fmt"
	"strings"
)

// PhaseStatus represents the lifecycle state of a phase.
type PhaseStatus string

const (
	// PhaseNotStarted indicates the phase has not been dispatched.
	PhaseNotStarted PhaseStatus = "not_started"
	// PhaseRunning indicates the phase's tasks are in flight.
	PhaseRunning PhaseStatus = "running"
	// PhaseDone indicates every task reached a terminal state.
	PhaseDone PhaseStatus = "done"
	// PhaseSkipped indicates the phase's dependency predicate could never
	// be satisfied and the phase was never dispatched.
	PhaseSkipped PhaseStatus = "skipped"
)

// RequireMode selects how a phase's dependency predicate evaluates.
type RequireMode string

const (
	// RequireNone is always satisfied (entry phase).
	RequireNone RequireMode = "none"
	// RequireAtLeastOne is satisfied when any named upstream task has a
	// successful artifact.
	RequireAtLeastOne RequireMode = "at_least_one"
	// RequireAll is satisfied only when every named upstream task has a
	// successful artifact.
	RequireAll RequireMode = "all"
)

// Requirement is a phase's dependency predicate over prior phases'
// artifacts. It is evaluated exactly once, after the preceding phase
// returns; speculative reads of in-flight artifacts are prohibited.
type Requirement struct {
	// Mode is the evaluation mode.
	Mode RequireMode
	// Tasks names the upstream tasks the predicate ranges over.
	Tasks []string
}

// NoRequirement returns the always-satisfied predicate.
func NoRequirement() Requirement {
	return Requirement{Mode: RequireNone}
}

// AtLeastOne returns a predicate satisfied by any one upstream artifact.
func AtLeastOne(tasks ...string) Requirement {
	return Requirement{Mode: RequireAtLeastOne, Tasks: tasks}
}

// All returns a predicate satisfied only by every upstream artifact.
func All(tasks ...string) Requirement {
	return Requirement{Mode: RequireAll, Tasks: tasks}
}

// Satisfied evaluates the predicate against the latest successful artifact
// per upstream task.
func (r Requirement) Satisfied(artifacts map[string]ArtifactRef) bool {
	switch r.Mode {
	case RequireNone:
		return true
	case RequireAtLeastOne:
		for _, name := range r.Tasks {
			if _, ok := artifacts[name]; ok {
				return true
			}
		}
		return false
	case RequireAll:
		for _, name := range r.Tasks {
			if _, ok := artifacts[name]; !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the predicate for failure reasons and log output.
func (r Requirement) String() string {
	switch r.Mode {
	case RequireNone:
		return "none"
	case RequireAtLeastOne:
		return fmt.Sprintf("at least one of {%s}", strings.Join(r.Tasks, ", "))
	case RequireAll:
		return fmt.Sprintf("all of {%s}", strings.Join(r.Tasks, ", "))
	default:
		return string(r.Mode)
	}
}

// PhaseSpec describes one dependency-ordered stage of the pipeline.
type PhaseSpec struct {
	// Name identifies the phase.
	Name string
	// Position is the 1-based pipeline position.
	Position int
	// Tasks is the set of tasks dispatched concurrently within the phase.
	Tasks []TaskSpec
	// Requires is the dependency predicate over prior phases' artifacts.
	Requires Requirement
}

// Validate checks the phase and its tasks.
func (p *PhaseSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("phase name must be non-empty")
	}
	if len(p.Tasks) == 0 {
		return fmt.Errorf("phase %s: must contain at least one task", p.Name)
	}
	for i := range p.Tasks {
		if err := p.Tasks[i].Validate(); err != nil {
			return fmt.Errorf("phase %s: %w", p.Name, err)
		}
	}
	return nil
}

// PhaseResult is the terminal record of a phase within a run.
type PhaseResult struct {
	// Name is the phase name.
	Name string `json:"name" msgpack:"name"`
	// Status is the terminal phase status (done or skipped).
	Status PhaseStatus `json:"status" msgpack:"status"`
	// Tasks holds the terminal result of every task in the phase.
	// Empty for skipped phases.
	Tasks []TaskResult `json:"tasks" msgpack:"tasks"`
}

// ArtifactCount returns the number of tasks that produced an artifact.
func (p *PhaseResult) ArtifactCount() int {
	n := 0
	for i := range p.Tasks {
		if p.Tasks[i].Status == TaskSucceeded {
			n++
		}
	}
	return n
}

// FailedCount returns the number of permanently failed tasks.
func (p *PhaseResult) FailedCount() int {
	n := 0
	for i := range p.Tasks {
		if p.Tasks[i].Status == TaskFailed {
			n++
		}
	}
	return n
}
