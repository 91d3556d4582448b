package types

import "time"

// EventType discriminates notification events emitted after phase
// transitions. These are the only externally observable behavior during a
// run besides the final artifacts.
type EventType string

const (
	// EventPhaseStarted is emitted when a phase is dispatched.
	EventPhaseStarted EventType = "phase_started"
	// EventPhaseFinished is emitted when every task in a phase reached a
	// terminal state.
	EventPhaseFinished EventType = "phase_finished"
	// EventRunFinalized is emitted once, when the run reaches a terminal
	// status with at least one phase attempted.
	EventRunFinalized EventType = "run_finalized"
	// EventRunFailed is emitted once, when a dependency predicate can never
	// be satisfied and remaining phases are aborted.
	EventRunFailed EventType = "run_failed"
)

// Event is the notification payload delivered to sinks. Delivery is
// fire-and-forget: sink failures never roll back pipeline state.
type Event struct {
	Type   EventType `json:"type"`
	RunID  string    `json:"run_id"`
	Sector string    `json:"sector"`
	Region string    `json:"region"`
	// Ts is the emission timestamp in ISO 8601 UTC.
	Ts string `json:"ts"`

	// Phase fields, set for phase events.
	Phase      string `json:"phase,omitempty"`
	PhaseIndex int    `json:"phase_index,omitempty"`
	PhaseCount int    `json:"phase_count,omitempty"`
	Succeeded  int    `json:"succeeded,omitempty"`
	Failed     int    `json:"failed,omitempty"`

	// Finalization fields.
	Status    RunStatus     `json:"status,omitempty"`
	Artifacts []ArtifactRef `json:"artifacts,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// NewPhaseStarted builds a phase_started event.
func NewPhaseStarted(meta *RunMeta, phase string, index, count int) Event {
	return Event{
		Type:       EventPhaseStarted,
		RunID:      meta.RunID,
		Sector:     meta.Sector,
		Region:     meta.Region,
		Ts:         eventTs(),
		Phase:      phase,
		PhaseIndex: index,
		PhaseCount: count,
	}
}

// NewPhaseFinished builds a phase_finished event with task counts.
func NewPhaseFinished(meta *RunMeta, phase string, index, count, succeeded, failed int) Event {
	return Event{
		Type:       EventPhaseFinished,
		RunID:      meta.RunID,
		Sector:     meta.Sector,
		Region:     meta.Region,
		Ts:         eventTs(),
		Phase:      phase,
		PhaseIndex: index,
		PhaseCount: count,
		Succeeded:  succeeded,
		Failed:     failed,
	}
}

// NewRunFinalized builds a run_finalized event carrying the artifact list.
func NewRunFinalized(meta *RunMeta, status RunStatus, artifacts []ArtifactRef) Event {
	return Event{
		Type:      EventRunFinalized,
		RunID:     meta.RunID,
		Sector:    meta.Sector,
		Region:    meta.Region,
		Ts:        eventTs(),
		Status:    status,
		Artifacts: artifacts,
	}
}

// NewRunFailed builds a run_failed event with the abort reason.
func NewRunFailed(meta *RunMeta, reason string) Event {
	return Event{
		Type:   EventRunFailed,
		RunID:  meta.RunID,
		Sector: meta.Sector,
		Region: meta.Region,
		Ts:     eventTs(),
		Status: RunFailed,
		Reason: reason,
	}
}

func eventTs() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
