package types

import (
	"testing"
	"time"
)

func refs(names ...string) map[string]ArtifactRef {
	m := make(map[string]ArtifactRef, len(names))
	for _, n := range names {
		m[n] = ArtifactRef{RunID: "r1", TaskName: n, Attempt: 1}
	}
	return m
}

func TestRequirement_Satisfied(t *testing.T) {
	tests := []struct {
		name      string
		req       Requirement
		artifacts map[string]ArtifactRef
		want      bool
	}{
		{
			name:      "none always satisfied",
			req:       NoRequirement(),
			artifacts: nil,
			want:      true,
		},
		{
			name:      "at least one with single hit",
			req:       AtLeastOne("trends", "taxonomy", "macro-thesis"),
			artifacts: refs("taxonomy"),
			want:      true,
		},
		{
			name:      "at least one with no hits",
			req:       AtLeastOne("trends", "taxonomy"),
			artifacts: refs("candidates"),
			want:      false,
		},
		{
			name:      "all satisfied",
			req:       All("compile"),
			artifacts: refs("compile", "trends"),
			want:      true,
		},
		{
			name:      "all missing one",
			req:       All("compile", "render"),
			artifacts: refs("compile"),
			want:      false,
		},
		{
			name:      "unknown mode never satisfied",
			req:       Requirement{Mode: RequireMode("bogus")},
			artifacts: refs("compile"),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Satisfied(tt.artifacts); got != tt.want {
				t.Errorf("Satisfied() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequirement_String(t *testing.T) {
	got := AtLeastOne("trends", "taxonomy").String()
	want := "at least one of {trends, taxonomy}"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func validTask(name string) TaskSpec {
	return TaskSpec{
		Name:        name,
		Kind:        TaskResearch,
		Timeout:     time.Minute,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func TestPhaseSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		phase   PhaseSpec
		wantErr bool
	}{
		{
			name:  "valid",
			phase: PhaseSpec{Name: "research", Position: 1, Tasks: []TaskSpec{validTask("trends")}},
		},
		{
			name:    "empty name",
			phase:   PhaseSpec{Tasks: []TaskSpec{validTask("trends")}},
			wantErr: true,
		},
		{
			name:    "no tasks",
			phase:   PhaseSpec{Name: "research"},
			wantErr: true,
		},
		{
			name: "invalid task",
			phase: PhaseSpec{Name: "research", Tasks: []TaskSpec{
				{Name: "trends", Kind: TaskResearch, Timeout: 0, MaxAttempts: 3},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.phase.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTaskSpec_Validate(t *testing.T) {
	bad := validTask("trends")
	bad.Kind = TaskKind("mystery")
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}

	bad = validTask("trends")
	bad.MaxAttempts = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero attempts")
	}
}

func TestPhaseResult_Counts(t *testing.T) {
	p := donePhase("research", 4, 1)
	if got := p.ArtifactCount(); got != 4 {
		t.Errorf("ArtifactCount() = %d, want 4", got)
	}
	if got := p.FailedCount(); got != 1 {
		t.Errorf("FailedCount() = %d, want 1", got)
	}
}
