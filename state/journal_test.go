package state

import (
	"testing"

	"github.com/deckhand-io/deckhand/types"
)

func TestJournal_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	journal, err := OpenJournal(dir, "run-1")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}

	succeeded := &types.TaskResult{
		Task:     "trends",
		Status:   types.TaskSucceeded,
		Attempts: 2,
		Artifact: &types.ArtifactRef{
			RunID: "run-1", TaskName: "trends", Attempt: 2,
			Name: "trends.md", SizeBytes: 100, Path: "/a/trends",
		},
	}
	failed := &types.TaskResult{
		Task:     "taxonomy",
		Status:   types.TaskFailed,
		Attempts: 3,
		Error:    "collaborator failure",
	}

	if err := journal.RecordTask("run-1", "research", succeeded); err != nil {
		t.Fatalf("record task: %v", err)
	}
	if err := journal.RecordTask("run-1", "research", failed); err != nil {
		t.Fatalf("record task: %v", err)
	}
	if err := journal.RecordFinalized("run-1", types.RunPartialSuccess); err != nil {
		t.Fatalf("record finalized: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	frames, err := ReadJournal(dir, "run-1")
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}

	if frames[0].Type != FrameTaskResult || frames[0].Result.Task != "trends" {
		t.Errorf("frame 0: unexpected %+v", frames[0])
	}
	if frames[0].Result.Artifact == nil || frames[0].Result.Artifact.Attempt != 2 {
		t.Error("frame 0 should carry the artifact reference")
	}
	if frames[1].Result.Status != types.TaskFailed || frames[1].Result.Error == "" {
		t.Errorf("frame 1: unexpected %+v", frames[1].Result)
	}
	if frames[2].Type != FrameRunFinalized || frames[2].Status != types.RunPartialSuccess {
		t.Errorf("frame 2: unexpected %+v", frames[2])
	}
	for i, f := range frames {
		if f.Ts == "" {
			t.Errorf("frame %d missing timestamp", i)
		}
		if f.RunID != "run-1" {
			t.Errorf("frame %d wrong run id %q", i, f.RunID)
		}
	}
}

func TestJournal_AppendAcrossReopens(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenJournal(dir, "run-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.RecordFinalized("run-1", types.RunFailed); err != nil {
		t.Fatalf("record: %v", err)
	}
	first.Close()

	second, err := OpenJournal(dir, "run-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := second.RecordFinalized("run-1", types.RunSuccess); err != nil {
		t.Fatalf("record: %v", err)
	}
	second.Close()

	frames, err := ReadJournal(dir, "run-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("reopen should append, expected 2 frames, got %d", len(frames))
	}
}

func TestReadJournal_Missing(t *testing.T) {
	if _, err := ReadJournal(t.TempDir(), "no-such-run"); err == nil {
		t.Fatal("expected error for missing journal")
	}
}
