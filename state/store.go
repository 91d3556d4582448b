// Package state holds per-run pipeline state: which artifacts exist, under
// which attempt, and what the latest successful attempt per task is.
//
// Write discipline: only the task that produced an artifact records it, and
// no record is ever overwritten — a rerun that eventually succeeds writes
// under a fresh attempt identifier. The orchestrator and notification sinks
// only read completed values.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deckhand-io/deckhand/types"
)

// ErrDuplicateArtifact indicates a write under an already-recorded
// (run, task, attempt) key. Artifacts are write-once.
var ErrDuplicateArtifact = errors.New("artifact already recorded")

// RunSnapshot is a read-only view of a run's recorded artifacts.
type RunSnapshot struct {
	// RunID is the run this snapshot belongs to.
	RunID string
	// Latest maps task name to the latest successful attempt's artifact.
	Latest map[string]types.ArtifactRef
	// Attempts maps task name to all recorded artifacts in attempt order.
	Attempts map[string][]types.ArtifactRef
}

// Store records produced artifacts for in-flight runs.
type Store interface {
	// Put records an artifact. Returns ErrDuplicateArtifact if the
	// (run, task, attempt) key is already present.
	Put(ctx context.Context, ref types.ArtifactRef) error

	// Snapshot returns the current view of a run. Unknown runs yield an
	// empty snapshot, not an error.
	Snapshot(ctx context.Context, runID string) (*RunSnapshot, error)

	// Close releases store resources.
	Close() error
}

// MemoryStore is the in-memory Store used for single-process runs.
// Thread-safe: tasks publish concurrently, readers only see complete values.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]map[string][]types.ArtifactRef
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[string][]types.ArtifactRef)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, ref types.ArtifactRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.runs[ref.RunID]
	if !ok {
		tasks = make(map[string][]types.ArtifactRef)
		s.runs[ref.RunID] = tasks
	}

	for _, existing := range tasks[ref.TaskName] {
		if existing.Attempt == ref.Attempt {
			return fmt.Errorf("%w: %s", ErrDuplicateArtifact, ref.Key())
		}
	}

	tasks[ref.TaskName] = append(tasks[ref.TaskName], ref)
	return nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(_ context.Context, runID string) (*RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &RunSnapshot{
		RunID:    runID,
		Latest:   make(map[string]types.ArtifactRef),
		Attempts: make(map[string][]types.ArtifactRef),
	}

	for task, refs := range s.runs[runID] {
		copied := make([]types.ArtifactRef, len(refs))
		copy(copied, refs)
		snapshot.Attempts[task] = copied

		latest := copied[0]
		for _, r := range copied[1:] {
			if r.Attempt > latest.Attempt {
				latest = r
			}
		}
		snapshot.Latest[task] = latest
	}

	return snapshot, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Verify MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
