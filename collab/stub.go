package collab

import (
	"context"
	"fmt"
	"sync"

	"github.com/deckhand-io/deckhand/types"
)

// Stub is a scripted collaborator for tests. Each task name maps to a
// sequence of outcomes consumed one per attempt; when the script runs out,
// the last outcome repeats. Safe for concurrent use.
type Stub struct {
	mu      sync.Mutex
	scripts map[string][]StubOutcome
	calls   map[string]int
}

// StubOutcome is one scripted attempt result.
type StubOutcome struct {
	// Payload is returned when Err is nil.
	Payload *Payload
	// Err is returned as the attempt failure.
	Err error
	// Hang makes the call wait for ctx cancellation (simulates a slow
	// collaborator that trips the task timeout).
	Hang bool
	// Gate, when set, holds the call until the test closes the channel.
	// Per-task gates let a test dictate completion order across
	// concurrent tasks.
	Gate chan struct{}
}

// NewStub creates an empty scripted collaborator.
func NewStub() *Stub {
	return &Stub{
		scripts: make(map[string][]StubOutcome),
		calls:   make(map[string]int),
	}
}

// Script sets the outcome sequence for a task name.
// Render tasks are scripted under the producing task's name.
func (s *Stub) Script(task string, outcomes ...StubOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[task] = outcomes
}

// ScriptOK scripts a single successful text payload.
func (s *Stub) ScriptOK(task string) {
	s.Script(task, StubOutcome{Payload: &Payload{
		Name:        task + ".md",
		ContentType: "text/markdown",
		Data:        []byte("# " + task),
	}})
}

// Calls returns the number of attempts consumed for a task.
func (s *Stub) Calls(task string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[task]
}

func (s *Stub) next(ctx context.Context, task string) (*Payload, error) {
	s.mu.Lock()
	outcomes, ok := s.scripts[task]
	if !ok {
		s.mu.Unlock()
		return nil, &Error{Message: fmt.Sprintf("no script for task %s", task)}
	}
	i := s.calls[task]
	s.calls[task]++
	if i >= len(outcomes) {
		i = len(outcomes) - 1
	}
	outcome := outcomes[i]
	s.mu.Unlock()

	if outcome.Gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-outcome.Gate:
		}
	}
	if outcome.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return outcome.Payload, nil
}

// Generate implements Generator.
func (s *Stub) Generate(ctx context.Context, task, _, _ string, _ []types.ArtifactRef) (*Payload, error) {
	return s.next(ctx, task)
}

// Render implements Renderer. Scripted under the rendering task name "render".
func (s *Stub) Render(ctx context.Context, _ types.ArtifactRef, _ string) (*Payload, error) {
	return s.next(ctx, "render")
}

// Review implements Reviewer. Scripted under the reviewing task name "review".
func (s *Stub) Review(ctx context.Context, _ types.ArtifactRef) (*Payload, error) {
	return s.next(ctx, "review")
}

// Verify Stub implements all collaborator interfaces.
var (
	_ Generator = (*Stub)(nil)
	_ Renderer  = (*Stub)(nil)
	_ Reviewer  = (*Stub)(nil)
)
