// Package collab defines the external collaborator boundary.
//
// The pipeline treats content generation, document rendering, and review as
// opaque, possibly slow, possibly failing remote calls. Collaborators do not
// support cooperative cancellation: when the orchestrator stops waiting, the
// remote work may keep running and its result is discarded.
package collab

import (
	"context"
	"fmt"

	"github.com/deckhand-io/deckhand/types"
)

// Payload is the materialized output of one collaborator call.
// The pipeline persists it and hands downstream phases a reference only.
type Payload struct {
	// Name is the artifact file name (e.g. "thesis.md", "deck.pptx").
	Name string
	// ContentType is the MIME content type.
	ContentType string
	// Data is the raw artifact bytes.
	Data []byte
}

// Generator produces research and compilation content for one task.
// Invoked once per task attempt.
type Generator interface {
	Generate(ctx context.Context, task string, sector, region string, upstream []types.ArtifactRef) (*Payload, error)
}

// Renderer converts a compiled document into a slide deck.
type Renderer interface {
	Render(ctx context.Context, compiled types.ArtifactRef, templateRef string) (*Payload, error)
}

// Reviewer runs quality assurance over a rendered deck. It may internally
// produce a revised deck plus a textual report; both arrive as one bundle.
type Reviewer interface {
	Review(ctx context.Context, rendered types.ArtifactRef) (*Payload, error)
}

// Error is a failure reported by a collaborator service.
type Error struct {
	// Status is the HTTP status code, when the collaborator is remote.
	Status int
	// Message is the collaborator's failure description.
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("collaborator returned %d: %s", e.Status, e.Message)
	}
	return e.Message
}
