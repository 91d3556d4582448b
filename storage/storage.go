// Package storage persists artifact bytes behind the opaque ArtifactRef
// boundary. Artifacts are write-once: a key, once written, is never
// overwritten — reruns write under a fresh attempt key.
package storage

import (
	"context"
	"fmt"

	"github.com/deckhand-io/deckhand/types"
)

// Store writes artifact bytes addressed by (run id, task name, attempt).
type Store interface {
	// Put writes data under the ref's key and returns the physical
	// location. Returns ErrAlreadyExists if the key is taken.
	Put(ctx context.Context, ref *types.ArtifactRef, data []byte) (string, error)

	// Close releases store resources.
	Close() error
}

// objectKey computes the storage key for an artifact reference.
// Format: runs/<run_id>/<task>/<attempt>/<name>
func objectKey(ref *types.ArtifactRef) string {
	name := ref.Name
	if name == "" {
		name = "artifact"
	}
	return fmt.Sprintf("runs/%s/%s/%d/%s", ref.RunID, ref.TaskName, ref.Attempt, name)
}
