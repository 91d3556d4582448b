package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/deckhand-io/deckhand/types"
)

// FSStore writes artifacts to the local filesystem under a root directory.
// O_EXCL creation enforces write-once at the filesystem level.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at root.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("fs store requires a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrapWriteError(err, root)
	}
	return &FSStore{root: root}, nil
}

// Put implements Store.
func (s *FSStore) Put(_ context.Context, ref *types.ArtifactRef, data []byte) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, filepath.FromSlash(objectKey(ref)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", wrapWriteError(err, path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", &StorageError{Kind: ErrAlreadyExists, Op: "write", Path: path, Err: err}
		}
		return "", wrapWriteError(err, path)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		// Remove the partial file so a retry under the same attempt key is
		// not blocked by a truncated artifact.
		_ = os.Remove(path)
		return "", wrapWriteError(err, path)
	}
	if err := f.Close(); err != nil {
		return "", wrapWriteError(err, path)
	}

	return path, nil
}

// Close implements Store.
func (s *FSStore) Close() error { return nil }

// Root returns the store's root directory.
func (s *FSStore) Root() string { return s.root }

// Verify FSStore implements Store.
var _ Store = (*FSStore)(nil)
