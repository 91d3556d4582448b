// Storage error classification. Sentinel errors enable callers to use
// errors.Is for typed assertions rather than string matching.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for storage failure classification.
var (
	// ErrAlreadyExists indicates a write to an existing key. Artifacts are
	// write-once; this is a correctness violation, not a transient fault.
	ErrAlreadyExists = errors.New("artifact already exists")

	// ErrPermissionDenied indicates a permission/access failure (EACCES, 403).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")
)

// StorageError wraps an underlying error with storage classification.
// It preserves the original error in the chain for errors.As inspection.
type StorageError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Op is the operation that failed (e.g. "write").
	Op string
	// Path is the storage path involved.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapWriteError classifies and wraps a write operation error.
// Returns nil if err is nil.
func wrapWriteError(err error, path string) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: "write", Path: path, Err: err}
}

// classifyError determines the sentinel for the given error based on error
// type and message patterns.
func classifyError(err error) error {
	errStr := strings.ToLower(err.Error())

	switch {
	case containsAny(errStr, "file exists", "eexist", "precondition", "already exists"):
		return ErrAlreadyExists
	case containsAny(errStr, "permission denied", "eacces", "access denied", "forbidden", "403"):
		return ErrPermissionDenied
	case containsAny(errStr, "no space left", "disk full", "enospc", "quota exceeded"):
		return ErrDiskFull
	case containsAny(errStr, "slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"):
		return ErrThrottled
	case containsAny(errStr, "connection refused", "no route to host", "network unreachable",
		"dns", "dial tcp", "i/o timeout"):
		return ErrNetwork
	default:
		return errors.New("storage error")
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
