package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/deckhand-io/deckhand/types"
)

func testRef(task string, attempt int) *types.ArtifactRef {
	return &types.ArtifactRef{
		RunID:       "run-1",
		TaskName:    task,
		Attempt:     attempt,
		Name:        task + ".md",
		ContentType: "text/markdown",
	}
}

func TestFSStore_PutAndReadBack(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	data := []byte("# emerging trends")
	path, err := store.Put(context.Background(), testRef("trends", 1), data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestFSStore_WriteOnce(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, testRef("trends", 1), []byte("first")); err != nil {
		t.Fatalf("first put: %v", err)
	}

	_, err = store.Put(ctx, testRef("trends", 1), []byte("second"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Fresh attempt keys never collide.
	if _, err := store.Put(ctx, testRef("trends", 2), []byte("second")); err != nil {
		t.Fatalf("fresh attempt: %v", err)
	}
}

func TestFSStore_KeyLayout(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	path, err := store.Put(context.Background(), testRef("compile", 2), []byte("x"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	want := root + "/runs/run-1/compile/2/compile.md"
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestFSStore_InvalidRef(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	bad := testRef("trends", 0)
	if _, err := store.Put(context.Background(), bad, []byte("x")); err == nil {
		t.Error("expected validation error for attempt 0")
	}
}

func TestNewFSStore_EmptyRoot(t *testing.T) {
	if _, err := NewFSStore(""); err == nil {
		t.Fatal("expected error for empty root")
	}
}
