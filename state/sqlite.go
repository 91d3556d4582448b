package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deckhand-io/deckhand/types"
)

// SQLiteStore is a durable Store backend. State survives process restarts,
// which lets `deckhand inspect` read finished runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs
// migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for concurrent task writers against a single reader.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate runs idempotent schema migrations. The UNIQUE constraint on
// (run_id, task_name, attempt) enforces write-once at the schema level.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL,
		task_name TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		name TEXT NOT NULL,
		content_type TEXT,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		path TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(run_id, task_name, attempt)
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, ref types.ArtifactRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (run_id, task_name, attempt, name, content_type, size_bytes, path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.RunID, ref.TaskName, ref.Attempt, ref.Name, ref.ContentType, ref.SizeBytes, ref.Path,
		time.Now().UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateArtifact, ref.Key())
		}
		return fmt.Errorf("record artifact %s: %w", ref.Key(), err)
	}
	return nil
}

// Snapshot implements Store.
func (s *SQLiteStore) Snapshot(ctx context.Context, runID string) (*RunSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_name, attempt, name, content_type, size_bytes, path
		 FROM artifacts WHERE run_id = ? ORDER BY task_name, attempt`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot run %s: %w", runID, err)
	}
	defer rows.Close()

	snapshot := &RunSnapshot{
		RunID:    runID,
		Latest:   make(map[string]types.ArtifactRef),
		Attempts: make(map[string][]types.ArtifactRef),
	}

	for rows.Next() {
		ref := types.ArtifactRef{RunID: runID}
		if err := rows.Scan(&ref.TaskName, &ref.Attempt, &ref.Name, &ref.ContentType, &ref.SizeBytes, &ref.Path); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		snapshot.Attempts[ref.TaskName] = append(snapshot.Attempts[ref.TaskName], ref)
		// Rows are attempt-ordered; the last one per task wins.
		snapshot.Latest[ref.TaskName] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot run %s: %w", runID, err)
	}

	return snapshot, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Verify SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
