package state

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/deckhand-io/deckhand/types"
)

// Frame type discriminants for journal records.
const (
	FrameTaskResult   = "task_result"
	FrameRunFinalized = "run_finalized"
)

// JournalFrame is one append-only record in a run journal. Frames are
// msgpack-encoded and length-delimited by the codec itself (msgpack streams
// decode frame-by-frame without an outer envelope).
type JournalFrame struct {
	// Type discriminates the frame.
	Type string `msgpack:"type"`
	// RunID is the owning run.
	RunID string `msgpack:"run_id"`
	// Phase is the phase the record belongs to (task_result frames).
	Phase string `msgpack:"phase,omitempty"`
	// Result is the terminal task record (task_result frames).
	Result *types.TaskResult `msgpack:"result,omitempty"`
	// Status is the terminal run status (run_finalized frames).
	Status types.RunStatus `msgpack:"status,omitempty"`
	// Ts is the record timestamp in ISO 8601 UTC.
	Ts string `msgpack:"ts"`
}

// Journal appends terminal task records for one run to a msgpack stream.
// Used by `deckhand inspect` to reconstruct what happened after the fact.
// Thread-safe: concurrent tasks may append as they finish.
type Journal struct {
	mu  sync.Mutex
	f   *os.File
	enc *msgpack.Encoder
}

// OpenJournal opens (creating if necessary) the journal file for a run
// under dir. The file is append-only; reruns of the same run id append.
func OpenJournal(dir, runID string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	path := filepath.Join(dir, runID+".journal")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Journal{f: f, enc: msgpack.NewEncoder(f)}, nil
}

// RecordTask appends a terminal task result.
func (j *Journal) RecordTask(runID, phase string, result *types.TaskResult) error {
	return j.append(&JournalFrame{
		Type:   FrameTaskResult,
		RunID:  runID,
		Phase:  phase,
		Result: result,
		Ts:     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// RecordFinalized appends the run's terminal status.
func (j *Journal) RecordFinalized(runID string, status types.RunStatus) error {
	return j.append(&JournalFrame{
		Type:   FrameRunFinalized,
		RunID:  runID,
		Status: status,
		Ts:     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (j *Journal) append(frame *JournalFrame) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(frame); err != nil {
		return fmt.Errorf("append journal frame: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// ReadJournal decodes every frame of a run journal under dir.
func ReadJournal(dir, runID string) ([]JournalFrame, error) {
	path := filepath.Join(dir, runID+".journal")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no journal for run %s", runID)
		}
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	var frames []JournalFrame
	for {
		var frame JournalFrame
		if err := dec.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, fmt.Errorf("decode journal frame %d: %w", len(frames), err)
		}
		frames = append(frames, frame)
	}
}
