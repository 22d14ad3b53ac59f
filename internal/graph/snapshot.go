package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/trovegraph/trove/internal/store"
)

// Snapshot is the immutable record of everything a merge changed:
// the full pre-merge source and target rows, every link that touched
// either record, and every dependent row's prior foreign-key
// assignment. Produced by MergeRecords, consumed only by UndoMerge.
//
// The engine does not persist snapshots; storage and transport are the
// caller's responsibility.
type Snapshot struct {
	ID         string             `json:"id"`
	CapturedAt time.Time          `json:"captured_at"`
	Source     store.Record       `json:"source"`
	Target     store.Record       `json:"target"`
	Links      []store.Link       `json:"links"`
	Dependents []store.Assignment `json:"dependents"`
}

// Encode writes the snapshot as indented JSON.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// WriteFile writes the snapshot to a file, creating or truncating it.
func (s *Snapshot) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := s.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return f.Close()
}

// DecodeSnapshot reads a snapshot from JSON.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Source.ID == 0 || s.Target.ID == 0 {
		return nil, fmt.Errorf("decode snapshot: missing source or target record")
	}
	return &s, nil
}

// LoadSnapshot reads a snapshot from a file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer f.Close()

	s, err := DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return s, nil
}
