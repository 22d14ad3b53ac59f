package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a temp-file backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord inserts a record with the given title and returns it.
func createTestRecord(t *testing.T, s *Store, title string) Record {
	t.Helper()
	now := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	rec := Record{
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := InsertRecord(context.Background(), s.DB(), &rec); err != nil {
		t.Fatalf("InsertRecord(%q) failed: %v", title, err)
	}
	return rec
}

// createTestLink inserts a link between two records and returns it.
func createTestLink(t *testing.T, s *Store, sourceID, targetID int64, predicate string) Link {
	t.Helper()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	link, err := UpsertLinkRow(context.Background(), s.DB(), Link{
		SourceID:  sourceID,
		TargetID:  targetID,
		Predicate: predicate,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("UpsertLinkRow(%d -> %d) failed: %v", sourceID, targetID, err)
	}
	return link
}
