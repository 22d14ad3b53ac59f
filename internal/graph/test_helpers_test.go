package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trovegraph/trove/internal/catalog"
	"github.com/trovegraph/trove/internal/store"
)

// testClock is the fixed instant every test engine reports.
var testClock = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

// stubSnapshotGen returns sequential snapshot ids for deterministic
// snapshots.
type stubSnapshotGen struct {
	n int
}

func (g *stubSnapshotGen) next() string {
	g.n++
	return fmt.Sprintf("snapshot-%d", g.n)
}

func setupTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cat, err := catalog.LoadDefault()
	require.NoError(t, err)

	gen := &stubSnapshotGen{}
	base := []Option{
		WithClock(func() time.Time { return testClock }),
		WithSnapshotIDs(gen.next),
	}
	e := New(s, cat, store.DefaultRegistry(), append(base, opts...)...)
	return e, s
}

// addRecord inserts a record directly through the store layer.
func addRecord(t *testing.T, s *store.Store, rec store.Record) store.Record {
	t.Helper()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = testClock
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = testClock
	}
	require.NoError(t, store.InsertRecord(context.Background(), s.DB(), &rec))
	return rec
}

// addMediaRow attaches a media row to a record and returns its id.
func addMediaRow(t *testing.T, s *store.Store, recordID int64, url string) int64 {
	t.Helper()
	res, err := s.DB().ExecContext(context.Background(), `
		INSERT INTO media (record_id, url, created_at) VALUES (?, ?, ?)
	`, recordID, url, testClock.Format(time.RFC3339Nano))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}
