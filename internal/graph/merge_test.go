package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trovegraph/trove/internal/store"
)

func TestMergeRecords_FieldsAndDeletion(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	source := addRecord(t, s, store.Record{
		Title:   "Duplicate",
		Summary: "source summary",
		Notes:   "source notes",
		Private: true,
	})
	target := addRecord(t, s, store.Record{
		Title: "Original",
		Notes: "target notes",
	})

	result, snapshot, err := e.MergeRecords(ctx, source.ID, target.ID)
	require.NoError(t, err)

	assert.Equal(t, source.ID, result.DeletedRecordID)
	assert.Equal(t, target.ID, result.UpdatedRecord.ID)
	assert.Equal(t, "Original", result.UpdatedRecord.Title)
	assert.Equal(t, "source summary", result.UpdatedRecord.Summary, "empty target field filled from source")
	assert.Equal(t, "target notes", result.UpdatedRecord.Notes, "set target field kept")
	assert.True(t, result.UpdatedRecord.Private, "private flag sticks")

	// Source row is gone
	_, err = store.GetRecord(ctx, s.DB(), source.ID)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	// Snapshot holds the pre-merge rows
	require.NotNil(t, snapshot)
	assert.Equal(t, "snapshot-1", snapshot.ID)
	assert.Equal(t, "Duplicate", snapshot.Source.Title)
	assert.Equal(t, "Original", snapshot.Target.Title)
	assert.Empty(t, snapshot.Target.Summary)
}

func TestMergeRecords_IdenticalTargets(t *testing.T) {
	e, s := setupTestEngine(t)
	rec := addRecord(t, s, store.Record{Title: "Only"})

	_, _, err := e.MergeRecords(context.Background(), rec.ID, rec.ID)
	assert.True(t, HasCode(err, CodeIdenticalMergeTargets), "got %v", err)
	assert.True(t, IsValidation(err))
}

func TestMergeRecords_MissingRecords(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()
	rec := addRecord(t, s, store.Record{Title: "Exists"})

	_, _, err := e.MergeRecords(ctx, 4040, rec.ID)
	assert.True(t, HasCode(err, CodeRecordNotFound), "got %v", err)

	_, _, err = e.MergeRecords(ctx, rec.ID, 4040)
	assert.True(t, HasCode(err, CodeRecordNotFound), "got %v", err)

	// Failed merges leave the record untouched
	got, err := store.GetRecord(ctx, s.DB(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Exists", got.Title)
}

func TestMergeRecords_SlugCarriedWithoutCollision(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	source := addRecord(t, s, store.Record{Title: "Slugged", Slug: "the-slug"})
	target := addRecord(t, s, store.Record{Title: "Plain"})

	result, _, err := e.MergeRecords(ctx, source.ID, target.ID)
	require.NoError(t, err)

	// The source slug moves to the target despite the UNIQUE constraint
	assert.Equal(t, "the-slug", result.UpdatedRecord.Slug)

	got, err := store.GetRecord(ctx, s.DB(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "the-slug", got.Slug)
}

func TestMergeRecords_ReassignsDependents(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	source := addRecord(t, s, store.Record{Title: "Source"})
	target := addRecord(t, s, store.Record{Title: "Target"})
	rowID := addMediaRow(t, s, source.ID, "https://example.com/pic.jpg")

	_, snapshot, err := e.MergeRecords(ctx, source.ID, target.ID)
	require.NoError(t, err)

	media, ok := store.DefaultRegistry().Find("media")
	require.True(t, ok)

	rows, err := store.ListDependentRows(ctx, s.DB(), media, target.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rowID, rows[0].RowID)

	// Snapshot recorded the prior owner
	require.Len(t, snapshot.Dependents, 1)
	assert.Equal(t, "media", snapshot.Dependents[0].Table)
	assert.Equal(t, source.ID, snapshot.Dependents[0].RecordID)
}

func TestMergeRecords_RewritesLinks(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	source := addRecord(t, s, store.Record{Title: "Source"})
	target := addRecord(t, s, store.Record{Title: "Target"})
	other := addRecord(t, s, store.Record{Title: "Other"})

	// source -> other must become target -> other
	_, err := e.UpsertLink(ctx, UpsertLinkInput{SourceID: source.ID, TargetID: other.ID, Predicate: "contains"})
	require.NoError(t, err)

	result, _, err := e.MergeRecords(ctx, source.ID, target.ID)
	require.NoError(t, err)

	links, err := store.ListLinksTouching(ctx, s.DB(), target.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, target.ID, links[0].SourceID)
	assert.Equal(t, other.ID, links[0].TargetID)
	assert.Equal(t, "contains", links[0].Predicate)

	assert.ElementsMatch(t, []int64{target.ID, other.ID}, result.TouchedIDs)
}

func TestMergeRecords_DropsDirectLinkAsSelfLoop(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	source := addRecord(t, s, store.Record{Title: "Source"})
	target := addRecord(t, s, store.Record{Title: "Target"})

	// A link between the pair being merged becomes a self-loop and is
	// dropped, not an error.
	_, err := e.UpsertLink(ctx, UpsertLinkInput{SourceID: source.ID, TargetID: target.ID, Predicate: "same_as"})
	require.NoError(t, err)

	_, snapshot, err := e.MergeRecords(ctx, source.ID, target.ID)
	require.NoError(t, err)

	links, err := store.ListLinksTouching(ctx, s.DB(), target.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	// The snapshot keeps the dropped link for undo
	assert.Len(t, snapshot.Links, 1)
}

func TestMergeRecords_DeduplicatesRewrittenLinks(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	source := addRecord(t, s, store.Record{Title: "Source"})
	target := addRecord(t, s, store.Record{Title: "Target"})
	other := addRecord(t, s, store.Record{Title: "Other"})

	// Both records link to the same third record; after the merge only
	// one row may remain.
	_, err := e.UpsertLink(ctx, UpsertLinkInput{SourceID: source.ID, TargetID: other.ID, Predicate: "about"})
	require.NoError(t, err)
	_, err = e.UpsertLink(ctx, UpsertLinkInput{SourceID: target.ID, TargetID: other.ID, Predicate: "about"})
	require.NoError(t, err)

	_, _, err = e.MergeRecords(ctx, source.ID, target.ID)
	require.NoError(t, err)

	links, err := store.ListLinksTouching(ctx, s.DB(), target.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, target.ID, links[0].SourceID)
	assert.Equal(t, other.ID, links[0].TargetID)
}

func TestMergeRecords_SequentialSnapshots(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	a := addRecord(t, s, store.Record{Title: "A"})
	b := addRecord(t, s, store.Record{Title: "B"})
	c := addRecord(t, s, store.Record{Title: "C"})

	_, snap1, err := e.MergeRecords(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, snap2, err := e.MergeRecords(ctx, b.ID, c.ID)
	require.NoError(t, err)

	assert.Equal(t, "snapshot-1", snap1.ID)
	assert.Equal(t, "snapshot-2", snap2.ID)
}

func TestMergeRecords_FailureRollsBackEverything(t *testing.T) {
	// A policy producing a slug another record already holds makes the
	// target update fail on the UNIQUE constraint mid-transaction.
	collide := func(target, source store.Record) store.Record {
		merged := DefaultFieldMergePolicy(target, source)
		merged.Slug = "taken"
		return merged
	}
	e, s := setupTestEngine(t, WithFieldMergePolicy(collide))
	ctx := context.Background()

	addRecord(t, s, store.Record{Title: "Bystander", Slug: "taken"})
	source := addRecord(t, s, store.Record{
		Title: "Duplicate",
		Slug:  "duplicate",
		Notes: "source notes",
	})
	target := addRecord(t, s, store.Record{Title: "Original"})
	other := addRecord(t, s, store.Record{Title: "Other"})

	_, err := e.UpsertLink(ctx, UpsertLinkInput{SourceID: source.ID, TargetID: other.ID, Predicate: "contains"})
	require.NoError(t, err)
	mediaRow := addMediaRow(t, s, source.ID, "https://example.com/pic.jpg")

	beforeSource, err := store.GetRecord(ctx, s.DB(), source.ID)
	require.NoError(t, err)
	beforeTarget, err := store.GetRecord(ctx, s.DB(), target.ID)
	require.NoError(t, err)
	beforeLinks, err := store.ListLinksTouching(ctx, s.DB(), source.ID, target.ID)
	require.NoError(t, err)

	_, snapshot, err := e.MergeRecords(ctx, source.ID, target.ID)
	require.Error(t, err)
	assert.Nil(t, snapshot)

	// Nothing the failed merge wrote survives: the rows, the slug
	// cleared early in the transaction, the link set, and the media
	// row's owner are all exactly as before.
	afterSource, err := store.GetRecord(ctx, s.DB(), source.ID)
	require.NoError(t, err)
	assert.Equal(t, beforeSource, afterSource)

	afterTarget, err := store.GetRecord(ctx, s.DB(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, beforeTarget, afterTarget)

	afterLinks, err := store.ListLinksTouching(ctx, s.DB(), source.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, beforeLinks, afterLinks)

	media, ok := store.DefaultRegistry().Find("media")
	require.True(t, ok)
	rows, err := store.ListDependentRows(ctx, s.DB(), media, source.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, mediaRow, rows[0].RowID)
}

func TestMergeRecords_SourceVanishedReportsInconsistent(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	source := addRecord(t, s, store.Record{Title: "Source"})
	target := addRecord(t, s, store.Record{Title: "Target"})

	// A trigger deleting the source when the target is rewritten stands
	// in for a writer slipping between the merge's validation reads and
	// its final delete.
	_, err := s.DB().ExecContext(ctx, fmt.Sprintf(`
		CREATE TRIGGER sweep_source AFTER UPDATE ON records
		WHEN NEW.id = %d
		BEGIN
			DELETE FROM records WHERE id = %d;
		END
	`, target.ID, source.ID))
	require.NoError(t, err)

	_, _, err = e.MergeRecords(ctx, source.ID, target.ID)
	assert.True(t, HasCode(err, CodeMergeInconsistent), "got %v", err)
	assert.True(t, IsConsistency(err))

	// The rollback restores even the trigger's delete
	exists, err := store.RecordExists(ctx, s.DB(), source.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.GetRecord(ctx, s.DB(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Target", got.Title)
}
