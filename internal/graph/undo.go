package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trovegraph/trove/internal/store"
)

// UndoResult holds the two restored records after an undone merge.
type UndoResult struct {
	SourceRecord store.Record `json:"source_record"`
	TargetRecord store.Record `json:"target_record"`
}

// UndoMerge reverses a committed merge from its snapshot: recreates the
// source record under its original id, reverts the target record's
// fields, restores every dependent row's prior foreign key, and
// reinstates the original link set verbatim. Single transaction, exact
// structural inverse of MergeRecords.
//
// Embeddings on both records are cleared rather than restored: the
// merge may have changed the text they were computed from, so the
// stale vectors must be regenerated externally.
func (e *Engine) UndoMerge(ctx context.Context, snapshot *Snapshot) (UndoResult, error) {
	sourceID := snapshot.Source.ID
	targetID := snapshot.Target.ID

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// A merge can be undone at most once: if the source row is back,
	// this snapshot was already applied.
	sourceExists, err := store.RecordExists(ctx, tx, sourceID)
	if err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: %w", err)
	}
	if sourceExists {
		return UndoResult{}, newAlreadyUndoneError(sourceID)
	}

	targetExists, err := store.RecordExists(ctx, tx, targetID)
	if err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: %w", err)
	}
	if !targetExists {
		return UndoResult{}, newTargetMissingError(targetID)
	}

	target := snapshot.Target
	target.Embedding = nil
	if _, err := store.UpdateRecord(ctx, tx, target); err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: restore target: %w", err)
	}

	source := snapshot.Source
	source.Embedding = nil
	if err := store.InsertRecord(ctx, tx, &source); err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: recreate source: %w", err)
	}

	for _, a := range snapshot.Dependents {
		dep, ok := e.registry.Find(a.Table)
		if !ok {
			return UndoResult{}, fmt.Errorf("undo merge: snapshot references unknown dependent table %q", a.Table)
		}
		if err := store.SetDependentRow(ctx, tx, dep, a.RowID, a.RecordID); err != nil {
			return UndoResult{}, fmt.Errorf("undo merge: %w", err)
		}
	}

	if err := e.restoreLinks(ctx, tx, snapshot); err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: %w", err)
	}

	// Read both rows back so the caller sees exactly what was stored.
	restoredSource, err := store.GetRecord(ctx, tx, sourceID)
	if err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: %w", err)
	}
	restoredTarget, err := store.GetRecord(ctx, tx, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return UndoResult{}, newTargetMissingError(targetID)
	}
	if err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return UndoResult{}, fmt.Errorf("undo merge: commit: %w", err)
	}

	slog.Info("undid merge",
		"snapshot", snapshot.ID,
		"source", sourceID,
		"target", targetID,
		"links", len(snapshot.Links),
	)

	return UndoResult{SourceRecord: restoredSource, TargetRecord: restoredTarget}, nil
}

// restoreLinks deletes every link currently touching either record and
// reinserts the snapshot's links exactly as recorded, original ids,
// directions, predicates, and timestamps included.
func (e *Engine) restoreLinks(ctx context.Context, tx store.DBTX, snapshot *Snapshot) error {
	current, err := store.ListLinksTouching(ctx, tx, snapshot.Source.ID, snapshot.Target.ID)
	if err != nil {
		return err
	}

	ids := make([]int64, len(current))
	for i, link := range current {
		ids[i] = link.ID
	}
	if _, err := store.DeleteLinkRows(ctx, tx, ids); err != nil {
		return err
	}

	for _, link := range snapshot.Links {
		restored := link
		if err := store.InsertLink(ctx, tx, &restored); err != nil {
			return err
		}
	}
	return nil
}
