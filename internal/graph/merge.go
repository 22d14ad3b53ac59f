package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/trovegraph/trove/internal/store"
)

// MergeResult reports what a committed merge changed.
type MergeResult struct {
	// UpdatedRecord is the surviving target row after the field merge.
	UpdatedRecord store.Record `json:"updated_record"`

	// DeletedRecordID is the id of the removed source record.
	DeletedRecordID int64 `json:"deleted_record_id"`

	// TouchedIDs lists every record id appearing in the rewritten link
	// set (the deleted source excluded), for downstream cache
	// invalidation. The target id is always present.
	TouchedIDs []int64 `json:"touched_ids"`
}

// MergeRecords atomically folds the source record into the target:
// merges fields, reassigns every dependent row, rewrites and
// deduplicates links, and deletes the source. Returns the result plus
// a snapshot sufficient for UndoMerge to restore exact prior state.
//
// Every step runs inside one transaction; any failure rolls the whole
// merge back. No partial merge is ever observable.
func (e *Engine) MergeRecords(ctx context.Context, sourceID, targetID int64) (MergeResult, *Snapshot, error) {
	if sourceID == targetID {
		return MergeResult{}, nil, newIdenticalTargetsError(sourceID)
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Validate both records exist, capturing the pre-merge rows.
	source, err := store.GetRecord(ctx, tx, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return MergeResult{}, nil, newRecordNotFoundError(sourceID)
	}
	if err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
	}

	target, err := store.GetRecord(ctx, tx, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return MergeResult{}, nil, newRecordNotFoundError(targetID)
	}
	if err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
	}

	snapshot, err := e.captureSnapshot(ctx, tx, source, target)
	if err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
	}

	// The source's slug is cleared before the target update so a slug
	// carried over by the policy cannot trip the UNIQUE constraint.
	if source.Slug != "" {
		if err := store.ClearRecordSlug(ctx, tx, sourceID); err != nil {
			return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
		}
	}

	merged := e.policy(target, source)
	merged.ID = target.ID
	merged.CreatedAt = target.CreatedAt
	merged.UpdatedAt = e.now()

	rows, err := store.UpdateRecord(ctx, tx, merged)
	if err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
	}
	if rows == 0 {
		return MergeResult{}, nil, e.inconsistent(targetID, "target vanished during merge")
	}

	for _, dep := range e.registry.Dependents {
		if _, err := store.ReassignDependentRows(ctx, tx, dep, sourceID, targetID); err != nil {
			return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
		}
	}

	touched, err := e.relink(ctx, tx, snapshot.Links, sourceID, targetID)
	if err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
	}

	deleted, err := store.DeleteRecord(ctx, tx, sourceID)
	if err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: %w", err)
	}
	if deleted == 0 {
		// The source existed at validation but is gone now: a
		// concurrent writer slipped between our reads. Roll back.
		return MergeResult{}, nil, e.inconsistent(sourceID, "source vanished during merge")
	}

	if err := tx.Commit(); err != nil {
		return MergeResult{}, nil, fmt.Errorf("merge records: commit: %w", err)
	}

	slog.Info("merged records",
		"source", sourceID,
		"target", targetID,
		"links", len(snapshot.Links),
		"touched", len(touched),
	)

	return MergeResult{
		UpdatedRecord:   merged,
		DeletedRecordID: sourceID,
		TouchedIDs:      touched,
	}, snapshot, nil
}

// captureSnapshot records everything the merge is about to change:
// both full rows, every link touching either record, and each
// dependent row currently pointing at the source.
func (e *Engine) captureSnapshot(ctx context.Context, tx store.DBTX, source, target store.Record) (*Snapshot, error) {
	links, err := store.ListLinksTouching(ctx, tx, source.ID, target.ID)
	if err != nil {
		return nil, err
	}

	var assignments []store.Assignment
	for _, dep := range e.registry.Dependents {
		rows, err := store.ListDependentRows(ctx, tx, dep, source.ID)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, rows...)
	}

	return &Snapshot{
		ID:         e.snapshotID(),
		CapturedAt: e.now(),
		Source:     source,
		Target:     target,
		Links:      links,
		Dependents: assignments,
	}, nil
}

// relink rewrites the link set around a merge: deletes every link
// touching either record, substitutes the target id for the source id,
// drops links that became self-loops, deduplicates by the canonical
// (source, target, predicate) triple, and reinserts the survivors.
// Returns the sorted set of record ids the resulting links touch. The
// target id is always included, even when the rewritten set is empty:
// the merge rewrote the target row itself, so its consumers need
// invalidating regardless.
//
// A link that connected source and target directly becomes a self-loop
// and is dropped silently; the snapshot still holds it for undo.
func (e *Engine) relink(ctx context.Context, tx store.DBTX, links []store.Link, sourceID, targetID int64) ([]int64, error) {
	ids := make([]int64, len(links))
	for i, link := range links {
		ids[i] = link.ID
	}
	if _, err := store.DeleteLinkRows(ctx, tx, ids); err != nil {
		return nil, err
	}

	now := e.now()
	seen := make(map[linkKey]bool, len(links))
	touched := map[int64]bool{targetID: true}

	for _, link := range links {
		if link.SourceID == sourceID {
			link.SourceID = targetID
		}
		if link.TargetID == sourceID {
			link.TargetID = targetID
		}
		if link.SourceID == link.TargetID {
			continue
		}

		key := linkKey{link.SourceID, link.TargetID, link.Predicate}
		if seen[key] {
			continue
		}
		seen[key] = true

		rewritten := store.Link{
			SourceID:  link.SourceID,
			TargetID:  link.TargetID,
			Predicate: link.Predicate,
			Notes:     link.Notes,
			CreatedAt: link.CreatedAt,
			UpdatedAt: now,
		}
		if err := store.InsertLink(ctx, tx, &rewritten); err != nil {
			return nil, err
		}

		touched[link.SourceID] = true
		touched[link.TargetID] = true
	}

	out := make([]int64, 0, len(touched))
	for id := range touched {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type linkKey struct {
	sourceID  int64
	targetID  int64
	predicate string
}

// inconsistent logs a correctness incident and returns the
// MERGE_INCONSISTENT error that aborts the transaction.
func (e *Engine) inconsistent(recordID int64, detail string) error {
	slog.Error("merge consistency violation",
		"record", recordID,
		"detail", detail,
	)
	return newMergeInconsistentError(recordID, detail)
}
