package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trovegraph/trove/internal/catalog"
	"github.com/trovegraph/trove/internal/store"
)

// UpsertLinkInput describes a proposed link. The predicate may be
// non-canonical; the engine canonicalizes before persisting. A non-zero
// ExistingLinkID updates that row in place instead of inserting.
type UpsertLinkInput struct {
	SourceID       int64
	TargetID       int64
	Predicate      string
	Notes          string
	ExistingLinkID int64
}

// RecordLinks groups the links touching one record by direction.
type RecordLinks struct {
	RecordID int64        `json:"record_id"`
	Outgoing []store.Link `json:"outgoing"`
	Incoming []store.Link `json:"incoming"`
}

// UpsertLink canonicalizes and stores a link.
//
// The stored row always uses the canonical predicate: a link submitted
// under a non-canonical predicate is persisted with source and target
// swapped and the inverse predicate substituted. Inserting a duplicate
// (source, target, predicate) triple updates the existing row's notes
// and timestamp instead of erroring; updating an existing link onto a
// triple another row already holds folds into that row and drops the
// addressed one.
func (e *Engine) UpsertLink(ctx context.Context, in UpsertLinkInput) (store.Link, error) {
	res, err := e.catalog.ResolveCanonical(in.Predicate, in.SourceID, in.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrPredicateNotFound):
			return store.Link{}, newPredicateNotFoundError(in.Predicate)
		case errors.Is(err, catalog.ErrNonReversible):
			return store.Link{}, newNonReversibleError(in.Predicate)
		default:
			return store.Link{}, fmt.Errorf("upsert link: %w", err)
		}
	}

	// Canonicalization only swaps endpoints, so a self-loop is a
	// self-loop in both directions.
	if res.SourceID == res.TargetID {
		return store.Link{}, newSelfLinkError(res.SourceID)
	}

	now := e.now()
	link := store.Link{
		SourceID:  res.SourceID,
		TargetID:  res.TargetID,
		Predicate: res.Predicate,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return store.Link{}, fmt.Errorf("upsert link: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var stored store.Link
	if in.ExistingLinkID != 0 {
		existing, err := store.GetLink(ctx, tx, in.ExistingLinkID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Link{}, newLinkNotFoundError(in.ExistingLinkID)
		}
		if err != nil {
			return store.Link{}, fmt.Errorf("upsert link: %w", err)
		}

		// Rewriting onto a triple already held by another row folds into
		// that row, same as a plain upsert would; the addressed row is
		// dropped so the unique triple keeps exactly one link.
		occupant, err := store.GetLinkByTriple(ctx, tx, link.SourceID, link.TargetID, link.Predicate)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return store.Link{}, fmt.Errorf("upsert link: %w", err)
		}
		if err == nil && occupant.ID != existing.ID {
			if _, err := store.DeleteLinkRows(ctx, tx, []int64{existing.ID}); err != nil {
				return store.Link{}, fmt.Errorf("upsert link: %w", err)
			}
			occupant.Notes = link.Notes
			occupant.UpdatedAt = now
			if _, err := store.UpdateLinkRow(ctx, tx, occupant); err != nil {
				return store.Link{}, fmt.Errorf("upsert link: %w", err)
			}
			stored = occupant
		} else {
			existing.SourceID = link.SourceID
			existing.TargetID = link.TargetID
			existing.Predicate = link.Predicate
			existing.Notes = link.Notes
			existing.UpdatedAt = now

			rows, err := store.UpdateLinkRow(ctx, tx, existing)
			if err != nil {
				return store.Link{}, fmt.Errorf("upsert link: %w", err)
			}
			if rows == 0 {
				return store.Link{}, newLinkNotFoundError(in.ExistingLinkID)
			}
			stored = existing
		}
	} else {
		stored, err = store.UpsertLinkRow(ctx, tx, link)
		if err != nil {
			return store.Link{}, fmt.Errorf("upsert link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Link{}, fmt.Errorf("upsert link: commit: %w", err)
	}

	return stored, nil
}

// ListLinksForRecord returns every link where the record is source or
// target. Fails with RECORD_NOT_FOUND for an unknown record.
func (e *Engine) ListLinksForRecord(ctx context.Context, recordID int64) (RecordLinks, error) {
	db := e.store.DB()

	exists, err := store.RecordExists(ctx, db, recordID)
	if err != nil {
		return RecordLinks{}, fmt.Errorf("list links: %w", err)
	}
	if !exists {
		return RecordLinks{}, newRecordNotFoundError(recordID)
	}

	links, err := store.ListLinksTouching(ctx, db, recordID)
	if err != nil {
		return RecordLinks{}, fmt.Errorf("list links: %w", err)
	}

	return splitByDirection(recordID, links), nil
}

// MapLinks returns, for a set of record ids, each id's outgoing and
// incoming links among the links touching that set. A link whose source
// and target are both in the set contributes to both entries. One
// query regardless of set size.
func (e *Engine) MapLinks(ctx context.Context, recordIDs []int64) (map[int64]RecordLinks, error) {
	result := make(map[int64]RecordLinks, len(recordIDs))
	if len(recordIDs) == 0 {
		return result, nil
	}

	links, err := store.ListLinksTouching(ctx, e.store.DB(), recordIDs...)
	if err != nil {
		return nil, fmt.Errorf("map links: %w", err)
	}

	for _, id := range recordIDs {
		result[id] = splitByDirection(id, links)
	}
	return result, nil
}

// DeleteLinks removes the given links. Idempotent: unknown ids are
// ignored, and an empty input is a no-op. Returns the number of rows
// actually deleted.
func (e *Engine) DeleteLinks(ctx context.Context, linkIDs []int64) (int64, error) {
	if len(linkIDs) == 0 {
		return 0, nil
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete links: begin tx: %w", err)
	}
	defer tx.Rollback()

	deleted, err := store.DeleteLinkRows(ctx, tx, linkIDs)
	if err != nil {
		return 0, fmt.Errorf("delete links: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete links: commit: %w", err)
	}
	return deleted, nil
}

// splitByDirection partitions links touching recordID into outgoing
// and incoming. Slices are always non-nil so JSON output stays stable.
func splitByDirection(recordID int64, links []store.Link) RecordLinks {
	rl := RecordLinks{
		RecordID: recordID,
		Outgoing: []store.Link{},
		Incoming: []store.Link{},
	}
	for _, link := range links {
		if link.SourceID == recordID {
			rl.Outgoing = append(rl.Outgoing, link)
		}
		if link.TargetID == recordID {
			rl.Incoming = append(rl.Incoming, link)
		}
	}
	return rl
}
