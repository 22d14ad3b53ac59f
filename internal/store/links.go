package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Link is a directed, typed edge between two records. The predicate is
// always a canonical catalog slug by the time a row reaches this layer;
// canonicalization happens in the graph engine, not here.
type Link struct {
	ID        int64     `json:"id"`
	SourceID  int64     `json:"source_id"`
	TargetID  int64     `json:"target_id"`
	Predicate string    `json:"predicate"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const linkColumns = `id, source_id, target_id, predicate, notes, created_at, updated_at`

// UpsertLinkRow inserts a link row, or on a (source, target, predicate)
// conflict updates the existing row's notes and updated_at instead.
// Returns the stored row either way.
func UpsertLinkRow(ctx context.Context, q DBTX, link Link) (Link, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO links (source_id, target_id, predicate, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, predicate) DO UPDATE SET
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`,
		link.SourceID,
		link.TargetID,
		link.Predicate,
		nullable(link.Notes),
		link.CreatedAt.UTC().Format(timeFormat),
		link.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return Link{}, fmt.Errorf("upsert link: %w", err)
	}

	// Re-read by the unique triple so the caller sees the stored row
	// regardless of whether the insert or the update path ran.
	stored, err := GetLinkByTriple(ctx, q, link.SourceID, link.TargetID, link.Predicate)
	if err != nil {
		return Link{}, fmt.Errorf("upsert link: read back: %w", err)
	}
	return stored, nil
}

// GetLinkByTriple retrieves the link with the given (source, target,
// predicate) triple. Returns sql.ErrNoRows if no such link exists.
func GetLinkByTriple(ctx context.Context, q DBTX, sourceID, targetID int64, predicate string) (Link, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE source_id = ? AND target_id = ? AND predicate = ?
	`, sourceID, targetID, predicate)
	return scanLinkRow(row)
}

// InsertLink inserts a link row exactly as given, including its id when
// non-zero. Used by the merge and undo engines to rewrite or restore
// link sets verbatim; constraint conflicts are errors here, not upserts.
func InsertLink(ctx context.Context, q DBTX, link *Link) error {
	var idArg any
	if link.ID != 0 {
		idArg = link.ID
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO links (id, source_id, target_id, predicate, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		idArg,
		link.SourceID,
		link.TargetID,
		link.Predicate,
		nullable(link.Notes),
		link.CreatedAt.UTC().Format(timeFormat),
		link.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}

	if link.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert link: last insert id: %w", err)
		}
		link.ID = id
	}
	return nil
}

// GetLink retrieves a single link by id.
// Returns sql.ErrNoRows if not found.
func GetLink(ctx context.Context, q DBTX, id int64) (Link, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE id = ?
	`, id)
	return scanLinkRow(row)
}

// UpdateLinkRow overwrites an existing link row.
// Returns the number of rows affected (0 means no such link).
func UpdateLinkRow(ctx context.Context, q DBTX, link Link) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE links SET
			source_id = ?, target_id = ?, predicate = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		link.SourceID,
		link.TargetID,
		link.Predicate,
		nullable(link.Notes),
		link.UpdatedAt.UTC().Format(timeFormat),
		link.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("update link: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update link: rows affected: %w", err)
	}
	return rows, nil
}

// ListLinksTouching returns every link whose source or target is one of
// the given record ids, ordered by id for deterministic results.
// Returns an empty slice (not nil) for an empty id set.
func ListLinksTouching(ctx context.Context, q DBTX, ids ...int64) ([]Link, error) {
	if len(ids) == 0 {
		return []Link{}, nil
	}

	placeholders := idPlaceholders(len(ids))
	args := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE source_id IN (`+placeholders+`) OR target_id IN (`+placeholders+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}

	if links == nil {
		links = []Link{}
	}
	return links, nil
}

// DeleteLinkRows removes the given link ids. Missing ids are ignored.
// Returns the number of rows actually deleted.
func DeleteLinkRows(ctx context.Context, q DBTX, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := q.ExecContext(ctx, `
		DELETE FROM links WHERE id IN (`+idPlaceholders(len(ids))+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete links: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete links: rows affected: %w", err)
	}
	return rows, nil
}

func scanLink(rows *sql.Rows) (Link, error) {
	return scanLinkFields(rows)
}

func scanLinkRow(row *sql.Row) (Link, error) {
	return scanLinkFields(row)
}

func scanLinkFields(sc rowScanner) (Link, error) {
	var link Link
	var notes sql.NullString
	var createdAt, updatedAt string

	err := sc.Scan(&link.ID, &link.SourceID, &link.TargetID, &link.Predicate, &notes, &createdAt, &updatedAt)
	if err != nil {
		return Link{}, err
	}

	link.Notes = notes.String
	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return Link{}, fmt.Errorf("scan link %d: created_at: %w", link.ID, err)
	}
	if link.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Link{}, fmt.Errorf("scan link %d: updated_at: %w", link.ID, err)
	}
	return link, nil
}

// idPlaceholders returns "?, ?, ..." for n parameters.
func idPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
