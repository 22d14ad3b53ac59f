package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// timeFormat is the canonical storage format for all timestamps.
// RFC 3339 with nanoseconds so a write/read round trip preserves the
// exact instant (required by the merge/undo equality contract).
const timeFormat = time.RFC3339Nano

// Record is a node in the knowledge graph.
// Empty string fields are stored as NULL; the zero time means "not set".
type Record struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title,omitempty"`
	URL              string    `json:"url,omitempty"`
	Content          string    `json:"content,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	Abbreviation     string    `json:"abbreviation,omitempty"`
	Sense            string    `json:"sense,omitempty"`
	Slug             string    `json:"slug,omitempty"`
	Private          bool      `json:"private,omitempty"`
	Curated          bool      `json:"curated,omitempty"`
	Embedding        []float64 `json:"embedding,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ContentCreatedAt time.Time `json:"content_created_at,omitzero"`
	ContentUpdatedAt time.Time `json:"content_updated_at,omitzero"`
}

const recordColumns = `id, title, url, content, summary, notes, abbreviation, sense, slug,
		private, curated, embedding, created_at, updated_at, content_created_at, content_updated_at`

// InsertRecord inserts a record row. If rec.ID is non-zero the row is
// created with that exact id (the undo engine recreates deleted records
// under their original identity); otherwise SQLite assigns the id and
// rec.ID is updated in place.
func InsertRecord(ctx context.Context, q DBTX, rec *Record) error {
	embedding, err := marshalEmbedding(rec.Embedding)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	var idArg any
	if rec.ID != 0 {
		idArg = rec.ID
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO records
		(id, title, url, content, summary, notes, abbreviation, sense, slug,
		 private, curated, embedding, created_at, updated_at, content_created_at, content_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		idArg,
		nullable(rec.Title),
		nullable(rec.URL),
		nullable(rec.Content),
		nullable(rec.Summary),
		nullable(rec.Notes),
		nullable(rec.Abbreviation),
		nullable(rec.Sense),
		nullable(rec.Slug),
		rec.Private,
		rec.Curated,
		embedding,
		rec.CreatedAt.UTC().Format(timeFormat),
		rec.UpdatedAt.UTC().Format(timeFormat),
		nullableTime(rec.ContentCreatedAt),
		nullableTime(rec.ContentUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if rec.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert record: last insert id: %w", err)
		}
		rec.ID = id
	}

	return nil
}

// GetRecord retrieves a single record by id.
// Returns sql.ErrNoRows if not found.
func GetRecord(ctx context.Context, q DBTX, id int64) (Record, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE id = ?
	`, id)
	return scanRecordRow(row)
}

// RecordExists reports whether a record row with the given id exists.
func RecordExists(ctx context.Context, q DBTX, id int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("record exists: %w", err)
	}
	return count > 0, nil
}

// UpdateRecord overwrites every mutable column of the record row.
// Returns the number of rows affected (0 means the record is gone).
func UpdateRecord(ctx context.Context, q DBTX, rec Record) (int64, error) {
	embedding, err := marshalEmbedding(rec.Embedding)
	if err != nil {
		return 0, fmt.Errorf("update record: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE records SET
			title = ?, url = ?, content = ?, summary = ?, notes = ?,
			abbreviation = ?, sense = ?, slug = ?, private = ?, curated = ?,
			embedding = ?, created_at = ?, updated_at = ?,
			content_created_at = ?, content_updated_at = ?
		WHERE id = ?
	`,
		nullable(rec.Title),
		nullable(rec.URL),
		nullable(rec.Content),
		nullable(rec.Summary),
		nullable(rec.Notes),
		nullable(rec.Abbreviation),
		nullable(rec.Sense),
		nullable(rec.Slug),
		rec.Private,
		rec.Curated,
		embedding,
		rec.CreatedAt.UTC().Format(timeFormat),
		rec.UpdatedAt.UTC().Format(timeFormat),
		nullableTime(rec.ContentCreatedAt),
		nullableTime(rec.ContentUpdatedAt),
		rec.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("update record: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update record: rows affected: %w", err)
	}
	return rows, nil
}

// ClearRecordSlug nulls out a record's slug. The merge engine does this
// on the source row before copying fields onto the target so the UNIQUE
// constraint on slug cannot collide mid-merge.
func ClearRecordSlug(ctx context.Context, q DBTX, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE records SET slug = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear record slug: %w", err)
	}
	return nil
}

// DeleteRecord removes a record row.
// Returns the number of rows affected (0 means the record was already gone).
func DeleteRecord(ctx context.Context, q DBTX, id int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete record: rows affected: %w", err)
	}
	return rows, nil
}

// ListTitledRecords returns every record with a non-empty title except
// the excluded id, ordered by most recently updated first. This is the
// candidate pool for the duplicate detector; untitled records are never
// surfaced as merge candidates.
func ListTitledRecords(ctx context.Context, q DBTX, excludeID int64) ([]Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE id != ? AND title IS NOT NULL AND title != ''
		ORDER BY updated_at DESC, id ASC
	`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list titled records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(rows *sql.Rows) (Record, error) {
	return scanRecordFields(rows)
}

func scanRecordRow(row *sql.Row) (Record, error) {
	return scanRecordFields(row)
}

func scanRecordFields(sc rowScanner) (Record, error) {
	var rec Record
	var title, url, content, summary, notes, abbreviation, sense, slug sql.NullString
	var embedding sql.NullString
	var createdAt, updatedAt string
	var contentCreatedAt, contentUpdatedAt sql.NullString

	err := sc.Scan(
		&rec.ID, &title, &url, &content, &summary, &notes, &abbreviation, &sense, &slug,
		&rec.Private, &rec.Curated, &embedding, &createdAt, &updatedAt,
		&contentCreatedAt, &contentUpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.Title = title.String
	rec.URL = url.String
	rec.Content = content.String
	rec.Summary = summary.String
	rec.Notes = notes.String
	rec.Abbreviation = abbreviation.String
	rec.Sense = sense.String
	rec.Slug = slug.String

	if embedding.Valid {
		rec.Embedding, err = unmarshalEmbedding(embedding.String)
		if err != nil {
			return Record{}, fmt.Errorf("scan record %d: %w", rec.ID, err)
		}
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return Record{}, fmt.Errorf("scan record %d: created_at: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Record{}, fmt.Errorf("scan record %d: updated_at: %w", rec.ID, err)
	}
	if contentCreatedAt.Valid {
		if rec.ContentCreatedAt, err = parseTime(contentCreatedAt.String); err != nil {
			return Record{}, fmt.Errorf("scan record %d: content_created_at: %w", rec.ID, err)
		}
	}
	if contentUpdatedAt.Valid {
		if rec.ContentUpdatedAt, err = parseTime(contentUpdatedAt.String); err != nil {
			return Record{}, fmt.Errorf("scan record %d: content_updated_at: %w", rec.ID, err)
		}
	}

	return rec, nil
}

// marshalEmbedding serializes an embedding vector as a JSON array.
// Returns nil (SQL NULL) for an absent vector.
func marshalEmbedding(v []float64) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	return string(b), nil
}

func unmarshalEmbedding(s string) ([]float64, error) {
	var v []float64
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// nullable converts an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableTime converts the zero time to SQL NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeFormat)
}
