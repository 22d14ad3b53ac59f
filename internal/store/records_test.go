package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestInsertRecord_AssignsID(t *testing.T) {
	s := createTestStore(t)

	rec := createTestRecord(t, s, "First")
	if rec.ID == 0 {
		t.Error("InsertRecord did not assign an id")
	}

	rec2 := createTestRecord(t, s, "Second")
	if rec2.ID <= rec.ID {
		t.Errorf("ids not monotonic: %d then %d", rec.ID, rec2.ID)
	}
}

func TestInsertRecord_ExplicitID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := Record{
		ID:        42,
		Title:     "Restored",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := InsertRecord(ctx, s.DB(), &rec); err != nil {
		t.Fatalf("InsertRecord with explicit id failed: %v", err)
	}

	got, err := GetRecord(ctx, s.DB(), 42)
	if err != nil {
		t.Fatalf("GetRecord(42) failed: %v", err)
	}
	if got.Title != "Restored" {
		t.Errorf("Title = %q, want %q", got.Title, "Restored")
	}
}

func TestGetRecord_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 678901234, time.UTC)
	contentCreated := time.Date(2025, 11, 30, 12, 0, 0, 0, time.UTC)
	rec := Record{
		Title:            "Go Proverbs",
		URL:              "https://go-proverbs.github.io",
		Content:          "Don't communicate by sharing memory.",
		Summary:          "talk notes",
		Notes:            "from GopherFest",
		Abbreviation:     "GP",
		Sense:            "programming",
		Slug:             "go-proverbs",
		Private:          true,
		Curated:          true,
		Embedding:        []float64{0.25, -0.5, 1},
		CreatedAt:        created,
		UpdatedAt:        created,
		ContentCreatedAt: contentCreated,
	}
	if err := InsertRecord(ctx, s.DB(), &rec); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	got, err := GetRecord(ctx, s.DB(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}

	if !reflect.DeepEqual(got, rec) {
		t.Errorf("round trip mismatch:\n got:  %+v\n want: %+v", got, rec)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want exact instant %v", got.CreatedAt, created)
	}
	if !got.ContentUpdatedAt.IsZero() {
		t.Errorf("unset ContentUpdatedAt came back as %v", got.ContentUpdatedAt)
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := GetRecord(context.Background(), s.DB(), 9999)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRecordExists(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := createTestRecord(t, s, "Here")

	exists, err := RecordExists(ctx, s.DB(), rec.ID)
	if err != nil {
		t.Fatalf("RecordExists failed: %v", err)
	}
	if !exists {
		t.Error("expected record to exist")
	}

	exists, err = RecordExists(ctx, s.DB(), rec.ID+1)
	if err != nil {
		t.Fatalf("RecordExists failed: %v", err)
	}
	if exists {
		t.Error("expected record not to exist")
	}
}

func TestInsertRecord_SlugUnique(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	first := Record{Title: "A", Slug: "shared", CreatedAt: now, UpdatedAt: now}
	if err := InsertRecord(ctx, s.DB(), &first); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	second := Record{Title: "B", Slug: "shared", CreatedAt: now, UpdatedAt: now}
	if err := InsertRecord(ctx, s.DB(), &second); err == nil {
		t.Error("expected UNIQUE violation for duplicate slug, got nil")
	}
}

func TestInsertRecord_EmptySlugsDoNotCollide(t *testing.T) {
	s := createTestStore(t)

	// Empty slugs are stored as NULL, which UNIQUE ignores
	createTestRecord(t, s, "First")
	createTestRecord(t, s, "Second")
}

func TestUpdateRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := createTestRecord(t, s, "Before")

	rec.Title = "After"
	rec.Curated = true
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Hour)
	rows, err := UpdateRecord(ctx, s.DB(), rec)
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("rows affected = %d, want 1", rows)
	}

	got, err := GetRecord(ctx, s.DB(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Title != "After" || !got.Curated {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestUpdateRecord_MissingRow(t *testing.T) {
	s := createTestStore(t)

	rows, err := UpdateRecord(context.Background(), s.DB(), Record{
		ID:        777,
		Title:     "Ghost",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if rows != 0 {
		t.Errorf("rows affected = %d, want 0", rows)
	}
}

func TestClearRecordSlug(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := Record{Title: "Slugged", Slug: "slugged", CreatedAt: now, UpdatedAt: now}
	if err := InsertRecord(ctx, s.DB(), &rec); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	if err := ClearRecordSlug(ctx, s.DB(), rec.ID); err != nil {
		t.Fatalf("ClearRecordSlug failed: %v", err)
	}

	got, err := GetRecord(ctx, s.DB(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Slug != "" {
		t.Errorf("Slug = %q after clear, want empty", got.Slug)
	}
}

func TestDeleteRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := createTestRecord(t, s, "Doomed")

	rows, err := DeleteRecord(ctx, s.DB(), rec.ID)
	if err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("rows affected = %d, want 1", rows)
	}

	// Second delete is a no-op
	rows, err = DeleteRecord(ctx, s.DB(), rec.ID)
	if err != nil {
		t.Fatalf("second DeleteRecord failed: %v", err)
	}
	if rows != 0 {
		t.Errorf("rows affected = %d on re-delete, want 0", rows)
	}
}

func TestListTitledRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := Record{Title: "Older", CreatedAt: base, UpdatedAt: base}
	newer := Record{Title: "Newer", CreatedAt: base, UpdatedAt: base.Add(time.Hour)}
	untitled := Record{CreatedAt: base, UpdatedAt: base.Add(2 * time.Hour)}
	excluded := Record{Title: "Excluded", CreatedAt: base, UpdatedAt: base.Add(3 * time.Hour)}

	for _, r := range []*Record{&older, &newer, &untitled, &excluded} {
		if err := InsertRecord(ctx, s.DB(), r); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}
	}

	records, err := ListTitledRecords(ctx, s.DB(), excluded.ID)
	if err != nil {
		t.Fatalf("ListTitledRecords failed: %v", err)
	}

	var titles []string
	for _, r := range records {
		titles = append(titles, r.Title)
	}
	want := []string{"Newer", "Older"}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}

func TestListTitledRecords_Empty(t *testing.T) {
	s := createTestStore(t)

	records, err := ListTitledRecords(context.Background(), s.DB(), 0)
	if err != nil {
		t.Fatalf("ListTitledRecords failed: %v", err)
	}
	if records == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
