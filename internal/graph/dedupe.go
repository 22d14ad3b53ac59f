package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/trovegraph/trove/internal/store"
)

const (
	// DefaultDuplicateLimit bounds how many candidates FindDuplicates
	// returns when the caller doesn't say.
	DefaultDuplicateLimit = 3

	// textDistanceThreshold is the normalized edit distance below which
	// a single field pair counts as a fuzzy match.
	textDistanceThreshold = 0.25

	// embeddingDistanceThreshold is the cosine distance below which two
	// embedding vectors count as a match.
	embeddingDistanceThreshold = 0.15

	// neutralDistance is the score for incomparable field pairs: absent
	// fields neither match nor penalize.
	neutralDistance = 1.0
)

// Candidate is one likely-duplicate record, with enough context for a
// human operator to decide whether to merge.
type Candidate struct {
	Record store.Record `json:"record"`

	// Distance is the minimum distance across all compared fields; the
	// candidate's best single-field match.
	Distance float64 `json:"distance"`

	// Creators holds the titles of records linked as creators of this
	// candidate, for disambiguation.
	Creators []string `json:"creators,omitempty"`

	// MediaCount is the number of media rows owned by the candidate.
	MediaCount int `json:"media_count"`
}

// FindDuplicates returns up to limit likely duplicates of a record,
// ordered by ascending minimum field distance with ties broken by most
// recently updated. A candidate qualifies on exact URL equality, on any
// single text field within the fuzzy threshold, or on embedding
// proximity. The source record itself and untitled records are never
// returned.
//
// Advisory only: detection never triggers a merge.
func (e *Engine) FindDuplicates(ctx context.Context, recordID int64, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = DefaultDuplicateLimit
	}

	db := e.store.DB()

	source, err := store.GetRecord(ctx, db, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newRecordNotFoundError(recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}

	pool, err := store.ListTitledRecords(ctx, db, recordID)
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}

	candidates := []Candidate{}
	for _, rec := range pool {
		distance, matched := compareRecords(source, rec)
		if !matched {
			continue
		}
		candidates = append(candidates, Candidate{Record: rec, Distance: distance})
	}

	// Best single-field match first; ties go to the most recently
	// updated candidate.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Record.UpdatedAt.After(candidates[j].Record.UpdatedAt)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	for i := range candidates {
		if err := e.attachContext(ctx, &candidates[i]); err != nil {
			return nil, fmt.Errorf("find duplicates: %w", err)
		}
	}

	return candidates, nil
}

// compareRecords computes the minimum distance across all comparable
// fields and reports whether any single comparison qualifies the
// candidate as a likely duplicate.
func compareRecords(source, candidate store.Record) (float64, bool) {
	best := neutralDistance
	matched := false

	// Exact URL equality is the strongest signal and scores zero.
	if source.URL != "" && source.URL == candidate.URL {
		return 0, true
	}

	pairs := [][2]string{
		{source.Title, candidate.Title},
		{source.URL, candidate.URL},
		{source.Content, candidate.Content},
		{source.Summary, candidate.Summary},
		{source.Notes, candidate.Notes},
		{source.Abbreviation, candidate.Abbreviation},
		{source.Sense, candidate.Sense},
	}
	for _, pair := range pairs {
		d := textDistance(pair[0], pair[1])
		if d < best {
			best = d
		}
		if d < textDistanceThreshold {
			matched = true
		}
	}

	if d := cosineDistance(source.Embedding, candidate.Embedding); d < embeddingDistanceThreshold {
		matched = true
		if d < best {
			best = d
		}
	}

	return best, matched
}

// attachContext loads the creator titles and media count for one
// candidate.
func (e *Engine) attachContext(ctx context.Context, c *Candidate) error {
	db := e.store.DB()

	links, err := store.ListLinksTouching(ctx, db, c.Record.ID)
	if err != nil {
		return err
	}
	for _, link := range links {
		// Creators appear as incoming canonical creator_of edges.
		if link.Predicate != "creator_of" || link.TargetID != c.Record.ID {
			continue
		}
		creator, err := store.GetRecord(ctx, db, link.SourceID)
		if err != nil {
			return err
		}
		if creator.Title != "" {
			c.Creators = append(c.Creators, creator.Title)
		}
	}

	if media, ok := e.registry.Find("media"); ok {
		rows, err := store.ListDependentRows(ctx, db, media, c.Record.ID)
		if err != nil {
			return err
		}
		c.MediaCount = len(rows)
	}

	return nil
}
