package graph

import "github.com/trovegraph/trove/internal/store"

// FieldMergePolicy computes the merged field set written to the target
// record when a source is folded into it. Policies must be pure and
// deterministic; the engine applies the policy exactly once, inside the
// merge transaction.
//
// The policy controls fields only: identity, created_at, and updated_at
// on the result are managed by the engine.
type FieldMergePolicy func(target, source store.Record) store.Record

// DefaultFieldMergePolicy keeps every target value that is set and
// falls back to the source value otherwise. Boolean flags stay sticky:
// the merged record is private or curated if either input was.
func DefaultFieldMergePolicy(target, source store.Record) store.Record {
	merged := target

	merged.Title = firstNonEmpty(target.Title, source.Title)
	merged.URL = firstNonEmpty(target.URL, source.URL)
	merged.Content = firstNonEmpty(target.Content, source.Content)
	merged.Summary = firstNonEmpty(target.Summary, source.Summary)
	merged.Notes = firstNonEmpty(target.Notes, source.Notes)
	merged.Abbreviation = firstNonEmpty(target.Abbreviation, source.Abbreviation)
	merged.Sense = firstNonEmpty(target.Sense, source.Sense)
	merged.Slug = firstNonEmpty(target.Slug, source.Slug)

	merged.Private = target.Private || source.Private
	merged.Curated = target.Curated || source.Curated

	if merged.Embedding == nil {
		merged.Embedding = source.Embedding
	}

	if merged.ContentCreatedAt.IsZero() {
		merged.ContentCreatedAt = source.ContentCreatedAt
	}
	if merged.ContentUpdatedAt.IsZero() {
		merged.ContentUpdatedAt = source.ContentUpdatedAt
	}

	return merged
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
