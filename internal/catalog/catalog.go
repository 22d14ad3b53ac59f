package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// Predicate is a named relationship type. Exactly one direction of a
// predicate pair is canonical; only canonical predicates are ever
// persisted as link rows.
type Predicate struct {
	Slug      string `json:"slug"`
	Label     string `json:"label"`
	Type      string `json:"type"`
	Canonical bool   `json:"canonical"`
	Inverse   string `json:"inverse,omitempty"`
}

// Catalog is the validated, immutable set of predicates loaded at
// startup. Safe for concurrent use.
type Catalog struct {
	predicates map[string]Predicate
}

// Errors returned by lookup and resolution. Callers translate these
// into their own error taxonomy with errors.Is.
var (
	ErrPredicateNotFound = errors.New("predicate not found")
	ErrNonReversible     = errors.New("predicate has no canonical inverse")
)

// New builds a catalog from a predicate set, validating the
// inverse-pair invariants once at load time:
//   - no predicate is its own inverse
//   - a declared inverse must exist and must point back
//   - every non-canonical predicate must have a canonical inverse
//   - an inverse pair has exactly one canonical direction
func New(predicates []Predicate) (*Catalog, error) {
	bySlug := make(map[string]Predicate, len(predicates))
	for _, p := range predicates {
		if p.Slug == "" {
			return nil, fmt.Errorf("catalog: predicate with empty slug")
		}
		if _, exists := bySlug[p.Slug]; exists {
			return nil, fmt.Errorf("catalog: duplicate predicate %q", p.Slug)
		}
		bySlug[p.Slug] = p
	}

	for _, p := range bySlug {
		if p.Inverse == "" {
			if !p.Canonical {
				return nil, fmt.Errorf("catalog: non-canonical predicate %q has no inverse", p.Slug)
			}
			continue
		}

		if p.Inverse == p.Slug {
			return nil, fmt.Errorf("catalog: predicate %q is its own inverse", p.Slug)
		}

		inv, ok := bySlug[p.Inverse]
		if !ok {
			return nil, fmt.Errorf("catalog: predicate %q declares unknown inverse %q", p.Slug, p.Inverse)
		}
		if inv.Inverse != p.Slug {
			return nil, fmt.Errorf("catalog: inverse of %q is %q, but %q points back at %q",
				p.Slug, p.Inverse, p.Inverse, inv.Inverse)
		}
		if p.Canonical == inv.Canonical {
			return nil, fmt.Errorf("catalog: predicates %q and %q must have exactly one canonical direction",
				p.Slug, p.Inverse)
		}
	}

	return &Catalog{predicates: bySlug}, nil
}

// Get returns the predicate for a slug.
func (c *Catalog) Get(slug string) (Predicate, error) {
	p, ok := c.predicates[slug]
	if !ok {
		return Predicate{}, fmt.Errorf("%w: %q", ErrPredicateNotFound, slug)
	}
	return p, nil
}

// Predicates returns every predicate sorted by slug.
func (c *Catalog) Predicates() []Predicate {
	out := make([]Predicate, 0, len(c.predicates))
	for _, p := range c.predicates {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Resolution is the result of canonicalizing a proposed link.
type Resolution struct {
	Predicate string
	SourceID  int64
	TargetID  int64
}

// ResolveCanonical maps a proposed (predicate, source, target) edge to
// its canonical storage form. A canonical predicate passes through
// unchanged; a non-canonical one is replaced by its canonical inverse
// with source and target swapped. Pure function over catalog data.
//
// New validates the pair invariants, so ErrNonReversible here means the
// catalog was constructed without validation.
func (c *Catalog) ResolveCanonical(slug string, sourceID, targetID int64) (Resolution, error) {
	p, err := c.Get(slug)
	if err != nil {
		return Resolution{}, err
	}

	if p.Canonical {
		return Resolution{Predicate: p.Slug, SourceID: sourceID, TargetID: targetID}, nil
	}

	inv, ok := c.predicates[p.Inverse]
	if !ok || !inv.Canonical {
		return Resolution{}, fmt.Errorf("%w: %q", ErrNonReversible, slug)
	}

	return Resolution{Predicate: inv.Slug, SourceID: targetID, TargetID: sourceID}, nil
}
