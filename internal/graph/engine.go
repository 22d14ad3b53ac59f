package graph

import (
	"time"

	"github.com/google/uuid"

	"github.com/trovegraph/trove/internal/catalog"
	"github.com/trovegraph/trove/internal/store"
)

// Engine is the record graph consistency engine: canonical link
// storage, duplicate detection, and transactional merge/undo.
//
// The engine performs no internal threading or background work; every
// operation is a synchronous request/response unit that either fully
// commits or fully rolls back.
type Engine struct {
	store    *store.Store
	catalog  *catalog.Catalog
	registry *store.Registry

	policy     FieldMergePolicy
	now        func() time.Time
	snapshotID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Tests use a fixed
// clock for deterministic timestamps and golden snapshots.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSnapshotIDs overrides snapshot id generation.
func WithSnapshotIDs(gen func() string) Option {
	return func(e *Engine) { e.snapshotID = gen }
}

// WithFieldMergePolicy overrides the field-merge policy applied when
// folding a source record into a target.
func WithFieldMergePolicy(policy FieldMergePolicy) Option {
	return func(e *Engine) { e.policy = policy }
}

// New creates an engine over an opened store, a validated catalog, and
// a dependent-table registry.
func New(s *store.Store, c *catalog.Catalog, r *store.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		catalog:    c,
		registry:   r,
		policy:     DefaultFieldMergePolicy,
		now:        func() time.Time { return time.Now().UTC() },
		snapshotID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Catalog returns the engine's predicate catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}
