// Package catalog loads and validates the predicate catalog.
//
// Predicates are configuration, not data: they are declared in CUE
// files, validated against a schema plus the inverse-pair invariants at
// load time, and treated as immutable for the engine's lifetime. The
// one operation the rest of the system uses is ResolveCanonical, which
// maps any proposed edge onto its canonical storage direction.
package catalog
