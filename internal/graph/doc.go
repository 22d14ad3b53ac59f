// Package graph implements the record graph consistency engine.
//
// The engine owns three responsibilities over the store:
//   - Canonical links: every edge is persisted under its canonical
//     predicate direction, unique per (source, target, predicate),
//     with no self-loops.
//   - Duplicate detection: advisory similarity search over record
//     fields and embedding vectors, surfacing merge candidates to a
//     human operator.
//   - Merge/undo: atomically folding a duplicate source record into a
//     target, reassigning every dependent foreign key and rewriting
//     the link set, with a snapshot sufficient to restore exact prior
//     state.
//
// # Transactional contract
//
// Every mutating operation runs inside a single SQLite transaction and
// either fully commits or fully rolls back. The engine takes no row
// locks; lost-update races are detected by explicit existence checks
// and surface as MERGE_INCONSISTENT or RECORD_NOT_FOUND rather than
// silent corruption. Reads may run concurrently with unrelated merges
// and observe only committed state.
package graph
