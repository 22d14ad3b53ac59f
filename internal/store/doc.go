// Package store provides SQLite-backed storage for the trove record graph.
//
// The store holds three kinds of state:
//   - Records: nodes in the knowledge graph
//   - Links: canonical directed edges between records
//   - Dependent tables: media plus one table per ingestion integration,
//     each carrying a record_id foreign key
//
// # Conventions
//
//   - Row helpers are package-level functions taking a DBTX, satisfied
//     by both *sql.DB and *sql.Tx. Multi-step operations (merge, undo)
//     pass a single transaction through every helper they touch.
//   - Empty strings are stored as NULL so the UNIQUE constraint on
//     records.slug only applies to real slugs.
//   - All timestamps are RFC 3339 (nanosecond) TEXT in UTC; a write
//     then read round trip preserves the exact instant.
//   - List queries order by id ASC for deterministic results.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
