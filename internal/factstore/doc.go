// Package factstore provides the in-memory indexed fact database.
//
// The store keeps one relation per declared predicate, held in two physical
// partitions: base facts (populated by ingestion) and derived facts
// (populated by evaluation). Both are read through the same Lookup surface.
//
// # Relations
//
//   - Rows are ordered by tuple in a B-tree, so scans are deterministic
//   - A key map gives O(1) duplicate detection
//   - Bound-position hash indexes are built lazily per bound-position mask
//     and maintained on every mutation
//   - Patterns bound on a leading prefix are answered by a B-tree range scan
//
// # Provenance
//
// Every derived row carries its support set. Two reverse indexes find the
// supports a change can invalidate:
//
//   - dependents: premise fact -> supports that used it positively
//   - watchers:   (predicate, bound-position pattern) -> supports that
//     required no matching fact to exist
//
// # Transactions
//
// Begin starts recording an undo log. Rollback reverts every mutation since
// Begin; Commit discards the log. Evaluation runs inside a transaction so a
// cancelled or failed run leaves the store exactly as it was.
//
// # Concurrency
//
// A Store is not safe for concurrent mutation. Concurrent Lookup calls are
// safe with each other; lazy index construction is serialized internally.
// The engine holds a read/write lock around the store.
package factstore
