// Package journal provides a SQLite-backed append-only log of fact batches.
//
// Each batch is one engine.Delta: ordered retractions and additions of base
// facts. Replaying the journal in sequence order into a fresh engine
// rebuilds the same base and derived facts.
//
// # Storage
//
//   - batches: id (UUIDv7), seq (logical order), checksum, counts
//   - batch_facts: one row per fact, op '+' or '-', args as canonical JSON
//
// Ordering always uses seq, never wall time. The checksum is
// ir.BatchChecksum over the stored facts and is verified on replay.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal
