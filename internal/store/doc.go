// Package store provides a SQLite-backed journal of lowering runs.
//
// A run records which model was lowered with which configuration, every
// pass event the engine reported while running it, and a snapshot of the
// lowered layers once it finished. The journal is append-only: a finished
// run is never modified again.
//
// # Ordering
//
// All ordering uses logical sequence numbers, never timestamps. Pass
// events are keyed by (run_id, seq) and read back ORDER BY seq ASC, so two
// runs of the same model and configuration produce identical journals.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Layer snapshots are stored as RFC 8785 canonical JSON with the content
// digest computed by ir.LayerDigest.
package store
