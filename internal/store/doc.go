// Package store provides a SQLite-backed audit journal for engine history.
//
// The journal is append-only and write-mostly:
//   - Entries: one row per commit, undo, redo or clear, with the version
//     it produced and the execution summary
//   - Changes: the property assignments and method calls observed while
//     that step executed, payloads stored as canonical JSON
//
// The engine never reads the journal back. It is telemetry for hosts and
// for the rewind CLI's trace command, not a persistence layer.
//
// # Ordering
//
//   - entries are ordered by seq, a logical counter assigned on insert
//   - changes are ordered by ordinal within their entry
//   - wall-clock time is never stored, so replaying a scenario produces
//     an identical journal
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
