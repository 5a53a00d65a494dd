// Package store provides a SQLite-backed archive for drained ttp exports.
//
// The tracer itself keeps events only in memory. Operators who want to keep
// a capture after Reset point `ttp dump --archive` (or `ttp bench
// --archive`) at a database file; each drained export becomes one session
// row plus one event row per exported line.
//
// # Tables
//
//   - sessions: one row per drained export, keyed by a UUIDv7 id so ids
//     sort by creation time.
//   - events: the exported lines, keyed by (session_id, seq) where seq is
//     the line's position in the export stream.
//
// # Ordering
//
// Reads return events ORDER BY seq ASC, which reproduces the export order
// (contexts ascending, oldest first). Sessions are listed ORDER BY
// created_ns ASC, id ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
