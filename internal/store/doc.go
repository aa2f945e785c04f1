// Package store keeps the history of pipeline runs in SQLite.
//
// Every compiled unit produces one row in runs: its graph hash, the
// configuration hash, the outcome (scheduled, fallback or rejected), block
// and gate counts, the conversions Convert inserted and the schedule dump.
//
// Ordering is by the logical seq assigned by the pipeline clock, then by id.
// Wall time is never stored, so two runs over the same inputs produce the
// same rows apart from their ids.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - schema migrations tracked in PRAGMA user_version
package store
