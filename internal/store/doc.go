// Package store provides SQLite-backed durable storage for identities and
// introduction puzzles.
//
// # Tables
//
//   - identities: identity references (id, nickname, own flag)
//   - puzzles: one row per puzzle, keyed by its derived id
//   - puzzle_payloads: the puzzle body and solution, one per puzzle
//   - puzzle_index_watermarks: highest index handed out per (inserter, day)
//
// The schema is managed by embedded golang-migrate migrations.
//
// # Persistence Lock
//
// All writes happen inside Store.Update, which holds the persistence lock for
// the whole transaction. Callers that also hold the registry or puzzle store
// locks must acquire those first.
//
// # Deterministic Query Results
//
// Every multi-row query ends its ORDER BY with "id COLLATE BINARY ASC" so
// results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
