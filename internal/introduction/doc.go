// Package introduction stores the introduction puzzles of own and foreign
// identities.
//
// Own puzzles are created here and published for unknown identities to
// solve. Foreign puzzles are downloaded from remote identities, solved
// locally, and their solutions published back. PuzzleStore is the single
// system of record for both.
//
// # Locking
//
// PuzzleStore has one lock. Operations that read, decide and then write
// (index allocation, Save, eviction sweeps) run under it, and the
// persistence lock is only ever taken while it is held. The lock order for
// the whole process is:
//
//  1. the identity registry
//  2. the puzzle store
//  3. the persistence layer (store.Update)
//
// Index allocation and the set-returning queries are methods of Session,
// which only WithLock hands out, so a free index cannot be computed in one
// lock scope and used in another.
//
// # Startup Repair
//
// New scans every stored puzzle, loads it fully and runs its self-check.
// Puzzles that fail are deleted one transaction at a time and logged at
// error level.
package introduction
