package introduction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/introstore/internal/clock"
	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/store"
)

// PuzzleStore is the system of record for own and foreign introduction puzzles.
//
// Every public operation runs to completion under the store lock. Operations
// that write also take the persistence lock inside store.Update, always after
// the store lock.
//
// PuzzleStore implements sync.Locker so that the identity registry can hold
// it across an identity deletion.
type PuzzleStore struct {
	mu    sync.Mutex
	db    *store.Store
	clock clock.Clock
	log   *slog.Logger

	repaired int
}

// Option configures a PuzzleStore.
type Option func(*PuzzleStore)

// WithClock sets the clock used for expiry and for "today".
func WithClock(c clock.Clock) Option {
	return func(s *PuzzleStore) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *PuzzleStore) {
		s.log = l
	}
}

// New creates a puzzle store on db and repairs it before returning.
// Puzzles that fail their self-check are deleted; see Repaired.
func New(ctx context.Context, db *store.Store, opts ...Option) (*PuzzleStore, error) {
	s := &PuzzleStore{
		db:    db,
		clock: clock.System{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.repair(ctx)
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	s.repaired = n
	return s, nil
}

// Lock acquires the store lock.
func (s *PuzzleStore) Lock() { s.mu.Lock() }

// Unlock releases the store lock.
func (s *PuzzleStore) Unlock() { s.mu.Unlock() }

// Repaired returns how many corrupt puzzles were deleted on startup.
func (s *PuzzleStore) Repaired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repaired
}

// Save persists a new puzzle or a new state of a stored one.
// See Session.Save.
func (s *PuzzleStore) Save(ctx context.Context, p *puzzle.Puzzle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, p)
}

// save writes p in one transaction. The caller holds s.mu.
//
// Checks, in order: p passes its self-check, p is not a new instance for a
// taken id, the inserter and solver are stored identities, and p is not
// older than the stored puzzle. Own puzzles also raise the index watermark
// of their (inserter, day).
func (s *PuzzleStore) save(ctx context.Context, p *puzzle.Puzzle) error {
	if err := p.CheckConsistency(); err != nil {
		return &puzzle.Error{Code: puzzle.CodeInvalidPuzzle, Message: err.Error(), PuzzleID: p.ID}
	}

	have := p.Revision()
	next := have + 1
	state := p.State()

	err := s.db.Update(ctx, func(tx *store.Tx) error {
		stored, exists, err := tx.PuzzleRevision(ctx, p.ID)
		if err != nil {
			return err
		}
		if have == 0 && exists {
			return puzzle.NewAlreadyExistsError(p.ID)
		}

		if err := checkIdentity(ctx, tx, p.ID, "inserter", p.Inserter); err != nil {
			return err
		}
		if p.WasSolved() {
			if err := checkIdentity(ctx, tx, p.ID, "solver", p.Solver()); err != nil {
				return err
			}
		}

		if have != 0 {
			if !exists {
				return puzzle.NewInactiveError(p.ID, have, 0)
			}
			if stored != have {
				return puzzle.NewInactiveError(p.ID, have, stored)
			}
			return tx.UpdatePuzzle(ctx, state, next)
		}

		if err := tx.InsertPuzzle(ctx, state, next); err != nil {
			return err
		}
		if p.IsOwn() {
			return tx.RaiseWatermark(ctx, p.Inserter, p.Date, p.Index+1)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.MarkStored(next)
	s.log.Debug("puzzle stored",
		"puzzle", p.ID,
		"variant", p.Variant.String(),
		"revision", next,
	)
	return nil
}

func checkIdentity(ctx context.Context, tx *store.Tx, puzzleID, role, identityID string) error {
	ok, err := tx.IdentityExists(ctx, identityID)
	if err != nil {
		return err
	}
	if !ok {
		return puzzle.NewDanglingReferenceError(puzzleID, role, identityID)
	}
	return nil
}

// DeleteWithoutCommit removes the puzzle with id and its payload inside the
// caller's transaction. It never commits: the caller's Update does.
//
// The caller must hold the store lock.
func (s *PuzzleStore) DeleteWithoutCommit(ctx context.Context, tx *store.Tx, id string) error {
	return tx.DeletePuzzle(ctx, id)
}

// deleteCommitted removes one puzzle in its own transaction. The caller holds s.mu.
func (s *PuzzleStore) deleteCommitted(ctx context.Context, id string) error {
	return s.db.Update(ctx, func(tx *store.Tx) error {
		return s.DeleteWithoutCommit(ctx, tx, id)
	})
}

// Delete removes the puzzle with id and commits.
// Returns a CodeNotFound error if it is not stored.
func (s *PuzzleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(ctx, func(tx *store.Tx) error {
		_, ok, err := tx.PuzzleRevision(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return puzzle.NewNotFoundError("no puzzle with this id", map[string]string{"id": id})
		}
		return s.DeleteWithoutCommit(ctx, tx, id)
	})
}
