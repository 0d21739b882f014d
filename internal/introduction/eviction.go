package introduction

import (
	"context"
	"fmt"

	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/store"
)

// DeleteExpiredPuzzles deletes every puzzle whose expiry is strictly before
// now, own or foreign, each in its own transaction. Index watermarks are
// kept, so the slots of expired own puzzles are never handed out again.
//
// A failed deletion is logged and does not stop the sweep; the first such
// error is returned with the count of puzzles that were deleted.
func (s *PuzzleStore) DeleteExpiredPuzzles(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	ids, err := s.db.PuzzleIDs(ctx, store.Filter{ExpiresBefore: now, Order: store.OrderByExpiryAsc})
	if err != nil {
		return 0, fmt.Errorf("select expired puzzles: %w", err)
	}

	deleted, err := s.deleteEach(ctx, ids, "expired")
	s.log.Info("expired puzzles deleted", "deleted", deleted)
	return deleted, err
}

// DeleteOldestUnsolvedPuzzles trims the unsolved foreign puzzles down to
// poolSize, deleting the soonest-to-expire first, each in its own
// transaction. Own puzzles and solved foreign puzzles are never touched.
func (s *PuzzleStore) DeleteOldestUnsolvedPuzzles(ctx context.Context, poolSize int) (int, error) {
	if poolSize < 0 {
		return 0, fmt.Errorf("pool size must not be negative, got %d", poolSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.db.PuzzleIDs(ctx, store.Filter{
		Scope:  puzzle.ForeignOnly,
		Solved: store.Bool(false),
		Order:  store.OrderByExpiryAsc,
	})
	if err != nil {
		return 0, fmt.Errorf("select unsolved foreign puzzles: %w", err)
	}
	if len(ids) <= poolSize {
		return 0, nil
	}

	deleted, err := s.deleteEach(ctx, ids[:len(ids)-poolSize], "evicted")
	s.log.Info("unsolved puzzle pool trimmed", "deleted", deleted, "pool_size", poolSize)
	return deleted, err
}

// deleteEach deletes ids one transaction at a time. The caller holds s.mu.
func (s *PuzzleStore) deleteEach(ctx context.Context, ids []string, reason string) (int, error) {
	var firstErr error
	deleted := 0
	for _, id := range ids {
		if err := s.deleteCommitted(ctx, id); err != nil {
			s.log.Error("deleting puzzle failed", "puzzle", id, "reason", reason, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.log.Debug("puzzle deleted", "puzzle", id, "reason", reason)
		deleted++
	}
	return deleted, firstErr
}
