package introduction

import (
	"context"

	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/store"
)

// OwnByRequestKey returns the own puzzle published under key.
// Used when an insert completed and only its key is known.
func (s *PuzzleStore) OwnByRequestKey(ctx context.Context, key string) (*puzzle.Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownByRequestKey(ctx, key)
}

// BySolutionKey returns the puzzle, own or foreign, whose solution is
// published under key.
func (s *PuzzleStore) BySolutionKey(ctx context.Context, key string) (*puzzle.Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bySolutionKey(ctx, key, puzzle.AnyVariant)
}

// OwnBySolutionKey returns the own puzzle whose solution was downloaded from key.
func (s *PuzzleStore) OwnBySolutionKey(ctx context.Context, key string) (*puzzle.Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bySolutionKey(ctx, key, puzzle.OwnOnly)
}

// OwnByRequestKey is PuzzleStore.OwnByRequestKey inside the lock scope.
func (x *Session) OwnByRequestKey(ctx context.Context, key string) (*puzzle.Puzzle, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	return x.s.ownByRequestKey(ctx, key)
}

// BySolutionKey is PuzzleStore.BySolutionKey inside the lock scope.
func (x *Session) BySolutionKey(ctx context.Context, key string) (*puzzle.Puzzle, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	return x.s.bySolutionKey(ctx, key, puzzle.AnyVariant)
}

// OwnBySolutionKey is PuzzleStore.OwnBySolutionKey inside the lock scope.
func (x *Session) OwnBySolutionKey(ctx context.Context, key string) (*puzzle.Puzzle, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	return x.s.bySolutionKey(ctx, key, puzzle.OwnOnly)
}

func (s *PuzzleStore) ownByRequestKey(ctx context.Context, key string) (*puzzle.Puzzle, error) {
	inserterID, date, index, err := puzzle.ParseRequestKey(key)
	if err != nil {
		return nil, err
	}
	return s.bySlot(ctx, inserterID, date, index, puzzle.OwnOnly)
}

func (s *PuzzleStore) bySolutionKey(ctx context.Context, key string, scope puzzle.Scope) (*puzzle.Puzzle, error) {
	id, err := puzzle.IDFromSolutionKey(key)
	if err != nil {
		return nil, err
	}
	return s.unique(ctx, store.Filter{ID: id, Scope: scope}, map[string]string{"solution_key": key})
}
