package introduction

import (
	"context"
	"fmt"

	"github.com/roach88/introstore/internal/identity"
	"github.com/roach88/introstore/internal/store"
)

// OnIdentityDeletion removes everything that references ident inside tx:
// puzzles it inserted, puzzles it solved, and its index watermarks. It does
// not commit.
//
// The caller must hold the registry lock and then this store's lock, and tx
// must belong to the Update that deletes the identity.
func (s *PuzzleStore) OnIdentityDeletion(ctx context.Context, tx *store.Tx, ident identity.Identity) error {
	inserted, err := tx.PuzzleIDs(ctx, store.Filter{Inserter: ident.ID})
	if err != nil {
		return fmt.Errorf("select puzzles inserted by %s: %w", ident.ID, err)
	}
	// Applied to every identity, not only own ones, so that no solver
	// reference outlives its identity.
	solved, err := tx.PuzzleIDs(ctx, store.Filter{Solver: ident.ID, Solved: store.Bool(true)})
	if err != nil {
		return fmt.Errorf("select puzzles solved by %s: %w", ident.ID, err)
	}

	seen := make(map[string]bool, len(inserted)+len(solved))
	for _, id := range append(inserted, solved...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := s.DeleteWithoutCommit(ctx, tx, id); err != nil {
			return err
		}
	}
	if err := tx.DeleteWatermarks(ctx, ident.ID); err != nil {
		return err
	}

	s.log.Info("puzzles of deleted identity removed",
		"identity", ident.String(),
		"inserted", len(inserted),
		"solved", len(solved),
	)
	return nil
}
