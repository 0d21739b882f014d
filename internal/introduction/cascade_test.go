package introduction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/registry"
	"github.com/roach88/introstore/internal/store"
	"github.com/roach88/introstore/internal/testutil"
)

// referencing returns the ids of puzzles naming id as inserter or solver.
func referencing(t *testing.T, db *store.Store, id string) []string {
	t.Helper()
	ctx := context.Background()
	inserted, err := db.PuzzleIDs(ctx, store.Filter{Inserter: id})
	require.NoError(t, err)
	solved, err := db.PuzzleIDs(ctx, store.Filter{Solver: id})
	require.NoError(t, err)
	return append(inserted, solved...)
}

func TestOnIdentityDeletion_ThroughRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := registry.New(f.db)
	reg.AddDeletionListener(f.ps)
	exp := day.Add(48 * time.Hour)

	aliceOwn := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, exp))
	bobOwn := f.save(t, testutil.OwnPuzzle(t, f.bob, day, 0, exp))
	solvedByAlice := testutil.ForeignPuzzle(t, f.carol, day, 0, exp)
	require.NoError(t, solvedByAlice.Solve(f.alice.ID, "abc"))
	f.save(t, solvedByAlice)
	solvedByBob := testutil.ForeignPuzzle(t, f.carol, day, 1, exp)
	require.NoError(t, solvedByBob.Solve(f.bob.ID, "def"))
	f.save(t, solvedByBob)
	unsolved := f.save(t, testutil.ForeignPuzzle(t, f.carol, day, 2, exp))

	t.Run("own identity", func(t *testing.T) {
		require.NoError(t, reg.Delete(ctx, f.alice.ID))

		assert.Empty(t, referencing(t, f.db, f.alice.ID))
		for _, p := range []*puzzle.Puzzle{aliceOwn, solvedByAlice} {
			_, err := f.ps.ByID(ctx, p.ID)
			assert.True(t, puzzle.IsNotFound(err), "%s should be gone", p.ID)
		}
		for _, p := range []*puzzle.Puzzle{bobOwn, solvedByBob, unsolved} {
			_, err := f.ps.ByID(ctx, p.ID)
			assert.NoError(t, err, "%s should remain", p.ID)
		}

		ok, err := reg.Exists(ctx, f.alice.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		var watermarks int
		require.NoError(t, f.db.DB().QueryRow(
			`SELECT COUNT(*) FROM puzzle_index_watermarks WHERE inserter_id = ?`, f.alice.ID,
		).Scan(&watermarks))
		assert.Zero(t, watermarks)
	})

	t.Run("remote identity", func(t *testing.T) {
		require.NoError(t, reg.Delete(ctx, f.carol.ID))

		assert.Empty(t, referencing(t, f.db, f.carol.ID))
		n, err := f.ps.ForeignPuzzleCount(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = f.ps.ForeignPuzzleCount(ctx, true)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = f.ps.ByID(ctx, bobOwn.ID)
		assert.NoError(t, err)
	})
}

func TestOnIdentityDeletion_SolverOfOwnPuzzle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := registry.New(f.db)
	reg.AddDeletionListener(f.ps)

	p := testutil.OwnPuzzle(t, f.alice, day, 0, day.Add(time.Hour))
	require.NoError(t, p.Solve(f.carol.ID, ""))
	f.save(t, p)

	require.NoError(t, reg.Delete(ctx, f.carol.ID))
	assert.Empty(t, referencing(t, f.db, f.carol.ID))
}

func TestOnIdentityDeletion_DoesNotCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, day.Add(time.Hour)))

	f.ps.Lock()
	err := f.db.Update(ctx, func(tx *store.Tx) error {
		if err := f.ps.OnIdentityDeletion(ctx, tx, f.alice); err != nil {
			return err
		}
		inside, err := tx.PuzzleIDs(ctx, store.Filter{Inserter: f.alice.ID})
		require.NoError(t, err)
		assert.Empty(t, inside)
		return assert.AnError
	})
	f.ps.Unlock()
	require.ErrorIs(t, err, assert.AnError)

	_, err = f.ps.ByID(ctx, p.ID)
	assert.NoError(t, err, "rolled back cascade must leave the puzzle in place")
}
