package introduction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/testutil"
)

func TestOwnByRequestKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := day.Add(48 * time.Hour)
	own := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 3, exp))
	foreign := f.save(t, testutil.ForeignPuzzle(t, f.carol, day, 0, exp))

	got, err := f.ps.OwnByRequestKey(ctx, own.RequestKey())
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)

	_, err = f.ps.OwnByRequestKey(ctx, foreign.RequestKey())
	assert.True(t, puzzle.IsNotFound(err), "foreign puzzles have no request key of ours")

	_, err = f.ps.OwnByRequestKey(ctx, puzzle.RequestKey(f.alice.ID, day, 4))
	assert.True(t, puzzle.IsNotFound(err))

	_, err = f.ps.OwnByRequestKey(ctx, "request|nonsense")
	assert.ErrorIs(t, err, puzzle.ErrMalformedKey)
}

func TestBySolutionKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := day.Add(48 * time.Hour)
	own := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, exp))
	foreign := f.save(t, testutil.ForeignPuzzle(t, f.carol, day, 0, exp))

	for _, p := range []*puzzle.Puzzle{own, foreign} {
		got, err := f.ps.BySolutionKey(ctx, p.SolutionKey())
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	}

	got, err := f.ps.OwnBySolutionKey(ctx, own.SolutionKey())
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)

	_, err = f.ps.OwnBySolutionKey(ctx, foreign.SolutionKey())
	assert.True(t, puzzle.IsNotFound(err))

	_, err = f.ps.BySolutionKey(ctx, own.ID)
	assert.ErrorIs(t, err, puzzle.ErrMalformedKey)
}

func TestSession_KeyLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, day.Add(48*time.Hour)))

	var kept *Session
	err := f.ps.WithLock(ctx, func(x *Session) error {
		kept = x
		got, err := x.OwnByRequestKey(ctx, own.RequestKey())
		require.NoError(t, err)
		assert.Equal(t, own.ID, got.ID)

		got, err = x.BySolutionKey(ctx, own.SolutionKey())
		require.NoError(t, err)
		assert.Equal(t, own.ID, got.ID)

		got, err = x.OwnBySolutionKey(ctx, own.SolutionKey())
		require.NoError(t, err)
		assert.Equal(t, own.ID, got.ID)
		return nil
	})
	require.NoError(t, err)

	_, err = kept.OwnByRequestKey(ctx, own.RequestKey())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
