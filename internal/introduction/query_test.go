package introduction

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/testutil"
)

func ids(ps []*puzzle.Puzzle) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestFreeIndex_NoGaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var got []int
	for i := 0; i < 6; i++ {
		err := f.ps.WithLock(ctx, func(x *Session) error {
			idx, err := x.FreeIndex(ctx, f.alice.ID, day)
			if err != nil {
				return err
			}
			got = append(got, idx)
			return x.Save(ctx, testutil.OwnPuzzle(t, f.alice, day, idx, day.Add(48*time.Hour)))
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
}

func TestFreeIndex_ScopedToInserterAndDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, day.Add(48*time.Hour)))
	f.save(t, testutil.ForeignPuzzle(t, f.carol, day, 3, day.Add(48*time.Hour)))

	err := f.ps.WithLock(ctx, func(x *Session) error {
		for _, tc := range []struct {
			inserter string
			date     time.Time
			want     int
		}{
			{f.alice.ID, day, 1},
			{f.alice.ID, day.Add(24 * time.Hour), 0},
			{f.bob.ID, day, 0},
			{f.carol.ID, day, 0},
		} {
			idx, err := x.FreeIndex(ctx, tc.inserter, tc.date)
			require.NoError(t, err)
			assert.Equal(t, tc.want, idx, "%s on %s", tc.inserter, puzzle.FormatDay(tc.date))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestFreeIndex_NotReusedAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Set(day.Add(time.Hour))

	freeIndex := func() int {
		var idx int
		require.NoError(t, f.ps.WithLock(ctx, func(x *Session) error {
			var err error
			idx, err = x.FreeIndex(ctx, f.alice.ID, day)
			return err
		}))
		return idx
	}

	a := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, day.Add(2*time.Hour)))
	assert.Equal(t, 1, freeIndex())

	f.save(t, testutil.OwnPuzzle(t, f.alice, day, 1, day.Add(4*time.Hour)))
	f.clock.Set(day.Add(3 * time.Hour))
	n, err := f.ps.DeleteExpiredPuzzles(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = f.ps.ByID(ctx, a.ID)
	require.True(t, puzzle.IsNotFound(err))
	assert.Equal(t, 2, freeIndex())

	// Removing the newest puzzle of the day does not free its index either.
	require.NoError(t, f.ps.Delete(ctx, puzzle.DeriveID(f.alice.ID, puzzle.TypeCaptcha, day, 1)))
	assert.Equal(t, 2, freeIndex())
}

func TestFreeIndex_ConcurrentAllocationIsDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const workers = 8

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return f.ps.WithLock(ctx, func(x *Session) error {
				idx, err := x.FreeIndex(ctx, f.alice.ID, day)
				if err != nil {
					return err
				}
				p, err := puzzle.NewOwn(f.alice,
					puzzle.Slot{Type: puzzle.TypeCaptcha, Date: day, Index: idx},
					testutil.Payload, "expected", day.Add(48*time.Hour))
				if err != nil {
					return err
				}
				return x.Save(ctx, p)
			})
		})
	}
	require.NoError(t, g.Wait())

	var got []int
	require.NoError(t, f.ps.WithLock(ctx, func(x *Session) error {
		ps, err := x.UninsertedOwnByInserter(ctx, f.alice.ID)
		for _, p := range ps {
			got = append(got, p.Index)
		}
		return err
	}))
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, got)
}

func TestFreeIndex_OnlyReachableUnderLock(t *testing.T) {
	storeType := reflect.TypeOf(&PuzzleStore{})
	for _, name := range []string{
		"FreeIndex",
		"UnsolvedByInserter",
		"UninsertedOwnByInserter",
		"OfTodayByInserter",
		"UnsolvedPuzzles",
		"UninsertedSolvedPuzzles",
	} {
		_, ok := storeType.MethodByName(name)
		assert.False(t, ok, "PuzzleStore must not expose %s outside a session", name)

		_, ok = reflect.TypeOf(&Session{}).MethodByName(name)
		assert.True(t, ok, "Session must expose %s", name)
	}
}

func TestSession_UnusableAfterScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var leaked *Session
	require.NoError(t, f.ps.WithLock(ctx, func(x *Session) error {
		leaked = x
		return nil
	}))

	_, err := leaked.FreeIndex(ctx, f.alice.ID, day)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, leaked.Save(ctx, testutil.OwnPuzzle(t, f.alice, day, 0, day.Add(time.Hour))), ErrSessionClosed)
	_, err = leaked.UnsolvedPuzzles(ctx, puzzle.TypeCaptcha)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestWithLock_HoldsStoreLock(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ps.WithLock(context.Background(), func(x *Session) error {
		assert.False(t, f.ps.mu.TryLock())
		return nil
	}))
	require.True(t, f.ps.mu.TryLock())
	f.ps.mu.Unlock()
}

func TestByInserterDateIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 2, day.Add(time.Hour)))
	foreign := f.save(t, testutil.ForeignPuzzle(t, f.carol, day, 2, day.Add(time.Hour)))

	got, err := f.ps.ByInserterDateIndex(ctx, f.alice.ID, day, 2, puzzle.OwnOnly)
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)

	got, err = f.ps.ByInserterDateIndex(ctx, f.carol.ID, day.Add(5*time.Hour), 2, puzzle.AnyVariant)
	require.NoError(t, err)
	assert.Equal(t, foreign.ID, got.ID)

	_, err = f.ps.ByInserterDateIndex(ctx, f.carol.ID, day, 2, puzzle.OwnOnly)
	assert.True(t, puzzle.IsNotFound(err))

	_, err = f.ps.ByInserterDateIndex(ctx, f.alice.ID, day, 3, puzzle.AnyVariant)
	assert.True(t, puzzle.IsNotFound(err))

	require.NoError(t, f.ps.WithLock(ctx, func(x *Session) error {
		got, err := x.ByInserterDateIndex(ctx, f.alice.ID, day, 2, puzzle.AnyVariant)
		require.NoError(t, err)
		assert.Equal(t, own.ID, got.ID)
		return nil
	}))
}

func TestByInserterDateIndex_DuplicateFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, day.Add(time.Hour)))

	// A foreign row claiming the same slot under another id.
	_, err := f.db.DB().Exec(`
		INSERT INTO puzzles (id, variant, type, inserter_id, date_of_insertion, idx,
			valid_until, was_solved, was_inserted)
		VALUES ('intruder', 'foreign', 'captcha', 'alice', '2024-01-01', 0, 0, 0, 0)
	`)
	require.NoError(t, err)

	_, err = f.ps.ByInserterDateIndex(ctx, f.alice.ID, day, 0, puzzle.AnyVariant)
	assert.True(t, puzzle.IsDuplicate(err), "unexpected error: %v", err)

	_, err = f.ps.ByInserterDateIndex(ctx, f.alice.ID, day, 0, puzzle.OwnOnly)
	assert.NoError(t, err)
}

func TestByID_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ps.ByID(context.Background(), puzzle.DeriveID("alice", puzzle.TypeCaptcha, day, 0))
	assert.True(t, puzzle.IsNotFound(err))
}

func TestSetQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := day.Add(24 * time.Hour)
	f.clock.Set(today.Add(9 * time.Hour))
	exp := today.Add(48 * time.Hour)

	ownOld := f.save(t, testutil.OwnPuzzle(t, f.alice, day, 0, exp))
	ownToday := f.save(t, testutil.OwnPuzzle(t, f.alice, today, 0, exp))
	ownPublished := testutil.OwnPuzzle(t, f.alice, today, 1, exp)
	require.NoError(t, ownPublished.MarkInserted())
	f.save(t, ownPublished)
	ownSolved := testutil.OwnPuzzle(t, f.alice, today, 2, exp)
	require.NoError(t, ownSolved.Solve(f.carol.ID, ""))
	f.save(t, ownSolved)
	bobs := f.save(t, testutil.OwnPuzzle(t, f.bob, today, 0, exp))

	early := f.save(t, testutil.ForeignPuzzle(t, f.carol, today, 0, exp.Add(-time.Hour)))
	late := f.save(t, testutil.ForeignPuzzle(t, f.carol, today, 1, exp.Add(time.Hour)))
	mid := f.save(t, testutil.ForeignPuzzle(t, f.carol, day, 0, exp))
	solved := testutil.ForeignPuzzle(t, f.carol, day, 1, exp)
	require.NoError(t, solved.Solve(f.alice.ID, "abc"))
	f.save(t, solved)
	published := testutil.ForeignPuzzle(t, f.carol, day, 2, exp)
	require.NoError(t, published.Solve(f.bob.ID, "def"))
	require.NoError(t, published.MarkInserted())
	f.save(t, published)

	err := f.ps.WithLock(ctx, func(x *Session) error {
		t.Run("unsolved by inserter", func(t *testing.T) {
			got, err := x.UnsolvedByInserter(ctx, f.alice.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{ownOld.ID, ownToday.ID, ownPublished.ID}, ids(got))
		})

		t.Run("uninserted own by inserter", func(t *testing.T) {
			got, err := x.UninsertedOwnByInserter(ctx, f.alice.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{ownOld.ID, ownToday.ID, ownSolved.ID}, ids(got))

			got, err = x.UninsertedOwnByInserter(ctx, f.bob.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{bobs.ID}, ids(got))
		})

		t.Run("of today by inserter", func(t *testing.T) {
			got, err := x.OfTodayByInserter(ctx, f.alice.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{ownToday.ID, ownPublished.ID, ownSolved.ID}, ids(got))

			got, err = x.OfTodayByInserter(ctx, f.carol.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{early.ID, late.ID}, ids(got))
		})

		t.Run("unsolved puzzles latest expiry first", func(t *testing.T) {
			got, err := x.UnsolvedPuzzles(ctx, puzzle.TypeCaptcha)
			require.NoError(t, err)
			assert.Equal(t, []string{late.ID, mid.ID, early.ID}, ids(got))
		})

		t.Run("uninserted solved puzzles", func(t *testing.T) {
			got, err := x.UninsertedSolvedPuzzles(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{solved.ID}, ids(got))
		})
		return nil
	})
	require.NoError(t, err)

	counts := []struct {
		name string
		fn   func(context.Context, bool) (int, error)
		arg  bool
		want int
	}{
		{"own unsolved", f.ps.OwnPuzzleCount, false, 4},
		{"own solved", f.ps.OwnPuzzleCount, true, 1},
		{"foreign unsolved", f.ps.ForeignPuzzleCount, false, 3},
		{"foreign solved", f.ps.ForeignPuzzleCount, true, 2},
	}
	for _, c := range counts {
		n, err := c.fn(ctx, c.arg)
		require.NoError(t, err)
		assert.Equal(t, c.want, n, c.name)
	}

	all, err := f.ps.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{
		Own:     SolvedCounts{Solved: 1, Unsolved: 4},
		Foreign: SolvedCounts{Solved: 2, Unsolved: 3},
	}, all)
}
