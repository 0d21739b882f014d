package introduction

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/store"
)

// ErrSessionClosed is returned by a Session used after its WithLock call returned.
var ErrSessionClosed = errors.New("session used outside its lock scope")

// Session is the store seen from inside WithLock.
//
// Index allocation and the set-returning queries exist only here, so that
// allocating an index and storing the puzzle that uses it cannot be split
// across two lock scopes. Results are fully loaded before they are returned.
type Session struct {
	s      *PuzzleStore
	closed bool
}

// WithLock runs fn with the store lock held. The session passed to fn is
// invalid once fn returns. Errors from fn are returned unchanged.
func (s *PuzzleStore) WithLock(ctx context.Context, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{s: s}
	defer func() { sess.closed = true }()
	return fn(sess)
}

func (x *Session) check() error {
	if x.closed {
		return ErrSessionClosed
	}
	return nil
}

// Save persists a new puzzle or a new state of a stored one.
//
// Fails with CodeInvalidPuzzle if p fails its self-check, CodeAlreadyExists
// if p was never stored but its id is taken, CodeDanglingReference if its
// inserter or solver is not a stored identity, and CodeInactiveObject if a
// newer state of p was stored since p was loaded or p was deleted. On any
// failure nothing is written.
func (x *Session) Save(ctx context.Context, p *puzzle.Puzzle) error {
	if err := x.check(); err != nil {
		return err
	}
	return x.s.save(ctx, p)
}

// FreeIndex returns the next index for an own puzzle of inserter on date:
// one past the highest index ever allocated for that day, or 0.
//
// Store the puzzle with this index in the same session, or the index may be
// handed out again.
func (x *Session) FreeIndex(ctx context.Context, inserterID string, date time.Time) (int, error) {
	if err := x.check(); err != nil {
		return 0, err
	}
	return x.s.db.NextFreeIndex(ctx, inserterID, date)
}

// ByID returns the puzzle with id.
func (x *Session) ByID(ctx context.Context, id string) (*puzzle.Puzzle, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	return x.s.byID(ctx, id)
}

// ByInserterDateIndex returns the puzzle in the given slot among the variants in scope.
func (x *Session) ByInserterDateIndex(ctx context.Context, inserterID string, date time.Time, index int, scope puzzle.Scope) (*puzzle.Puzzle, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	return x.s.bySlot(ctx, inserterID, date, index, scope)
}

// UnsolvedByInserter returns the own puzzles of inserter that nobody solved yet.
func (x *Session) UnsolvedByInserter(ctx context.Context, inserterID string) ([]*puzzle.Puzzle, error) {
	return x.list(ctx, store.Filter{
		Scope:    puzzle.OwnOnly,
		Inserter: inserterID,
		Solved:   store.Bool(false),
	})
}

// UninsertedOwnByInserter returns the own puzzles of inserter that are not published yet.
func (x *Session) UninsertedOwnByInserter(ctx context.Context, inserterID string) ([]*puzzle.Puzzle, error) {
	return x.list(ctx, store.Filter{
		Scope:    puzzle.OwnOnly,
		Inserter: inserterID,
		Inserted: store.Bool(false),
	})
}

// OfTodayByInserter returns the puzzles of either variant that inserter
// created today, in UTC.
func (x *Session) OfTodayByInserter(ctx context.Context, inserterID string) ([]*puzzle.Puzzle, error) {
	return x.list(ctx, store.Filter{
		Inserter: inserterID,
		Date:     puzzle.Day(x.s.clock.Now()),
	})
}

// UnsolvedPuzzles returns the unsolved foreign puzzles of typ, latest expiry first.
func (x *Session) UnsolvedPuzzles(ctx context.Context, typ puzzle.Type) ([]*puzzle.Puzzle, error) {
	return x.list(ctx, store.Filter{
		Scope:  puzzle.ForeignOnly,
		Type:   typ,
		Solved: store.Bool(false),
		Order:  store.OrderByExpiryDesc,
	})
}

// UninsertedSolvedPuzzles returns the solved foreign puzzles whose solution is not published yet.
func (x *Session) UninsertedSolvedPuzzles(ctx context.Context) ([]*puzzle.Puzzle, error) {
	return x.list(ctx, store.Filter{
		Scope:    puzzle.ForeignOnly,
		Solved:   store.Bool(true),
		Inserted: store.Bool(false),
	})
}

func (x *Session) list(ctx context.Context, f store.Filter) ([]*puzzle.Puzzle, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	return x.s.db.Puzzles(ctx, f)
}

// ByID returns the puzzle with id.
// Fails with CodeNotFound if there is none.
func (s *PuzzleStore) ByID(ctx context.Context, id string) (*puzzle.Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID(ctx, id)
}

// ByInserterDateIndex returns the puzzle of inserter in slot (date, index)
// among the variants in scope.
// Fails with CodeNotFound if there is none and CodeDuplicateFound if more than one matches.
func (s *PuzzleStore) ByInserterDateIndex(ctx context.Context, inserterID string, date time.Time, index int, scope puzzle.Scope) (*puzzle.Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bySlot(ctx, inserterID, date, index, scope)
}

// OwnPuzzleCount returns how many own puzzles are stored with the given solved state.
func (s *PuzzleStore) OwnPuzzleCount(ctx context.Context, solved bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.CountPuzzles(ctx, store.Filter{Scope: puzzle.OwnOnly, Solved: store.Bool(solved)})
}

// ForeignPuzzleCount returns how many foreign puzzles are stored with the given solved state.
func (s *PuzzleStore) ForeignPuzzleCount(ctx context.Context, solved bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.CountPuzzles(ctx, store.Filter{Scope: puzzle.ForeignOnly, Solved: store.Bool(solved)})
}

// SolvedCounts splits the puzzles of one variant by solved state.
type SolvedCounts struct {
	Solved   int
	Unsolved int
}

// Counts is a snapshot of how many puzzles are stored.
type Counts struct {
	Own     SolvedCounts
	Foreign SolvedCounts
}

// Counts returns all four puzzle counts taken under one lock scope.
func (s *PuzzleStore) Counts(ctx context.Context) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c Counts
	for _, q := range []struct {
		dst    *int
		scope  puzzle.Scope
		solved bool
	}{
		{&c.Own.Solved, puzzle.OwnOnly, true},
		{&c.Own.Unsolved, puzzle.OwnOnly, false},
		{&c.Foreign.Solved, puzzle.ForeignOnly, true},
		{&c.Foreign.Unsolved, puzzle.ForeignOnly, false},
	} {
		n, err := s.db.CountPuzzles(ctx, store.Filter{Scope: q.scope, Solved: store.Bool(q.solved)})
		if err != nil {
			return Counts{}, err
		}
		*q.dst = n
	}
	return c, nil
}

func (s *PuzzleStore) byID(ctx context.Context, id string) (*puzzle.Puzzle, error) {
	return s.unique(ctx, store.Filter{ID: id}, map[string]string{"id": id})
}

func (s *PuzzleStore) bySlot(ctx context.Context, inserterID string, date time.Time, index int, scope puzzle.Scope) (*puzzle.Puzzle, error) {
	return s.unique(ctx, store.Filter{
		Scope:    scope,
		Inserter: inserterID,
		Date:     date,
		Index:    store.Int(index),
	}, map[string]string{
		"inserter": inserterID,
		"date":     puzzle.FormatDay(date),
		"index":    strconv.Itoa(index),
	})
}

// unique loads the one puzzle matching f. Ids are resolved first so that a
// duplicate is reported as such even if one of the rows is damaged.
func (s *PuzzleStore) unique(ctx context.Context, f store.Filter, key map[string]string) (*puzzle.Puzzle, error) {
	ids, err := s.db.PuzzleIDs(ctx, f)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, puzzle.NewNotFoundError("no puzzle matches", key)
	case 1:
	default:
		s.log.Error("duplicate puzzles for a unique key", "key", key, "ids", ids)
		return nil, puzzle.NewDuplicateError(len(ids), key)
	}

	ps, err := s.db.Puzzles(ctx, store.Filter{ID: ids[0]})
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, puzzle.NewNotFoundError("no puzzle matches", key)
	}
	return ps[0], nil
}
