package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/introstore/internal/puzzle"
)

// Order selects the sort order of a puzzle query.
type Order int

const (
	// OrderByID sorts by id.
	OrderByID Order = iota
	// OrderByExpiryAsc sorts soonest-to-expire first.
	OrderByExpiryAsc
	// OrderByExpiryDesc sorts latest-to-expire first.
	OrderByExpiryDesc
)

// Filter describes a puzzle query. Zero-valued fields do not constrain.
type Filter struct {
	Scope    puzzle.Scope
	ID       string
	Type     puzzle.Type
	Inserter string
	Solver   string
	Date     time.Time
	Index    *int
	Solved   *bool
	Inserted *bool

	// ExpiresBefore matches puzzles whose expiry is strictly before it.
	ExpiresBefore time.Time

	Order Order
}

// Bool returns a pointer to b for use in Filter.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i for use in Filter.
func Int(i int) *int { return &i }

const puzzleColumns = `p.id, p.variant, p.type, p.inserter_id, p.date_of_insertion, p.idx,
		p.valid_until, p.was_solved, p.solver_id, p.was_inserted, p.revision,
		d.puzzle_id, d.mime_type, d.data, d.solution`

const puzzleFrom = `puzzles p LEFT JOIN puzzle_payloads d ON d.puzzle_id = p.id`

// where converts f to a parameterized WHERE clause.
// Values are always bound, never interpolated.
func (f Filter) where() (string, []any) {
	var preds []string
	var args []any

	add := func(pred string, arg any) {
		preds = append(preds, pred)
		args = append(args, arg)
	}

	switch f.Scope {
	case puzzle.OwnOnly:
		add("p.variant = ?", puzzle.Own.String())
	case puzzle.ForeignOnly:
		add("p.variant = ?", puzzle.Foreign.String())
	}
	if f.ID != "" {
		add("p.id = ?", f.ID)
	}
	if f.Type != "" {
		add("p.type = ?", string(f.Type))
	}
	if f.Inserter != "" {
		add("p.inserter_id = ?", f.Inserter)
	}
	if f.Solver != "" {
		add("p.solver_id = ?", f.Solver)
	}
	if !f.Date.IsZero() {
		add("p.date_of_insertion = ?", puzzle.FormatDay(f.Date))
	}
	if f.Index != nil {
		add("p.idx = ?", *f.Index)
	}
	if f.Solved != nil {
		add("p.was_solved = ?", boolToInt(*f.Solved))
	}
	if f.Inserted != nil {
		add("p.was_inserted = ?", boolToInt(*f.Inserted))
	}
	if !f.ExpiresBefore.IsZero() {
		add("p.valid_until < ?", f.ExpiresBefore.UnixMilli())
	}

	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// orderBy always ends in the id so that results are deterministic.
func (f Filter) orderBy() string {
	switch f.Order {
	case OrderByExpiryAsc:
		return " ORDER BY p.valid_until ASC, p.id COLLATE BINARY ASC"
	case OrderByExpiryDesc:
		return " ORDER BY p.valid_until DESC, p.id COLLATE BINARY ASC"
	default:
		return " ORDER BY p.id COLLATE BINARY ASC"
	}
}

// selectSQL builds the full SELECT for f.
func (f Filter) selectSQL() (string, []any) {
	where, args := f.where()
	return fmt.Sprintf("SELECT %s FROM %s%s%s", puzzleColumns, puzzleFrom, where, f.orderBy()), args
}

// countSQL builds a COUNT(*) for f.
func (f Filter) countSQL() (string, []any) {
	where, args := f.where()
	return fmt.Sprintf("SELECT COUNT(*) FROM puzzles p%s", where), args
}
