package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/introstore/internal/puzzle"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nullableString stores "" as NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// puzzleRow holds one row of puzzleColumns exactly as stored.
// Numeric lifecycle columns are scanned as text so that a value of the wrong
// type surfaces as corruption in state rather than as a scan error.
type puzzleRow struct {
	id         string
	variant    sql.NullString
	typ        sql.NullString
	inserter   sql.NullString
	date       sql.NullString
	index      sql.NullString
	validUntil sql.NullString
	solved     sql.NullString
	solver     sql.NullString
	inserted   sql.NullString
	revision   int64
	hasPayload bool
	mimeType   sql.NullString
	data       []byte
	solution   sql.NullString
}

// scanPuzzleRow scans one row. On a scan error the returned row still
// carries the id when it was read, so callers can report the row.
func scanPuzzleRow(sc scanner) (puzzleRow, error) {
	var r puzzleRow
	var payloadID sql.NullString
	if err := sc.Scan(
		&r.id, &r.variant, &r.typ, &r.inserter, &r.date, &r.index,
		&r.validUntil, &r.solved, &r.solver, &r.inserted, &r.revision,
		&payloadID, &r.mimeType, &r.data, &r.solution,
	); err != nil {
		return puzzleRow{id: r.id}, fmt.Errorf("scan puzzle: %w", err)
	}
	r.hasPayload = payloadID.Valid
	return r, nil
}

func parseIntColumn(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// parseBoolColumn accepts the 0/1 the store writes.
func parseBoolColumn(s string) (bool, bool) {
	switch s {
	case "0", "false":
		return false, true
	case "1", "true":
		return true, true
	}
	return false, false
}

// state converts the row into puzzle state.
// A NULL or mistyped value in any required column is reported as corruption.
func (r puzzleRow) state() (puzzle.State, error) {
	missing := func(col string) error {
		return puzzle.NewCorruptError(r.id, fmt.Sprintf("column %s is unreadable", col))
	}

	index, indexOK := parseIntColumn(r.index.String)
	validUntil, validUntilOK := parseIntColumn(r.validUntil.String)
	solved, solvedOK := parseBoolColumn(r.solved.String)
	inserted, insertedOK := parseBoolColumn(r.inserted.String)

	switch {
	case !r.variant.Valid:
		return puzzle.State{}, missing("variant")
	case !r.typ.Valid:
		return puzzle.State{}, missing("type")
	case !r.inserter.Valid:
		return puzzle.State{}, missing("inserter_id")
	case !r.date.Valid:
		return puzzle.State{}, missing("date_of_insertion")
	case !r.index.Valid || !indexOK:
		return puzzle.State{}, missing("idx")
	case !r.validUntil.Valid || !validUntilOK:
		return puzzle.State{}, missing("valid_until")
	case !r.solved.Valid || !solvedOK:
		return puzzle.State{}, missing("was_solved")
	case !r.inserted.Valid || !insertedOK:
		return puzzle.State{}, missing("was_inserted")
	case !r.hasPayload:
		return puzzle.State{}, puzzle.NewCorruptError(r.id, "payload record is missing")
	}

	variant, err := puzzle.ParseVariant(r.variant.String)
	if err != nil {
		return puzzle.State{}, puzzle.NewCorruptError(r.id, err.Error())
	}
	typ, err := puzzle.ParseType(r.typ.String)
	if err != nil {
		return puzzle.State{}, puzzle.NewCorruptError(r.id, err.Error())
	}
	date, err := puzzle.ParseDay(r.date.String)
	if err != nil {
		return puzzle.State{}, puzzle.NewCorruptError(r.id, err.Error())
	}

	return puzzle.State{
		ID:         r.id,
		Type:       typ,
		Variant:    variant,
		Inserter:   r.inserter.String,
		Date:       date,
		Index:      int(index),
		ValidUntil: millisToTime(validUntil),
		MimeType:   r.mimeType.String,
		Data:       r.data,
		Solution:   r.solution.String,
		Solved:     solved,
		Solver:     r.solver.String,
		Inserted:   inserted,
		Revision:   r.revision,
	}, nil
}

// puzzle converts the row into a fully checked puzzle.
func (r puzzleRow) puzzle() (*puzzle.Puzzle, error) {
	st, err := r.state()
	if err != nil {
		return nil, err
	}
	return puzzle.Restore(st)
}
