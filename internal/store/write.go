package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/introstore/internal/identity"
	"github.com/roach88/introstore/internal/puzzle"
)

// Tx is an open write transaction. It is only valid inside the function
// passed to Store.Update. Nothing written through it is visible to other
// readers until Update commits.
type Tx struct {
	Reader
	tx *sql.Tx
}

// InsertPuzzle writes a new puzzle and its payload at the given revision.
func (t *Tx) InsertPuzzle(ctx context.Context, s puzzle.State, revision int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO puzzles
		(id, variant, type, inserter_id, date_of_insertion, idx, valid_until,
		 was_solved, solver_id, was_inserted, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID,
		s.Variant.String(),
		string(s.Type),
		s.Inserter,
		puzzle.FormatDay(s.Date),
		s.Index,
		s.ValidUntil.UnixMilli(),
		boolToInt(s.Solved),
		nullableString(s.Solver),
		boolToInt(s.Inserted),
		revision,
	)
	if err != nil {
		return fmt.Errorf("insert puzzle %s: %w", s.ID, err)
	}
	return t.writePayload(ctx, s)
}

// UpdatePuzzle overwrites the lifecycle state and payload of a stored puzzle
// and moves it to the given revision. The slot columns are immutable and
// are not rewritten.
func (t *Tx) UpdatePuzzle(ctx context.Context, s puzzle.State, revision int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE puzzles
		SET valid_until = ?, was_solved = ?, solver_id = ?, was_inserted = ?, revision = ?
		WHERE id = ?
	`,
		s.ValidUntil.UnixMilli(),
		boolToInt(s.Solved),
		nullableString(s.Solver),
		boolToInt(s.Inserted),
		revision,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("update puzzle %s: %w", s.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update puzzle %s: %w", s.ID, sql.ErrNoRows)
	}
	return t.writePayload(ctx, s)
}

func (t *Tx) writePayload(ctx context.Context, s puzzle.State) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO puzzle_payloads (puzzle_id, mime_type, data, solution)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(puzzle_id) DO UPDATE SET
			mime_type = excluded.mime_type,
			data = excluded.data,
			solution = excluded.solution
	`, s.ID, s.MimeType, s.Data, nullableString(s.Solution))
	if err != nil {
		return fmt.Errorf("write payload of %s: %w", s.ID, err)
	}
	return nil
}

// DeletePuzzle removes a puzzle and its payload. The payload goes first so
// the foreign key holds at every statement. Deleting a missing id is a no-op.
func (t *Tx) DeletePuzzle(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM puzzle_payloads WHERE puzzle_id = ?`, id); err != nil {
		return fmt.Errorf("delete payload of %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM puzzles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete puzzle %s: %w", id, err)
	}
	return nil
}

// RaiseWatermark records that every index below next has been handed out for
// (inserter, day). The watermark never moves down.
func (t *Tx) RaiseWatermark(ctx context.Context, inserterID string, date time.Time, next int) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO puzzle_index_watermarks (inserter_id, date_of_insertion, next_index)
		VALUES (?, ?, ?)
		ON CONFLICT(inserter_id, date_of_insertion) DO UPDATE SET
			next_index = MAX(next_index, excluded.next_index)
	`, inserterID, puzzle.FormatDay(date), next)
	if err != nil {
		return fmt.Errorf("raise watermark: %w", err)
	}
	return nil
}

// DeleteWatermarks removes every watermark of an inserter.
func (t *Tx) DeleteWatermarks(ctx context.Context, inserterID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM puzzle_index_watermarks WHERE inserter_id = ?`, inserterID); err != nil {
		return fmt.Errorf("delete watermarks of %s: %w", inserterID, err)
	}
	return nil
}

// PutIdentity inserts an identity or updates its nickname and own flag.
func (t *Tx) PutIdentity(ctx context.Context, ident identity.Identity, now time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO identities (id, nickname, own, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nickname = excluded.nickname,
			own = excluded.own
	`, ident.ID, ident.Nickname, boolToInt(ident.Own), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("put identity %s: %w", ident.ID, err)
	}
	return nil
}

// DeleteIdentity removes an identity row and reports whether it existed.
// Puzzles referencing it must be gone first.
func (t *Tx) DeleteIdentity(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete identity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete identity %s: %w", id, err)
	}
	return n > 0, nil
}
