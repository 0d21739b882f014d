package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/introstore/internal/identity"
	"github.com/roach88/introstore/internal/puzzle"
)

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Reader runs read queries against either the database or an open transaction.
type Reader struct {
	q querier
}

// Puzzles returns every puzzle matching f, fully loaded and self-checked.
// A row that fails to load aborts the query with a CodeCorrupt error.
//
// Returns an empty slice (not nil) if nothing matches.
func (r Reader) Puzzles(ctx context.Context, f Filter) ([]*puzzle.Puzzle, error) {
	query, args := f.selectSQL()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query puzzles: %w", err)
	}
	defer rows.Close()

	puzzles := []*puzzle.Puzzle{}
	for rows.Next() {
		row, err := scanPuzzleRow(rows)
		if err != nil {
			return nil, err
		}
		p, err := row.puzzle()
		if err != nil {
			return nil, err
		}
		puzzles = append(puzzles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzles: %w", err)
	}
	return puzzles, nil
}

// CountPuzzles returns the number of puzzles matching f.
// Only the puzzle rows are counted; payloads are not loaded.
func (r Reader) CountPuzzles(ctx context.Context, f Filter) (int, error) {
	query, args := f.countSQL()
	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count puzzles: %w", err)
	}
	return n, nil
}

// PuzzleIDs returns the ids of every puzzle matching f without loading them.
func (r Reader) PuzzleIDs(ctx context.Context, f Filter) ([]string, error) {
	where, args := f.where()
	rows, err := r.q.QueryContext(ctx, "SELECT p.id FROM puzzles p"+where+f.orderBy(), args...)
	if err != nil {
		return nil, fmt.Errorf("query puzzle ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan puzzle id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzle ids: %w", err)
	}
	return ids, nil
}

// PuzzleRevision returns the stored revision of a puzzle.
// The bool is false if no puzzle with that id is stored.
func (r Reader) PuzzleRevision(ctx context.Context, id string) (int64, bool, error) {
	var rev int64
	err := r.q.QueryRowContext(ctx, `SELECT revision FROM puzzles WHERE id = ?`, id).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read revision of %s: %w", id, err)
	}
	return rev, true, nil
}

// NextFreeIndex returns the lowest index for (inserter, day) that is neither
// stored on an own puzzle nor previously allocated.
func (r Reader) NextFreeIndex(ctx context.Context, inserterID string, date time.Time) (int, error) {
	day := puzzle.FormatDay(date)

	var maxIdx sql.NullInt64
	err := r.q.QueryRowContext(ctx, `
		SELECT MAX(idx) FROM puzzles
		WHERE variant = ? AND inserter_id = ? AND date_of_insertion = ?
	`, puzzle.Own.String(), inserterID, day).Scan(&maxIdx)
	if err != nil {
		return 0, fmt.Errorf("max index: %w", err)
	}

	var watermark int64
	err = r.q.QueryRowContext(ctx, `
		SELECT next_index FROM puzzle_index_watermarks
		WHERE inserter_id = ? AND date_of_insertion = ?
	`, inserterID, day).Scan(&watermark)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read watermark: %w", err)
	}

	next := watermark
	if maxIdx.Valid && maxIdx.Int64+1 > next {
		next = maxIdx.Int64 + 1
	}
	return int(next), nil
}

// IdentityExists reports whether an identity with id is stored.
func (r Reader) IdentityExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM identities WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity exists: %w", err)
	}
	return true, nil
}

// Identity loads a stored identity.
// Returns sql.ErrNoRows (wrapped) if it does not exist.
func (r Reader) Identity(ctx context.Context, id string) (identity.Identity, error) {
	var ident identity.Identity
	var own int
	err := r.q.QueryRowContext(ctx, `
		SELECT id, nickname, own FROM identities WHERE id = ?
	`, id).Scan(&ident.ID, &ident.Nickname, &own)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("read identity %s: %w", id, err)
	}
	ident.Own = own != 0
	return ident, nil
}

// Identities returns every stored identity ordered by id.
func (r Reader) Identities(ctx context.Context) ([]identity.Identity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, nickname, own FROM identities ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	idents := []identity.Identity{}
	for rows.Next() {
		var ident identity.Identity
		var own int
		if err := rows.Scan(&ident.ID, &ident.Nickname, &own); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		ident.Own = own != 0
		idents = append(idents, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return idents, nil
}

// Damage describes a stored puzzle that cannot be loaded.
type Damage struct {
	ID     string
	Reason string
}

// Damaged scans every puzzle row and reports those that fail to load or fail
// the self-check. Rows that load cleanly are discarded immediately.
func (r Reader) Damaged(ctx context.Context) ([]Damage, error) {
	query, args := Filter{}.selectSQL()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan puzzles: %w", err)
	}
	defer rows.Close()

	damaged := []Damage{}
	for rows.Next() {
		row, err := scanPuzzleRow(rows)
		if err != nil {
			if row.id == "" {
				return nil, err
			}
			damaged = append(damaged, Damage{ID: row.id, Reason: err.Error()})
			continue
		}
		if _, err := row.puzzle(); err != nil {
			reason := err.Error()
			var perr *puzzle.Error
			if errors.As(err, &perr) {
				reason = perr.Message
			}
			damaged = append(damaged, Damage{ID: row.id, Reason: reason})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzles: %w", err)
	}
	return damaged, nil
}
