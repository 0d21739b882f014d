// Package puzzle defines introduction puzzles: time-boxed challenges that an
// identity publishes so that unknown identities can announce themselves by
// solving them.
//
// A puzzle is either Own (created and published by one of our identities) or
// Foreign (downloaded from a remote identity). Both variants share one struct;
// the Variant field is the tag. Lifecycle state (solved, solver, inserted) is
// unexported and only moves forward through Solve and MarkInserted.
package puzzle

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/introstore/internal/identity"
)

// Type is the kind of challenge a puzzle carries.
type Type string

const (
	// TypeCaptcha is an image captcha solved by a human.
	TypeCaptcha Type = "captcha"
)

// Valid reports whether t is a known puzzle type.
func (t Type) Valid() bool {
	return t == TypeCaptcha
}

// ParseType converts a persisted type name.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown puzzle type %q", s)
	}
	return t, nil
}

// Variant tags a puzzle as own or foreign.
type Variant int

const (
	// Own puzzles are created locally by an own identity.
	Own Variant = iota + 1
	// Foreign puzzles are downloaded from a remote identity.
	Foreign
)

// String returns the persisted tag.
func (v Variant) String() string {
	switch v {
	case Own:
		return "own"
	case Foreign:
		return "foreign"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant converts a persisted tag.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "own":
		return Own, nil
	case "foreign":
		return Foreign, nil
	default:
		return 0, fmt.Errorf("unknown puzzle variant %q", s)
	}
}

// Scope selects which variants a query considers.
type Scope int

const (
	// AnyVariant matches own and foreign puzzles.
	AnyVariant Scope = iota
	// OwnOnly matches own puzzles.
	OwnOnly
	// ForeignOnly matches foreign puzzles.
	ForeignOnly
)

// Slot is the (type, day, index) position of a puzzle within its inserter's index space.
type Slot struct {
	Type  Type
	Date  time.Time
	Index int
}

// Payload is the puzzle body handed to solvers.
type Payload struct {
	MimeType string
	Data     []byte
}

// Puzzle is an own or foreign introduction puzzle.
type Puzzle struct {
	ID         string
	Type       Type
	Variant    Variant
	Inserter   string
	Date       time.Time
	Index      int
	ValidUntil time.Time
	MimeType   string
	Data       []byte

	solution string
	solved   bool
	solver   string
	inserted bool
	revision int64
}

// NewOwn creates an unsolved, unpublished puzzle of an own identity.
// solution is the expected answer that downloaded solutions are checked against.
func NewOwn(inserter identity.Identity, slot Slot, payload Payload, solution string, validUntil time.Time) (*Puzzle, error) {
	if !inserter.Own {
		return nil, &Error{Code: CodeInvalidPuzzle, Message: fmt.Sprintf("inserter %s is not an own identity", inserter.ID)}
	}
	p := newPuzzle(Own, inserter, slot, payload, validUntil)
	p.solution = solution
	if err := p.CheckConsistency(); err != nil {
		return nil, &Error{Code: CodeInvalidPuzzle, Message: err.Error(), PuzzleID: p.ID}
	}
	return p, nil
}

// NewForeign creates an unsolved puzzle downloaded from inserter.
func NewForeign(inserter identity.Identity, slot Slot, payload Payload, validUntil time.Time) (*Puzzle, error) {
	if inserter.Own {
		return nil, &Error{Code: CodeInvalidPuzzle, Message: fmt.Sprintf("inserter %s is an own identity", inserter.ID)}
	}
	p := newPuzzle(Foreign, inserter, slot, payload, validUntil)
	if err := p.CheckConsistency(); err != nil {
		return nil, &Error{Code: CodeInvalidPuzzle, Message: err.Error(), PuzzleID: p.ID}
	}
	return p, nil
}

func newPuzzle(v Variant, inserter identity.Identity, slot Slot, payload Payload, validUntil time.Time) *Puzzle {
	date := Day(slot.Date)
	return &Puzzle{
		ID:         DeriveID(inserter.ID, slot.Type, date, slot.Index),
		Type:       slot.Type,
		Variant:    v,
		Inserter:   inserter.ID,
		Date:       date,
		Index:      slot.Index,
		ValidUntil: validUntil.UTC().Truncate(time.Millisecond),
		MimeType:   payload.MimeType,
		Data:       payload.Data,
	}
}

// IsOwn reports whether p is an own puzzle.
func (p *Puzzle) IsOwn() bool { return p.Variant == Own }

// Solution returns the expected answer (own) or the entered answer (foreign, once solved).
func (p *Puzzle) Solution() string { return p.solution }

// WasSolved reports whether the puzzle has been solved.
func (p *Puzzle) WasSolved() bool { return p.solved }

// Solver returns the ID of the identity that solved the puzzle, or "".
func (p *Puzzle) Solver() string { return p.solver }

// WasInserted reports whether the puzzle (own) or its solution (foreign) was published.
func (p *Puzzle) WasInserted() bool { return p.inserted }

// Revision is the stored revision this instance reflects; 0 if never stored.
func (p *Puzzle) Revision() int64 { return p.revision }

// Expired reports whether the puzzle is no longer valid at now.
func (p *Puzzle) Expired(now time.Time) bool { return p.ValidUntil.Before(now) }

// Solve records that solverID solved the puzzle.
// For foreign puzzles solution is the answer entered locally; own puzzles keep
// their expected answer. A puzzle can be solved only once.
func (p *Puzzle) Solve(solverID, solution string) error {
	if p.solved {
		return &Error{Code: CodeInvalidState, Message: "puzzle is already solved", PuzzleID: p.ID}
	}
	if solverID == "" {
		return &Error{Code: CodeInvalidState, Message: "solver must be set", PuzzleID: p.ID}
	}
	if p.Variant == Foreign {
		if solution == "" {
			return &Error{Code: CodeInvalidState, Message: "solution must be set", PuzzleID: p.ID}
		}
		p.solution = solution
	}
	p.solved = true
	p.solver = solverID
	return nil
}

// MarkInserted records a successful publication. Foreign puzzles publish
// their solution, so they must be solved first.
func (p *Puzzle) MarkInserted() error {
	if p.Variant == Foreign && !p.solved {
		return &Error{Code: CodeInvalidState, Message: "cannot publish the solution of an unsolved puzzle", PuzzleID: p.ID}
	}
	p.inserted = true
	return nil
}

// MarkStored sets the revision after the store committed p.
func (p *Puzzle) MarkStored(revision int64) { p.revision = revision }

// CheckConsistency validates every field of p.
func (p *Puzzle) CheckConsistency() error {
	switch {
	case !p.Type.Valid():
		return fmt.Errorf("unknown type %q", p.Type)
	case p.Variant != Own && p.Variant != Foreign:
		return fmt.Errorf("invalid variant tag %s", p.Variant)
	case p.Inserter == "":
		return errors.New("inserter is not set")
	case p.Index < 0:
		return fmt.Errorf("negative index %d", p.Index)
	case p.Date.IsZero() || !p.Date.Equal(Day(p.Date)):
		return fmt.Errorf("date %s is not a calendar day", p.Date)
	case p.ValidUntil.IsZero():
		return errors.New("expiry is not set")
	case p.ID != DeriveID(p.Inserter, p.Type, p.Date, p.Index):
		return fmt.Errorf("id does not match slot %s/%s/%d", p.Inserter, FormatDay(p.Date), p.Index)
	case p.MimeType == "" || len(p.Data) == 0:
		return errors.New("payload is missing")
	case p.solved != (p.solver != ""):
		return errors.New("solver must be set exactly when solved")
	case p.Variant == Own && p.solution == "":
		return errors.New("own puzzle has no expected solution")
	case p.Variant == Foreign && p.solved && p.solution == "":
		return errors.New("solved foreign puzzle has no solution")
	case p.Variant == Foreign && p.inserted && !p.solved:
		return errors.New("solution published for an unsolved puzzle")
	}
	return nil
}

// State is the complete persisted form of a puzzle.
type State struct {
	ID         string
	Type       Type
	Variant    Variant
	Inserter   string
	Date       time.Time
	Index      int
	ValidUntil time.Time
	MimeType   string
	Data       []byte
	Solution   string
	Solved     bool
	Solver     string
	Inserted   bool
	Revision   int64
}

// State returns the persisted form of p.
func (p *Puzzle) State() State {
	return State{
		ID:         p.ID,
		Type:       p.Type,
		Variant:    p.Variant,
		Inserter:   p.Inserter,
		Date:       p.Date,
		Index:      p.Index,
		ValidUntil: p.ValidUntil,
		MimeType:   p.MimeType,
		Data:       p.Data,
		Solution:   p.solution,
		Solved:     p.solved,
		Solver:     p.solver,
		Inserted:   p.inserted,
		Revision:   p.revision,
	}
}

// Restore rebuilds a puzzle from persisted state.
// Returns a CodeCorrupt error if the state fails the self-check.
func Restore(s State) (*Puzzle, error) {
	p := &Puzzle{
		ID:         s.ID,
		Type:       s.Type,
		Variant:    s.Variant,
		Inserter:   s.Inserter,
		Date:       s.Date,
		Index:      s.Index,
		ValidUntil: s.ValidUntil,
		MimeType:   s.MimeType,
		Data:       s.Data,
		solution:   s.Solution,
		solved:     s.Solved,
		solver:     s.Solver,
		inserted:   s.Inserted,
		revision:   s.Revision,
	}
	if err := p.CheckConsistency(); err != nil {
		return nil, NewCorruptError(s.ID, err.Error())
	}
	return p, nil
}
