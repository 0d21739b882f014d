package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/introstore/internal/puzzle"
)

// RepairResult is the output of the repair command.
type RepairResult struct {
	Removed int `json:"removed"`
}

func (r RepairResult) String() string {
	return fmt.Sprintf("Removed %d corrupt puzzle(s)", r.Removed)
}

// NewRepairCommand creates the repair command.
func NewRepairCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Delete stored puzzles that fail their self-check",
		Long: `Open the store and run the startup repair.

Every stored puzzle is loaded and checked. Puzzles with unreadable columns,
a missing payload or inconsistent state are deleted one at a time.

Example:
  introstore repair --db ./introstore.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(commandContext(cmd), cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()
			return e.out.Success(RepairResult{Removed: e.puzzles.Repaired()})
		},
	}
}

// Counts splits puzzles of one variant by solved state.
type Counts struct {
	Solved   int `json:"solved"`
	Unsolved int `json:"unsolved"`
}

// StatsResult is the output of the stats command.
type StatsResult struct {
	Own           Counts `json:"own"`
	Foreign       Counts `json:"foreign"`
	Identities    int    `json:"identities"`
	Repaired      int    `json:"repaired"`
	SchemaVersion uint   `json:"schema_version"`
}

func (s StatsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "own:        %d unsolved, %d solved\n", s.Own.Unsolved, s.Own.Solved)
	fmt.Fprintf(&b, "foreign:    %d unsolved, %d solved\n", s.Foreign.Unsolved, s.Foreign.Solved)
	fmt.Fprintf(&b, "identities: %d\n", s.Identities)
	fmt.Fprintf(&b, "repaired:   %d\n", s.Repaired)
	fmt.Fprintf(&b, "schema:     v%d", s.SchemaVersion)
	return b.String()
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show puzzle counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			counts, err := e.puzzles.Counts(ctx)
			if err != nil {
				return e.out.Failure("failed to count puzzles", err)
			}
			res := StatsResult{
				Own:     Counts{Solved: counts.Own.Solved, Unsolved: counts.Own.Unsolved},
				Foreign: Counts{Solved: counts.Foreign.Solved, Unsolved: counts.Foreign.Unsolved},
			}

			idents, err := e.registry.All(ctx)
			if err != nil {
				return e.out.Failure("failed to list identities", err)
			}
			res.Identities = len(idents)
			res.Repaired = e.puzzles.Repaired()
			if res.SchemaVersion, _, err = e.db.SchemaVersion(); err != nil {
				return e.out.Failure("failed to read schema version", err)
			}

			return e.out.Success(res)
		},
	}
}

// SweepResult is the output of the sweep command.
type SweepResult struct {
	Expired int `json:"expired"`
}

func (r SweepResult) String() string {
	return fmt.Sprintf("Deleted %d expired puzzle(s)", r.Expired)
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired puzzles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.puzzles.DeleteExpiredPuzzles(ctx)
			if err != nil {
				return e.out.Failure("expiry sweep failed", err)
			}
			return e.out.Success(SweepResult{Expired: n})
		},
	}
}

// TrimResult is the output of the trim command.
type TrimResult struct {
	Evicted  int `json:"evicted"`
	PoolSize int `json:"pool_size"`
}

func (r TrimResult) String() string {
	return fmt.Sprintf("Deleted %d unsolved foreign puzzle(s), pool size %d", r.Evicted, r.PoolSize)
}

// NewTrimCommand creates the trim command.
func NewTrimCommand(opts *RootOptions) *cobra.Command {
	var poolSize int

	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Trim unsolved foreign puzzles to the pool size",
		Long: `Delete the soonest-to-expire unsolved foreign puzzles until at most
pool-size of them remain. Own puzzles and solved puzzles are never trimmed.

Example:
  introstore trim --pool-size 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			size := e.cfg.PoolSize
			if cmd.Flags().Changed("pool-size") {
				size = poolSize
			}
			if size < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("pool size must not be negative, got %d", size))
			}

			n, err := e.puzzles.DeleteOldestUnsolvedPuzzles(ctx, size)
			if err != nil {
				return e.out.Failure("pool trim failed", err)
			}
			return e.out.Success(TrimResult{Evicted: n, PoolSize: size})
		},
	}

	cmd.Flags().IntVar(&poolSize, "pool-size", 0, "unsolved foreign puzzles to keep (default from config)")

	return cmd
}

// PuzzleView is the output of the show command.
type PuzzleView struct {
	ID         string    `json:"id"`
	Variant    string    `json:"variant"`
	Type       string    `json:"type"`
	Inserter   string    `json:"inserter"`
	Date       string    `json:"date"`
	Index      int       `json:"index"`
	ValidUntil time.Time `json:"valid_until"`
	Expired    bool      `json:"expired"`
	MimeType   string    `json:"mime_type"`
	Size       int       `json:"size"`
	Solved     bool      `json:"solved"`
	Solver     string    `json:"solver,omitempty"`
	Inserted   bool      `json:"inserted"`
	Revision   int64     `json:"revision"`
}

func newPuzzleView(p *puzzle.Puzzle, now time.Time) PuzzleView {
	return PuzzleView{
		ID:         p.ID,
		Variant:    p.Variant.String(),
		Type:       string(p.Type),
		Inserter:   p.Inserter,
		Date:       puzzle.FormatDay(p.Date),
		Index:      p.Index,
		ValidUntil: p.ValidUntil,
		Expired:    p.Expired(now),
		MimeType:   p.MimeType,
		Size:       len(p.Data),
		Solved:     p.WasSolved(),
		Solver:     p.Solver(),
		Inserted:   p.WasInserted(),
		Revision:   p.Revision(),
	}
}

func (v PuzzleView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id:          %s\n", v.ID)
	fmt.Fprintf(&b, "variant:     %s\n", v.Variant)
	fmt.Fprintf(&b, "type:        %s\n", v.Type)
	fmt.Fprintf(&b, "slot:        %s / %s / %d\n", v.Inserter, v.Date, v.Index)
	if v.Expired {
		fmt.Fprintf(&b, "valid until: %s (expired)\n", v.ValidUntil.Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "valid until: %s\n", v.ValidUntil.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "payload:     %s, %d bytes\n", v.MimeType, v.Size)
	if v.Solved {
		fmt.Fprintf(&b, "solved by:   %s\n", v.Solver)
	} else {
		fmt.Fprintf(&b, "solved:      no\n")
	}
	fmt.Fprintf(&b, "inserted:    %t\n", v.Inserted)
	fmt.Fprintf(&b, "revision:    %d", v.Revision)
	return b.String()
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <puzzle-id>",
		Short: "Show one stored puzzle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			p, err := e.puzzles.ByID(ctx, args[0])
			if err != nil {
				return e.out.Failure("lookup failed", err)
			}
			return e.out.Success(newPuzzleView(p, time.Now()))
		},
	}
}
