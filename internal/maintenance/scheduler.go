// Package maintenance runs the periodic eviction passes of the puzzle store.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Evictor is the part of the puzzle store the scheduler drives.
// Implemented by *introduction.PuzzleStore.
type Evictor interface {
	DeleteExpiredPuzzles(ctx context.Context) (int, error)
	DeleteOldestUnsolvedPuzzles(ctx context.Context, poolSize int) (int, error)
}

// Defaults for a Scheduler.
const (
	DefaultInterval = 10 * time.Minute
	DefaultPoolSize = 100
)

// Result reports what one pass removed.
type Result struct {
	Expired int `json:"expired"`
	Evicted int `json:"evicted"`
}

func (r Result) String() string {
	return fmt.Sprintf("Deleted %d expired and %d evicted puzzle(s)", r.Expired, r.Evicted)
}

// Scheduler periodically sweeps expired puzzles and trims the pool of
// unsolved foreign puzzles.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine
//   - Tick(): safe from any goroutine; the store serializes the work
type Scheduler struct {
	evictor  Evictor
	interval time.Duration
	poolSize int
	log      *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the time between passes.
//
// Default: 10 minutes (DefaultInterval)
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithPoolSize sets how many unsolved foreign puzzles a pass keeps.
//
// Default: 100 (DefaultPoolSize)
func WithPoolSize(n int) Option {
	return func(s *Scheduler) {
		s.poolSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// New creates a scheduler for e.
func New(e Evictor, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		evictor:  e,
		interval: DefaultInterval,
		poolSize: DefaultPoolSize,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", s.interval)
	}
	if s.poolSize < 0 {
		return nil, fmt.Errorf("pool size must not be negative, got %d", s.poolSize)
	}
	return s, nil
}

// Tick runs one pass: the expiry sweep, then the pool trim. The trim runs
// even if the sweep failed; both errors are returned joined.
func (s *Scheduler) Tick(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	n, err := s.evictor.DeleteExpiredPuzzles(ctx)
	res.Expired = n
	if err != nil {
		errs = append(errs, fmt.Errorf("expiry sweep: %w", err))
	}

	n, err = s.evictor.DeleteOldestUnsolvedPuzzles(ctx, s.poolSize)
	res.Evicted = n
	if err != nil {
		errs = append(errs, fmt.Errorf("pool trim: %w", err))
	}

	return res, errors.Join(errs...)
}

// Run ticks every interval until ctx is cancelled. The first pass runs
// immediately. Failed passes are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("maintenance starting", "interval", s.interval, "pool_size", s.poolSize)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.pass(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("maintenance stopping: context cancelled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	res, err := s.Tick(ctx)
	if err != nil {
		s.log.Error("maintenance pass failed", "error", err, "expired", res.Expired, "evicted", res.Evicted)
		return
	}
	s.log.Debug("maintenance pass done", "expired", res.Expired, "evicted", res.Evicted)
}
