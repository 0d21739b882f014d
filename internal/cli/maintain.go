package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/introstore/internal/maintenance"
)

// MaintainOptions holds flags for the maintain command.
type MaintainOptions struct {
	*RootOptions
	Interval time.Duration
	PoolSize int
	Once     bool
}

// NewMaintainCommand creates the maintain command.
func NewMaintainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MaintainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run periodic expiry sweeps and pool trims",
		Long: `Run the maintenance scheduler until interrupted.

Each pass deletes expired puzzles, then trims the unsolved foreign puzzles
to the pool size. The first pass runs immediately.

Example:
  introstore maintain --interval 5m --pool-size 200
  introstore maintain --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaintain(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between passes (default from config)")
	cmd.Flags().IntVar(&opts.PoolSize, "pool-size", 0, "unsolved foreign puzzles to keep (default from config)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single pass and exit")

	return cmd
}

func runMaintain(cmd *cobra.Command, opts *MaintainOptions) error {
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	e, err := openEnv(ctx, cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	interval := e.cfg.SweepInterval
	if cmd.Flags().Changed("interval") {
		interval = opts.Interval
	}
	poolSize := e.cfg.PoolSize
	if cmd.Flags().Changed("pool-size") {
		poolSize = opts.PoolSize
	}

	sched, err := maintenance.New(e.puzzles,
		maintenance.WithInterval(interval),
		maintenance.WithPoolSize(poolSize),
		maintenance.WithLogger(e.log),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid maintenance settings", err)
	}

	if opts.Once {
		res, err := sched.Tick(ctx)
		if err != nil {
			return e.out.Failure("maintenance pass failed", err)
		}
		return e.out.Success(res)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			e.log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-gctx.Done():
			// Parent context cancelled (e.g., from test)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Maintenance running every %s, pool size %d. Press Ctrl-C to stop.\n", interval, poolSize)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "maintenance error", err)
	}

	e.log.Info("maintenance stopped gracefully")
	return nil
}
