package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/introstore/internal/config"
	"github.com/roach88/introstore/internal/introduction"
	"github.com/roach88/introstore/internal/registry"
	"github.com/roach88/introstore/internal/store"
)

// env is everything a command needs: settings, logger, output and the
// opened stores wired together in lock order.
type env struct {
	cfg      config.Config
	log      *slog.Logger
	out      *OutputFormatter
	db       *store.Store
	puzzles  *introduction.PuzzleStore
	registry *registry.Registry
}

// openEnv loads the config, installs the logger, opens the database and
// runs the startup repair. Callers must call close.
func openEnv(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	// Configure logging based on config and verbose flag
	logLevel, err := cfg.Level()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	logger.Debug("opening database", "path", cfg.Database)
	db, err := store.Open(cfg.Database, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	puzzles, err := introduction.New(ctx, db, introduction.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, WrapExitError(ExitFailure, "failed to initialize puzzle store", err)
	}

	reg := registry.New(db, registry.WithLogger(logger))
	reg.AddDeletionListener(puzzles)

	return &env{
		cfg:      cfg,
		log:      logger,
		out:      &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose},
		db:       db,
		puzzles:  puzzles,
		registry: reg,
	}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.log.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, or Background when run
// outside Execute (e.g. in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
