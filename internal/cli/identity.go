package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/introstore/internal/identity"
)

// IdentityView is one identity in command output.
type IdentityView struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Own      bool   `json:"own"`
}

func (v IdentityView) String() string {
	kind := "remote"
	if v.Own {
		kind = "own"
	}
	return fmt.Sprintf("%s@%s (%s)", v.Nickname, v.ID, kind)
}

// IdentityList is the output of identity list.
type IdentityList []IdentityView

func (l IdentityList) String() string {
	if len(l) == 0 {
		return "No identities"
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// NewIdentityCommand creates the identity command group.
func NewIdentityCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the identities puzzles refer to",
	}

	cmd.AddCommand(newIdentityAddCommand(opts))
	cmd.AddCommand(newIdentityDeleteCommand(opts))
	cmd.AddCommand(newIdentityListCommand(opts))

	return cmd
}

func newIdentityAddCommand(opts *RootOptions) *cobra.Command {
	var own bool

	cmd := &cobra.Command{
		Use:   "add <id> <nickname>",
		Short: "Store an identity, or rename an existing one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			ident, err := identity.New(args[0], args[1], own)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid identity", err)
			}

			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.registry.Put(ctx, ident); err != nil {
				return e.out.Failure("failed to store identity", err)
			}
			return e.out.Success(IdentityView{ID: ident.ID, Nickname: ident.Nickname, Own: ident.Own})
		},
	}

	cmd.Flags().BoolVar(&own, "own", false, "identity is locally controlled and publishes puzzles")

	return cmd
}

// DeleteIdentityResult is the output of identity delete.
type DeleteIdentityResult struct {
	Deleted string `json:"deleted"`
}

func (r DeleteIdentityResult) String() string {
	return fmt.Sprintf("Deleted identity %s and its puzzles", r.Deleted)
}

func newIdentityDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an identity and every puzzle it inserted or solved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.registry.Delete(ctx, args[0]); err != nil {
				return e.out.Failure("failed to delete identity", err)
			}
			return e.out.Success(DeleteIdentityResult{Deleted: args[0]})
		},
	}
}

func newIdentityListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			idents, err := e.registry.All(ctx)
			if err != nil {
				return e.out.Failure("failed to list identities", err)
			}
			list := make(IdentityList, len(idents))
			for i, ident := range idents {
				list[i] = IdentityView{ID: ident.ID, Nickname: ident.Nickname, Own: ident.Own}
			}
			return e.out.Success(list)
		},
	}
}
