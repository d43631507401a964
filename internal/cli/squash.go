package cli

import (
	"github.com/spf13/cobra"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/runtime"
)

// newSquashCmd creates the squash command
func newSquashCmd() *cobra.Command {
	var fixup bool

	cmd := &cobra.Command{
		Use:   "squash [COMMIT]",
		Short: "Fold a commit into its parent, then replay its descendants",
		Long: `Fold a commit into its parent, producing a single commit with the combined
changes, and replay any later commits on top. The folded commit keeps the
parent's authorship; its message is appended to the parent's unless --fixup
discards it.

The fold reuses the commit's tree as it already is, so it never conflicts.

COMMIT defaults to HEAD, squashing the branch tip into its parent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			target := "HEAD"
			if len(args) == 1 {
				target = args[0]
			}

			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}
			return squashAction(ctx, target, fixup)
		},
	}

	cmd.Flags().BoolVarP(&fixup, "fixup", "f", false, "discard the squashed commit's message")

	return cmd
}

// squashAction plans and runs a fold of target into its parent.
func squashAction(ctx *runtime.Context, target string, fixup bool) error {
	branch, err := ctx.Repo.CurrentBranch()
	if err != nil {
		return gitqerrors.NewPreconditionError("%v", err)
	}

	state, err := engine.PlanSquash(ctx.Repo, branch, target, fixup)
	if err != nil {
		return err
	}
	if err := guardToolCommits(ctx, state, "squash"); err != nil {
		return err
	}

	return ctx.Sequencer().Start(state)
}
