package cli

import (
	"github.com/spf13/cobra"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/runtime"
)

// newEditCmd creates the edit command
func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [COMMIT]",
		Short: "Stop at a commit for amending, then replay its descendants",
		Long: `Check out a commit on the current branch with a detached HEAD so it can be
amended, then replay the later commits on top of the amended version.

After amending (for example with 'git commit --amend'), run
'gitq queue continue' to replay the descendants, or 'gitq queue abort' to
restore the previous state.

COMMIT defaults to HEAD.`,
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
			return editAction(ctx, target)
		},
	}

	return cmd
}

// editAction plans and starts an amend stop at target.
func editAction(ctx *runtime.Context, target string) error {
	branch, err := ctx.Repo.CurrentBranch()
	if err != nil {
		return gitqerrors.NewPreconditionError("%v", err)
	}

	state, err := engine.PlanEdit(ctx.Repo, branch, target)
	if err != nil {
		return err
	}
	if err := guardToolCommits(ctx, state, "edit"); err != nil {
		return err
	}

	return ctx.Sequencer().Start(state)
}
