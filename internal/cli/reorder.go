package cli

import (
	"github.com/spf13/cobra"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
	"github.com/smoofra/gitq/internal/queue"
	"github.com/smoofra/gitq/internal/runtime"
)

// newReorderCmd creates the reorder command
func newReorderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reorder [COMMIT]",
		Short: "Swap a commit with its successor on the current branch",
		Long: `Swap a commit with its successor on the current branch, replaying any later
commits on top. The content at the branch tip is unchanged by the swap, so at
most one conflict resolution pass is ever needed.

COMMIT defaults to HEAD^, swapping the two commits at the top of the branch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			target := "HEAD^"
			if len(args) == 1 {
				target = args[0]
			}

			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}
			return reorderAction(ctx, target)
		},
	}

	return cmd
}

// reorderAction plans and runs a single swap of target with its successor.
func reorderAction(ctx *runtime.Context, target string) error {
	branch, err := ctx.Repo.CurrentBranch()
	if err != nil {
		return gitqerrors.NewPreconditionError("%v", err)
	}

	state, err := engine.PlanReorder(ctx.Repo, branch, target)
	if err != nil {
		return err
	}

	if err := guardToolCommits(ctx, state, "reorder across"); err != nil {
		return err
	}

	return ctx.Sequencer().Start(state)
}

// guardToolCommits rejects a plan that touches a queue bookkeeping commit.
// Those commits anchor the patches to their baselines; rewriting one would
// detach the queue from the history it records.
func guardToolCommits(ctx *runtime.Context, state *engine.State, verb string) error {
	for _, step := range state.Steps {
		for _, sha := range []string{step.Pick, step.Pinned} {
			if sha == "" {
				continue
			}
			info, err := ctx.Repo.Commit(sha)
			if err != nil {
				return err
			}
			if queue.IsToolCommit(info.Message) {
				return gitqerrors.NewPreconditionError(
					"cannot %s the queue baseline (commit %s)", verb, git.Abbrev(sha))
			}
		}
	}
	return nil
}
