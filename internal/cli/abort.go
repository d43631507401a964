package cli

import (
	"github.com/spf13/cobra"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/runtime"
	"github.com/smoofra/gitq/internal/tui"
)

// newAbortCmd creates the abort command
func newAbortCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Cancel the pending gitq operation and restore the previous state",
		Long: `Cancel the pending gitq operation. The branch ref is untouched until an
operation completes, so aborting restores the working tree and discards the
persisted sequencer state; partially rewritten commits are left unreferenced
for git's own garbage collection.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}

			if !engine.StateExists(ctx.Repo.GitDir()) {
				return gitqerrors.ErrNoSequencerState
			}

			if !force {
				if !tui.CanPrompt() {
					return gitqerrors.NewPreconditionError(
						"refusing to abort without confirmation (use --force)")
				}
				confirmed, err := tui.Confirm("Abort the pending gitq operation?")
				if err != nil {
					return err
				}
				if !confirmed {
					ctx.Splog.Info("Not aborted.")
					return nil
				}
			}

			return ctx.Sequencer().Abort()
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not prompt for confirmation; abort immediately.")

	return cmd
}
