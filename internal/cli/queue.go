package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
	"github.com/smoofra/gitq/internal/queue"
	"github.com/smoofra/gitq/internal/runtime"
	"github.com/smoofra/gitq/internal/tui"
)

// newQueueCmd creates the queue command and its subcommands
func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the patch queue on the current branch",
	}

	cmd.AddCommand(newQueueInitCmd())
	cmd.AddCommand(newQueueStatusCmd())
	cmd.AddCommand(newQueueSyncCmd())
	cmd.AddCommand(newQueueTidyCmd())
	cmd.AddCommand(newContinueCmd())
	cmd.AddCommand(newAbortCmd())

	return cmd
}

// newQueueInitCmd creates the queue init command
func newQueueInitCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "init BASELINE...",
		Short: "Initialize a patch queue on the current branch",
		Long: `Initialize a patch queue on the current branch against one or more baseline
revisions. The baselines are recorded in a .git-queue file committed on the
branch, so the queue travels with ordinary push/pull/clone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}
			state, err := queue.Init(ctx.Repo, args, title)
			if err != nil {
				return err
			}
			ctx.Splog.Info("Initialized queue with %d baseline(s).", len(args))
			if state == nil {
				return nil
			}
			return ctx.Sequencer().Start(state)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title recorded in the queue metadata")

	return cmd
}

// newQueueStatusCmd creates the queue status command
func newQueueStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the queue's baselines, patches, and any pending operation",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}
			return statusAction(ctx)
		},
	}
}

func statusAction(ctx *runtime.Context) error {
	splog := ctx.Splog

	if state, err := engine.LoadState(ctx.Repo.GitDir()); err == nil {
		splog.Warn("Operation '%s' in progress on %s (step %d of %d).",
			state.Command, state.Branch, state.Index+1, len(state.Steps))
		if state.ConflictPending {
			splog.Info("Paused on conflicts. Resolve them, stage the files, then run 'gitq queue continue'.")
		}
		if state.EditPending {
			splog.Info("Paused for amending. Amend the commit, then run 'gitq queue continue'.")
		}
		splog.Newline()
	} else if !errors.Is(err, gitqerrors.ErrNoSequencerState) {
		return err
	}

	q, err := queue.Load(ctx.Repo)
	if err != nil {
		// Not being a queue at all is an answer, not a failure. Anything
		// else, a malformed file or a stale baseline included, is an error.
		if errors.Is(err, gitqerrors.ErrNotAQueue) {
			var configErr *gitqerrors.ConfigError
			if errors.As(err, &configErr) {
				splog.Info("%s", configErr.Message)
			}
			return nil
		}
		return err
	}

	if q.File.Title != "" {
		splog.Info("Queue: %s", q.File.Title)
	}
	splog.Info("Branch: %s", tui.ColorCyan(q.Branch))
	splog.Info("Baselines:")
	for _, baseline := range q.File.Baselines {
		line := "  " + tui.ColorYellow(git.Abbrev(baseline.SHA))
		if baseline.Ref != "" {
			line += " " + baseline.Ref
		}
		if baseline.Remote != "" {
			line += tui.ColorDim(" (" + baseline.Remote + ")")
		}
		splog.Info("%s", line)
	}

	patches, err := q.Patches()
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		splog.Info("No patches.")
		return nil
	}
	splog.Info("Patches:")
	for _, patch := range patches {
		splog.Info("  %s %s", tui.ColorGreen(git.Abbrev(patch.SHA)), patch.Summary())
	}
	return nil
}

// newQueueSyncCmd creates the queue sync command
func newQueueSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Resynchronize the queue onto its advanced baselines",
		Long: `Resynchronize the queue onto its advanced baselines: refresh every baseline
ref, rebuild the integration point joining them, and replay each patch in its
original order. Pauses for conflict resolution when a patch no longer applies
cleanly.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}

			q, err := queue.Load(ctx.Repo)
			if err != nil {
				return err
			}
			state, err := q.PlanSync()
			if err != nil {
				return err
			}
			if state == nil {
				ctx.Splog.Info("Queue is up to date.")
				return nil
			}
			return ctx.Sequencer().Start(state)
		},
	}
}

// newQueueTidyCmd creates the queue tidy command
func newQueueTidyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tidy",
		Short: "Normalize the .git-queue file in the working tree",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}
			return queue.Tidy(ctx.Repo)
		},
	}
}
