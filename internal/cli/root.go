// Package cli wires the gitq command surface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gitq",
		Short: "gitq maintains an ordered queue of patches as commits on a git branch",
		Long: `gitq maintains an ordered queue of patches as commits on a git branch,
and reorders or replays that queue with minimal manual conflict resolution.

A queue is defined by a .git-queue file committed at the branch tip, which
records the baseline commits the patches apply against.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newReorderCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newSquashCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	return rootCmd
}

// newVersionCmd creates the version command
func newVersionCmd(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gitq version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitq %s (%s, built %s)\n", version, commit, date)
		},
	}
}
