package cli

import (
	"github.com/spf13/cobra"

	"github.com/smoofra/gitq/internal/runtime"
)

// newContinueCmd creates the continue command
func newContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Resume the gitq operation paused by a merge conflict",
		Long: `Resume the gitq operation paused by a merge conflict. The conflicts must be
resolved and staged first; the staged result becomes the merged tree and the
remaining steps are replayed.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, err := runtime.GetContext()
			if err != nil {
				return err
			}
			return ctx.Sequencer().Continue()
		},
	}
}
