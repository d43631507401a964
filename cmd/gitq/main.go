package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/smoofra/gitq/internal/cli"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := cli.NewRootCmd(version, commit, date)
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, gitqerrors.ErrConflictsPending) && !errors.Is(err, gitqerrors.ErrEditPending) {
		fmt.Fprintf(os.Stderr, "gitq: %v\n", err)
	}
	os.Exit(gitqerrors.ExitCode(err))
}
