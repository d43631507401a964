package tui

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// CanPrompt reports whether stdin is an interactive terminal
func CanPrompt() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && os.Getenv("GITQ_NO_INTERACTIVE") == ""
}

// Confirm asks the user a yes/no question, defaulting to no.
func Confirm(message string) (bool, error) {
	if !CanPrompt() {
		return false, fmt.Errorf("cannot prompt for confirmation without a terminal")
	}
	confirmed := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &confirmed)
	if err != nil {
		return false, err
	}
	return confirmed, nil
}
