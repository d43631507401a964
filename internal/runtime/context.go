// Package runtime provides the per-invocation context holding the open
// repository and the logger, so commands don't thread them separately.
package runtime

import (
	"fmt"
	"path/filepath"

	"github.com/smoofra/gitq/internal/engine"
	"github.com/smoofra/gitq/internal/git"
	"github.com/smoofra/gitq/internal/tui"
)

// Context provides access to the repository and output for commands
type Context struct {
	Repo  *git.Repository
	Splog *tui.Splog
}

// GetContext opens the repository containing the current directory and sets
// up logging in its private metadata area.
func GetContext() (*Context, error) {
	repo, err := git.OpenRepository(".")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}

	splog, err := tui.NewSplogWithConfig(filepath.Join(repo.GitDir(), "gitq", "gitq.log"))
	if err != nil {
		return nil, err
	}

	return &Context{Repo: repo, Splog: splog}, nil
}

// Sequencer returns a sequencer bound to this repository.
func (c *Context) Sequencer() *engine.Sequencer {
	return engine.NewSequencer(c.Repo, c.Splog, c.Repo.GitDir())
}
