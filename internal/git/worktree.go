package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
)

// IsClean reports whether the working tree has no staged or unstaged changes.
// Untracked files are allowed.
func (r *Repository) IsClean() (bool, error) {
	lines, err := r.runner.RunLines(nil, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to read status: %w", err)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "??") {
			return false, nil
		}
	}
	return true, nil
}

// CheckoutDetached checks out a revision with a detached HEAD.
func (r *Repository) CheckoutDetached(revision string) error {
	_, err := r.runner.Run(nil, "checkout", "--detach", revision)
	if err != nil {
		return fmt.Errorf("failed to checkout %s: %w", Abbrev(revision), err)
	}
	return nil
}

// CheckoutBranch checks out a branch, discarding any local modifications.
func (r *Repository) CheckoutBranch(branch string) error {
	_, err := r.runner.Run(nil, "checkout", "-f", branch)
	if err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}
	return nil
}

// CherryPickNoCommit replays a commit onto the current HEAD, leaving the
// result (including any conflicts) in the index and working tree. A conflicted
// pick is not an error here; the caller inspects the index.
func (r *Repository) CherryPickNoCommit(sha string) error {
	_, err := r.runner.Run(nil, "cherry-pick", "--no-commit", "--allow-empty", sha)
	if err != nil {
		var cmdErr *gitqerrors.GitCommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
			return nil
		}
		return fmt.Errorf("failed to cherry-pick %s: %w", Abbrev(sha), err)
	}
	return nil
}

// MergeNoCommit merges a commit into the current HEAD, leaving the result
// (including any conflicts) in the index and working tree.
func (r *Repository) MergeNoCommit(sha string) error {
	_, err := r.runner.Run(nil, "merge", "--no-commit", "--no-ff", sha)
	if err != nil {
		var cmdErr *gitqerrors.GitCommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
			return nil
		}
		return fmt.Errorf("failed to merge %s: %w", Abbrev(sha), err)
	}
	return nil
}

// HardReset resets the current branch, index and working tree to a revision.
func (r *Repository) HardReset(revision string) error {
	_, err := r.runner.Run(nil, "reset", "--hard", revision)
	if err != nil {
		return fmt.Errorf("failed to reset to %s: %w", Abbrev(revision), err)
	}
	return nil
}

// IsDetached reports whether HEAD is detached.
func (r *Repository) IsDetached() (bool, error) {
	head, err := r.Head()
	if err != nil {
		return false, fmt.Errorf("failed to read HEAD: %w", err)
	}
	return !head.Name().IsBranch(), nil
}

// UnmergedFiles returns the paths with unresolved conflict stages in the index.
func (r *Repository) UnmergedFiles() ([]string, error) {
	lines, err := r.runner.RunLines(nil, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("failed to list unmerged files: %w", err)
	}
	return lines, nil
}

// WriteIndexTree writes the current index as a tree object. Fails if unmerged
// entries remain.
func (r *Repository) WriteIndexTree() (string, error) {
	tree, err := r.runner.Run(nil, "write-tree")
	if err != nil {
		return "", fmt.Errorf("failed to write index tree: %w", err)
	}
	return tree, nil
}

// AbandonMergeState discards any in-progress cherry-pick or merge bookkeeping
// and resets the working tree to HEAD.
func (r *Repository) AbandonMergeState() error {
	for _, headFile := range []string{"CHERRY_PICK_HEAD", "MERGE_HEAD"} {
		if _, err := os.Stat(filepath.Join(r.gitDir, headFile)); err == nil {
			switch headFile {
			case "CHERRY_PICK_HEAD":
				_, _ = r.runner.Run(nil, "cherry-pick", "--quit")
			case "MERGE_HEAD":
				_, _ = r.runner.Run(nil, "merge", "--quit")
			}
		}
	}
	if _, err := r.runner.Run(nil, "reset", "--hard", "HEAD"); err != nil {
		return fmt.Errorf("failed to reset working tree: %w", err)
	}
	return nil
}
