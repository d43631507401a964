package git

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repository wraps a go-git repository for read-side object access. Writes go
// through the CommandRunner; go-git is used where structured reads are easier
// than parsing porcelain output.
type Repository struct {
	*gogit.Repository
	root   string
	gitDir string
	runner *CommandRunner

	// go-git packfile access is not safe for concurrent use
	mu sync.Mutex

	versionOnce sync.Once
	mergeTreeOK bool
}

// OpenRepository opens the git repository containing path.
func OpenRepository(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absPath, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	runner := NewCommandRunner(absPath)
	root, err := runner.Run(nil, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("failed to find repository root: %w", err)
	}
	gitDir, err := runner.Run(nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return nil, fmt.Errorf("failed to find git dir: %w", err)
	}

	return &Repository{
		Repository: repo,
		root:       root,
		gitDir:     gitDir,
		runner:     NewCommandRunner(root),
	}, nil
}

// Root returns the working tree root of the repository
func (r *Repository) Root() string {
	return r.root
}

// GitDir returns the repository's .git directory
func (r *Repository) GitDir() string {
	return r.gitDir
}

// Runner returns the command runner rooted at the repository
func (r *Repository) Runner() *CommandRunner {
	return r.runner
}

// CurrentBranch returns the short name of the checked-out branch, or an error
// if HEAD is detached.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is not on a branch")
	}
	return head.Name().Short(), nil
}

// commitObject looks up a commit, synchronizing go-git access.
func (r *Repository) commitObject(sha string) (*object.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CommitObject(plumbing.NewHash(sha))
}

// FileAtCommit reads the contents of path from the tree of the given commit.
// Returns found=false if the path does not exist in that tree.
func (r *Repository) FileAtCommit(sha, path string) (content string, found bool, err error) {
	commit, err := r.commitObject(sha)
	if err != nil {
		return "", false, fmt.Errorf("failed to read commit %s: %w", sha, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := commit.File(path)
	if err == object.ErrFileNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s at %s: %w", path, sha, err)
	}
	content, err = file.Contents()
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s at %s: %w", path, sha, err)
	}
	return content, true, nil
}

// SymbolicFullName resolves a ref name to its full symbolic name
// (e.g. "main" -> "refs/heads/main"). Returns "" for detached names and raw
// object ids.
func (r *Repository) SymbolicFullName(name string) (string, error) {
	out, err := r.runner.Run(nil, "rev-parse", "--symbolic-full-name", name)
	if err != nil {
		// rev-parse fails on bare SHAs; treat as non-symbolic
		return "", nil
	}
	return strings.TrimSpace(out), nil
}
