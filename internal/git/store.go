package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
)

// CommitMeta is the message/author payload reused when a commit is rewritten.
type CommitMeta struct {
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthorDate  string
}

// Meta returns the commit's metadata payload
func (c *CommitInfo) Meta() CommitMeta {
	return CommitMeta{
		Message:     c.Message,
		AuthorName:  c.AuthorName,
		AuthorEmail: c.AuthorEmail,
		AuthorDate:  c.AuthorDate,
	}
}

// MergeResult is the outcome of a three-way tree merge. Tree is always set;
// when Conflicts is non-empty the tree contains conflict markers and must not
// be committed as-is.
type MergeResult struct {
	Tree      string
	Conflicts []string
}

// Clean reports whether the merge completed without conflicts
func (m *MergeResult) Clean() bool {
	return len(m.Conflicts) == 0
}

// Store is the object store adapter consumed by the engine. All repository
// mutations go through these operations; the engine never touches the store
// directly.
type Store interface {
	RevParse(rev string) (string, error)
	Commit(sha string) (*CommitInfo, error)
	TreeOf(commitish string) (string, error)
	Merge3(base, ours, theirs string) (*MergeResult, error)
	MergeBase(a, b string) (string, error)
	IsAncestor(ancestor, descendant string) (bool, error)
	WriteCommit(parents []string, tree string, meta CommitMeta) (string, error)
	UpdateRef(name, newSHA, expectedOld string) error
	RevListRange(tip string, exclude []string) ([]string, error)
	ChangedPaths(sha string) ([]string, error)
	CreateBlob(content string) (string, error)
	GraftBlob(tree, path, blob string) (string, error)

	// Working tree operations, used only around conflict resolution
	IsClean() (bool, error)
	IsDetached() (bool, error)
	CheckoutDetached(revision string) error
	CheckoutBranch(branch string) error
	HardReset(revision string) error
	CherryPickNoCommit(sha string) error
	MergeNoCommit(sha string) error
	UnmergedFiles() ([]string, error)
	WriteIndexTree() (string, error)
	AbandonMergeState() error
}

var _ Store = (*Repository)(nil)

// RevParse resolves a revision to a full commit SHA.
func (r *Repository) RevParse(rev string) (string, error) {
	sha, err := r.runner.Run(nil, "rev-parse", "--verify", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", rev, err)
	}
	return sha, nil
}

// TreeOf returns the tree SHA of a commit-ish.
func (r *Repository) TreeOf(commitish string) (string, error) {
	tree, err := r.runner.Run(nil, "rev-parse", commitish+"^{tree}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve tree of %q: %w", commitish, err)
	}
	return tree, nil
}

// Merge3 performs a three-way tree merge of ours and theirs against base
// without touching the working tree. base, ours and theirs may be any
// tree-ish. On conflicts the returned result lists the conflicted paths.
//
// git 2.40 introduced merge-tree --merge-base; on older versions the merge
// runs through a temporary index instead.
func (r *Repository) Merge3(base, ours, theirs string) (*MergeResult, error) {
	if !r.hasMergeTreeMergeBase() {
		return r.merge3Index(base, ours, theirs)
	}

	out, err := r.runner.RunRaw(nil, "merge-tree", "--write-tree", "--merge-base="+base, ours, theirs)
	if err == nil {
		return &MergeResult{Tree: strings.TrimSpace(firstLine(out))}, nil
	}

	var cmdErr *gitqerrors.GitCommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
		return parseConflictedMergeTree(cmdErr.Stdout)
	}
	return nil, fmt.Errorf("merge-tree failed: %w", err)
}

// hasMergeTreeMergeBase reports whether the installed git supports
// `merge-tree --write-tree --merge-base` (2.40 or newer).
func (r *Repository) hasMergeTreeMergeBase() bool {
	r.versionOnce.Do(func() {
		out, err := r.runner.Run(nil, "version")
		r.mergeTreeOK = err == nil && gitAtLeast(out, 2, 40)
	})
	return r.mergeTreeOK
}

// gitAtLeast parses `git version` output ("git version 2.39.5") and compares
// it against major.minor.
func gitAtLeast(version string, major, minor int) bool {
	fields := strings.Fields(version)
	if len(fields) < 3 {
		return false
	}
	parts := strings.Split(fields[2], ".")
	if len(parts) < 2 {
		return false
	}
	maj, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	mnr, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return maj > major || (maj == major && mnr >= minor)
}

// indexStage is one stage entry of an unmerged index path.
type indexStage struct {
	mode string
	sha  string
}

// merge3Index is the three-way merge fallback for git older than 2.40. The
// trees are merged in a temporary index; paths left unmerged there are
// content-merged with merge-file, and genuinely conflicting paths get the
// marker-bearing merge output written into the result tree, matching what
// merge-tree produces.
func (r *Repository) merge3Index(base, ours, theirs string) (*MergeResult, error) {
	indexDir := filepath.Join(r.gitDir, "gitq")
	if err := os.MkdirAll(indexDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", indexDir, err)
	}
	indexFile := filepath.Join(indexDir, "merge-index")
	defer os.Remove(indexFile)
	env := []string{"GIT_INDEX_FILE=" + indexFile}

	if _, err := r.runner.RunWithEnv(nil, env, "read-tree", "-i", "-m", "--aggressive", base, ours, theirs); err != nil {
		return nil, fmt.Errorf("failed to merge trees: %w", err)
	}

	out, err := r.runner.RunWithEnv(nil, env, "ls-files", "--unmerged")
	if err != nil {
		return nil, fmt.Errorf("failed to list unmerged paths: %w", err)
	}

	// Group the stage entries per path, preserving order
	stages := make(map[string]map[int]indexStage)
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		meta, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		parts := strings.Fields(meta)
		if len(parts) != 3 {
			continue
		}
		stage, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		if stages[path] == nil {
			stages[path] = make(map[int]indexStage)
			paths = append(paths, path)
		}
		stages[path][stage] = indexStage{mode: parts[0], sha: parts[1]}
	}

	var conflicts []string
	for _, path := range paths {
		blob, mode, clean, err := r.mergeFileStages(stages[path])
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
		if !clean {
			conflicts = append(conflicts, path)
		}
		cacheinfo := fmt.Sprintf("%s,%s,%s", mode, blob, path)
		if _, err := r.runner.RunWithEnv(nil, env, "update-index", "--add", "--cacheinfo", cacheinfo); err != nil {
			return nil, fmt.Errorf("failed to record merge of %s: %w", path, err)
		}
	}

	tree, err := r.runner.RunWithEnv(nil, env, "write-tree")
	if err != nil {
		return nil, fmt.Errorf("failed to write merged tree: %w", err)
	}
	return &MergeResult{Tree: tree, Conflicts: conflicts}, nil
}

// mergeFileStages content-merges one unmerged path given its index stages
// (1 = base, 2 = ours, 3 = theirs). When a side is missing (add/add or a
// deletion against a modification) the path is conflicting and the surviving
// side's blob is kept for the result tree.
func (r *Repository) mergeFileStages(st map[int]indexStage) (blob, mode string, clean bool, err error) {
	baseSt, haveBase := st[1]
	oursSt, haveOurs := st[2]
	theirsSt, haveTheirs := st[3]

	if !haveBase || !haveOurs || !haveTheirs {
		for _, s := range []indexStage{oursSt, theirsSt, baseSt} {
			if s.sha != "" {
				return s.sha, s.mode, false, nil
			}
		}
		return "", "", false, fmt.Errorf("unmerged path has no stages")
	}

	files := make([]string, 3)
	for i, s := range []indexStage{oursSt, baseSt, theirsSt} {
		content, err := r.runner.RunRaw(nil, "cat-file", "blob", s.sha)
		if err != nil {
			return "", "", false, err
		}
		f, err := os.CreateTemp("", "gitq-merge-*")
		if err != nil {
			return "", "", false, err
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return "", "", false, err
		}
		if err := f.Close(); err != nil {
			return "", "", false, err
		}
		files[i] = f.Name()
	}

	merged, err := r.runner.RunRaw(nil, "merge-file", "-p", files[0], files[1], files[2])
	clean = true
	if err != nil {
		// merge-file exits with the number of conflicts
		var cmdErr *gitqerrors.GitCommandError
		if !errors.As(err, &cmdErr) || cmdErr.ExitCode < 1 || cmdErr.ExitCode > 127 {
			return "", "", false, err
		}
		merged = cmdErr.Stdout
		clean = false
	}

	sha, err := r.CreateBlob(merged)
	if err != nil {
		return "", "", false, err
	}
	return sha, oursSt.mode, clean, nil
}

// parseConflictedMergeTree parses `git merge-tree --write-tree` output for a
// conflicted merge: the tree OID, then "mode object stage\tpath" lines up to
// the first blank line.
func parseConflictedMergeTree(out string) (*MergeResult, error) {
	lines := strings.Split(out, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("unexpected merge-tree output: %q", out)
	}
	result := &MergeResult{Tree: strings.TrimSpace(lines[0])}
	seen := make(map[string]bool)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			break
		}
		_, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		if !seen[path] {
			seen[path] = true
			result.Conflicts = append(result.Conflicts, path)
		}
	}
	return result, nil
}

// MergeBase returns the best common ancestor of two commits.
func (r *Repository) MergeBase(a, b string) (string, error) {
	base, err := r.runner.Run(nil, "merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("failed to find merge base of %s and %s: %w", Abbrev(a), Abbrev(b), err)
	}
	return base, nil
}

// IsAncestor returns true if ancestor is an ancestor of descendant.
func (r *Repository) IsAncestor(ancestor, descendant string) (bool, error) {
	_, err := r.runner.Run(nil, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	var cmdErr *gitqerrors.GitCommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

// WriteCommit writes a new commit object with the given parents, tree and
// metadata. The original author is preserved; the committer is the current
// user.
func (r *Repository) WriteCommit(parents []string, tree string, meta CommitMeta) (string, error) {
	args := []string{"commit-tree", tree}
	for _, parent := range parents {
		args = append(args, "-p", parent)
	}
	args = append(args, "-F", "-")

	var env []string
	if meta.AuthorName != "" {
		env = append(env,
			"GIT_AUTHOR_NAME="+meta.AuthorName,
			"GIT_AUTHOR_EMAIL="+meta.AuthorEmail,
			"GIT_AUTHOR_DATE="+meta.AuthorDate,
		)
	}

	sha, err := r.runner.runInternal(nil, env, meta.Message, true, args...)
	if err != nil {
		return "", fmt.Errorf("failed to write commit: %w", err)
	}
	return sha, nil
}

// UpdateRef updates a ref with compare-and-swap semantics: the update fails
// with a RefRaceError if the ref no longer points at expectedOld.
func (r *Repository) UpdateRef(name, newSHA, expectedOld string) error {
	_, err := r.runner.Run(nil, "update-ref", name, newSHA, expectedOld)
	if err == nil {
		return nil
	}
	current, currentErr := r.runner.Run(nil, "rev-parse", "--verify", "--quiet", name)
	if currentErr == nil && current != expectedOld {
		return gitqerrors.NewRefRaceError(name, Abbrev(expectedOld))
	}
	return fmt.Errorf("failed to update ref %s: %w", name, err)
}

// RevListRange lists the commits reachable from tip but not from any of the
// excluded revisions, oldest first.
func (r *Repository) RevListRange(tip string, exclude []string) ([]string, error) {
	args := []string{"rev-list", "--reverse", "--topo-order", tip}
	for _, ex := range exclude {
		args = append(args, "^"+ex)
	}
	return r.runner.RunLines(nil, args...)
}

// ChangedPaths returns the paths touched by a commit relative to its parents.
func (r *Repository) ChangedPaths(sha string) ([]string, error) {
	return r.runner.RunLines(nil, "show", "--name-only", "--pretty=format:", sha)
}

// CreateBlob writes content to the object store and returns its blob SHA.
func (r *Repository) CreateBlob(content string) (string, error) {
	sha, err := r.runner.RunWithInput(nil, content, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return sha, nil
}

// GraftBlob returns a new tree equal to tree but with the blob stored at path.
// The graft happens in a temporary index so the working tree and the real
// index are untouched.
func (r *Repository) GraftBlob(tree, path, blob string) (string, error) {
	indexDir := filepath.Join(r.gitDir, "gitq")
	if err := os.MkdirAll(indexDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", indexDir, err)
	}
	indexFile := filepath.Join(indexDir, "graft-index")
	defer os.Remove(indexFile)

	env := []string{"GIT_INDEX_FILE=" + indexFile}
	if _, err := r.runner.RunWithEnv(nil, env, "read-tree", tree); err != nil {
		return "", fmt.Errorf("failed to read tree %s: %w", tree, err)
	}
	cacheinfo := fmt.Sprintf("100644,%s,%s", blob, path)
	if _, err := r.runner.RunWithEnv(nil, env, "update-index", "--add", "--cacheinfo", cacheinfo); err != nil {
		return "", fmt.Errorf("failed to graft %s into tree: %w", path, err)
	}
	grafted, err := r.runner.RunWithEnv(nil, env, "write-tree")
	if err != nil {
		return "", fmt.Errorf("failed to write grafted tree: %w", err)
	}
	return grafted, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
