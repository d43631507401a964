package git

import (
	"fmt"
	"strings"
)

// CommitInfo holds the metadata of a single commit needed to rewrite it:
// identity, ancestry, tree, authorship, and message.
type CommitInfo struct {
	SHA         string
	Tree        string
	Parents     []string
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthorDate  string
}

// Summary returns the first line of the commit message
func (c *CommitInfo) Summary() string {
	summary, _, _ := strings.Cut(c.Message, "\n")
	return summary
}

// UniqueParent returns the commit's sole parent, or an error if the commit is
// a merge or a root commit.
func (c *CommitInfo) UniqueParent() (string, error) {
	switch len(c.Parents) {
	case 1:
		return c.Parents[0], nil
	case 0:
		return "", fmt.Errorf("commit %s has no parent", Abbrev(c.SHA))
	default:
		return "", fmt.Errorf("commit %s is a merge commit", Abbrev(c.SHA))
	}
}

// Commit reads commit metadata through go-git.
func (r *Repository) Commit(sha string) (*CommitInfo, error) {
	commit, err := r.commitObject(sha)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", sha, err)
	}

	info := &CommitInfo{
		SHA:         commit.Hash.String(),
		Tree:        commit.TreeHash.String(),
		Message:     commit.Message,
		AuthorName:  commit.Author.Name,
		AuthorEmail: commit.Author.Email,
		AuthorDate:  commit.Author.When.Format("2006-01-02T15:04:05-07:00"),
	}
	for _, parent := range commit.ParentHashes {
		info.Parents = append(info.Parents, parent.String())
	}
	return info, nil
}

// Abbrev shortens a SHA for display
func Abbrev(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
