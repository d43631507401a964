package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/testhelpers"
)

func TestSquashCombinesMessages(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c", "d")
	})

	originalTree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)
	cSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanSquash(f.repo, "main", cSHA, false)
	require.NoError(t, err)
	require.NoError(t, f.seq.Start(state))

	// c is folded into b and d replayed on top; the tip tree is unchanged
	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a"}, messages)

	tree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)
	assert.Equal(t, originalTree, tree)

	// The folded commit carries both changes and both messages
	content, err := f.scene.Repo.FileAtRevision("main~1", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "c", content)

	body, err := f.scene.Repo.RunGitCommandAndGetOutput("log", "-n", "1", "--format=%B", "main~1")
	require.NoError(t, err)
	assert.Equal(t, "b\n\nc", body)

	assert.False(t, engine.StateExists(f.repo.GitDir()))
	branch, err := f.scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestSquashFixupKeepsParentMessage(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	state, err := engine.PlanSquash(f.repo, "main", "HEAD", true)
	require.NoError(t, err)
	require.NoError(t, f.seq.Start(state))

	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, messages)

	body, err := f.scene.Repo.RunGitCommandAndGetOutput("log", "-n", "1", "--format=%B", "main")
	require.NoError(t, err)
	assert.Equal(t, "b", body)

	content, err := f.scene.Repo.FileAtRevision("main", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "c", content)
}

func TestSquashIntoRootCommit(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanSquash(f.repo, "main", bSHA, false)
	require.NoError(t, err)
	require.NoError(t, f.seq.Start(state))

	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, messages)

	// The combined commit is the new root
	parents, err := f.scene.Repo.RunGitCommandAndGetOutput("log", "-n", "1", "--format=%P", "main~1")
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestSquashRejectsRootCommit(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b")
	})

	rootSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	var precondErr *gitqerrors.PreconditionError
	_, err = engine.PlanSquash(f.repo, "main", rootSHA, false)
	assert.ErrorAs(t, err, &precondErr)
}
