package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/tui"
	"github.com/smoofra/gitq/testhelpers"
)

func TestEditAmendAndReplay(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanEdit(f.repo, "main", bSHA)
	require.NoError(t, err)

	// Starting pauses with HEAD detached at the target
	err = f.seq.Start(state)
	assert.ErrorIs(t, err, gitqerrors.ErrEditPending)
	assert.True(t, engine.StateExists(f.repo.GitDir()))

	head, err := f.scene.Repo.GetCurrentSHA()
	require.NoError(t, err)
	assert.Equal(t, bSHA, head)

	require.NoError(t, f.scene.Repo.WriteFile("b.txt", "amended\n"))
	require.NoError(t, f.scene.Repo.RunGitCommand("add", "b.txt"))
	require.NoError(t, f.scene.Repo.RunGitCommand("commit", "--amend", "-m", "b amended"))

	// A fresh sequencer resumes from the persisted state, as a new process
	// invocation would
	resumed := engine.NewSequencer(f.repo, tui.NewSplog(), f.repo.GitDir())
	require.NoError(t, resumed.Continue())

	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b amended", "a"}, messages)

	content, err := f.scene.Repo.FileAtRevision("main", "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "amended", content)

	content, err = f.scene.Repo.FileAtRevision("main", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "c", content)

	assert.False(t, engine.StateExists(f.repo.GitDir()))
	branch, err := f.scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestEditTip(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b")
	})

	state, err := engine.PlanEdit(f.repo, "main", "HEAD")
	require.NoError(t, err)
	err = f.seq.Start(state)
	assert.ErrorIs(t, err, gitqerrors.ErrEditPending)

	require.NoError(t, f.scene.Repo.RunGitCommand("commit", "--amend", "-m", "b reworded"))

	resumed := engine.NewSequencer(f.repo, tui.NewSplog(), f.repo.GitDir())
	require.NoError(t, resumed.Continue())

	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"b reworded", "a"}, messages)
}

func TestEditContinueRejectsDirtyTree(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanEdit(f.repo, "main", bSHA)
	require.NoError(t, err)
	err = f.seq.Start(state)
	assert.ErrorIs(t, err, gitqerrors.ErrEditPending)

	// An unstaged change would be lost by continuing
	require.NoError(t, f.scene.Repo.WriteFile("b.txt", "half done\n"))
	require.NoError(t, f.scene.Repo.RunGitCommand("add", "b.txt"))

	var precondErr *gitqerrors.PreconditionError
	err = f.seq.Continue()
	assert.ErrorAs(t, err, &precondErr)
	assert.True(t, engine.StateExists(f.repo.GitDir()))
}

func TestEditAbortRestoresBranch(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	originalTip, err := f.scene.Repo.GetCurrentSHA()
	require.NoError(t, err)
	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanEdit(f.repo, "main", bSHA)
	require.NoError(t, err)
	err = f.seq.Start(state)
	assert.ErrorIs(t, err, gitqerrors.ErrEditPending)

	require.NoError(t, f.seq.Abort())

	tip, err := f.scene.Repo.GetCurrentSHA()
	require.NoError(t, err)
	assert.Equal(t, originalTip, tip)
	branch, err := f.scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	assert.False(t, engine.StateExists(f.repo.GitDir()))
}
