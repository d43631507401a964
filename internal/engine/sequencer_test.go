package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
	"github.com/smoofra/gitq/internal/tui"
	"github.com/smoofra/gitq/testhelpers"
)

type fixture struct {
	scene *testhelpers.Scene
	repo  *git.Repository
	seq   *engine.Sequencer
}

func newFixture(t *testing.T, setup func(s *testhelpers.Scene) error) *fixture {
	t.Helper()
	scene := testhelpers.NewScene(t, setup)
	repo, err := git.OpenRepository(scene.Dir)
	require.NoError(t, err)
	return &fixture{
		scene: scene,
		repo:  repo,
		seq:   engine.NewSequencer(repo, tui.NewSplog(), repo.GitDir()),
	}
}

// linearCommits builds a chain of commits each touching its own file, so
// replays and swaps between them merge cleanly.
func linearCommits(s *testhelpers.Scene, names ...string) error {
	for _, name := range names {
		if err := s.Repo.CommitFile(name+".txt", name+"\n", name); err != nil {
			return err
		}
	}
	return nil
}

func TestReorderCleanSwap(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	originalTree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)
	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanReorder(f.repo, "main", bSHA)
	require.NoError(t, err)
	require.NoError(t, f.seq.Start(state))

	// b and c are swapped; the tip tree is unchanged
	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, messages)

	tree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)
	assert.Equal(t, originalTree, tree)

	assert.False(t, engine.StateExists(f.repo.GitDir()))

	branch, err := f.scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestReorderReplaysDescendants(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c", "d", "e")
	})

	originalTree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)
	bSHA, err := f.scene.Repo.GetRevision("main~3")
	require.NoError(t, err)

	state, err := engine.PlanReorder(f.repo, "main", bSHA)
	require.NoError(t, err)
	require.NoError(t, f.seq.Start(state))

	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d", "b", "c", "a"}, messages)

	tree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)
	assert.Equal(t, originalTree, tree)
}

func TestReorderTwiceRestoresOrder(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	original, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	originalTree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		bSHA, err := f.scene.Repo.GetRevision("main~1")
		require.NoError(t, err)
		state, err := engine.PlanReorder(f.repo, "main", bSHA)
		require.NoError(t, err)
		require.NoError(t, f.seq.Start(state))
	}

	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, original, messages)

	tree, err := f.scene.Repo.GetTree("main")
	require.NoError(t, err)
	assert.Equal(t, originalTree, tree)
}

func TestReorderConflictPauseAndContinue(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CommitFile("f.txt", "base\n", "root"); err != nil {
			return err
		}
		if err := s.Repo.CommitFile("f.txt", "one\n", "one"); err != nil {
			return err
		}
		return s.Repo.CommitFile("f.txt", "two\n", "two")
	})

	oneSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanReorder(f.repo, "main", oneSHA)
	require.NoError(t, err)

	// Both commits rewrite the same line, so lowering "two" conflicts
	err = f.seq.Start(state)
	assert.ErrorIs(t, err, gitqerrors.ErrConflictsPending)
	assert.True(t, engine.StateExists(f.repo.GitDir()))

	markers, err := f.scene.Repo.HasConflictMarkers("f.txt")
	require.NoError(t, err)
	assert.True(t, markers)

	require.NoError(t, f.scene.Repo.ResolveConflict("f.txt", "resolved\n"))

	// A fresh sequencer resumes from the persisted state, as a new process
	// invocation would
	resumed := engine.NewSequencer(f.repo, tui.NewSplog(), f.repo.GitDir())
	require.NoError(t, resumed.Continue())

	// The order is swapped and the tip tree still matches the original tip,
	// regardless of how the intermediate conflict was resolved
	messages, err := f.scene.Repo.ListCommitMessages("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "root"}, messages)

	content, err := f.scene.Repo.FileAtRevision("main", "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", content)

	// The lowered commit carries the user's resolution
	content, err = f.scene.Repo.FileAtRevision("main~1", "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "resolved", content)

	assert.False(t, engine.StateExists(f.repo.GitDir()))
	branch, err := f.scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestReorderAbortRestoresBranch(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CommitFile("f.txt", "base\n", "root"); err != nil {
			return err
		}
		if err := s.Repo.CommitFile("f.txt", "one\n", "one"); err != nil {
			return err
		}
		return s.Repo.CommitFile("f.txt", "two\n", "two")
	})

	originalTip, err := f.scene.Repo.GetCurrentSHA()
	require.NoError(t, err)
	oneSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)

	state, err := engine.PlanReorder(f.repo, "main", oneSHA)
	require.NoError(t, err)
	err = f.seq.Start(state)
	assert.ErrorIs(t, err, gitqerrors.ErrConflictsPending)

	require.NoError(t, f.seq.Abort())

	sha, err := f.scene.Repo.GetCurrentSHA()
	require.NoError(t, err)
	assert.Equal(t, originalTip, sha)

	branch, err := f.scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	content, err := f.scene.Repo.ReadFile("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "two\n", content)

	assert.False(t, engine.StateExists(f.repo.GitDir()))
}

func TestStartRejectsDirtyTree(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	require.NoError(t, f.scene.Repo.WriteFile("a.txt", "dirty\n"))

	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)
	state, err := engine.PlanReorder(f.repo, "main", bSHA)
	require.NoError(t, err)

	err = f.seq.Start(state)
	var precondition *gitqerrors.PreconditionError
	assert.ErrorAs(t, err, &precondition)
	assert.False(t, engine.StateExists(f.repo.GitDir()))
}

func TestStartRejectsPendingOperation(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)
	state, err := engine.PlanReorder(f.repo, "main", bSHA)
	require.NoError(t, err)

	require.NoError(t, engine.PersistState(f.repo.GitDir(), state))
	t.Cleanup(func() { _ = engine.ClearState(f.repo.GitDir()) })

	err = f.seq.Start(state)
	var precondition *gitqerrors.PreconditionError
	assert.ErrorAs(t, err, &precondition)
}

func TestPlanReorderPreconditions(t *testing.T) {
	t.Run("rejects the branch tip", func(t *testing.T) {
		f := newFixture(t, func(s *testhelpers.Scene) error {
			return linearCommits(s, "a", "b")
		})
		tip, err := f.scene.Repo.GetCurrentSHA()
		require.NoError(t, err)

		_, err = engine.PlanReorder(f.repo, "main", tip)
		var precondition *gitqerrors.PreconditionError
		assert.ErrorAs(t, err, &precondition)
	})

	t.Run("rejects the root commit", func(t *testing.T) {
		f := newFixture(t, func(s *testhelpers.Scene) error {
			return linearCommits(s, "a", "b")
		})
		root, err := f.scene.Repo.GetRevision("main~1")
		require.NoError(t, err)

		_, err = engine.PlanReorder(f.repo, "main", root)
		var precondition *gitqerrors.PreconditionError
		assert.ErrorAs(t, err, &precondition)
	})

	t.Run("rejects a merge commit above the target", func(t *testing.T) {
		f := newFixture(t, func(s *testhelpers.Scene) error {
			if err := linearCommits(s, "a", "b"); err != nil {
				return err
			}
			if err := s.Repo.CreateAndCheckoutBranch("side"); err != nil {
				return err
			}
			if err := s.Repo.CommitFile("side.txt", "side\n", "side"); err != nil {
				return err
			}
			if err := s.Repo.CheckoutBranch("main"); err != nil {
				return err
			}
			return s.Repo.RunGitCommand("merge", "--no-ff", "-m", "merge side", "side")
		})
		aSHA, err := f.scene.Repo.GetRevision("main~2")
		require.NoError(t, err)

		_, err = engine.PlanReorder(f.repo, "main", aSHA)
		var precondition *gitqerrors.PreconditionError
		assert.ErrorAs(t, err, &precondition)
	})
}

func TestFinishDetectsRefRace(t *testing.T) {
	f := newFixture(t, func(s *testhelpers.Scene) error {
		return linearCommits(s, "a", "b", "c")
	})

	bSHA, err := f.scene.Repo.GetRevision("main~1")
	require.NoError(t, err)
	state, err := engine.PlanReorder(f.repo, "main", bSHA)
	require.NoError(t, err)

	// Another process advances the branch after the plan was made
	require.NoError(t, f.scene.Repo.CommitFile("d.txt", "d\n", "d"))
	racedTip, err := f.scene.Repo.GetCurrentSHA()
	require.NoError(t, err)

	err = f.seq.Start(state)
	assert.ErrorIs(t, err, gitqerrors.ErrRefRace)

	// The branch is left where the other process put it
	sha, err := f.scene.Repo.GetRevision("main")
	require.NoError(t, err)
	assert.Equal(t, racedTip, sha)
	assert.False(t, engine.StateExists(f.repo.GitDir()))
}
