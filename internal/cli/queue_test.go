package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
	"github.com/smoofra/gitq/internal/queue"
	"github.com/smoofra/gitq/internal/runtime"
	"github.com/smoofra/gitq/internal/tui"
	"github.com/smoofra/gitq/testhelpers"
)

func newContext(t *testing.T, setup func(s *testhelpers.Scene) error) (*runtime.Context, *testhelpers.Scene) {
	t.Helper()
	scene := testhelpers.NewScene(t, setup)
	repo, err := git.OpenRepository(scene.Dir)
	require.NoError(t, err)
	return &runtime.Context{Repo: repo, Splog: tui.NewSplog()}, scene
}

func TestStatusOnNonQueueBranch(t *testing.T) {
	ctx, _ := newContext(t, func(s *testhelpers.Scene) error {
		return s.Repo.CommitFile("f.txt", "1\n", "first")
	})

	// A branch without a queue file is simply not a queue; status answers
	// that and succeeds
	assert.NoError(t, statusAction(ctx))
}

func TestStatusReportsInvalidBaseline(t *testing.T) {
	ctx, scene := newContext(t, func(s *testhelpers.Scene) error {
		if err := s.Repo.CommitFile("root.txt", "root\n", "root"); err != nil {
			return err
		}
		if err := s.Repo.CreateAndCheckoutBranch("side"); err != nil {
			return err
		}
		if err := s.Repo.CommitFile("side.txt", "side\n", "side"); err != nil {
			return err
		}
		return s.Repo.CheckoutBranch("main")
	})

	// A recorded baseline that is not an ancestor of the tip is a broken
	// queue, not a missing one; status must fail loudly
	sideSHA, err := scene.Repo.GetRevision("side")
	require.NoError(t, err)
	require.NoError(t, scene.Repo.CommitFile(queue.FileName,
		"baselines:\n  - sha: "+sideSHA+"\n", "record queue"))

	err = statusAction(ctx)
	var configErr *gitqerrors.ConfigError
	assert.ErrorAs(t, err, &configErr)
	assert.NotErrorIs(t, err, gitqerrors.ErrNotAQueue)
	assert.Equal(t, gitqerrors.ExitPrecondition, gitqerrors.ExitCode(err))
}
