package testhelpers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scene is a temporary git repository for a single test, cleaned up
// automatically.
type Scene struct {
	T    *testing.T
	Dir  string
	Repo *GitRepo
}

// NewScene creates a fresh repository in a temp directory and runs the
// optional setup function in it.
func NewScene(t *testing.T, setup func(s *Scene) error) *Scene {
	t.Helper()

	dir := t.TempDir()
	repo, err := NewGitRepo(dir)
	require.NoError(t, err)

	scene := &Scene{T: t, Dir: dir, Repo: repo}
	if setup != nil {
		require.NoError(t, setup(scene))
	}
	return scene
}
