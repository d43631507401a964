package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
)

func TestErrorIdentity(t *testing.T) {
	t.Run("conflicts pending matches sentinel", func(t *testing.T) {
		err := gitqerrors.NewConflictsPendingError([]string{"a.txt", "b.txt"})
		assert.ErrorIs(t, err, gitqerrors.ErrConflictsPending)
		assert.Contains(t, err.Error(), "a.txt")
	})

	t.Run("ref race matches sentinel through wrapping", func(t *testing.T) {
		err := fmt.Errorf("sync: %w", gitqerrors.NewRefRaceError("refs/heads/main", "abcd1234"))
		assert.ErrorIs(t, err, gitqerrors.ErrRefRace)

		var raceErr *gitqerrors.RefRaceError
		assert.True(t, errors.As(err, &raceErr))
		assert.Equal(t, "refs/heads/main", raceErr.Ref)
	})

	t.Run("git command error unwraps", func(t *testing.T) {
		cause := errors.New("boom")
		err := gitqerrors.NewGitCommandError("git", []string{"merge-tree"}, "", "fatal", 128, cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "fatal")
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, gitqerrors.ExitOK},
		{"conflicts pending", gitqerrors.NewConflictsPendingError(nil), gitqerrors.ExitConflicts},
		{"wrapped conflicts", fmt.Errorf("op: %w", gitqerrors.ErrConflictsPending), gitqerrors.ExitConflicts},
		{"edit pending", gitqerrors.ErrEditPending, gitqerrors.ExitConflicts},
		{"ref race", gitqerrors.NewRefRaceError("refs/heads/main", "abcd"), gitqerrors.ExitRefRace},
		{"precondition", gitqerrors.NewPreconditionError("dirty tree"), gitqerrors.ExitPrecondition},
		{"config", gitqerrors.NewConfigError("bad baseline", nil), gitqerrors.ExitPrecondition},
		{"unknown", errors.New("boom"), gitqerrors.ExitPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, gitqerrors.ExitCode(tt.err))
		})
	}
}
