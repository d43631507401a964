package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
)

func TestParse(t *testing.T) {
	t.Run("parses a full queue file", func(t *testing.T) {
		data := `title: my queue
description: |
  a queue of patches
baselines:
  - sha: 0123456789abcdef0123456789abcdef01234567
    ref: refs/heads/main
  - sha: fedcba9876543210fedcba9876543210fedcba98
    ref: refs/heads/release
    remote: https://example.com/repo.git
`
		file, err := Parse([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, "my queue", file.Title)
		require.Len(t, file.Baselines, 2)
		assert.Equal(t, "refs/heads/main", file.Baselines[0].Ref)
		assert.Equal(t, "https://example.com/repo.git", file.Baselines[1].Remote)
	})

	t.Run("round trips through Encode", func(t *testing.T) {
		file := &File{
			Title: "integration",
			Baselines: []Baseline{
				{SHA: "0123456789abcdef0123456789abcdef01234567", Ref: "refs/heads/main"},
				{SHA: "fedcba9876543210fedcba9876543210fedcba98"},
			},
		}
		encoded, err := file.Encode()
		require.NoError(t, err)

		parsed, err := Parse([]byte(encoded))
		require.NoError(t, err)
		assert.Equal(t, file, parsed)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("baselines: ["))
		assert.ErrorAs(t, err, new(*gitqerrors.ConfigError))
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, err := Parse([]byte("garbage: true\nbaselines:\n  - sha: abc\n"))
		assert.ErrorAs(t, err, new(*gitqerrors.ConfigError))
	})

	t.Run("rejects empty baseline list", func(t *testing.T) {
		_, err := Parse([]byte("title: empty\n"))
		assert.ErrorAs(t, err, new(*gitqerrors.ConfigError))
	})

	t.Run("rejects baseline without sha", func(t *testing.T) {
		_, err := Parse([]byte("baselines:\n  - ref: refs/heads/main\n"))
		assert.ErrorAs(t, err, new(*gitqerrors.ConfigError))
	})
}

func TestIsToolCommit(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"baseline commit", "gitq: baseline\n\nTool: git-queue\n", true},
		{"trailer without trailing newline", "gitq: merged baselines\n\nTool: git-queue", true},
		{"ordinary commit", "fix the flux capacitor\n", false},
		{"trailer in the middle", "mentions\nTool: git-queue\nbut keeps going\n", false},
		{"empty message", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsToolCommit(tt.message))
		})
	}
}
