// Package queue interprets the .git-queue metadata recorded on a branch and
// plans the sequencer operations that keep the patch queue in sync with its
// baselines.
package queue

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
)

// FileName is the queue metadata file, committed as part of the branch's tree
// so it travels with ordinary push/pull/clone.
const FileName = ".git-queue"

// ToolTrailer marks commits written by gitq itself; such commits are never
// treated as patches.
const ToolTrailer = "Tool: git-queue"

// Baseline is one upstream foundation the queue's patches apply against. SHA
// pins the commit the queue was last synced to; Ref, when set, names the
// symbolic ref the baseline follows; Remote, when set, is the URL the ref
// lives on.
type Baseline struct {
	SHA    string `yaml:"sha"`
	Ref    string `yaml:"ref,omitempty"`
	Remote string `yaml:"remote,omitempty"`
}

// File is the parsed .git-queue metadata. The first baseline is the primary
// one.
type File struct {
	Title       string     `yaml:"title,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Baselines   []Baseline `yaml:"baselines"`
}

// Parse decodes and validates queue metadata.
func Parse(data []byte) (*File, error) {
	var file File
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, gitqerrors.NewConfigError(fmt.Sprintf("malformed %s file", FileName), err)
	}
	if len(file.Baselines) == 0 {
		return nil, gitqerrors.NewConfigError(fmt.Sprintf("%s file lists no baselines", FileName), nil)
	}
	for i, baseline := range file.Baselines {
		if baseline.SHA == "" {
			return nil, gitqerrors.NewConfigError(fmt.Sprintf("%s baseline %d has no sha", FileName, i), nil)
		}
	}
	return &file, nil
}

// Encode serializes queue metadata back to YAML.
func (f *File) Encode() (string, error) {
	var sb strings.Builder
	encoder := yaml.NewEncoder(&sb)
	encoder.SetIndent(2)
	if err := encoder.Encode(f); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", FileName, err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", FileName, err)
	}
	return sb.String(), nil
}

// BaselineSHAs returns the pinned commit of every baseline, primary first.
func (f *File) BaselineSHAs() []string {
	shas := make([]string, len(f.Baselines))
	for i, baseline := range f.Baselines {
		shas[i] = baseline.SHA
	}
	return shas
}

// IsToolCommit reports whether a commit message carries the gitq trailer.
func IsToolCommit(message string) bool {
	trimmed := strings.TrimRight(message, " \t\n")
	return trimmed == ToolTrailer || strings.HasSuffix(trimmed, "\n"+ToolTrailer)
}

// toolMessage builds a commit message for a gitq-written commit.
func toolMessage(action, title string) string {
	if title != "" {
		return fmt.Sprintf("%s: %s\n\n%s\n", action, title, ToolTrailer)
	}
	return fmt.Sprintf("%s\n\n%s\n", action, ToolTrailer)
}
