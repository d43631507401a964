package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
)

// StepKind identifies what a sequencer step does.
type StepKind string

const (
	// StepReplay re-parents a single commit onto the chain built so far
	StepReplay StepKind = "replay"
	// StepSwap reorders a commit below its parent, pinning the pair's final tree
	StepSwap StepKind = "swap"
	// StepSquash combines a commit with its parent into a single commit
	StepSquash StepKind = "squash"
	// StepEdit stops at a commit so the user can amend it
	StepEdit StepKind = "edit"
	// StepIntegrate rebuilds the integration point joining the baselines
	StepIntegrate StepKind = "integrate"
)

// Step is one unit of work in a sequencer operation. Each step performs at
// most one three-way merge per baseline pair or pick, so each pauses for
// conflict resolution at most once per merge.
type Step struct {
	Kind StepKind `json:"kind"`

	// Pick is the original commit being replayed (replay and swap steps)
	Pick string `json:"pick,omitempty"`

	// Pinned is the commit whose metadata is reused for the rewired commit
	// placed above the pick (swap steps) or absorbed into the pick (squash
	// steps); PinnedTree is the swap pair's final tree, reused verbatim
	Pinned     string `json:"pinned,omitempty"`
	PinnedTree string `json:"pinnedTree,omitempty"`

	// Integrate step inputs; Message is also the composed message of a
	// squash step
	Baselines []string `json:"baselines,omitempty"`
	Message   string   `json:"message,omitempty"`
	GraftPath string   `json:"graftPath,omitempty"`
	GraftBlob string   `json:"graftBlob,omitempty"`

	// Integrate step progress: the accumulator commit and the index of the
	// next baseline to fold in
	Acc string `json:"acc,omitempty"`
	Pos int    `json:"pos,omitempty"`
}

// State is the persisted record of an in-flight sequencer operation. Exactly
// one may exist per repository; it is created when the operation begins,
// rewritten after every step, and removed on completion or abort.
type State struct {
	Command         string  `json:"command"`
	Branch          string  `json:"branch"`
	OriginalTip     string  `json:"originalTip"`
	Onto            string  `json:"onto,omitempty"`
	Steps           []*Step `json:"steps"`
	Index           int     `json:"index"`
	ConflictPending bool    `json:"conflictPending,omitempty"`
	EditPending     bool    `json:"editPending,omitempty"`
}

// statePath returns the location of the sequencer state inside the
// repository's private metadata area. Never part of any committed tree.
func statePath(gitDir string) string {
	return filepath.Join(gitDir, "gitq", "sequencer.json")
}

// StateExists reports whether a sequencer operation is pending.
func StateExists(gitDir string) bool {
	_, err := os.Stat(statePath(gitDir))
	return err == nil
}

// LoadState reads the pending sequencer state from disk.
func LoadState(gitDir string) (*State, error) {
	data, err := os.ReadFile(statePath(gitDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gitqerrors.ErrNoSequencerState
		}
		return nil, fmt.Errorf("failed to read sequencer state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse sequencer state: %w", err)
	}
	return &state, nil
}

// PersistState writes the sequencer state to disk.
func PersistState(gitDir string, state *State) error {
	path := statePath(gitDir)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sequencer state: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ClearState removes the sequencer state file.
func ClearState(gitDir string) error {
	err := os.Remove(statePath(gitDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear sequencer state: %w", err)
	}
	return nil
}
