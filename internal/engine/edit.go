package engine

import (
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
)

// PlanEdit builds the operation that stops at target for amending: one edit
// step, then a replay step for each descendant. The edit step checks out the
// target detached and pauses; once the user has amended it and continued, the
// amended commit becomes the base the descendants are replayed onto.
func PlanEdit(store git.Store, branch, target string) (*State, error) {
	tip, err := store.RevParse(branch)
	if err != nil {
		return nil, gitqerrors.NewPreconditionError("cannot resolve branch %q: %v", branch, err)
	}
	targetSHA, err := store.RevParse(target)
	if err != nil {
		return nil, gitqerrors.NewPreconditionError("cannot resolve commit %q: %v", target, err)
	}

	descendants, err := descendantsAbove(store, tip, targetSHA)
	if err != nil {
		return nil, err
	}

	steps := []*Step{{Kind: StepEdit, Pick: targetSHA}}
	for i := len(descendants) - 1; i >= 0; i-- {
		steps = append(steps, &Step{Kind: StepReplay, Pick: descendants[i]})
	}

	return &State{
		Command:     "edit",
		Branch:      branch,
		OriginalTip: tip,
		Steps:       steps,
	}, nil
}

// descendantsAbove walks the chain from tip down to target and returns the
// commits strictly above it, newest first. Empty when target is the tip.
func descendantsAbove(store git.Store, tip, target string) ([]string, error) {
	var descendants []string
	cur := tip
	for cur != target {
		info, err := store.Commit(cur)
		if err != nil {
			return nil, err
		}
		parent, err := info.UniqueParent()
		if err != nil {
			return nil, gitqerrors.NewPreconditionError(
				"commit %s is not on a linear chain above %s: %v",
				git.Abbrev(cur), git.Abbrev(target), err)
		}
		descendants = append(descendants, cur)
		cur = parent
	}
	return descendants, nil
}
