package engine

import (
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
)

// PlanReorder builds the operation that swaps target with its successor on
// branch: one swap step for the adjacent pair, then a replay step for each
// later descendant. The swap is defined only for a simple linear pair, so any
// merge commit between target and the branch tip rejects the plan.
func PlanReorder(store git.Store, branch, target string) (*State, error) {
	tip, err := store.RevParse(branch)
	if err != nil {
		return nil, gitqerrors.NewPreconditionError("cannot resolve branch %q: %v", branch, err)
	}
	targetSHA, err := store.RevParse(target)
	if err != nil {
		return nil, gitqerrors.NewPreconditionError("cannot resolve commit %q: %v", target, err)
	}

	if targetSHA == tip {
		return nil, gitqerrors.NewPreconditionError(
			"commit %s is the branch tip and has no successor to swap with", git.Abbrev(targetSHA))
	}

	// Walk the chain from the tip down to the target's child, collecting the
	// descendants that will need replaying, newest first.
	var descendants []string
	successor := ""
	cur := tip
	for {
		info, err := store.Commit(cur)
		if err != nil {
			return nil, err
		}
		parent, err := info.UniqueParent()
		if err != nil {
			return nil, gitqerrors.NewPreconditionError(
				"commit %s is not on a linear chain above %s: %v",
				git.Abbrev(cur), git.Abbrev(targetSHA), err)
		}
		if parent == targetSHA {
			successor = cur
			break
		}
		descendants = append(descendants, cur)
		cur = parent
	}

	targetInfo, err := store.Commit(targetSHA)
	if err != nil {
		return nil, err
	}
	targetParent, err := targetInfo.UniqueParent()
	if err != nil {
		return nil, gitqerrors.NewPreconditionError("cannot swap %s: %v", git.Abbrev(targetSHA), err)
	}

	successorInfo, err := store.Commit(successor)
	if err != nil {
		return nil, err
	}

	steps := []*Step{{
		Kind:       StepSwap,
		Pick:       successor,
		Pinned:     targetSHA,
		PinnedTree: successorInfo.Tree,
	}}
	for i := len(descendants) - 1; i >= 0; i-- {
		steps = append(steps, &Step{Kind: StepReplay, Pick: descendants[i]})
	}

	return &State{
		Command:     "reorder",
		Branch:      branch,
		OriginalTip: tip,
		Onto:        targetParent,
		Steps:       steps,
	}, nil
}
