package engine

import (
	"strings"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
)

// PlanSquash builds the operation that folds target into its parent: one
// squash step producing a single commit with the target's tree and the
// parent's authorship, then a replay step for each descendant. With fixup the
// parent's message is kept as-is; otherwise the two messages are joined.
//
// The squash reuses the target's tree verbatim, so it can never conflict.
func PlanSquash(store git.Store, branch, target string, fixup bool) (*State, error) {
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

	targetInfo, err := store.Commit(targetSHA)
	if err != nil {
		return nil, err
	}
	parentSHA, err := targetInfo.UniqueParent()
	if err != nil {
		return nil, gitqerrors.NewPreconditionError(
			"commit %s has no single parent to squash into: %v", git.Abbrev(targetSHA), err)
	}

	parentInfo, err := store.Commit(parentSHA)
	if err != nil {
		return nil, err
	}
	onto := ""
	switch len(parentInfo.Parents) {
	case 0:
	case 1:
		onto = parentInfo.Parents[0]
	default:
		return nil, gitqerrors.NewPreconditionError(
			"cannot squash into merge commit %s", git.Abbrev(parentSHA))
	}

	message := parentInfo.Message
	if !fixup {
		message = strings.TrimRight(parentInfo.Message, "\n") + "\n\n" + targetInfo.Message
	}

	steps := []*Step{{
		Kind:    StepSquash,
		Pick:    targetSHA,
		Pinned:  parentSHA,
		Message: message,
	}}
	for i := len(descendants) - 1; i >= 0; i-- {
		steps = append(steps, &Step{Kind: StepReplay, Pick: descendants[i]})
	}

	return &State{
		Command:     "squash",
		Branch:      branch,
		OriginalTip: tip,
		Onto:        onto,
		Steps:       steps,
	}, nil
}
