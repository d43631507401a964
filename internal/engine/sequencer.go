// Package engine implements the swap engine and the resumable sequencer that
// rewrites patch-queue history.
//
// The sequencer drives an ordered list of steps, each of which is either a
// plain replay, a swap of two adjacent commits, or the rebuild of the
// baseline integration point. New commits are built bottom-up with object
// level merges; the working tree is only touched when a merge conflicts and
// the user has to resolve it. The branch ref moves exactly once, at the end,
// via compare-and-swap.
package engine

import (
	"fmt"

	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
	"github.com/smoofra/gitq/internal/tui"
)

// Sequencer executes a persisted, resumable list of history-rewriting steps.
type Sequencer struct {
	store  git.Store
	splog  *tui.Splog
	gitDir string
}

// NewSequencer creates a sequencer over the given object store.
func NewSequencer(store git.Store, splog *tui.Splog, gitDir string) *Sequencer {
	return &Sequencer{store: store, splog: splog, gitDir: gitDir}
}

// Start begins a new operation. It refuses to start if another operation is
// pending or the working tree is dirty; nothing is mutated in either case.
func (s *Sequencer) Start(state *State) error {
	if StateExists(s.gitDir) {
		return gitqerrors.NewPreconditionError(
			"a gitq operation is already in progress (resolve it with 'gitq queue continue' or 'gitq queue abort')")
	}
	clean, err := s.store.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		return gitqerrors.NewPreconditionError("working tree is not clean; commit or stash your changes first")
	}
	if err := PersistState(s.gitDir, state); err != nil {
		return err
	}
	return s.run(state)
}

// Continue resumes a paused operation using the user's staged conflict
// resolution as the merge result.
func (s *Sequencer) Continue() error {
	state, err := LoadState(s.gitDir)
	if err != nil {
		return err
	}

	if state.EditPending {
		clean, err := s.store.IsClean()
		if err != nil {
			return err
		}
		if !clean {
			return gitqerrors.NewPreconditionError(
				"working tree is not clean; amend or stash your changes first")
		}
		head, err := s.store.RevParse("HEAD")
		if err != nil {
			return err
		}
		state.Onto = head
		state.EditPending = false
		state.Index++
		if err := PersistState(s.gitDir, state); err != nil {
			return err
		}
		return s.run(state)
	}

	if state.ConflictPending {
		unmerged, err := s.store.UnmergedFiles()
		if err != nil {
			return err
		}
		if len(unmerged) > 0 {
			return gitqerrors.NewPreconditionError(
				"unresolved conflicts remain in: %v (resolve and 'git add' them first)", unmerged)
		}

		tree, err := s.store.WriteIndexTree()
		if err != nil {
			return err
		}
		if err := s.store.AbandonMergeState(); err != nil {
			return err
		}

		step := state.Steps[state.Index]
		done, err := s.completeStep(state, step, tree)
		if err != nil {
			return err
		}
		state.ConflictPending = false
		if done {
			state.Index++
		}
		if err := PersistState(s.gitDir, state); err != nil {
			return err
		}
	}

	return s.run(state)
}

// Abort cancels the pending operation and restores the pre-operation state.
// The branch ref was never moved, so only the working tree and the state
// record need cleaning up; commits already written stay behind as
// unreferenced objects for the store's own garbage collection.
func (s *Sequencer) Abort() error {
	state, err := LoadState(s.gitDir)
	if err != nil {
		return err
	}
	if err := s.store.AbandonMergeState(); err != nil {
		return err
	}
	if err := s.store.CheckoutBranch(state.Branch); err != nil {
		return err
	}
	if err := ClearState(s.gitDir); err != nil {
		return err
	}
	s.splog.Info("Cancelled. Previous state restored.")
	return nil
}

// run executes steps from the current index until completion or a pause.
func (s *Sequencer) run(state *State) error {
	for state.Index < len(state.Steps) {
		step := state.Steps[state.Index]
		if err := s.runStep(state, step); err != nil {
			return err
		}
		state.Index++
		if err := PersistState(s.gitDir, state); err != nil {
			return err
		}
	}
	return s.finish(state)
}

func (s *Sequencer) runStep(state *State, step *Step) error {
	switch step.Kind {
	case StepReplay:
		return s.runReplay(state, step)
	case StepSwap:
		return s.runSwap(state, step)
	case StepSquash:
		return s.runSquash(state, step)
	case StepEdit:
		return s.runEdit(state, step)
	case StepIntegrate:
		return s.runIntegrate(state, step)
	default:
		return fmt.Errorf("unknown sequencer step kind %q", step.Kind)
	}
}

// runReplay re-parents a single commit onto state.Onto: a three-way merge of
// the commit against its original parent, applied to the new parent.
func (s *Sequencer) runReplay(state *State, step *Step) error {
	info, err := s.store.Commit(step.Pick)
	if err != nil {
		return err
	}
	parent, err := info.UniqueParent()
	if err != nil {
		return gitqerrors.NewPreconditionError("cannot replay %s: %v", git.Abbrev(step.Pick), err)
	}

	s.splog.Debug("replaying %s onto %s", git.Abbrev(step.Pick), git.Abbrev(state.Onto))
	result, err := s.store.Merge3(parent, state.Onto, step.Pick)
	if err != nil {
		return err
	}
	if !result.Clean() {
		return s.pause(state, result.Conflicts, state.Onto, step.Pick, false)
	}

	sha, err := s.store.WriteCommit([]string{state.Onto}, result.Tree, info.Meta())
	if err != nil {
		return err
	}
	state.Onto = sha
	return nil
}

// runSwap reorders two adjacent commits. The pick (originally the upper
// commit) is merged down onto state.Onto; this is the only point where
// conflicts can arise. The pinned commit is then rewired on top with its
// final tree reused verbatim, so the tip content is unchanged no matter how
// the first merge was resolved.
func (s *Sequencer) runSwap(state *State, step *Step) error {
	s.splog.Debug("swapping %s below %s", git.Abbrev(step.Pinned), git.Abbrev(step.Pick))
	result, err := s.store.Merge3(step.Pinned, state.Onto, step.Pick)
	if err != nil {
		return err
	}
	if !result.Clean() {
		return s.pause(state, result.Conflicts, state.Onto, step.Pick, false)
	}
	_, err = s.completeSwap(state, step, result.Tree)
	return err
}

// completeSwap writes the swapped pair given the merged (or user-resolved)
// tree for the lowered commit.
func (s *Sequencer) completeSwap(state *State, step *Step, tree string) (bool, error) {
	pickInfo, err := s.store.Commit(step.Pick)
	if err != nil {
		return false, err
	}
	lowered, err := s.store.WriteCommit([]string{state.Onto}, tree, pickInfo.Meta())
	if err != nil {
		return false, err
	}

	pinnedInfo, err := s.store.Commit(step.Pinned)
	if err != nil {
		return false, err
	}
	raised, err := s.store.WriteCommit([]string{lowered}, step.PinnedTree, pinnedInfo.Meta())
	if err != nil {
		return false, err
	}
	state.Onto = raised
	return true, nil
}

// runSquash combines the pick with its parent: one commit with the pick's
// tree reused verbatim, the parent's authorship, and the message composed at
// planning time. No merge is involved, so a squash never conflicts.
func (s *Sequencer) runSquash(state *State, step *Step) error {
	pickInfo, err := s.store.Commit(step.Pick)
	if err != nil {
		return err
	}
	parentInfo, err := s.store.Commit(step.Pinned)
	if err != nil {
		return err
	}

	s.splog.Debug("squashing %s into %s", git.Abbrev(step.Pick), git.Abbrev(step.Pinned))
	meta := parentInfo.Meta()
	meta.Message = step.Message
	var parents []string
	if state.Onto != "" {
		parents = []string{state.Onto}
	}
	sha, err := s.store.WriteCommit(parents, pickInfo.Tree, meta)
	if err != nil {
		return err
	}
	state.Onto = sha
	return nil
}

// runEdit checks out the pick with a detached HEAD and pauses so the user can
// amend it. Continue picks up the amended HEAD as the new base for the
// remaining replays.
func (s *Sequencer) runEdit(state *State, step *Step) error {
	info, err := s.store.Commit(step.Pick)
	if err != nil {
		return err
	}
	if err := s.store.CheckoutDetached(step.Pick); err != nil {
		return err
	}

	state.EditPending = true
	if err := PersistState(s.gitDir, state); err != nil {
		return err
	}

	s.splog.Info("Stopped at %s  %s", git.Abbrev(step.Pick), info.Summary())
	s.splog.Newline()
	s.splog.Tip("Amend the commit ('git commit --amend'), then run 'gitq queue continue'.")
	s.splog.Tip("Run 'gitq queue abort' to cancel and restore the previous state.")
	return gitqerrors.ErrEditPending
}

// runIntegrate rebuilds the integration point joining the step's baselines.
// Baselines are folded into an accumulator pairwise; only the final commit,
// carrying all baselines as parents and the grafted queue file, stays
// reachable. With a single baseline the result is a plain linear anchor
// commit.
func (s *Sequencer) runIntegrate(state *State, step *Step) error {
	n := len(step.Baselines)
	if n == 0 {
		return gitqerrors.NewPreconditionError("queue has no baselines")
	}

	if step.Acc == "" {
		first := step.Baselines[0]
		if n == 1 {
			tree, err := s.store.TreeOf(first)
			if err != nil {
				return err
			}
			if step.GraftBlob != "" {
				if tree, err = s.store.GraftBlob(tree, step.GraftPath, step.GraftBlob); err != nil {
					return err
				}
			}
			sha, err := s.store.WriteCommit([]string{first}, tree, git.CommitMeta{Message: step.Message})
			if err != nil {
				return err
			}
			state.Onto = sha
			return nil
		}
		step.Acc = first
		step.Pos = 1
	}

	for step.Pos < n {
		next := step.Baselines[step.Pos]
		base, err := s.store.MergeBase(step.Acc, next)
		if err != nil {
			return err
		}
		result, err := s.store.Merge3(base, step.Acc, next)
		if err != nil {
			return err
		}
		if !result.Clean() {
			return s.pause(state, result.Conflicts, step.Acc, next, true)
		}
		if _, err := s.advanceIntegrate(state, step, result.Tree); err != nil {
			return err
		}
	}
	return nil
}

// advanceIntegrate commits the merged tree for the baseline at step.Pos and
// moves the accumulator forward. Returns true once all baselines are folded.
func (s *Sequencer) advanceIntegrate(state *State, step *Step, tree string) (bool, error) {
	last := step.Pos == len(step.Baselines)-1
	if last && step.GraftBlob != "" {
		var err error
		if tree, err = s.store.GraftBlob(tree, step.GraftPath, step.GraftBlob); err != nil {
			return false, err
		}
	}

	parents := append([]string{}, step.Baselines[:step.Pos+1]...)
	acc, err := s.store.WriteCommit(parents, tree, git.CommitMeta{Message: step.Message})
	if err != nil {
		return false, err
	}
	step.Pos++
	if last {
		state.Onto = acc
		return true, nil
	}
	step.Acc = acc
	return false, nil
}

// completeStep finishes the step at state.Index using the user-resolved tree.
// Returns true when the step is fully done and the index may advance.
func (s *Sequencer) completeStep(state *State, step *Step, tree string) (bool, error) {
	switch step.Kind {
	case StepReplay:
		info, err := s.store.Commit(step.Pick)
		if err != nil {
			return false, err
		}
		sha, err := s.store.WriteCommit([]string{state.Onto}, tree, info.Meta())
		if err != nil {
			return false, err
		}
		state.Onto = sha
		return true, nil
	case StepSwap:
		return s.completeSwap(state, step, tree)
	case StepIntegrate:
		return s.advanceIntegrate(state, step, tree)
	default:
		return false, fmt.Errorf("unknown sequencer step kind %q", step.Kind)
	}
}

// pause materializes the conflict in the working tree with ordinary git
// conflict markers, persists the sequencer state, and returns the expected
// ConflictsPending pause.
func (s *Sequencer) pause(state *State, conflicts []string, ours, theirs string, merge bool) error {
	if err := s.store.CheckoutDetached(ours); err != nil {
		return err
	}
	if merge {
		if err := s.store.MergeNoCommit(theirs); err != nil {
			return err
		}
	} else {
		if err := s.store.CherryPickNoCommit(theirs); err != nil {
			return err
		}
	}

	state.ConflictPending = true
	if err := PersistState(s.gitDir, state); err != nil {
		return err
	}

	s.splog.Warn("Conflicts while applying %s:", git.Abbrev(theirs))
	for _, path := range conflicts {
		s.splog.Info("  %s", path)
	}
	s.splog.Newline()
	s.splog.Tip("Resolve the conflicts, stage the files, then run 'gitq queue continue'.")
	s.splog.Tip("Run 'gitq queue abort' to cancel and restore the previous state.")
	return gitqerrors.NewConflictsPendingError(conflicts)
}

// finish points the branch ref at the rebuilt tip via compare-and-swap and
// removes the persisted state. On a ref race nothing reachable was written
// and the branch is left wherever the other process moved it.
func (s *Sequencer) finish(state *State) error {
	ref := "refs/heads/" + state.Branch

	if err := s.store.UpdateRef(ref, state.Onto, state.OriginalTip); err != nil {
		if clearErr := ClearState(s.gitDir); clearErr != nil {
			s.splog.Warn("%v", clearErr)
		}
		detached, detErr := s.store.IsDetached()
		if detErr == nil && detached {
			if coErr := s.store.CheckoutBranch(state.Branch); coErr != nil {
				s.splog.Warn("%v", coErr)
			}
		}
		return err
	}

	if err := ClearState(s.gitDir); err != nil {
		return err
	}

	detached, err := s.store.IsDetached()
	if err != nil {
		return err
	}
	if detached {
		if err := s.store.CheckoutBranch(state.Branch); err != nil {
			return err
		}
	} else {
		if err := s.store.HardReset(state.Onto); err != nil {
			return err
		}
	}

	s.splog.Info("%s: %s is now at %s", state.Command, state.Branch, git.Abbrev(state.Onto))
	return nil
}
