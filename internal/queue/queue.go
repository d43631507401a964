package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/smoofra/gitq/internal/engine"
	gitqerrors "github.com/smoofra/gitq/internal/errors"
	"github.com/smoofra/gitq/internal/git"
)

// Queue is the patch queue recorded on a branch: its metadata file, the tip
// it was read from, and the branch it lives on.
type Queue struct {
	repo   *git.Repository
	File   *File
	Branch string
	Tip    string
}

// Load reads and validates the queue at the current branch's tip.
func Load(repo *git.Repository) (*Queue, error) {
	return load(repo, true)
}

// load reads the queue; strict additionally enforces that every baseline is
// an ancestor of the tip. A freshly initialized multi-baseline queue only
// satisfies that once its first sync has built the integration point.
func load(repo *git.Repository, strict bool) (*Queue, error) {
	branch, err := repo.CurrentBranch()
	if err != nil {
		return nil, gitqerrors.NewPreconditionError("%v", err)
	}
	tip, err := repo.RevParse(branch)
	if err != nil {
		return nil, err
	}

	content, found, err := repo.FileAtCommit(tip, FileName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gitqerrors.NewConfigError(
			fmt.Sprintf("branch %s is not a queue (no %s file); run 'gitq queue init'", branch, FileName),
			gitqerrors.ErrNotAQueue)
	}

	file, err := Parse([]byte(content))
	if err != nil {
		return nil, err
	}

	// Invariant: every recorded baseline must be an ancestor of the tip it
	// is recorded at.
	if strict {
		for _, baseline := range file.Baselines {
			ancestor, err := repo.IsAncestor(baseline.SHA, tip)
			if err != nil {
				return nil, gitqerrors.NewConfigError(
					fmt.Sprintf("baseline %s is not a commit in this repository", git.Abbrev(baseline.SHA)), err)
			}
			if !ancestor {
				return nil, gitqerrors.NewConfigError(
					fmt.Sprintf("baseline %s is not an ancestor of %s", git.Abbrev(baseline.SHA), branch), nil)
			}
		}
	}

	return &Queue{repo: repo, File: file, Branch: branch, Tip: tip}, nil
}

// Patches returns the queue's patch commits between the baselines and the
// tip, oldest first. Tool-written commits and commits that only touch the
// queue file are not patches. A foreign merge commit in the range violates
// the linear-chain invariant and is rejected.
func (q *Queue) Patches() ([]*git.CommitInfo, error) {
	shas, err := q.repo.RevListRange(q.Tip, q.File.BaselineSHAs())
	if err != nil {
		return nil, err
	}

	var patches []*git.CommitInfo
	for _, sha := range shas {
		info, err := q.repo.Commit(sha)
		if err != nil {
			return nil, err
		}
		if IsToolCommit(info.Message) {
			continue
		}
		if len(info.Parents) > 1 {
			return nil, gitqerrors.NewPreconditionError(
				"queue contains a merge commit %s that gitq did not create", git.Abbrev(sha))
		}
		paths, err := q.repo.ChangedPaths(sha)
		if err != nil {
			return nil, err
		}
		if len(paths) == 1 && paths[0] == FileName {
			continue
		}
		patches = append(patches, info)
	}
	return patches, nil
}

// RefreshBaselines resolves each baseline's symbolic ref to its current
// commit, fetching remote-tracking baselines first. Pinned baselines (no ref)
// are returned unchanged.
func (q *Queue) RefreshBaselines() ([]Baseline, error) {
	refreshed := make([]Baseline, 0, len(q.File.Baselines))
	for _, baseline := range q.File.Baselines {
		updated, err := q.refreshBaseline(baseline)
		if err != nil {
			return nil, err
		}
		refreshed = append(refreshed, updated)
	}
	return refreshed, nil
}

func (q *Queue) refreshBaseline(baseline Baseline) (Baseline, error) {
	if baseline.Ref == "" {
		return baseline, nil
	}

	if baseline.Remote != "" {
		return q.refreshRemoteBaseline(baseline)
	}

	sha, err := q.repo.RevParse(baseline.Ref)
	if err != nil {
		return Baseline{}, gitqerrors.NewConfigError(
			fmt.Sprintf("baseline ref %s cannot be resolved", baseline.Ref), err)
	}
	return Baseline{SHA: sha, Ref: baseline.Ref}, nil
}

func (q *Queue) refreshRemoteBaseline(baseline Baseline) (Baseline, error) {
	runner := q.repo.Runner()

	remote := q.findRemoteByURL(baseline.Remote)
	fetched := "FETCH_HEAD"
	if remote != "" && strings.HasPrefix(baseline.Ref, "refs/heads/") {
		if _, err := runner.Run(nil, "fetch", remote); err != nil {
			return Baseline{}, gitqerrors.NewConfigError(
				fmt.Sprintf("failed to fetch remote %s", remote), err)
		}
		branch := strings.TrimPrefix(baseline.Ref, "refs/heads/")
		fetched = fmt.Sprintf("refs/remotes/%s/%s", remote, branch)
	} else {
		if _, err := runner.Run(nil, "fetch", baseline.Remote, baseline.Ref); err != nil {
			return Baseline{}, gitqerrors.NewConfigError(
				fmt.Sprintf("failed to fetch %s from %s", baseline.Ref, baseline.Remote), err)
		}
	}

	sha, err := q.repo.RevParse(fetched)
	if err != nil {
		return Baseline{}, gitqerrors.NewConfigError(
			fmt.Sprintf("baseline ref %s cannot be resolved after fetch", baseline.Ref), err)
	}
	return Baseline{SHA: sha, Ref: baseline.Ref, Remote: baseline.Remote}, nil
}

// findRemoteByURL returns the name of the configured remote with the given
// URL, or "".
func (q *Queue) findRemoteByURL(url string) string {
	remotes, err := q.repo.Remotes()
	if err != nil {
		return ""
	}
	for _, remote := range remotes {
		for _, u := range remote.Config().URLs {
			if u == url {
				return remote.Config().Name
			}
		}
	}
	return ""
}

// PlanSync builds the sequencer operation that resynchronizes the queue onto
// its refreshed baselines: rebuild the integration point, then replay every
// patch in original order. Returns nil when every baseline is already at its
// pinned commit.
func (q *Queue) PlanSync() (*engine.State, error) {
	refreshed, err := q.RefreshBaselines()
	if err != nil {
		return nil, err
	}

	// A baseline needs integrating when its ref moved, or when it was never
	// integrated into this branch in the first place.
	changed := false
	for i, baseline := range refreshed {
		if baseline.SHA != q.File.Baselines[i].SHA {
			changed = true
			break
		}
		ancestor, err := q.repo.IsAncestor(baseline.SHA, q.Tip)
		if err != nil {
			return nil, err
		}
		if !ancestor {
			changed = true
			break
		}
	}
	if !changed {
		return nil, nil
	}

	patches, err := q.Patches()
	if err != nil {
		return nil, err
	}

	updated := &File{
		Title:       q.File.Title,
		Description: q.File.Description,
		Baselines:   refreshed,
	}
	encoded, err := updated.Encode()
	if err != nil {
		return nil, err
	}
	blob, err := q.repo.CreateBlob(encoded)
	if err != nil {
		return nil, err
	}

	action := "gitq: baseline"
	if len(refreshed) > 1 {
		action = "gitq: merged baselines"
	}
	steps := []*engine.Step{{
		Kind:      engine.StepIntegrate,
		Baselines: baselineSHAs(refreshed),
		Message:   toolMessage(action, q.File.Title),
		GraftPath: FileName,
		GraftBlob: blob,
	}}
	for _, patch := range patches {
		steps = append(steps, &engine.Step{Kind: engine.StepReplay, Pick: patch.SHA})
	}

	return &engine.State{
		Command:     "queue sync",
		Branch:      q.Branch,
		OriginalTip: q.Tip,
		Steps:       steps,
	}, nil
}

func baselineSHAs(baselines []Baseline) []string {
	shas := make([]string, len(baselines))
	for i, baseline := range baselines {
		shas[i] = baseline.SHA
	}
	return shas
}

var remoteTrackingRe = regexp.MustCompile(`^refs/remotes/([^/]+)/(.+)$`)

// ParseBaselineRef builds a new baseline from a user-provided revision. A
// remote-tracking ref is recorded with its remote URL so clones of the queue
// branch can refresh it; a bare SHA or HEAD is pinned; anything else follows
// the local symbolic ref.
func ParseBaselineRef(repo *git.Repository, ref string) (Baseline, error) {
	sha, err := repo.RevParse(ref)
	if err != nil {
		return Baseline{}, gitqerrors.NewConfigError(fmt.Sprintf("baseline %q cannot be resolved", ref), err)
	}
	fullName, err := repo.SymbolicFullName(ref)
	if err != nil {
		return Baseline{}, err
	}

	if m := remoteTrackingRe.FindStringSubmatch(fullName); m != nil {
		remote, branch := m[1], m[2]
		url, err := repo.Runner().Run(nil, "remote", "get-url", remote)
		if err != nil {
			return Baseline{}, gitqerrors.NewConfigError(fmt.Sprintf("failed to read URL of remote %s", remote), err)
		}
		return Baseline{SHA: sha, Ref: "refs/heads/" + branch, Remote: url}, nil
	}
	if ref == sha || ref == "HEAD" || fullName == "" {
		return Baseline{SHA: sha}, nil
	}
	return Baseline{SHA: sha, Ref: fullName}, nil
}

// Init creates the queue metadata file on the current branch, commits it, and
// returns the sync plan that integrates the baselines, or nil when the queue
// is already integrated (the single-baseline, already-an-ancestor case).
func Init(repo *git.Repository, refs []string, title string) (*engine.State, error) {
	clean, err := repo.IsClean()
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, gitqerrors.NewPreconditionError("working tree is not clean; commit or stash your changes first")
	}
	if _, err := repo.CurrentBranch(); err != nil {
		return nil, gitqerrors.NewPreconditionError("%v", err)
	}

	path := filepath.Join(repo.Root(), FileName)
	if _, err := os.Stat(path); err == nil {
		return nil, gitqerrors.NewPreconditionError("this branch already has a %s file", FileName)
	}

	var baselines []Baseline
	for _, ref := range refs {
		baseline, err := ParseBaselineRef(repo, ref)
		if err != nil {
			return nil, err
		}
		baselines = append(baselines, baseline)
	}

	file := &File{Title: title, Baselines: baselines}
	encoded, err := file.Encode()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(encoded), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", FileName, err)
	}

	runner := repo.Runner()
	if _, err := runner.Run(nil, "add", FileName); err != nil {
		return nil, err
	}
	if _, err := runner.RunWithInput(nil, toolMessage("gitq: initialized queue", title), "commit", "-F", "-"); err != nil {
		return nil, err
	}

	q, err := load(repo, false)
	if err != nil {
		return nil, err
	}
	return q.PlanSync()
}

// Tidy normalizes the queue file in the working tree.
func Tidy(repo *git.Repository) error {
	path := filepath.Join(repo.Root(), FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return gitqerrors.NewConfigError(fmt.Sprintf("no %s file in the working tree", FileName), nil)
		}
		return fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	file, err := Parse(data)
	if err != nil {
		return err
	}
	encoded, err := file.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(encoded), 0644)
}
