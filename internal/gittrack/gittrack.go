// Package gittrack exposes the handful of git facts the incremental planner
// needs, backed by go-git rather than shelling out to the git binary. Every
// operation returns a safe zero-value default outside a repository instead
// of an error, matching §4.6's no-op contract.
package gittrack

import (
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Status summarizes a working tree at a point in time.
type Status struct {
	Branch          string
	HeadCommit      string
	HasUncommitted  bool
	UncommittedPaths []string
}

// Tracker wraps an optional go-git repository rooted at a directory.
type Tracker struct {
	repo *git.Repository // nil when the directory is not a repo
}

// Open opens the repository at root. A missing or non-git directory is not
// an error: subsequent calls behave as safe no-ops.
func Open(root string) *Tracker {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return &Tracker{}
	}
	return &Tracker{repo: repo}
}

// IsRepo reports whether root resolved to a git repository.
func (t *Tracker) IsRepo() bool { return t.repo != nil }

// GetCurrentBranch returns the checked-out branch name, or "" outside a repo
// or in detached HEAD.
func (t *Tracker) GetCurrentBranch() string {
	if t.repo == nil {
		return ""
	}
	head, err := t.repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

// GetStatus returns the current branch, HEAD commit, and uncommitted paths.
func (t *Tracker) GetStatus() Status {
	if t.repo == nil {
		return Status{}
	}

	status := Status{Branch: t.GetCurrentBranch()}
	if head, err := t.repo.Head(); err == nil {
		status.HeadCommit = head.Hash().String()
	}
	status.UncommittedPaths = t.GetUncommittedChanges()
	status.HasUncommitted = len(status.UncommittedPaths) > 0
	return status
}

// GetUncommittedChanges returns the porcelain-style set of paths with
// working-tree or staged changes.
func (t *Tracker) GetUncommittedChanges() []string {
	if t.repo == nil {
		return nil
	}
	wt, err := t.repo.Worktree()
	if err != nil {
		return nil
	}
	st, err := wt.Status()
	if err != nil {
		return nil
	}

	var paths []string
	for path, s := range st {
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			paths = append(paths, path)
		}
	}
	return paths
}

// HasUncommittedChanges reports whether a specific path has pending changes.
func (t *Tracker) HasUncommittedChanges(path string) bool {
	for _, p := range t.GetUncommittedChanges() {
		if p == path {
			return true
		}
	}
	return false
}

// GetModifiedSince returns the set of paths touched by any commit authored
// after since, walking HEAD's history.
func (t *Tracker) GetModifiedSince(since time.Time) []string {
	if t.repo == nil {
		return nil
	}
	head, err := t.repo.Head()
	if err != nil {
		return nil
	}
	iter, err := t.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	_ = iter.ForEach(func(c *object.Commit) error {
		if c.Author.When.Before(since) {
			return storerErrStop
		}
		for _, p := range filesChangedIn(c) {
			seen[p] = true
		}
		return nil
	})

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	return paths
}

// GetRecentlyModifiedFiles returns up to limit distinct paths touched by the
// most recent commits, most-recent-first.
func (t *Tracker) GetRecentlyModifiedFiles(limit int) []string {
	if t.repo == nil {
		return nil
	}
	head, err := t.repo.Head()
	if err != nil {
		return nil
	}
	iter, err := t.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var ordered []string
	_ = iter.ForEach(func(c *object.Commit) error {
		if len(ordered) >= limit {
			return storerErrStop
		}
		for _, p := range filesChangedIn(c) {
			if !seen[p] {
				seen[p] = true
				ordered = append(ordered, p)
				if len(ordered) >= limit {
					return storerErrStop
				}
			}
		}
		return nil
	})
	return ordered
}

// GetFileHash returns the git blob SHA-1 of path at HEAD, or "" if it
// can't be resolved.
func (t *Tracker) GetFileHash(path string) string {
	if t.repo == nil {
		return ""
	}
	head, err := t.repo.Head()
	if err != nil {
		return ""
	}
	commit, err := t.repo.CommitObject(head.Hash())
	if err != nil {
		return ""
	}
	file, err := commit.File(path)
	if err != nil {
		return ""
	}
	return file.Hash.String()
}

// DiffPaths returns the set of paths that differ between two commits,
// identified by their full hash strings. Returns nil if either commit can't
// be resolved.
func (t *Tracker) DiffPaths(fromHash, toHash string) []string {
	if t.repo == nil || fromHash == "" || toHash == "" {
		return nil
	}
	from, err := t.repo.CommitObject(plumbing.NewHash(fromHash))
	if err != nil {
		return nil
	}
	to, err := t.repo.CommitObject(plumbing.NewHash(toHash))
	if err != nil {
		return nil
	}
	fromTree, err := from.Tree()
	if err != nil {
		return nil
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var paths []string
	for _, c := range changes {
		for _, p := range []string{c.From.Name, c.To.Name} {
			if p != "" && !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths
}

func filesChangedIn(c *object.Commit) []string {
	var paths []string
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil
		}
		patch, err := c.Patch(parent)
		if err != nil {
			return nil
		}
		for _, stat := range patch.Stats() {
			paths = append(paths, stat.Name)
		}
		return paths
	}

	tree, err := c.Tree()
	if err != nil {
		return nil
	}
	_ = tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	return paths
}

// storerErrStop is a sentinel returned from ForEach callbacks to stop
// iteration early without surfacing a real error to the caller.
var storerErrStop = errStop{}

type errStop struct{}

func (errStop) Error() string { return "stop" }
