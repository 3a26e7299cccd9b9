// Package git reads the revision of the scenario suite checkout, attached to failure
// reports so a failure can be matched with the scenario files that produced it.
package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNoCommits is returned for a repository without commits.
var ErrNoCommits = errors.New("no commits")

const shortHashLen = 7

// Revision describes the checked out commit.
type Revision struct {
	Branch string // empty for detached HEAD
	Hash   string // full commit hash
	Dirty  bool   // tracked files have uncommitted changes
}

// String returns branch@shorthash, "detached@shorthash" without a branch, with a
// "+dirty" suffix for uncommitted changes.
func (r Revision) String() string {
	if r.Hash == "" {
		return ""
	}
	branch := r.Branch
	if branch == "" {
		branch = "detached"
	}
	hash := r.Hash
	if len(hash) > shortHashLen {
		hash = hash[:shortHashLen]
	}
	res := branch + "@" + hash
	if r.Dirty {
		res += "+dirty"
	}
	return res
}

// Open reads the revision of the repository containing path, searching parent dirs.
func Open(path string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Revision{}, fmt.Errorf("open git repository %s: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Revision{}, ErrNoCommits
		}
		return Revision{}, fmt.Errorf("get HEAD: %w", err)
	}

	rev := Revision{Hash: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		if errors.Is(err, git.ErrIsBareRepository) {
			return rev, nil
		}
		return Revision{}, fmt.Errorf("get worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return Revision{}, fmt.Errorf("get status: %w", err)
	}
	for _, fs := range st {
		// untracked files don't count as dirty
		if fs.Staging == git.Untracked && fs.Worktree == git.Untracked {
			continue
		}
		if fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified {
			rev.Dirty = true
			break
		}
	}
	return rev, nil
}
