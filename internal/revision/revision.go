// Package revision identifies the source revision of a project from its git
// repository.
package revision

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ShortLength is the number of hash characters kept by Short.
const ShortLength = 12

// Info describes the checked out revision.
type Info struct {
	Hash   string
	Branch string
	Dirty  bool
}

// Short returns the abbreviated hash, suffixed with "-dirty" when the
// worktree has uncommitted changes.
func (i Info) Short() string {
	if i.Hash == "" {
		return ""
	}
	h := i.Hash
	if len(h) > ShortLength {
		h = h[:ShortLength]
	}
	if i.Dirty {
		h += "-dirty"
	}
	return h
}

// Head reads the HEAD of the repository containing dir. Directories outside
// of a repository, and repositories without commits, report an empty Info.
func Head(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("open repository at %s: %w", dir, err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	info := Info{Hash: head.Hash().String()}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree to compare.
		return info, nil
	}
	status, err := wt.Status()
	if err != nil {
		return info, fmt.Errorf("worktree status: %w", err)
	}
	info.Dirty = !status.IsClean()
	return info, nil
}
