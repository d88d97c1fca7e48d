// Package repo locates the git repository that holds a registry so local
// manifest paths can be resolved against its top level.
package repo

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository indicates no git repository encloses the path.
var ErrNotRepository = errors.New("not inside a git repository")

// Info describes the repository enclosing a path.
type Info struct {
	Root   string
	Commit string
	Branch string
}

// Discover walks up from start to the enclosing repository and reports its
// worktree root and HEAD. An unborn HEAD leaves Commit and Branch empty.
func Discover(start string) (Info, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return Info{}, fmt.Errorf("resolve %s: %w", start, err)
	}
	repository, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return Info{}, fmt.Errorf("open repository at %s: %w", abs, err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return Info{}, fmt.Errorf("open worktree: %w", err)
	}

	info := Info{Root: wt.Filesystem.Root()}
	ref, err := repository.Head()
	switch {
	case err == nil:
		info.Commit = ref.Hash().String()
		if ref.Name().IsBranch() {
			info.Branch = ref.Name().Short()
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	default:
		return Info{}, fmt.Errorf("read HEAD: %w", err)
	}
	return info, nil
}

// Root returns the repository top level enclosing dir, or dir itself (made
// absolute) when it is not inside a repository.
func Root(dir string) string {
	if info, err := Discover(dir); err == nil {
		return info.Root
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
