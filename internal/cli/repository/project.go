package repository

import (
	git "gopkg.in/src-d/go-git.v4"
)

// ProjectInspector reads metadata out of a local project directory.
type ProjectInspector struct{}

// HeadCommit returns the HEAD commit hash of the project directory, or an
// error when it is not a git repository.
func (ProjectInspector) HeadCommit(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}
