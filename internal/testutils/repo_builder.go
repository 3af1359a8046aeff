// Package testutils builds real, on-disk git repositories for use as test
// fixtures: a bundle's upstream remote, a cloned working copy, a nested
// dependency's own remote, and so on. Tests exercise the gitgw.Client
// against these directly rather than against a hand-rolled fake, since
// go-git itself needs no subprocess or network access to run.
package testutils

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultSignature is the author/committer used for fixture commits.
var DefaultSignature = object.Signature{
	Name:  "Test User",
	Email: "test@example.com",
	When:  time.Now(),
}

// RepoBuilder provides methods for building a git repository used as a
// test fixture, either a bare "remote" or a checked-out working copy.
type RepoBuilder struct {
	repo *git.Repository
	dir  string
}

// NewRepoBuilder initializes a working-copy RepoBuilder at dir.
func NewRepoBuilder(dir string) (*RepoBuilder, error) {
	// will create if dir dne
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("initializing plain git repository: %w", err)
	}

	return &RepoBuilder{repo: repo, dir: dir}, nil
}

// NewBareRepoBuilder initializes a bare RepoBuilder at dir, suitable for use
// as a fixture's upstream remote (fetch/push target).
func NewBareRepoBuilder(dir string) (*RepoBuilder, error) {
	repo, err := git.PlainInit(dir, true)
	if err != nil {
		return nil, fmt.Errorf("initializing bare git repository: %w", err)
	}

	return &RepoBuilder{repo: repo, dir: dir}, nil
}

// OpenRepoBuilder wraps an already-existing repository at dir, e.g. one
// produced by a Client.Clone call under test.
func OpenRepoBuilder(dir string) (*RepoBuilder, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("opening git repository: %w", err)
	}
	return &RepoBuilder{repo: repo, dir: dir}, nil
}

// Repo returns the underlying git repository.
func (b *RepoBuilder) Repo() *git.Repository {
	return b.repo
}

// Dir returns the repository's root directory (the working copy directory,
// or the bare repository's directory).
func (b *RepoBuilder) Dir() string {
	return b.dir
}

// WriteFile writes content to a path relative to the worktree root,
// creating parent directories as needed, without staging or committing it.
func (b *RepoBuilder) WriteFile(relPath, content string) error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting repository worktree: %w", err)
	}

	full := wt.Filesystem.Join(relPath)
	if dir := filepath.Dir(full); dir != "." {
		if err := wt.Filesystem.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating parent directories: %w", err)
		}
	}

	f, err := wt.Filesystem.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.WriteString(f, content); err != nil {
		return fmt.Errorf("writing file contents: %w", err)
	}
	return nil
}

// CommitAll stages every change in the worktree and commits it.
func (b *RepoBuilder) CommitAll(message string) (plumbing.Hash, error) {
	wt, err := b.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("getting repository worktree: %w", err)
	}

	if _, err := wt.Add("."); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("staging changes: %w", err)
	}

	sig := DefaultSignature
	sig.When = time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{Author: &sig})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("committing: %w", err)
	}
	return hash, nil
}

// CreateRandomCommit creates a commit with random file data of given size.
func (b *RepoBuilder) CreateRandomCommit(size int64) (plumbing.Hash, error) {
	if size < 0 {
		return plumbing.ZeroHash, fmt.Errorf("invalid file size %d expected >= 0", size)
	}
	wt, err := b.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("getting repository worktree: %w", err)
	}

	filename := fmt.Sprintf("file_%s.txt", rand.Text())
	f, err := wt.Filesystem.OpenFile(wt.Filesystem.Join(filename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(rand.Reader, size)); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("writing random data to file: %w", err)
	}
	if err := f.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("closing file: %w", err)
	}

	if _, err := wt.Add(filename); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("adding file to worktree: %w", err)
	}

	sig := DefaultSignature
	sig.When = time.Now()
	hash, err := wt.Commit("test commit", &git.CommitOptions{Author: &sig})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("committing file: %w", err)
	}

	return hash, nil
}

// CreateBranch creates a new branch.
func (b *RepoBuilder) CreateBranch(branchName string, commit plumbing.Hash) (*plumbing.Reference, error) {
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchName), commit)
	if err := b.repo.Storer.SetReference(ref); err != nil {
		return nil, fmt.Errorf("creating branch reference: %w", err)
	}
	return ref, nil
}

// DeleteBranch deletes a branch.
func (b *RepoBuilder) DeleteBranch(branchName string) error {
	refName := plumbing.NewBranchReferenceName(branchName)
	if err := b.repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("deleting branch reference: %w", err)
	}
	return nil
}

// CreateTag creates a lightweight tag.
func (b *RepoBuilder) CreateTag(tagName string, commit plumbing.Hash) (*plumbing.Reference, error) {
	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(tagName), commit)
	if err := b.repo.Storer.SetReference(ref); err != nil {
		return nil, fmt.Errorf("creating tag reference: %w", err)
	}
	return ref, nil
}

// DeleteTag deletes a tag.
func (b *RepoBuilder) DeleteTag(tagName string) error {
	refName := plumbing.NewTagReferenceName(tagName)
	if err := b.repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("deleting tag reference: %w", err)
	}
	return nil
}

// AddRemote configures a remote named "origin" pointing at url, matching
// what Client.Clone leaves behind.
func (b *RepoBuilder) AddRemote(url string) error {
	_, err := b.repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("creating remote: %w", err)
	}
	return nil
}

// CheckoutBranch moves HEAD to the tip of branchName, creating the branch
// reference if needed.
func (b *RepoBuilder) CheckoutBranch(branchName string, commit plumbing.Hash) error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting repository worktree: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(branchName)
	if _, err := b.repo.Reference(refName, false); err != nil {
		ref := plumbing.NewHashReference(refName, commit)
		if err := b.repo.Storer.SetReference(ref); err != nil {
			return fmt.Errorf("creating branch reference: %w", err)
		}
	}

	if err := wt.Checkout(&git.CheckoutOptions{Branch: refName}); err != nil {
		return fmt.Errorf("checking out branch: %w", err)
	}
	return nil
}
