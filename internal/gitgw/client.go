// Package gitgw is the Git Gateway: the only part of the engine that talks
// to git. It wraps go-git behind a narrow capability interface so the
// Resolver and Orchestrator never import go-git directly.
package gitgw

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Interface is the capability surface the Resolver and Orchestrator depend
// on (§4.2, §9 "Dynamic dispatch / pluggable git"). Production code binds
// it to *Client; tests use real repositories built by testutils.RepoBuilder.
type Interface interface {
	// Clone performs a shallow clone at ref (a tag, branch, or commit-ish)
	// into intoDir. A commit-ish is recognized only as the full SHA of a
	// commit some advertised branch or tag points at; other commits are
	// reported as not found.
	Clone(ctx context.Context, url, ref, intoDir string) error

	// Fetch fetches all remote refs into an existing clone.
	Fetch(ctx context.Context, dir string) error

	// Checkout moves the working tree to ref. Fails if the working tree is
	// dirty.
	Checkout(dir, ref string) error

	// Head resolves HEAD to a commit SHA.
	Head(dir string) (string, error)

	// ResolveRef resolves a ref name to a SHA without checking it out.
	ResolveRef(dir, ref string) (string, error)

	// IsDirty reports whether the working tree has uncommitted changes or
	// untracked files under tracked paths.
	IsDirty(dir string) (bool, error)

	// IsDirtyPath reports whether dir's working tree has uncommitted
	// changes confined to path (relative to dir). An empty path is
	// equivalent to IsDirty.
	IsDirtyPath(dir, path string) (bool, error)

	// StageAll stages every change in the working tree.
	StageAll(dir string) error

	// StagePath stages every change under path (relative to dir), leaving
	// changes elsewhere in the working tree unstaged. An empty path is
	// equivalent to StageAll.
	StagePath(dir, path string) error

	// Commit commits currently staged changes, returning the new SHA.
	Commit(dir, message string) (string, error)

	// Push pushes ref to remote.
	Push(ctx context.Context, dir, remote, ref string) error

	// RemoteURL returns the normalized origin URL.
	RemoteURL(dir string) (string, error)

	// CurrentBranch returns the short name of the branch dir's HEAD points
	// at. Used by publish to push to whatever branch the author currently
	// has checked out, rather than a hardcoded default.
	CurrentBranch(dir string) (string, error)

	// ResolveRemote resolves ref (a tag, branch, or commit-ish) against url
	// without cloning it, returning the matched ref name (empty if ref was
	// a literal commit-ish) and its commit SHA. As with Clone, a commit-ish
	// matches only the full SHA of an advertised ref tip. Used by the Resolver for
	// version-to-ref candidate matching and for computing the SHA half of
	// a cycle-detection triple before a bundle is fetched.
	ResolveRemote(ctx context.Context, url, ref string) (resolvedRef, sha string, err error)
}

// Client implements Interface on top of go-git.
type Client struct {
	// Signature is used as the author and committer of commits made by
	// Commit. Defaults to a generic "fpm" identity if zero.
	Signature object.Signature
}

// NewClient constructs a Client with the default commit signature.
func NewClient() *Client {
	return &Client{
		Signature: object.Signature{
			Name:  "fpm",
			Email: "fpm@localhost",
		},
	}
}

var _ Interface = (*Client)(nil)

// ResolveRemote implements Interface.
func (c *Client) ResolveRemote(ctx context.Context, url, ref string) (string, string, error) {
	refName, hash, err := resolveCloneTarget(ctx, url, ref)
	if err != nil {
		return "", "", err
	}
	return refName.String(), hash.String(), nil
}

// Clone implements Interface.
func (c *Client) Clone(ctx context.Context, url, ref, intoDir string) error {
	refName, hash, err := resolveCloneTarget(ctx, url, ref)
	if err != nil {
		return err
	}

	opts := &gogit.CloneOptions{
		URL:   url,
		Depth: 1,
	}
	if refName != "" {
		opts.ReferenceName = refName
		opts.SingleBranch = true
	}

	repo, err := gogit.PlainCloneContext(ctx, intoDir, false, opts)
	if err != nil {
		return &Error{Kind: KindClone, URL: url, Err: err}
	}

	if refName != "" {
		return nil
	}

	// ref was a literal commit-ish: a shallow single-branch clone can't
	// target an arbitrary commit directly, so widen the history and check
	// it out explicitly.
	if err := repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: "origin"}); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return &Error{Kind: KindClone, URL: url, Err: err}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return &Error{Kind: KindClone, URL: url, Err: err}
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash}); err != nil {
		return &Error{Kind: KindClone, URL: url, Err: err}
	}

	return nil
}

// resolveCloneTarget lists the remote's refs to decide whether ref names a
// tag, a branch, or a literal commit-ish, without requiring a full clone
// first. A literal commit-ish is matched only against the full SHAs the
// remote advertises for its refs; an abbreviated SHA or a commit that no
// ref points at is not found.
func resolveCloneTarget(ctx context.Context, url, ref string) (plumbing.ReferenceName, plumbing.Hash, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	refs, err := remote.ListContext(ctx, &gogit.ListOptions{})
	if err != nil {
		return "", plumbing.ZeroHash, mapTransportError(url, err)
	}

	tagName := plumbing.NewTagReferenceName(ref)
	branchName := plumbing.NewBranchReferenceName(ref)

	for _, r := range refs {
		switch r.Name() {
		case tagName, branchName:
			return r.Name(), r.Hash(), nil
		}
	}

	for _, r := range refs {
		if r.Hash().String() == ref {
			return "", r.Hash(), nil
		}
	}

	return "", plumbing.ZeroHash, &Error{
		Kind: KindRefNotFound,
		URL:  url,
		Err:  fmt.Errorf("ref %q not found among remote refs", ref),
	}
}

// Fetch implements Interface.
func (c *Client) Fetch(ctx context.Context, dir string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}

	err = repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: "origin", Tags: gogit.AllTags})
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	default:
		return mapTransportError("", err)
	}
}

// Checkout implements Interface.
func (c *Client) Checkout(dir, ref string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}

	dirty, err := isDirty(repo)
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}
	if dirty {
		return &Error{Kind: KindDirtyWorktree, Err: fmt.Errorf("working tree at %s has uncommitted changes", dir)}
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return &Error{Kind: KindRefNotFound, Err: fmt.Errorf("resolving %q: %w", ref, err)}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: *hash}); err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}

	return nil
}

// Head implements Interface.
func (c *Client) Head(dir string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}

	ref, err := repo.Head()
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}
	return ref.Hash().String(), nil
}

// ResolveRef implements Interface.
func (c *Client) ResolveRef(dir, ref string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", &Error{Kind: KindRefNotFound, Err: fmt.Errorf("resolving %q: %w", ref, err)}
	}
	return hash.String(), nil
}

// IsDirty implements Interface.
func (c *Client) IsDirty(dir string) (bool, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return false, &Error{Kind: KindFilesystem, Err: err}
	}
	dirty, err := isDirty(repo)
	if err != nil {
		return false, &Error{Kind: KindFilesystem, Err: err}
	}
	return dirty, nil
}

func isDirty(repo *gogit.Repository) (bool, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("getting worktree status: %w", err)
	}
	return !status.IsClean(), nil
}

// IsDirtyPath implements Interface.
func (c *Client) IsDirtyPath(dir, path string) (bool, error) {
	if path == "" {
		return c.IsDirty(dir)
	}

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return false, &Error{Kind: KindFilesystem, Err: err}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, &Error{Kind: KindFilesystem, Err: fmt.Errorf("getting worktree: %w", err)}
	}
	status, err := wt.Status()
	if err != nil {
		return false, &Error{Kind: KindFilesystem, Err: fmt.Errorf("getting worktree status: %w", err)}
	}

	prefix := filepath.ToSlash(path) + "/"
	for file := range status {
		slashed := filepath.ToSlash(file)
		if slashed == path || strings.HasPrefix(slashed, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// StageAll implements Interface.
func (c *Client) StageAll(dir string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}
	if _, err := wt.Add("."); err != nil {
		return &Error{Kind: KindFilesystem, Err: fmt.Errorf("staging changes: %w", err)}
	}
	return nil
}

// StagePath implements Interface.
func (c *Client) StagePath(dir, path string) error {
	if path == "" {
		return c.StageAll(dir)
	}

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}
	if _, err := wt.Add(path); err != nil {
		return &Error{Kind: KindFilesystem, Err: fmt.Errorf("staging %s: %w", path, err)}
	}
	return nil
}

// Commit implements Interface.
func (c *Client) Commit(dir, message string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}

	sig := c.Signature
	if sig.Name == "" {
		sig = NewClient().Signature
	}
	sig.When = time.Now()

	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: &sig})
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: fmt.Errorf("committing: %w", err)}
	}
	return hash.String(), nil
}

// Push implements Interface.
func (c *Client) Push(ctx context.Context, dir, remote, ref string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return &Error{Kind: KindFilesystem, Err: err}
	}

	refName := plumbing.NewBranchReferenceName(ref)
	refSpec := config.RefSpec(fmt.Sprintf("%s:%s", refName, refName))

	err = repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refSpec},
	})
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, gogit.ErrNonFastForwardUpdate):
		return &Error{Kind: KindNonFastForward, Err: err}
	default:
		return mapTransportError("", err)
	}
}

// RemoteURL implements Interface.
func (c *Client) RemoteURL(dir string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", &Error{Kind: KindFilesystem, Err: errors.New("origin remote has no URLs")}
	}

	return NormalizeURL(urls[0]), nil
}

// CurrentBranch implements Interface.
func (c *Client) CurrentBranch(dir string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}

	head, err := repo.Head()
	if err != nil {
		return "", &Error{Kind: KindFilesystem, Err: err}
	}
	if !head.Name().IsBranch() {
		return "", &Error{Kind: KindFilesystem, Err: errors.New("HEAD is not on a branch")}
	}
	return head.Name().Short(), nil
}

// mapTransportError classifies a go-git transport error into a Kind.
func mapTransportError(url string, err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return &Error{Kind: KindAuth, URL: url, Err: err}
	default:
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
}
