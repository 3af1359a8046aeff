package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/logutil"
	"github.com/fpm-dev/fpm/internal/resolver"
)

// Push implements §4.4.3: a post-order (deepest-first) walk of the
// installed graph. Each bundle is diffed against a scratch clone of its
// own source remote with the bundle's current installDir content mirrored
// on top; if that differs from the clone's HEAD, the scratch clone is
// staged, committed with the configured message, and pushed back to the
// bundle's resolved branch. WithAlias restricts which top-level bundle is
// visited, but its own descendants are still pushed first (§4.4.3's -b
// flag).
func (o *Orchestrator) Push(ctx context.Context, manifestDir string) (*Report, error) {
	root, err := loadManifest(manifestDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, err)
	}

	// Push never resolves a dependency's version against its remote: it
	// operates on whatever is currently installed, so the offline Resolver
	// mode (read the local marker, never touch the network) is exactly
	// the traversal it needs.
	res := resolver.New(o.gw, resolver.WithOffline(true))
	rootNode, _ := res.Walk(ctx, manifestDir, root, nil)

	children := rootNode.Children
	if o.alias != "" {
		children = filterAlias(children, o.alias)
		if len(children) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlias, o.alias)
		}
	}

	report := NewReport("push")
	for _, child := range children {
		o.pushNode(ctx, child, report)
	}
	return report, nil
}

func filterAlias(children []*resolver.BundleNode, alias string) []*resolver.BundleNode {
	for _, c := range children {
		if c.Alias == alias {
			return []*resolver.BundleNode{c}
		}
	}
	return nil
}

// pushNode visits descendants before node itself, guaranteeing the strict
// post-order ordering promised by §5: a child's push (and the new SHA
// written into its own marker, which lives under its own installDir and so
// becomes part of node's tree on disk) is observed by node's own dirty
// check below.
func (o *Orchestrator) pushNode(ctx context.Context, node *resolver.BundleNode, report *Report) {
	for _, child := range node.Children {
		o.pushNode(ctx, child, report)
	}

	if node.Err != nil {
		report.Add(Entry{Path: bundlePath(node), Transition: TransitionFailed, Err: node.Err})
		return
	}

	pushed, dirty, err := o.pushBundle(ctx, node)
	switch {
	case err != nil:
		report.Add(Entry{Path: bundlePath(node), Transition: TransitionFailed, Err: err})
	case pushed:
		report.Add(Entry{Path: bundlePath(node), Transition: TransitionPushed, Dirty: dirty})
	default:
		report.Add(Entry{Path: bundlePath(node), Transition: TransitionSkipped})
	}
}

// pushBundle implements §4.4.3 steps 1-2 for a single bundle. installDir
// itself is a plain file copy rather than a git working tree (§4.3), so
// there is nothing to stage/commit/push there directly; instead a fresh
// clone of the bundle's own remote stands in for it, with installDir's
// current content mirrored on top before the dirty check.
func (o *Orchestrator) pushBundle(ctx context.Context, node *resolver.BundleNode) (pushed, dirty bool, err error) {
	branch, err := branchName(node)
	if err != nil {
		return false, false, err
	}

	scratch, err := os.MkdirTemp("", "fpm-push-*")
	if err != nil {
		return false, false, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch) //nolint:errcheck

	if err := o.gw.Clone(ctx, node.Entry.Git, branch, scratch); err != nil {
		return false, false, fmt.Errorf("cloning %s at %s: %w", node.Entry.Git, branch, err)
	}

	// The same path default as install (§3): an explicit Entry.Path wins,
	// otherwise the cloned remote's own `root` field (if it is itself an
	// fpm bundle) names the subtree installDir actually holds.
	effectivePath := effectiveSourcePath(node, scratch)
	srcPath, dstPath := node.InstallDir, scratch
	if effectivePath != "" {
		srcPath = filepath.Join(node.InstallDir, effectivePath)
		dstPath = filepath.Join(scratch, effectivePath)
	}
	if err := mirrorSourceTree(srcPath, dstPath); err != nil {
		return false, false, fmt.Errorf("mirroring %s onto %s: %w", node.InstallDir, scratch, err)
	}

	dirty, err = o.gw.IsDirty(scratch)
	if err != nil {
		return false, false, fmt.Errorf("checking %s for changes: %w", scratch, err)
	}
	if !dirty {
		slog.DebugContext(ctx, "bundle unchanged, skipping push", "alias", node.Alias)
		return false, false, nil
	}

	if err := o.gw.StageAll(scratch); err != nil {
		return false, true, fmt.Errorf("staging %s: %w", scratch, err)
	}
	sha, err := o.gw.Commit(scratch, o.message)
	if err != nil {
		return false, true, fmt.Errorf("committing %s: %w", scratch, err)
	}
	if err := o.gw.Push(ctx, scratch, "origin", branch); err != nil {
		return false, true, fmt.Errorf("pushing %s: %w", scratch, err)
	}
	slog.InfoContext(ctx, "pushed bundle", "alias", node.Alias, logutil.GitURL("git", node.Entry.Git), "branch", branch, "sha", sha)

	// This is "the root's marker for ui-assets" from §8 scenario 3: a
	// bundle's marker always lives at its own installDir, so updating it
	// here is the entire propagation step — node's parent sees the change
	// the next time it's diffed, since node.InstallDir is physically
	// nested inside the parent's own tree.
	if err := resolver.WriteMarker(node.InstallDir, resolver.Marker{
		SHA:       sha,
		SourceURL: gitgw.NormalizeURL(node.Entry.Git),
		Ref:       node.ResolvedRef,
	}); err != nil {
		return true, true, fmt.Errorf("updating marker for %s: %w", node.InstallDir, err)
	}

	return true, true, nil
}

// branchName recovers the branch a bundle tracks from its marker's
// recorded Ref (§4.4.3): push never re-resolves a dependency's version
// against its remote (it operates offline, on whatever is currently
// installed), so node.ResolvedRef here comes from the marker written at
// install time, not a fresh network lookup. A bundle whose version
// resolved to a tag or a pinned commit has no tracked branch to push
// onto, so that is reported as a failure rather than inventing a branch
// literally named after the version string.
func branchName(node *resolver.BundleNode) (string, error) {
	if !strings.HasPrefix(node.ResolvedRef, "refs/heads/") {
		return "", fmt.Errorf("%w: %q resolved to %q", ErrNotABranch, node.Alias, node.ResolvedRef)
	}
	return strings.TrimPrefix(node.ResolvedRef, "refs/heads/"), nil
}
