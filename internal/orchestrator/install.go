package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/logutil"
	"github.com/fpm-dev/fpm/internal/manifest"
	"github.com/fpm-dev/fpm/internal/resolver"
)

// Install implements §4.4.1: load the root manifest at manifestDir, fetch
// every dependency not already fresh, and recurse into each installed
// bundle's own manifest until fixpoint. Failures on one branch do not
// abort siblings; the returned Report's ExitCode reflects whether any
// bundle failed.
func (o *Orchestrator) Install(ctx context.Context, manifestDir string) (*Report, error) {
	root, err := loadManifest(manifestDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, err)
	}

	report := NewReport("install")

	rootNode, _ := o.res.Walk(ctx, manifestDir, root, func(ctx context.Context, node *resolver.BundleNode) error {
		return o.installNode(ctx, node)
	})

	walkInstallReport(rootNode, report)
	return report, nil
}

// installNode performs the clone-and-copy described in §4.4.1 step b for a
// single node the Resolver decided needs installing.
func (o *Orchestrator) installNode(ctx context.Context, node *resolver.BundleNode) error {
	scratch, err := os.MkdirTemp("", "fpm-clone-*")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch) //nolint:errcheck

	ref := node.ResolvedRef
	if ref == "" {
		ref = node.SHA
	}
	slog.DebugContext(ctx, "cloning bundle", logutil.GitURL("git", node.Entry.Git), "ref", ref, "alias", node.Alias)
	if err := o.gw.Clone(ctx, node.Entry.Git, ref, scratch); err != nil {
		return fmt.Errorf("cloning %s at %s: %w", node.Entry.Git, ref, err)
	}

	// Only the declared path subtree is copied in, at the same relative
	// path it occupies in the source repo (§4.3, scenario 1: a path of
	// "assets" lands at "<installDir>/assets/..."). Everything else in the
	// clone, including the source bundle's own manifest if path points
	// below its repo root, is left out of installDir.
	effectivePath := effectiveSourcePath(node, scratch)
	srcPath, dstPath := scratch, node.InstallDir
	if effectivePath != "" {
		srcPath = filepath.Join(scratch, effectivePath)
		dstPath = filepath.Join(node.InstallDir, effectivePath)
	}

	if err := replaceSubtree(srcPath, dstPath); err != nil {
		return fmt.Errorf("populating %s: %w", node.InstallDir, err)
	}
	slog.InfoContext(ctx, "installed bundle", "alias", node.Alias, "sha", node.SHA, "path", node.InstallDir)

	return resolver.WriteMarker(node.InstallDir, resolver.Marker{
		SHA:       node.SHA,
		SourceURL: gitgw.NormalizeURL(node.Entry.Git),
		Ref:       node.ResolvedRef,
	})
}

// effectiveSourcePath is §3's path default: an explicit Entry.Path always
// wins; otherwise, if the cloned remote is itself an fpm bundle (it has
// its own bundle.toml with a `root` field), that field names the subtree
// to install, so a dependency on another source bundle pulls in only its
// publishable artifacts rather than the whole upstream repository (build
// files, CI config, its own manifest included). A remote with no readable
// manifest, or one that is a plain consumer manifest with no `root` set,
// falls back to the whole clone, exactly as before.
func effectiveSourcePath(node *resolver.BundleNode, scratch string) string {
	if node.Entry.Path != "" {
		return node.Entry.Path
	}
	remote, err := loadManifest(scratch)
	if err != nil {
		return ""
	}
	return remote.Root
}

// walkInstallReport flattens the resolved tree into one Report entry per
// non-root bundle (§7's "one line per bundle transition").
func walkInstallReport(node *resolver.BundleNode, report *Report) {
	for _, child := range node.Children {
		path := bundlePath(child)
		switch {
		case child.Err != nil:
			report.Add(Entry{Path: path, Transition: TransitionFailed, Err: child.Err})
			continue
		case wasFreshlyInstalled(child):
			report.Add(Entry{Path: path, Transition: TransitionInstalled})
		default:
			report.Add(Entry{Path: path, Transition: TransitionUpToDate})
		}
		walkInstallReport(child, report)
	}
}

// wasFreshlyInstalled distinguishes a node this Install pass actually
// fetched from one that was already up to date, by comparing its
// pre-resolution knowledge against nothing — simplest correct signal is
// whether the action recorded against it in the Plan was ActionInstall.
// Reporting reads this off the node rather than the Plan directly so
// Report generation stays a single recursive pass over the tree.
func wasFreshlyInstalled(node *resolver.BundleNode) bool {
	return node.PlanAction == resolver.ActionInstall
}

func bundlePath(node *resolver.BundleNode) string {
	if node.Parent == nil || node.Parent.IsRoot() {
		return node.Alias
	}
	return bundlePath(node.Parent) + "/" + node.Alias
}

func loadManifest(manifestDir string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(manifestDir, "bundle.toml"))
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}
