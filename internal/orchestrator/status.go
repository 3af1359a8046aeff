package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/resolver"
)

// Status implements §4.4.2: read-only, no writes to the workspace. Every
// consumer node is reported synced or unsynced; every source node is
// reported source, with a dirty flag. Remote refs are refreshed by
// resolving each dependency's version against its remote unless
// WithOffline(true) was passed to New, in which case resolution falls back
// to each bundle's install marker (§4.4.2, resolved Open Question).
func (o *Orchestrator) Status(ctx context.Context, manifestDir string) (*Report, error) {
	root, err := loadManifest(manifestDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, err)
	}

	report := NewReport("status")

	if root.Root != "" {
		dirty, err := o.gw.IsDirty(manifestDir)
		if err != nil {
			report.Add(Entry{Path: ".", Transition: TransitionFailed, Err: err})
		} else {
			report.Add(Entry{Path: ".", Transition: TransitionSource, Dirty: dirty})
		}
	}

	res := resolver.New(o.gw, resolver.WithOffline(o.offline))
	rootNode, _ := res.Walk(ctx, manifestDir, root, nil)

	o.reportChildStatus(ctx, rootNode, report)
	return report, nil
}

func (o *Orchestrator) reportChildStatus(ctx context.Context, node *resolver.BundleNode, report *Report) {
	for _, child := range node.Children {
		path := bundlePath(child)

		switch {
		case child.Err != nil:
			var refErr *resolver.RefNotFoundError
			if o.offline && errors.As(child.Err, &refErr) {
				// Per §8 scenario 6: offline + unreachable/unresolvable
				// remote is unsynced, not a failure.
				report.Add(Entry{Path: path, Transition: TransitionUnsynced})
			} else {
				report.Add(Entry{Path: path, Transition: TransitionFailed, Err: child.Err})
			}
			continue

		case child.Manifest != nil && child.Manifest.Root != "":
			dirty, err := o.sourceDirty(ctx, child.Entry.Git, child.SHA, child.Manifest.Root, child.InstallDir)
			if err != nil {
				report.Add(Entry{Path: path, Transition: TransitionFailed, Err: err})
				continue
			}
			report.Add(Entry{Path: path, Transition: TransitionSource, Dirty: dirty})

		default:
			marker, err := resolver.ReadMarker(child.InstallDir)
			synced := err == nil && marker.Fresh(child.SHA, gitgw.NormalizeURL(child.Entry.Git))
			if synced {
				report.Add(Entry{Path: path, Transition: TransitionSynced})
			} else {
				report.Add(Entry{Path: path, Transition: TransitionUnsynced})
			}
		}

		o.reportChildStatus(ctx, child, report)
	}
}

// sourceDirty reports whether the publishable subtree under artifactRoot in
// localDir differs from HEAD of gitURL at ref, per §4.4.2's inner "dirty"
// flag for source nodes.
func (o *Orchestrator) sourceDirty(ctx context.Context, gitURL, ref, artifactRoot, localDir string) (bool, error) {
	scratch, err := os.MkdirTemp("", "fpm-status-*")
	if err != nil {
		return false, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch) //nolint:errcheck

	if err := o.gw.Clone(ctx, gitURL, ref, scratch); err != nil {
		return false, fmt.Errorf("cloning %s at %s: %w", gitURL, ref, err)
	}

	remoteArtifact, localArtifact := scratch, localDir
	if artifactRoot != "" {
		remoteArtifact = filepath.Join(scratch, artifactRoot)
		localArtifact = filepath.Join(localDir, artifactRoot)
	}

	return dirDiffers(remoteArtifact, localArtifact)
}
