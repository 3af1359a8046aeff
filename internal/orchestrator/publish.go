package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fpm-dev/fpm/internal/manifest"
)

// Publish implements §4.4.4: author-side publishing, applicable only when
// manifestDir's own manifest declares `root`. Unlike a dependency's
// installDir, manifestDir is assumed to be the author's own git working
// tree (publish is run from inside the repo being authored), so it is
// staged, committed, and pushed directly rather than through a scratch
// clone.
func (o *Orchestrator) Publish(ctx context.Context, manifestDir string) (*Report, error) {
	root, err := loadManifest(manifestDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, err)
	}
	if root.Root == "" {
		return nil, ErrNotASource
	}

	report := NewReport("publish")

	// Only root's own subtree is staged and diffed (§4.4.4 step 1): a
	// consumer manifest living alongside root but outside it, or unrelated
	// changes elsewhere in the author's working tree, must not end up in
	// the published commit.
	dirty, err := o.gw.IsDirtyPath(manifestDir, root.Root)
	if err != nil {
		return nil, fmt.Errorf("checking %s for changes: %w", manifestDir, err)
	}
	if !dirty {
		slog.DebugContext(ctx, "root unchanged, skipping publish", "root", root.Root)
		report.Add(Entry{Path: ".", Transition: TransitionSkipped})
		return report, nil
	}

	if err := o.gw.StagePath(manifestDir, root.Root); err != nil {
		return nil, fmt.Errorf("staging %s: %w", manifestDir, err)
	}

	if _, err := o.gw.Commit(manifestDir, publishMessage(root, o.message)); err != nil {
		return nil, fmt.Errorf("committing %s: %w", manifestDir, err)
	}

	branch, err := o.gw.CurrentBranch(manifestDir)
	if err != nil {
		return nil, fmt.Errorf("determining current branch in %s: %w", manifestDir, err)
	}
	if err := o.gw.Push(ctx, manifestDir, "origin", branch); err != nil {
		return nil, fmt.Errorf("pushing %s: %w", manifestDir, err)
	}
	slog.InfoContext(ctx, "published", "root", root.Root, "branch", branch)

	report.Add(Entry{Path: ".", Transition: TransitionPushed, Dirty: true})
	return report, nil
}

// publishMessage derives a commit message from the manifest's declared
// version (§4.4.4 step 2), unless the caller overrode the default push
// message explicitly.
func publishMessage(m *manifest.Manifest, override string) string {
	if override != defaultPushMessage {
		return override
	}
	if m.Version != "" {
		return fmt.Sprintf("Publish %s", m.Version)
	}
	return "Publish"
}
