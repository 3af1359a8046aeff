package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/resolver"
	"github.com/fpm-dev/fpm/internal/testutils"
)

// newBranchOrigin builds a bare remote with one file committed on
// branchName, pushed there the way a real contributor's origin would be.
func newBranchOrigin(t *testing.T, branchName, file, content string) string {
	t.Helper()
	bareDir := t.TempDir()
	_, err := testutils.NewBareRepoBuilder(bareDir)
	require.NoError(t, err)

	seed, err := testutils.NewRepoBuilder(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, seed.AddRemote(bareDir))
	require.NoError(t, seed.WriteFile(file, content))
	hash, err := seed.CommitAll("seed")
	require.NoError(t, err)
	require.NoError(t, seed.CheckoutBranch(branchName, hash))

	refSpec := config.RefSpec("refs/heads/" + branchName + ":refs/heads/" + branchName)
	require.NoError(t, seed.Repo().Push(&gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
	}))
	return bareDir
}

func TestOrchestrator_Push_DirtyProducesOneCommit(t *testing.T) {
	origin := newBranchOrigin(t, "main", "assets/icons/a.svg", "<svg/>")

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.ui-assets]
version = "main"
git = "`+origin+`"
`)

	gw := gitgw.NewClient()
	o := New(gw)
	_, err := o.Install(context.Background(), wd)
	require.NoError(t, err)

	installedFile := filepath.Join(wd, ".fpm", "ui-assets", "assets", "icons", "a.svg")
	require.NoError(t, os.WriteFile(installedFile, []byte("<svg>changed</svg>"), 0o644))

	report, err := o.Push(context.Background(), wd)
	require.NoError(t, err)
	require.False(t, report.Failed())
	require.Len(t, report.Entries, 1)
	assert.Equal(t, TransitionPushed, report.Entries[0].Transition)
	assert.True(t, report.Entries[0].Dirty)

	// The remote now carries the change.
	check := filepath.Join(t.TempDir(), "check")
	require.NoError(t, gw.Clone(context.Background(), origin, "main", check))
	data, err := os.ReadFile(filepath.Join(check, "assets", "icons", "a.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg>changed</svg>", string(data))

	marker, err := resolver.ReadMarker(filepath.Join(wd, ".fpm", "ui-assets"))
	require.NoError(t, err)
	require.NotNil(t, marker)
	head, err := gw.Head(check)
	require.NoError(t, err)
	assert.Equal(t, head, marker.SHA)
}

func TestOrchestrator_Push_CleanSkips(t *testing.T) {
	origin := newBranchOrigin(t, "main", "f.txt", "v1")

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.dep]
version = "main"
git = "`+origin+`"
`)

	o := New(gitgw.NewClient())
	_, err := o.Install(context.Background(), wd)
	require.NoError(t, err)

	report, err := o.Push(context.Background(), wd)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, TransitionSkipped, report.Entries[0].Transition)
}

// newTaggedBranchOrigin builds a bare remote with one file committed and tagged
// tagName, simulating a dependency pinned to a release tag rather than a
// tracked branch.
func newTaggedBranchOrigin(t *testing.T, tagName, file, content string) string {
	t.Helper()
	bareDir := t.TempDir()
	_, err := testutils.NewBareRepoBuilder(bareDir)
	require.NoError(t, err)

	seed, err := testutils.NewRepoBuilder(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, seed.AddRemote(bareDir))
	require.NoError(t, seed.WriteFile(file, content))
	hash, err := seed.CommitAll("seed")
	require.NoError(t, err)
	_, err = seed.CreateTag(tagName, hash)
	require.NoError(t, err)

	refSpec := config.RefSpec("refs/tags/" + tagName + ":refs/tags/" + tagName)
	require.NoError(t, seed.Repo().Push(&gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
	}))
	return bareDir
}

func TestOrchestrator_Push_TagPinnedDependencyFails(t *testing.T) {
	origin := newTaggedBranchOrigin(t, "v1.0.0", "f.txt", "v1")

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.dep]
version = "1.0.0"
git = "`+origin+`"
`)

	o := New(gitgw.NewClient())
	_, err := o.Install(context.Background(), wd)
	require.NoError(t, err)

	// Mutate the installed content so push would otherwise have something
	// to commit, to confirm the branch check fails before any push attempt.
	installedFile := filepath.Join(wd, ".fpm", "dep", "f.txt")
	require.NoError(t, os.WriteFile(installedFile, []byte("v2"), 0o644))

	report, err := o.Push(context.Background(), wd)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, TransitionFailed, report.Entries[0].Transition)
	assert.ErrorIs(t, report.Entries[0].Err, ErrNotABranch)
}

func TestOrchestrator_Push_AliasFilterUnknown(t *testing.T) {
	origin := newBranchOrigin(t, "main", "f.txt", "v1")

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.dep]
version = "main"
git = "`+origin+`"
`)

	o := New(gitgw.NewClient(), WithAlias("nope"))
	_, err := o.Install(context.Background(), wd)
	require.NoError(t, err)

	_, err = o.Push(context.Background(), wd)
	require.ErrorIs(t, err, ErrUnknownAlias)
}
