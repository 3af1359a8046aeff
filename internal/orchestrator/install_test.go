package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/testutils"
)

func writeRootManifest(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.toml"), []byte(body), 0o644))
}

// newTaggedOrigin builds a working-copy repo with one file committed and
// tagged, usable directly as a clone source the way newOriginWithTag is
// used in the gitgw package's own tests.
func newTaggedOrigin(t *testing.T, file, content, tag string) string {
	t.Helper()
	dir := t.TempDir()
	rb, err := testutils.NewRepoBuilder(dir)
	require.NoError(t, err)
	require.NoError(t, rb.WriteFile(file, content))
	hash, err := rb.CommitAll("seed")
	require.NoError(t, err)
	_, err = rb.CreateTag(tag, hash)
	require.NoError(t, err)
	return dir
}

func TestOrchestrator_Install_SingleLeaf(t *testing.T) {
	origin := newTaggedOrigin(t, "assets/icons/a.svg", "<svg/>", "v1.0.0")

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.ui-assets]
version = "1.0.0"
git = "`+origin+`"
`)

	o := New(gitgw.NewClient())
	report, err := o.Install(context.Background(), wd)
	require.NoError(t, err)
	require.False(t, report.Failed())
	require.Len(t, report.Entries, 1)
	assert.Equal(t, TransitionInstalled, report.Entries[0].Transition)

	data, err := os.ReadFile(filepath.Join(wd, ".fpm", "ui-assets", "assets", "icons", "a.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))

	// Re-running install is idempotent: nothing changed upstream, so the
	// bundle verifies rather than reinstalling.
	report2, err := o.Install(context.Background(), wd)
	require.NoError(t, err)
	require.Len(t, report2.Entries, 1)
	assert.Equal(t, TransitionUpToDate, report2.Entries[0].Transition)
}

func TestOrchestrator_Install_NestedTransitive(t *testing.T) {
	baseOrigin := newTaggedOrigin(t, "style.css", "body{}", "v1.2.0")

	uiDir := t.TempDir()
	uiSeed, err := testutils.NewRepoBuilder(uiDir)
	require.NoError(t, err)
	require.NoError(t, uiSeed.WriteFile("bundle.toml", `
fpm_version = "1"
identifier  = "ui-components"

[bundles.base-styles]
version = "1.2.0"
git = "`+baseOrigin+`"
`))
	require.NoError(t, uiSeed.WriteFile("widget.js", "export {}"))
	hash, err := uiSeed.CommitAll("seed")
	require.NoError(t, err)
	_, err = uiSeed.CreateTag("v2.0.0", hash)
	require.NoError(t, err)

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.ui-components]
version = "2.0.0"
git = "`+uiDir+`"
`)

	o := New(gitgw.NewClient())
	report, err := o.Install(context.Background(), wd)
	require.NoError(t, err)
	require.False(t, report.Failed())

	assert.FileExists(t, filepath.Join(wd, ".fpm", "ui-components", "widget.js"))
	assert.FileExists(t, filepath.Join(wd, ".fpm", "ui-components", ".fpm", "base-styles", "style.css"))

	var paths []string
	for _, e := range report.Entries {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "ui-components")
	assert.Contains(t, paths, "ui-components/base-styles")
}

// TestOrchestrator_Install_DefaultsToRemoteManifestRoot exercises §3's path
// default when Entry.Path is left empty and the remote itself is an fpm
// source bundle: only the remote's own `root` subtree should land in
// installDir, not the whole clone (its own bundle.toml and any sibling
// build files included).
func TestOrchestrator_Install_DefaultsToRemoteManifestRoot(t *testing.T) {
	dir := t.TempDir()
	rb, err := testutils.NewRepoBuilder(dir)
	require.NoError(t, err)
	require.NoError(t, rb.WriteFile("bundle.toml", `
fpm_version = "1"
identifier  = "icon-pack"
root        = "dist"
`))
	require.NoError(t, rb.WriteFile("dist/icons/a.svg", "<svg/>"))
	require.NoError(t, rb.WriteFile("Makefile", "build:\n\ttrue\n"))
	hash, err := rb.CommitAll("seed")
	require.NoError(t, err)
	_, err = rb.CreateTag("v1.0.0", hash)
	require.NoError(t, err)

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.icons]
version = "1.0.0"
git = "`+dir+`"
`)

	o := New(gitgw.NewClient())
	report, err := o.Install(context.Background(), wd)
	require.NoError(t, err)
	require.False(t, report.Failed())

	assert.FileExists(t, filepath.Join(wd, ".fpm", "icons", "icons", "a.svg"))
	assert.NoFileExists(t, filepath.Join(wd, ".fpm", "icons", "Makefile"))
	assert.NoFileExists(t, filepath.Join(wd, ".fpm", "icons", "bundle.toml"))
}

func TestOrchestrator_Install_CycleStopsAtSecondOccurrence(t *testing.T) {
	aDir, bDir := t.TempDir(), t.TempDir()

	aSeed, err := testutils.NewRepoBuilder(aDir)
	require.NoError(t, err)
	require.NoError(t, aSeed.WriteFile("bundle.toml", `
fpm_version = "1"
identifier  = "a"

[bundles.b]
version = "main"
git = "`+bDir+`"
`))
	aHash, err := aSeed.CommitAll("seed a")
	require.NoError(t, err)
	require.NoError(t, aSeed.CheckoutBranch("main", aHash))

	bSeed, err := testutils.NewRepoBuilder(bDir)
	require.NoError(t, err)
	require.NoError(t, bSeed.WriteFile("bundle.toml", `
fpm_version = "1"
identifier  = "b"

[bundles.a]
version = "main"
git = "`+aDir+`"
`))
	bHash, err := bSeed.CommitAll("seed b")
	require.NoError(t, err)
	require.NoError(t, bSeed.CheckoutBranch("main", bHash))

	wd := t.TempDir()
	writeRootManifest(t, wd, `
fpm_version = "1"
identifier  = "root"

[bundles.a]
version = "main"
git = "`+aDir+`"
`)

	o := New(gitgw.NewClient())
	report, err := o.Install(context.Background(), wd)
	require.NoError(t, err)
	require.True(t, report.Failed())

	var failedPaths []string
	for _, e := range report.Entries {
		if e.Transition == TransitionFailed {
			failedPaths = append(failedPaths, e.Path)
		}
	}
	assert.Contains(t, failedPaths, "a/b/a")
}
