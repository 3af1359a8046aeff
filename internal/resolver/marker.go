package resolver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// MarkerFileName is the hidden per-installation file recording the commit
// SHA (and source URL) a bundle directory was populated from (§6). It is
// exported so callers comparing an installDir's content against a remote
// tree (status's dirty check, push's diff) know to exclude it: it is
// orchestrator bookkeeping, not part of the bundle's actual content.
const MarkerFileName = ".fpm-marker"

// Marker is the on-disk freshness record for one installed bundle.
type Marker struct {
	// SHA is the commit the installDir was populated from.
	SHA string
	// SourceURL is the normalized git URL the bundle was cloned from, used
	// to detect a changed `git` field on the same alias (§9 Open
	// Questions, resolved: treated as a fresh install).
	SourceURL string
	// Ref is the concrete ref name version-to-ref mapping resolved to at
	// install time (e.g. "refs/heads/main" or "refs/tags/v1.0.0"), empty
	// if the version resolved directly to a commit SHA. Recorded so an
	// offline resolution (no network round trip available) can still
	// recover what kind of ref this bundle tracks, e.g. for push to tell
	// a real tracked branch apart from a tag or pinned commit.
	Ref string
}

// ReadMarker loads installDir's marker file. A missing marker is reported
// as (nil, nil): the caller should treat that the same as "not installed".
func ReadMarker(installDir string) (*Marker, error) {
	path := filepath.Join(installDir, MarkerFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading marker %s: %w", path, err)
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing marker %s: %w", path, err)
	}

	sha, _ := tree.Get("sha").(string)
	source, _ := tree.Get("source").(string)
	ref, _ := tree.Get("ref").(string)
	return &Marker{SHA: sha, SourceURL: source, Ref: ref}, nil
}

// WriteMarker writes installDir's marker file, creating installDir if
// needed.
func WriteMarker(installDir string, m Marker) error {
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return fmt.Errorf("creating install directory %s: %w", installDir, err)
	}

	tree, err := toml.TreeFromMap(map[string]any{
		"sha":    m.SHA,
		"source": m.SourceURL,
		"ref":    m.Ref,
	})
	if err != nil {
		return fmt.Errorf("building marker tree: %w", err)
	}

	path := filepath.Join(installDir, MarkerFileName)
	if err := os.WriteFile(path, []byte(tree.String()), 0o644); err != nil {
		return fmt.Errorf("writing marker %s: %w", path, err)
	}
	return nil
}

// Fresh reports whether m already reflects sha cloned from sourceURL,
// i.e. whether the installDir can be left untouched (§4.4.1 step b).
func (m *Marker) Fresh(sha, sourceURL string) bool {
	return m != nil && m.SHA == sha && m.SourceURL == sourceURL
}
