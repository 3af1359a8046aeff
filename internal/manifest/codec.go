package manifest

import (
	"fmt"
	"sort"

	"github.com/pelletier/go-toml"
)

// knownTopLevelKeys are the manifest keys the Codec understands directly.
// Anything else is carried in Manifest.tree untouched.
var knownTopLevelKeys = map[string]bool{
	"fpm_version": true,
	"identifier":  true,
	"description": true,
	"version":     true,
	"root":        true,
	"bundles":     true,
}

// knownEntryKeys are the DependencyEntry keys the Codec understands.
var knownEntryKeys = map[string]bool{
	"version": true,
	"git":     true,
	"path":    true,
}

// Parse decodes a manifest from its TOML representation.
//
// Required fields (fpm_version, identifier) are validated. Unknown
// top-level keys, and unknown keys within a [bundles.<alias>] table, are
// preserved so that a later Serialize call re-emits them unchanged.
func Parse(data []byte) (*Manifest, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, &MalformedError{Reason: err.Error()}
	}

	m := &Manifest{tree: tree}

	fpmVersion, ok := tree.Get("fpm_version").(string)
	if !ok || fpmVersion == "" {
		return nil, &MissingFieldError{Field: "fpm_version"}
	}
	m.FPMVersion = fpmVersion

	identifier, ok := tree.Get("identifier").(string)
	if !ok || identifier == "" {
		return nil, &MissingFieldError{Field: "identifier"}
	}
	m.Identifier = identifier

	if v := tree.Get("description"); v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, &MalformedError{Key: "description", Reason: "expected a string"}
		}
		m.Description = s
	}

	if v := tree.Get("version"); v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, &MalformedError{Key: "version", Reason: "expected a string"}
		}
		m.Version = s
	}

	if v := tree.Get("root"); v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, &MalformedError{Key: "root", Reason: "expected a string"}
		}
		m.Root = s
	}

	bundles, err := parseBundles(tree)
	if err != nil {
		return nil, err
	}
	m.Bundles = bundles

	return m, nil
}

func parseBundles(tree *toml.Tree) ([]BundleEntry, error) {
	raw := tree.Get("bundles")
	if raw == nil {
		return nil, nil
	}

	bundlesTree, ok := raw.(*toml.Tree)
	if !ok {
		return nil, &MalformedError{Key: "bundles", Reason: "expected a table"}
	}

	// Tree.Keys follows map iteration order, so restore declaration order
	// from each alias's position in the source text.
	aliases := bundlesTree.Keys()
	sort.SliceStable(aliases, func(i, j int) bool {
		pi, pj := bundlesTree.GetPosition(aliases[i]), bundlesTree.GetPosition(aliases[j])
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		return pi.Col < pj.Col
	})

	seen := make(map[string]bool, len(aliases))
	entries := make([]BundleEntry, 0, len(aliases))
	for _, alias := range aliases {
		if seen[alias] {
			return nil, &MalformedError{Key: "bundles." + alias, Reason: "duplicate alias"}
		}
		seen[alias] = true

		entryRaw := bundlesTree.Get(alias)
		entryTree, ok := entryRaw.(*toml.Tree)
		if !ok {
			return nil, &MalformedError{Key: "bundles." + alias, Reason: "expected a table"}
		}

		entry, err := parseEntry(alias, entryTree)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseEntry(alias string, tree *toml.Tree) (BundleEntry, error) {
	version, ok := tree.Get("version").(string)
	if !ok || version == "" {
		return BundleEntry{}, &MissingFieldError{Field: fmt.Sprintf("bundles.%s.version", alias)}
	}

	git, ok := tree.Get("git").(string)
	if !ok || git == "" {
		return BundleEntry{}, &MissingFieldError{Field: fmt.Sprintf("bundles.%s.git", alias)}
	}

	var path string
	if v := tree.Get("path"); v != nil {
		s, ok := v.(string)
		if !ok {
			return BundleEntry{}, &MalformedError{Key: fmt.Sprintf("bundles.%s.path", alias), Reason: "expected a string"}
		}
		path = s
	}

	extra := make(map[string]any)
	for _, k := range tree.Keys() {
		if !knownEntryKeys[k] {
			extra[k] = tree.Get(k)
		}
	}

	return BundleEntry{
		Alias: alias,
		DependencyEntry: DependencyEntry{
			Version: version,
			Git:     git,
			Path:    path,
			Extra:   extra,
		},
	}, nil
}

// Serialize renders a Manifest back to its TOML representation.
//
// If m was produced by Parse, the backing tree is reused so unknown keys
// round-trip unchanged; the known fields are written back from m's typed
// fields and every other key is left as it is. A Manifest built from scratch (tree == nil) is
// serialized from its typed fields alone.
func (m *Manifest) Serialize() ([]byte, error) {
	tree := m.tree
	if tree == nil {
		empty, err := toml.LoadBytes([]byte{})
		if err != nil {
			return nil, err
		}
		tree = empty
	}

	tree.Set("fpm_version", m.FPMVersion)
	tree.Set("identifier", m.Identifier)
	setOrDelete(tree, "description", m.Description)
	setOrDelete(tree, "version", m.Version)
	setOrDelete(tree, "root", m.Root)

	bundlesTree, ok := tree.Get("bundles").(*toml.Tree)
	if !ok {
		fresh, err := toml.TreeFromMap(map[string]any{})
		if err != nil {
			return nil, err
		}
		bundlesTree = fresh
	}

	for _, b := range m.Bundles {
		entryTree, ok := bundlesTree.Get(b.Alias).(*toml.Tree)
		if !ok {
			fresh, err := toml.TreeFromMap(map[string]any{})
			if err != nil {
				return nil, err
			}
			entryTree = fresh
		}
		entryTree.Set("version", b.Version)
		entryTree.Set("git", b.Git)
		setOrDelete(entryTree, "path", b.Path)
		for k, v := range b.Extra {
			entryTree.Set(k, v)
		}
		bundlesTree.Set(b.Alias, entryTree)
	}
	tree.Set("bundles", bundlesTree)

	return []byte(tree.String()), nil
}

func setOrDelete(tree *toml.Tree, key, value string) {
	if value == "" {
		tree.Delete(key) //nolint:errcheck // absent key is a no-op
		return
	}
	tree.Set(key, value)
}
