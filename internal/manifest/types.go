// Package manifest implements the bundle manifest codec: parsing and
// serializing the per-directory TOML manifest that declares a bundle's
// identity and its dependencies.
package manifest

import "github.com/pelletier/go-toml"

// Manifest is a parsed bundle manifest.
//
// A Manifest with a non-empty Root is a source bundle: the directory at
// Root is its publishable artifact tree. A Manifest with an empty Root is a
// consumer manifest; it only declares dependencies.
type Manifest struct {
	FPMVersion  string
	Identifier  string
	Description string
	Version     string
	Root        string

	// Bundles maps local alias to dependency entry, in the order the
	// aliases appear in the source file, so install can proceed in
	// declaration order.
	Bundles []BundleEntry

	// tree backs this Manifest and is mutated in place by Serialize so that
	// unknown top-level keys survive a parse/modify/serialize round trip.
	// Nil for a Manifest built programmatically rather than parsed.
	tree *toml.Tree
}

// BundleEntry is a single alias -> DependencyEntry declaration, retaining
// its position in Bundles for deterministic re-serialization.
type BundleEntry struct {
	Alias string
	DependencyEntry
}

// DependencyEntry declares one bundle dependency.
type DependencyEntry struct {
	Version string
	Git     string
	Path    string

	// Extra holds dependency-entry keys the Codec does not know about, so
	// that Serialize can re-emit them unchanged. Keyed by TOML key name.
	Extra map[string]any
}
