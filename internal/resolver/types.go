// Package resolver walks a manifest's dependency graph, maps each
// dependency's declared version to a concrete git ref and SHA, and produces
// an ordered installation Plan. It reads install markers and nested
// manifests from disk but never clones, copies, or populates an install
// directory itself — that is the Orchestrator's job — and it never imports
// go-git directly, reaching git only through gitgw.Interface.
package resolver

import "github.com/fpm-dev/fpm/internal/manifest"

// Action is the operation the Orchestrator should perform for a PlanStep.
type Action int

const (
	// ActionInstall means the node's installDir is missing or stale and must
	// be (re)populated from a fresh clone.
	ActionInstall Action = iota
	// ActionVerify means the node's installDir already matches the resolved
	// SHA; no fetch is required.
	ActionVerify
	// ActionRecurse marks the step, emitted right after a node's own
	// install/verify step, at which the Resolver descends into that node's
	// freshly-readable nested manifest.
	ActionRecurse
)

// String renders the Action for logging.
func (a Action) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionVerify:
		return "verify"
	case ActionRecurse:
		return "recurse"
	default:
		return "unknown"
	}
}

// BundleNode is the Resolver's in-memory representation of one bundle in
// the dependency graph, per §3's BundleNode definition.
type BundleNode struct {
	// Alias is the key under which this bundle appears in Parent's
	// manifest (empty for the root node).
	Alias string
	// Parent is the node whose manifest declared this dependency, or nil
	// for the root.
	Parent *BundleNode
	// Entry is the declared dependency entry (nil for the root node).
	Entry *manifest.DependencyEntry
	// Manifest is this bundle's own parsed manifest, populated once it has
	// been fetched (or loaded from disk, for the root).
	Manifest *manifest.Manifest
	// InstallDir is "<parent-manifest-dir>/.fpm/<alias>"; empty for the
	// root node, which is loaded directly from the working directory.
	InstallDir string
	// ManifestDir is the directory containing this node's own manifest
	// file; children's InstallDir is computed relative to it.
	ManifestDir string
	// RepoCacheKey is the normalized "(url, path)" cache/cycle key, set
	// once the dependency's git URL is known.
	RepoCacheKey string
	// ResolvedRef is the concrete ref name matched by version-to-ref
	// mapping (e.g. "refs/tags/v1.0.0"), empty if Entry.Version resolved
	// directly to a commit SHA.
	ResolvedRef string
	// SHA is the commit this node resolved to.
	SHA string
	// PlanAction is the action the Resolver decided on for this node
	// (ActionInstall or ActionVerify), mirroring the entry Walk appended to
	// its returned Plan. Kept on the node too so callers that only walk
	// the tree (rather than the flattened Plan) can still tell installed
	// bundles apart from ones that were already fresh.
	PlanAction Action
	// Err records a resolve-time failure against this node (ref not
	// found, cycle, invalid path, or a manifest parse error), so
	// traversal can continue past it per §4.4.6.
	Err error
	// Children are this node's own dependencies, populated once its
	// manifest has been read (empty for leaf bundles and for nodes whose
	// Err is set).
	Children []*BundleNode
}

// IsRoot reports whether n is the graph's root node.
func (n *BundleNode) IsRoot() bool {
	return n.Parent == nil
}

// PlanStep pairs a resolved BundleNode with the action the Orchestrator
// should take for it.
type PlanStep struct {
	Node   *BundleNode
	Action Action
}

// Plan is the Resolver's output: a depth-first, pre-order list of steps
// (§4.3 "Plan generation").
type Plan struct {
	Steps []PlanStep
}
