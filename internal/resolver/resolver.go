package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/logutil"
	"github.com/fpm-dev/fpm/internal/manifest"
)

// InstallFunc clones node.Entry.Git at node.ResolvedRef/node.SHA into a
// scratch directory, copies the node.Entry.Path subtree into
// node.InstallDir, and writes node's marker. Walk calls it only for nodes
// whose Action is ActionInstall; an ActionVerify node's installDir is
// already fresh and is left untouched, giving install(G);install(G) its
// disk-idempotence (§8 property 1). It is supplied by the Orchestrator so
// the Resolver never calls the Git Gateway's mutating operations itself
// (§9: "the Resolver and Orchestrator are pure with respect to this
// capability — all I/O flows through it").
type InstallFunc func(ctx context.Context, node *BundleNode) error

// cycleTriple is the canonicalized (normalizedUrl, sha, path) key from
// §4.3's cycle detection rule.
type cycleTriple string

func cycleKey(repoCacheKey, sha string) cycleTriple {
	return cycleTriple(repoCacheKey + "@" + sha)
}

// Resolver walks a manifest dependency graph, mapping each dependency's
// declared version to a git ref/SHA via gw and deciding, node by node,
// whether it needs installing or is already fresh.
type Resolver struct {
	gw      gitgw.Interface
	offline bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOffline makes version resolution consult only each dependency's
// already-cloned local install directory instead of its remote, per
// status's offline mode (§4.4.2 resolved Open Question). A bundle with no
// local clone yet simply fails to resolve, the same as a ref that does not
// exist.
func WithOffline(offline bool) Option {
	return func(r *Resolver) { r.offline = offline }
}

// New constructs a Resolver bound to gw.
func New(gw gitgw.Interface, opts ...Option) *Resolver {
	r := &Resolver{gw: gw}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Walk performs the depth-first, pre-order traversal of §4.3: it resolves
// every dependency of root (already loaded from rootDir), invoking install
// only for each one whose marker is missing or stale, then reads
// back the installed bundle's own manifest (if any) and recurses into it.
// Nested manifests are expanded lazily, only after their parent has
// actually been fetched, since their content does not exist on disk
// beforehand.
//
// The returned root BundleNode carries the full resolved tree via
// Children; Plan is the same traversal flattened for reporting. A resolve
// or install failure on one node is recorded on that node's Err and its
// subtree is skipped; siblings continue (§4.4.6).
func (r *Resolver) Walk(ctx context.Context, rootDir string, root *manifest.Manifest, install InstallFunc) (*BundleNode, *Plan) {
	rootNode := &BundleNode{Manifest: root, ManifestDir: rootDir}
	plan := &Plan{}
	r.walkChildren(ctx, rootNode, nil, install, plan)
	return rootNode, plan
}

func (r *Resolver) walkChildren(ctx context.Context, parent *BundleNode, pathStack []cycleTriple, install InstallFunc, plan *Plan) {
	if parent.Manifest == nil {
		return
	}

	for _, entry := range parent.Manifest.Bundles {
		node := r.resolveChild(ctx, parent, entry, pathStack)
		parent.Children = append(parent.Children, node)

		if node.Err != nil {
			plan.Steps = append(plan.Steps, PlanStep{Node: node, Action: ActionInstall})
			continue
		}

		action := determineAction(node)
		node.PlanAction = action
		plan.Steps = append(plan.Steps, PlanStep{Node: node, Action: action})

		if action == ActionInstall && install != nil {
			if err := install(ctx, node); err != nil {
				node.Err = fmt.Errorf("installing bundle %q: %w", node.Alias, err)
				continue
			}
		}

		childManifest, err := loadChildManifest(node.InstallDir)
		if err != nil {
			node.Err = fmt.Errorf("loading manifest for bundle %q: %w", node.Alias, err)
			continue
		}
		node.Manifest = childManifest
		if node.Manifest == nil {
			continue
		}
		plan.Steps = append(plan.Steps, PlanStep{Node: node, Action: ActionRecurse})

		triple := cycleKey(node.RepoCacheKey, node.SHA)
		r.walkChildren(ctx, node, append(pathStack, triple), install, plan)
	}
}

func (r *Resolver) resolveChild(ctx context.Context, parent *BundleNode, entry manifest.BundleEntry, pathStack []cycleTriple) *BundleNode {
	de := entry.DependencyEntry
	node := &BundleNode{
		Alias:  entry.Alias,
		Parent: parent,
		Entry:  &de,
	}
	node.InstallDir = filepath.Join(installBase(parent), ".fpm", entry.Alias)

	if err := validatePath(de.Path); err != nil {
		node.Err = &InvalidPathError{Alias: entry.Alias, Path: de.Path}
		return node
	}

	normURL := gitgw.NormalizeURL(de.Git)
	node.RepoCacheKey = normURL
	if de.Path != "" {
		node.RepoCacheKey += "#" + de.Path
	}

	candidates := candidateRefs(de.Version)

	if r.offline {
		// installDir is a flattened copy of a subtree, not a git working
		// tree (§4.3), so there is no local clone to open a ref against.
		// Offline resolution instead trusts the install marker already
		// recorded there: present means resolved (we cannot tell, without
		// the network, whether the remote has since moved), absent means
		// unresolved, exactly like a ref that was never found.
		marker, err := ReadMarker(node.InstallDir)
		if err != nil || marker == nil {
			node.Err = &RefNotFoundError{Alias: entry.Alias, Version: de.Version, Candidates: candidates}
			return node
		}
		node.SHA = marker.SHA
		node.ResolvedRef = marker.Ref
	} else {
		var resolveErr error
		for _, c := range candidates {
			refName, sha, err := r.gw.ResolveRemote(ctx, de.Git, c)
			if err != nil {
				resolveErr = err
				continue
			}
			node.ResolvedRef = refName
			node.SHA = sha
			resolveErr = nil
			break
		}
		if resolveErr != nil {
			node.Err = &RefNotFoundError{Alias: entry.Alias, Version: de.Version, Candidates: candidates}
			return node
		}
		slog.DebugContext(ctx, "resolved bundle version", "alias", entry.Alias, logutil.GitURL("git", de.Git), "ref", node.ResolvedRef, "sha", node.SHA)
	}

	triple := cycleKey(node.RepoCacheKey, node.SHA)
	for _, t := range pathStack {
		if t == triple {
			node.Err = &CycleError{Via: aliasChain(node)}
			return node
		}
	}

	return node
}

// installBase is the directory containing parent's own manifest file:
// children's InstallDir is "<installBase>/.fpm/<alias>" (§3 BundleNode).
func installBase(parent *BundleNode) string {
	if parent.IsRoot() {
		return parent.ManifestDir
	}
	return parent.InstallDir
}

// determineAction decides whether node needs a fresh install or is
// already up to date, per §4.4.1 step b: a missing or mismatched marker
// means install; a marker matching both the resolved SHA and the current
// source URL means verify only.
func determineAction(node *BundleNode) Action {
	marker, err := ReadMarker(node.InstallDir)
	if err != nil || marker == nil {
		return ActionInstall
	}
	if marker.Fresh(node.SHA, gitgw.NormalizeURL(node.Entry.Git)) {
		return ActionVerify
	}
	return ActionInstall
}

func loadChildManifest(installDir string) (*manifest.Manifest, error) {
	path := filepath.Join(installDir, "bundle.toml")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return manifest.Parse(data)
}

func aliasChain(node *BundleNode) []string {
	var chain []string
	for n := node; n != nil && !n.IsRoot(); n = n.Parent {
		chain = append([]string{n.Alias}, chain...)
	}
	return chain
}
