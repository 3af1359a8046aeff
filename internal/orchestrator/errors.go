package orchestrator

import "errors"

// Sentinel errors for the Orchestrator, one var per failure kind.
var (
	// ErrNotASource is returned by Publish when the root manifest has no
	// `root` field (§4.4.4 step 4).
	ErrNotASource = errors.New("orchestrator: manifest is not a source bundle")
	// ErrUnknownAlias is returned by Push when -b names an alias absent
	// from the root manifest (§4.4.3 flags).
	ErrUnknownAlias = errors.New("orchestrator: unknown alias")
	// ErrManifestNotFound is returned when the root manifest file itself
	// cannot be read or parsed (§4.4.6 "manifest parse errors at the root abort the
	// entire operation").
	ErrManifestNotFound = errors.New("orchestrator: root manifest not found")
	// ErrNotABranch is returned by Push for a bundle whose recorded ref is
	// a tag or a pinned commit rather than a branch: there is no upstream
	// branch to push commits onto, so the bundle's transition is reported
	// as failed instead of inventing a new ref named after the version
	// string (§4.4.3).
	ErrNotABranch = errors.New("orchestrator: bundle does not track a branch")
)
