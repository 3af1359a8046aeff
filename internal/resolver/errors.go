package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the Resolver, one var per failure kind.
var (
	ErrRefNotFound = errors.New("resolver: ref not found")
	ErrCycle       = errors.New("resolver: cycle detected")
	ErrInvalidPath = errors.New("resolver: path escapes repository root")
)

// RefNotFoundError reports that none of a dependency's version candidates
// resolved against its remote.
type RefNotFoundError struct {
	Alias      string
	Version    string
	Candidates []string
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("resolver: bundle %q: version %q (tried %s) not found",
		e.Alias, e.Version, strings.Join(e.Candidates, ", "))
}

func (e *RefNotFoundError) Unwrap() error { return ErrRefNotFound }

// CycleError reports that a (url, sha, path) triple reappeared on the
// current root-to-node traversal path.
type CycleError struct {
	// Via is the chain of aliases from root to the node that closed the
	// cycle.
	Via []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("resolver: cycle detected via %s", strings.Join(e.Via, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// InvalidPathError reports a dependency's path field escaping the cloned
// repository root.
type InvalidPathError struct {
	Alias string
	Path  string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("resolver: bundle %q: path %q escapes repository root", e.Alias, e.Path)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }
