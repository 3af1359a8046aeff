// Package orchestrator implements the Sync Orchestrator: the three
// observable operations (install, status, push/publish) that compose the
// Resolver and the Git Gateway and enforce the ordering invariants named
// in §4.4 (declaration-order install, deepest-first push).
package orchestrator

import (
	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/resolver"
)

const defaultPushMessage = "Update from fpm push"

// Orchestrator composes a Git Gateway and a Resolver to implement install,
// status, push, and publish.
type Orchestrator struct {
	gw  gitgw.Interface
	res *resolver.Resolver

	offline bool
	message string
	alias   string
}

// Option configures an Orchestrator operation.
type Option func(*Orchestrator)

// WithOffline makes status resolve each bundle from its install marker
// instead of contacting its remote, per §4.4.2 and the resolved "offline
// status" open question.
func WithOffline(offline bool) Option {
	return func(o *Orchestrator) { o.offline = offline }
}

// WithMessage overrides push's commit message (default
// "Update from fpm push", §4.4.3).
func WithMessage(message string) Option {
	return func(o *Orchestrator) { o.message = message }
}

// WithAlias restricts push to a single top-level alias (`-b`, §4.4.3),
// still recursing into that alias's own descendants first.
func WithAlias(alias string) Option {
	return func(o *Orchestrator) { o.alias = alias }
}

// New constructs an Orchestrator bound to gw.
func New(gw gitgw.Interface, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:      gw,
		res:     resolver.New(gw),
		message: defaultPushMessage,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
