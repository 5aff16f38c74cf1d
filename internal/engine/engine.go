// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package engine keeps the denormalized state of the forum hierarchy
// consistent: sibling sort orders, aggregate counts, cached last post
// details and per-channel post positions.
//
// Every method runs against the caller's transaction (any sqlx.ExtContext)
// and never begins or commits one itself. A returned error means the
// caller must roll the whole transaction back.
package engine

// Options tunes deployment-dependent policies.
type Options struct {
	// CountMetaPostsInProfile makes a profile's post count include
	// metaposts. When false only regular posts are counted.
	CountMetaPostsInProfile bool

	// VerifyInvariants re-checks position density after every moderation
	// transition. Costs one extra query per channel.
	VerifyInvariants bool
}

// Engine performs invariant-preserving updates of denormalized fields.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	opts Options
}

// New creates an Engine with the given options.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Options returns the policies the engine was created with.
func (e *Engine) Options() Options {
	return e.opts
}
