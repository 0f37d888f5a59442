// File: rpc/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-rpc/control"
	"github.com/momentics/hioload-rpc/pool"
	"github.com/momentics/hioload-rpc/session"
)

// Option customizes endpoint construction.
type Option func(*Endpoint)

// WithConfig replaces the default configuration.
func WithConfig(cfg control.Config) Option {
	return func(e *Endpoint) {
		e.cfg = cfg
	}
}

// WithDatapathChecks overrides cfg.Endpoint.DatapathChecks.
func WithDatapathChecks(checked bool) Option {
	return func(e *Endpoint) {
		e.checksOverride = &checked
	}
}

// WithLogger sets the endpoint logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Endpoint) {
		e.log = l
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *control.Metrics) Option {
	return func(e *Endpoint) {
		e.metrics = m
	}
}

// WithHandler installs the session management callback.
func WithHandler(h session.MgmtHandler) Option {
	return func(e *Endpoint) {
		e.handler = h
	}
}

// WithArena supplies a caller-owned message buffer arena. The endpoint does
// not close it.
func WithArena(a *pool.Arena) Option {
	return func(e *Endpoint) {
		e.arena = a
	}
}

// WithDebug registers endpoint probes on dp.
func WithDebug(dp *control.DebugProbes) Option {
	return func(e *Endpoint) {
		e.probes = dp
	}
}
