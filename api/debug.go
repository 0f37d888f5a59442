// Package api
// Author: momentics
//
// Live introspection contract. Endpoints publish slot usage and queue depth
// through it without taking a dependency on a concrete registry.

package api

// Debug exposes runtime introspection.
type Debug interface {
	// DumpState emits a snapshot of all probes.
	DumpState() map[string]any

	// RegisterProbe registers or replaces a named probe.
	RegisterProbe(name string, fn func() any)

	// UnregisterProbe removes a probe; unknown names are ignored.
	UnregisterProbe(name string)
}
