// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, logging, metrics and debug introspection for hioload-rpc
// endpoints.
//
// Provides:
//   - TOML configuration with environment overrides and a reloadable store
//   - zerolog logger construction
//   - Prometheus collectors for the submission path and session management
//   - Named debug probes for state dumps
//
// The default datapath validation mode is chosen at build time: building with
// -tags hioload_trusted makes endpoints trust submission arguments.
package control
