//go:build !hioload_trusted

// control/checks_checked.go
// Author: momentics <momentics@gmail.com>

package control

// DefaultDatapathChecks is true unless built with -tags hioload_trusted.
const DefaultDatapathChecks = true
