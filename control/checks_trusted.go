//go:build hioload_trusted

// control/checks_trusted.go
// Author: momentics <momentics@gmail.com>

package control

// DefaultDatapathChecks is false: submissions are trusted and argument
// violations panic instead of returning errors.
const DefaultDatapathChecks = false
