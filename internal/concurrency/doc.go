// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// OS thread pinning for goroutines that own a datapath. An endpoint's owner
// goroutine locks itself to an OS thread and, when configured, binds that
// thread to one CPU.
package concurrency
