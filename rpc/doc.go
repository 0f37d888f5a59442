// Package rpc
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint is the per-thread owner of a set of sessions. It exposes the
// request submission datapath and the transmission queue that the transport
// layer drains.
//
// Every method of an Endpoint must be called from the goroutine that owns it,
// with the exception of the management hook, which is written by the Nexus
// from other goroutines. Nothing on the datapath takes a lock.
//
// Argument validation on Submit runs in one of two modes fixed at
// construction. In checked mode every precondition is tested before any
// mutation and a preallocated error is returned on the first violation. In
// trusted mode violations panic. Slot exhaustion is reported as
// api.ErrNoSessionMsgSlots in both modes.
package rpc
