// Package session
// Author: momentics <momentics@gmail.com>
//
// One-to-one session state for the Rpc datapath.
//
// A Session owns a fixed window of request slots, the free-list over them and
// one request-number counter per slot. Its datapath fields are mutated only by
// the goroutine that owns the enclosing Rpc endpoint; nothing here takes a
// lock on that path.
//
// ManagementHook is the one structure shared across goroutines: a
// mutex-guarded mailbox between an endpoint and the process registry that
// carries session establishment records.
package session
