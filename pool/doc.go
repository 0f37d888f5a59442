// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-rpc message buffers.
// An Arena carves one slab (hugepage-backed on Linux) into fixed-capacity
// regions addressed by Handle; a MsgBuffer views one region as header 0,
// payload and trailing per-packet headers. Arenas and their buffers are owned
// by a single endpoint thread and are not safe for concurrent use.
package pool
