// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Wire layout of the per-packet header stamped by the Rpc datapath.
//
// A header is 16 bytes, two little-endian 64-bit words:
//
//	word 0: magic:8 | req_type:8 | msg_size:24 | remote_session_id:16 |
//	        is_req:1 | is_first:1 | is_expected:1 | reserved:5
//	word 1: pkt_num:14 | req_num:44 | reserved:6
//
// Header accessors operate in place on the message buffer bytes and never
// allocate, so they are safe to use on the submission fast path.
package protocol
