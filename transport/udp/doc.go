// Package udp
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package udp is an IPv4 datagram transport for the Rpc datapath. Each
// TxItem becomes one datagram carrying the packet header followed by the
// packet payload, sent with a single gathered sendmsg. Linux only; other
// platforms get a stub that refuses to open.
package udp
