// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Datagram transport contract consumed by the Rpc datapath. Packet I/O and
// routing resolution live behind this interface.

package api

import "encoding/hex"

// TransportType identifies the fabric a transport drives.
type TransportType uint8

const (
	TransportInvalid TransportType = iota
	TransportInfiniBand
	TransportRoCE
	TransportOmniPath
	TransportFake
	TransportUDP
)

func (t TransportType) String() string {
	switch t {
	case TransportInfiniBand:
		return "infiniband"
	case TransportRoCE:
		return "roce"
	case TransportOmniPath:
		return "omnipath"
	case TransportFake:
		return "fake"
	case TransportUDP:
		return "udp"
	default:
		return "invalid"
	}
}

// RoutingInfoSize is the fixed size of a serialized routing descriptor.
const RoutingInfoSize = 48

// RoutingInfo is transport-specific addressing data (address handle, queue
// pair number, GID, ...). Its content is opaque outside the transport.
type RoutingInfo [RoutingInfoSize]byte

func (r RoutingInfo) String() string {
	return hex.EncodeToString(r[:8]) + "..."
}

// TxItem is one packet handed to the transport: the destination route, the
// header bytes and the payload bytes carried by that packet.
type TxItem struct {
	Route   *RoutingInfo
	Header  []byte
	Payload []byte
}

// Transport abstracts an unreliable, connectionless packet transport.
type Transport interface {
	// Type reports the fabric kind; it is stamped into establishment records.
	Type() TransportType

	// MaxDataPerPkt is the payload capacity of one packet.
	MaxDataPerPkt() int

	// RoutingInfo returns the local routing descriptor to publish to peers.
	RoutingInfo() RoutingInfo

	// TxBurst transmits a batch of packets. It must not block.
	TxBurst(items []TxItem) error

	// Close releases transport resources.
	Close() error
}
