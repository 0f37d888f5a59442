// File: transport/udp/route.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package udp

import (
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-rpc/api"
)

// routeTag marks a routing descriptor produced by this package.
const routeTag = 'U'

// MaxDatagram is the largest IPv4 UDP payload.
const MaxDatagram = 65507

// EncodeRoute packs an IPv4 address and port into a routing descriptor.
func EncodeRoute(ap netip.AddrPort) api.RoutingInfo {
	var r api.RoutingInfo
	r[0] = routeTag
	ip := ap.Addr().As4()
	copy(r[1:5], ip[:])
	binary.BigEndian.PutUint16(r[5:7], ap.Port())
	return r
}

// DecodeRoute unpacks a descriptor built by EncodeRoute.
func DecodeRoute(r *api.RoutingInfo) (netip.AddrPort, error) {
	if r == nil || r[0] != routeTag {
		return netip.AddrPort{}, errors.Wrap(api.ErrInvalidArgument, "udp: foreign routing info")
	}
	ip := netip.AddrFrom4([4]byte(r[1:5]))
	return netip.AddrPortFrom(ip, binary.BigEndian.Uint16(r[5:7])), nil
}

// parseListenAddr validates addr and mtu for Listen.
func parseListenAddr(addr string, mtu, hdrSize int) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return netip.AddrPort{}, errors.Wrapf(api.ErrInvalidArgument, "udp: address %q: %v", addr, err)
	}
	if !ap.Addr().Is4() {
		return netip.AddrPort{}, errors.Wrapf(api.ErrNotSupported, "udp: %s is not IPv4", ap.Addr())
	}
	if mtu <= 0 || mtu+hdrSize > MaxDatagram {
		return netip.AddrPort{}, errors.Wrapf(api.ErrInvalidArgument, "udp: mtu %d", mtu)
	}
	return ap, nil
}
