// File: transport/udp/udp_other.go
//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package udp

import (
	"net/netip"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-rpc/api"
)

// Transport is unavailable on this platform.
type Transport struct{}

var _ api.Transport = (*Transport)(nil)

// Listen always fails with api.ErrNotSupported.
func Listen(addr string, mtu int) (*Transport, error) {
	return nil, errors.Wrap(api.ErrNotSupported, "udp: transport requires linux")
}

func (t *Transport) Type() api.TransportType          { return api.TransportUDP }
func (t *Transport) MaxDataPerPkt() int               { return 0 }
func (t *Transport) RoutingInfo() api.RoutingInfo     { return api.RoutingInfo{} }
func (t *Transport) LocalAddr() netip.AddrPort        { return netip.AddrPort{} }
func (t *Transport) TxBurst(items []api.TxItem) error { return api.ErrNotSupported }
func (t *Transport) Close() error                     { return nil }
func (t *Transport) Recv(hdr, payload []byte) (int, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, api.ErrNotSupported
}
