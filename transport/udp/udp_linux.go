// File: transport/udp/udp_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking datagram socket driven through x/sys/unix gathered I/O.

package udp

import (
	"net/netip"
	"sync"

	"code.hybscloud.com/iox"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/protocol"
)

// Transport sends Rpc packets as UDP datagrams from one bound socket.
type Transport struct {
	mu     sync.Mutex
	fd     int
	mtu    int
	local  netip.AddrPort
	route  api.RoutingInfo
	closed bool

	// scratch reused by TxBurst and Recv
	dst unix.SockaddrInet4
	txv [2][]byte
	rxv [2][]byte
}

var _ api.Transport = (*Transport)(nil)

// Listen binds a non-blocking UDP socket to addr ("ip:port", port 0 picks
// one) carrying at most mtu payload bytes per packet.
func Listen(addr string, mtu int) (*Transport, error) {
	ap, err := parseListenAddr(addr, mtu, protocol.PktHdrSize)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return nil, errors.Wrap(err, "udp: socket")
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().As4()}); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "udp: bind %s", ap)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrap(err, "udp: getsockname")
	}
	in4 := sa.(*unix.SockaddrInet4)
	local := netip.AddrPortFrom(netip.AddrFrom4(in4.Addr), uint16(in4.Port))
	return &Transport{
		fd:    fd,
		mtu:   mtu,
		local: local,
		route: EncodeRoute(local),
	}, nil
}

func (t *Transport) Type() api.TransportType      { return api.TransportUDP }
func (t *Transport) MaxDataPerPkt() int           { return t.mtu }
func (t *Transport) RoutingInfo() api.RoutingInfo { return t.route }
func (t *Transport) LocalAddr() netip.AddrPort    { return t.local }

// TxBurst sends one datagram per item. A full socket buffer stops the burst
// with an error wrapping iox.ErrWouldBlock; items before it were sent.
func (t *Transport) TxBurst(items []api.TxItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return api.ErrTransportClosed
	}
	for i := range items {
		it := &items[i]
		to, err := DecodeRoute(it.Route)
		if err != nil {
			return err
		}
		if len(it.Payload) > t.mtu {
			return errors.Wrapf(api.ErrInvalidArgument, "udp: payload %d exceeds mtu %d", len(it.Payload), t.mtu)
		}
		t.dst.Addr = to.Addr().As4()
		t.dst.Port = int(to.Port())
		t.txv[0], t.txv[1] = it.Header, it.Payload
		_, err = unix.SendmsgBuffers(t.fd, t.txv[:], nil, &t.dst, unix.MSG_DONTWAIT)
		t.txv[0], t.txv[1] = nil, nil
		if err == unix.EAGAIN {
			return errors.Wrapf(iox.ErrWouldBlock, "udp: sent %d of %d", i, len(items))
		}
		if err != nil {
			return errors.Wrapf(err, "udp: sendmsg to %s", to)
		}
	}
	return nil
}

// Recv reads one datagram, scattering its first len(hdr) bytes into hdr and
// the rest into payload. It returns the payload length and the sender, or an
// error wrapping iox.ErrWouldBlock when nothing is queued.
func (t *Transport) Recv(hdr, payload []byte) (int, netip.AddrPort, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, netip.AddrPort{}, api.ErrTransportClosed
	}
	t.rxv[0], t.rxv[1] = hdr, payload
	n, _, _, from, err := unix.RecvmsgBuffers(t.fd, t.rxv[:], nil, unix.MSG_DONTWAIT)
	t.rxv[0], t.rxv[1] = nil, nil
	if err == unix.EAGAIN {
		return 0, netip.AddrPort{}, iox.ErrWouldBlock
	}
	if err != nil {
		return 0, netip.AddrPort{}, errors.Wrap(err, "udp: recvmsg")
	}
	if n < len(hdr) {
		return 0, netip.AddrPort{}, errors.Wrapf(api.ErrInvalidArgument, "udp: short datagram of %d bytes", n)
	}
	var src netip.AddrPort
	if in4, ok := from.(*unix.SockaddrInet4); ok {
		src = netip.AddrPortFrom(netip.AddrFrom4(in4.Addr), uint16(in4.Port))
	}
	return n - len(hdr), src, nil
}

// Close closes the socket. Further calls are no-ops.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return errors.Wrap(unix.Close(t.fd), "udp: close")
}
