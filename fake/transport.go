// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake transport for tests and development. Bursts are recorded instead of
// reaching a NIC.

package fake

import (
	"sync"

	"github.com/momentics/hioload-rpc/api"
)

// Packet is one recorded transmission. Header and Payload are copies.
type Packet struct {
	Route   api.RoutingInfo
	Header  []byte
	Payload []byte
}

// Transport is a fake implementation of api.Transport.
type Transport struct {
	mu         sync.Mutex
	mtu        int
	route      api.RoutingInfo
	sent       []Packet
	bursts     int
	closed     bool
	sendError  error
	closeError error
}

var _ api.Transport = (*Transport)(nil)

// NewTransport creates a fake transport with mtu payload bytes per packet.
// tag is written into the first byte of the routing descriptor so peers can
// be told apart.
func NewTransport(mtu int, tag byte) *Transport {
	t := &Transport{mtu: mtu}
	t.route[0] = tag
	return t
}

func (t *Transport) Type() api.TransportType      { return api.TransportFake }
func (t *Transport) MaxDataPerPkt() int           { return t.mtu }
func (t *Transport) RoutingInfo() api.RoutingInfo { return t.route }

// TxBurst implements api.Transport.TxBurst.
func (t *Transport) TxBurst(items []api.TxItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return api.ErrTransportClosed
	}
	if t.sendError != nil {
		return t.sendError
	}
	for _, it := range items {
		p := Packet{
			Header:  append([]byte(nil), it.Header...),
			Payload: append([]byte(nil), it.Payload...),
		}
		if it.Route != nil {
			p.Route = *it.Route
		}
		t.sent = append(t.sent, p)
	}
	t.bursts++
	return nil
}

// Close implements api.Transport.Close.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closeError != nil {
		return t.closeError
	}
	t.closed = true
	return nil
}

// SetSendError configures the transport to fail every TxBurst with err.
func (t *Transport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendError = err
}

// SetCloseError configures the transport to return err on Close.
func (t *Transport) SetCloseError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeError = err
}

// Sent returns every packet transmitted so far.
func (t *Transport) Sent() []Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Packet, len(t.sent))
	copy(out, t.sent)
	return out
}

// Bursts returns the number of successful TxBurst calls.
func (t *Transport) Bursts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bursts
}

// ClearSent drops the recorded packets.
func (t *Transport) ClearSent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = t.sent[:0]
}
