// File: pool/msgbuffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Message buffer: one fixed region holding the payload and one packet header
// per constituent packet.
//
// Region layout:
//
//	| hdr 0 | payload (dataSize bytes) | hdr 1 | hdr 2 | ... | hdr n-1 |
//
// Header 0 sits directly in front of the payload so a single-packet message is
// one contiguous span; headers of later packets trail the payload.

package pool

import (
	"fmt"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/protocol"
)

// Handle addresses one region of an Arena.
type Handle uint32

// NoHandle marks buffers that do not belong to an arena.
const NoHandle = ^Handle(0)

// MsgBuffer is a request or response message. A buffer handed to a session by
// a successful submission is borrowed until the request completes; the caller
// must not touch it in between.
type MsgBuffer struct {
	buf           []byte
	dataSize      int
	maxDataSize   int
	numPkts       int
	maxDataPerPkt int
	handle        Handle
	lent          bool
}

// WrapMsgBuffer builds a message buffer over caller-owned memory, for example
// a region registered with the NIC outside any arena. Geometry is taken as
// given and is only validated when the buffer is submitted.
func WrapMsgBuffer(region []byte, dataSize, numPkts int) *MsgBuffer {
	m := &MsgBuffer{
		buf:         region,
		dataSize:    dataSize,
		maxDataSize: dataSize,
		numPkts:     numPkts,
		handle:      NoHandle,
	}
	if numPkts > 0 {
		m.maxDataPerPkt = (dataSize + numPkts - 1) / numPkts
	}
	return m
}

// NumPktsFor returns how many packets dataSize bytes occupy at maxDataPerPkt
// payload bytes per packet. Empty messages still take one packet.
func NumPktsFor(dataSize, maxDataPerPkt int) int {
	if dataSize <= maxDataPerPkt {
		return 1
	}
	return (dataSize + maxDataPerPkt - 1) / maxDataPerPkt
}

// RegionBytesFor is the region footprint of a dataSize-byte message.
func RegionBytesFor(dataSize, maxDataPerPkt int) int {
	return dataSize + NumPktsFor(dataSize, maxDataPerPkt)*protocol.PktHdrSize
}

func (m *MsgBuffer) DataSize() int  { return m.dataSize }
func (m *MsgBuffer) NumPkts() int   { return m.numPkts }
func (m *MsgBuffer) Handle() Handle { return m.handle }

// MaxDataSize is the payload capacity fixed when the buffer was allocated.
func (m *MsgBuffer) MaxDataSize() int { return m.maxDataSize }

// Valid reports whether the buffer has a backing region large enough for its
// declared geometry.
func (m *MsgBuffer) Valid() bool {
	if m == nil || m.buf == nil || m.dataSize < 0 || m.dataSize > protocol.MaxMsgSize {
		return false
	}
	hdrs := m.numPkts
	if hdrs < 1 {
		hdrs = 1
	}
	if hdrs > protocol.MaxPkts {
		return false
	}
	return len(m.buf) >= m.dataSize+hdrs*protocol.PktHdrSize
}

// Lent reports whether the buffer is currently held by a session slot.
func (m *MsgBuffer) Lent() bool { return m.lent }

// Lend marks the buffer as held by a session slot. Lending a lent buffer
// panics.
func (m *MsgBuffer) Lend() {
	if m.lent {
		panic("pool: message buffer lent twice")
	}
	m.lent = true
}

// Reclaim clears the lent mark when the slot gives the buffer back.
func (m *MsgBuffer) Reclaim() { m.lent = false }

// CheckPktHdr0 reports whether header 0 exists and carries the framing magic.
func (m *MsgBuffer) CheckPktHdr0() bool {
	return m.Valid() && m.PktHdr(0).CheckMagic()
}

// PktHdr returns header n as an in-place view. n must be < NumPkts.
func (m *MsgBuffer) PktHdr(n int) protocol.Header {
	if n == 0 {
		return protocol.Header(m.buf[:protocol.PktHdrSize])
	}
	off := protocol.PktHdrSize + m.dataSize + (n-1)*protocol.PktHdrSize
	return protocol.Header(m.buf[off : off+protocol.PktHdrSize])
}

// Data returns the payload bytes.
func (m *MsgBuffer) Data() []byte {
	return m.buf[protocol.PktHdrSize : protocol.PktHdrSize+m.dataSize]
}

// PktData returns the payload slice carried by packet n.
func (m *MsgBuffer) PktData(n int) []byte {
	data := m.Data()
	if m.numPkts <= 1 {
		return data
	}
	from := n * m.maxDataPerPkt
	to := from + m.maxDataPerPkt
	if to > len(data) {
		to = len(data)
	}
	return data[from:to]
}

// Resize changes the payload size within the allocated capacity and
// recomputes the packet count. Header 0 is preserved; trailing headers are
// restamped on the next submission.
func (m *MsgBuffer) Resize(newSize int) error {
	if !m.Valid() || m.maxDataPerPkt <= 0 {
		return api.ErrInvalidArgument
	}
	if newSize <= 0 || newSize > m.maxDataSize {
		return api.NewError(api.ErrCodeInvalidArgument, "msgbuffer: resize out of range").
			WithContext("size", newSize).
			WithContext("max", m.maxDataSize)
	}
	m.dataSize = newSize
	m.numPkts = NumPktsFor(newSize, m.maxDataPerPkt)
	return nil
}

func (m *MsgBuffer) String() string {
	if m == nil {
		return "[MsgBuffer nil]"
	}
	return fmt.Sprintf("[MsgBuffer h=%d size=%d pkts=%d]", m.handle, m.dataSize, m.numPkts)
}
