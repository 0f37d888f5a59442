// File: pool/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-capacity message buffer arena. All regions are carved from one slab
// at construction time and addressed by Handle; Alloc and Free never touch
// the Go heap. An Arena belongs to a single Rpc endpoint thread.

package pool

import (
	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/protocol"
)

// Arena hands out fixed-size regions as message buffers.
type Arena struct {
	slab          []byte
	mapping       []byte // non-nil when slab came from mmap
	regionSize    int
	maxDataPerPkt int
	bufs          []MsgBuffer
	live          []bool
	free          *Ring[Handle]
	totalAlloc    int64
	totalFree     int64
}

// NewArena creates an arena of regions regions of regionSize bytes each.
// maxDataPerPkt is the transport's payload capacity per packet.
func NewArena(regions, regionSize, maxDataPerPkt int) (*Arena, error) {
	if regions <= 0 || regionSize <= protocol.PktHdrSize {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "arena: bad geometry").
			WithContext("regions", regions).
			WithContext("region_size", regionSize)
	}
	if maxDataPerPkt < protocol.MinDataPerPkt || maxDataPerPkt > protocol.MaxMsgSize {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "arena: bad max data per packet").
			WithContext("max_data_per_pkt", maxDataPerPkt)
	}
	slab, mapping := allocSlab(regions * regionSize)
	a := &Arena{
		slab:          slab,
		mapping:       mapping,
		regionSize:    regionSize,
		maxDataPerPkt: maxDataPerPkt,
		bufs:          make([]MsgBuffer, regions),
		live:          make([]bool, regions),
		free:          NewRing[Handle](nextPowerOfTwo(uint64(regions))),
	}
	for i := 0; i < regions; i++ {
		a.bufs[i].handle = Handle(i)
		a.free.Enqueue(Handle(i))
	}
	return a, nil
}

// MaxDataSize is the largest payload that fits in one region.
func (a *Arena) MaxDataSize() int {
	n := a.regionSize - protocol.PktHdrSize
	for n > 0 && RegionBytesFor(n, a.maxDataPerPkt) > a.regionSize {
		n -= protocol.PktHdrSize
	}
	if n > protocol.MaxMsgSize {
		n = protocol.MaxMsgSize
	}
	return n
}

// Alloc borrows a region for a dataSize-byte message. Header 0 is initialized
// with the framing magic. Exhaustion returns api.ErrResourceExhausted.
func (a *Arena) Alloc(dataSize int) (*MsgBuffer, error) {
	if dataSize <= 0 || dataSize > protocol.MaxMsgSize ||
		RegionBytesFor(dataSize, a.maxDataPerPkt) > a.regionSize {
		return nil, api.ErrInvalidArgument
	}
	h, ok := a.free.Dequeue()
	if !ok {
		return nil, api.ErrResourceExhausted
	}
	off := int(h) * a.regionSize
	m := &a.bufs[h]
	m.buf = a.slab[off : off+a.regionSize : off+a.regionSize]
	m.dataSize = dataSize
	m.maxDataSize = dataSize
	m.maxDataPerPkt = a.maxDataPerPkt
	m.numPkts = NumPktsFor(dataSize, a.maxDataPerPkt)
	m.PktHdr(0).Init()
	a.live[h] = true
	a.totalAlloc++
	return m, nil
}

// Free returns a buffer's region to the arena. The MsgBuffer becomes invalid
// and any later submission of it is rejected. Buffers still lent to a session
// slot are refused.
func (a *Arena) Free(m *MsgBuffer) error {
	if m == nil || m.handle == NoHandle || int(m.handle) >= len(a.bufs) ||
		&a.bufs[m.handle] != m || !a.live[m.handle] || m.lent {
		return api.ErrInvalidArgument
	}
	a.live[m.handle] = false
	m.buf = nil
	m.dataSize, m.maxDataSize, m.numPkts = 0, 0, 0
	a.free.Enqueue(m.handle)
	a.totalFree++
	return nil
}

// Lookup resolves a handle to its live buffer.
func (a *Arena) Lookup(h Handle) (*MsgBuffer, bool) {
	if int(h) >= len(a.bufs) || !a.live[h] {
		return nil, false
	}
	return &a.bufs[h], true
}

// Available returns the number of free regions.
func (a *Arena) Available() int {
	return a.free.Len()
}

// Stats exposes arena accounting.
func (a *Arena) Stats() api.BufferPoolStats {
	return api.BufferPoolStats{
		Regions:    len(a.bufs),
		RegionSize: a.regionSize,
		TotalAlloc: a.totalAlloc,
		TotalFree:  a.totalFree,
		InUse:      a.totalAlloc - a.totalFree,
		Hugepages:  a.mapping != nil,
	}
}

// Close releases the slab. The arena must not be used afterwards.
func (a *Arena) Close() error {
	for i := range a.bufs {
		a.bufs[i].buf = nil
		a.live[i] = false
	}
	mapping := a.mapping
	a.slab, a.mapping = nil, nil
	return releaseSlab(mapping)
}
