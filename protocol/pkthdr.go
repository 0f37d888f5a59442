// File: protocol/pkthdr.go
// Author: momentics <momentics@gmail.com>
//
// In-place packet header accessors plus a value form for decoding.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrShortHeader = errors.New("protocol: short packet header")
	ErrBadMagic    = errors.New("protocol: bad packet header magic")
)

// bit positions inside word 0
const (
	magicShift      = 0
	reqTypeShift    = magicShift + MagicBits
	msgSizeShift    = reqTypeShift + ReqTypeBits
	sessionShift    = msgSizeShift + MsgSizeBits
	isReqShift      = sessionShift + SessionNumBits
	isFirstShift    = isReqShift + 1
	isExpectedShift = isFirstShift + 1
)

// bit positions inside word 1
const (
	pktNumShift = 0
	reqNumShift = pktNumShift + PktNumBits
)

func mask(bits uint) uint64 { return 1<<bits - 1 }

// Header is a view over PktHdrSize bytes of a message buffer.
type Header []byte

func (h Header) word(i int) uint64 {
	return binary.LittleEndian.Uint64(h[i*8 : i*8+8])
}

func (h Header) setWord(i int, w uint64) {
	binary.LittleEndian.PutUint64(h[i*8:i*8+8], w)
}

func (h Header) get(i int, shift, bits uint) uint64 {
	return (h.word(i) >> shift) & mask(bits)
}

func (h Header) set(i int, shift, bits uint, v uint64) {
	m := mask(bits) << shift
	h.setWord(i, (h.word(i)&^m)|((v<<shift)&m))
}

func (h Header) getBit(i int, shift uint) bool { return h.get(i, shift, 1) == 1 }

func (h Header) setBit(i int, shift uint, v bool) {
	var b uint64
	if v {
		b = 1
	}
	h.set(i, shift, 1, b)
}

// Init zeroes the header and writes the framing magic.
func (h Header) Init() {
	clear(h[:PktHdrSize])
	h.set(0, magicShift, MagicBits, PktHdrMagic)
}

// CheckMagic reports whether the header carries the framing magic.
func (h Header) CheckMagic() bool {
	return len(h) >= PktHdrSize && h.get(0, magicShift, MagicBits) == PktHdrMagic
}

func (h Header) Magic() uint8          { return uint8(h.get(0, magicShift, MagicBits)) }
func (h Header) ReqType() uint8        { return uint8(h.get(0, reqTypeShift, ReqTypeBits)) }
func (h Header) MsgSize() int          { return int(h.get(0, msgSizeShift, MsgSizeBits)) }
func (h Header) RemoteSessionNum() int { return int(h.get(0, sessionShift, SessionNumBits)) }
func (h Header) IsReq() bool           { return h.getBit(0, isReqShift) }
func (h Header) IsFirst() bool         { return h.getBit(0, isFirstShift) }
func (h Header) IsExpected() bool      { return h.getBit(0, isExpectedShift) }
func (h Header) PktNum() int           { return int(h.get(1, pktNumShift, PktNumBits)) }
func (h Header) ReqNum() uint64        { return h.get(1, reqNumShift, ReqNumBits) }

func (h Header) SetReqType(t uint8)        { h.set(0, reqTypeShift, ReqTypeBits, uint64(t)) }
func (h Header) SetMsgSize(n int)          { h.set(0, msgSizeShift, MsgSizeBits, uint64(n)) }
func (h Header) SetRemoteSessionNum(n int) { h.set(0, sessionShift, SessionNumBits, uint64(n)) }
func (h Header) SetIsReq(v bool)           { h.setBit(0, isReqShift, v) }
func (h Header) SetIsFirst(v bool)         { h.setBit(0, isFirstShift, v) }
func (h Header) SetIsExpected(v bool)      { h.setBit(0, isExpectedShift, v) }
func (h Header) SetPktNum(n int)           { h.set(1, pktNumShift, PktNumBits, uint64(n)) }
func (h Header) SetReqNum(n uint64)        { h.set(1, reqNumShift, ReqNumBits, n) }

func (h Header) String() string {
	if len(h) < PktHdrSize {
		return fmt.Sprintf("[PktHdr short (%d)]", len(h))
	}
	return h.Decode().String()
}

// Decode copies the header into its value form.
func (h Header) Decode() PktHdr {
	return PktHdr{
		Magic:            h.Magic(),
		ReqType:          h.ReqType(),
		MsgSize:          h.MsgSize(),
		RemoteSessionNum: h.RemoteSessionNum(),
		IsReq:            h.IsReq(),
		IsFirst:          h.IsFirst(),
		IsExpected:       h.IsExpected(),
		PktNum:           h.PktNum(),
		ReqNum:           h.ReqNum(),
	}
}

// PktHdr is the decoded form of a packet header.
type PktHdr struct {
	Magic            uint8
	ReqType          uint8
	MsgSize          int
	RemoteSessionNum int
	IsReq            bool
	IsFirst          bool
	IsExpected       bool
	PktNum           int
	ReqNum           uint64
}

func (p PktHdr) String() string {
	flags := []byte("...")
	if p.IsReq {
		flags[0] = 'R'
	}
	if p.IsFirst {
		flags[1] = 'F'
	}
	if p.IsExpected {
		flags[2] = 'E'
	}
	return fmt.Sprintf("[PktHdr type %d size %d sess %d %s pkt %d req %d]",
		p.ReqType, p.MsgSize, p.RemoteSessionNum, flags, p.PktNum, p.ReqNum)
}

// Encode writes p into dst, which must hold at least PktHdrSize bytes.
// Values wider than their field are truncated to the field width.
func (p PktHdr) Encode(dst []byte) error {
	if len(dst) < PktHdrSize {
		return ErrShortHeader
	}
	h := Header(dst)
	clear(h[:PktHdrSize])
	h.set(0, magicShift, MagicBits, uint64(p.Magic))
	h.SetReqType(p.ReqType)
	h.SetMsgSize(p.MsgSize)
	h.SetRemoteSessionNum(p.RemoteSessionNum)
	h.SetIsReq(p.IsReq)
	h.SetIsFirst(p.IsFirst)
	h.SetIsExpected(p.IsExpected)
	h.SetPktNum(p.PktNum)
	h.SetReqNum(p.ReqNum)
	return nil
}

// DecodePktHdr parses and validates the header at the start of src.
func DecodePktHdr(src []byte) (PktHdr, error) {
	if len(src) < PktHdrSize {
		return PktHdr{}, ErrShortHeader
	}
	h := Header(src[:PktHdrSize])
	if !h.CheckMagic() {
		return PktHdr{}, ErrBadMagic
	}
	return h.Decode(), nil
}
