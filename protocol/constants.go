// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Packet header wire constants. Field widths are a compatibility surface:
// changing any of them breaks peers built from an older tree.

package protocol

const (
	// PktHdrSize is the fixed number of header bytes preceding every packet.
	PktHdrSize = 16

	// PktHdrMagic is the framing tag carried in the low byte of every header.
	PktHdrMagic = 0xB5

	// Field widths, in bits.
	MagicBits      = 8
	ReqTypeBits    = 8
	MsgSizeBits    = 24
	SessionNumBits = 16
	PktNumBits     = 14
	ReqNumBits     = 44

	// MaxMsgSize is the largest payload a single request or response may carry.
	MaxMsgSize = 8 << 20

	// MaxPkts is the largest number of packets one message may be split into.
	MaxPkts = 1 << PktNumBits

	// MaxSessionNum is the highest encodable session number.
	MaxSessionNum = 1<<SessionNumBits - 1

	// MaxReqNum is the highest encodable request number.
	MaxReqNum = 1<<ReqNumBits - 1

	// MinDataPerPkt keeps MaxMsgSize splittable within MaxPkts packets.
	MinDataPerPkt = MaxMsgSize / MaxPkts
)
