// File: session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session state machine, request slot window and per-slot request numbers.

package session

import (
	"fmt"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/pool"
	"github.com/momentics/hioload-rpc/protocol"
)

// ReqWindow is the number of request slots per session (W). It must be a
// power of two so that req_num mod W survives counter wraparound.
const ReqWindow = 8

// reqCounterWrap bounds a slot counter so c*W+slot fits the req_num field.
const reqCounterWrap = (protocol.MaxReqNum + 1) / ReqWindow

func init() {
	if ReqWindow < 1 || ReqWindow&(ReqWindow-1) != 0 {
		panic("session: ReqWindow must be a power of two")
	}
	if ReqWindow > 256 {
		panic("session: ReqWindow > 256")
	}
}

// Role is fixed at creation.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// State enumerates the connection state of a session.
type State uint8

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// transitions lists the legal successor states of each state.
var transitions = [...][]State{
	StateConnecting:    {StateConnected, StateDisconnected, StateError},
	StateConnected:     {StateDisconnecting, StateDisconnected, StateError},
	StateDisconnecting: {StateDisconnected, StateError},
	StateDisconnected:  nil,
	StateError:         {StateDisconnected},
}

// Metadata describes one side of a session.
type Metadata struct {
	Transport     api.TransportType
	Hostname      string
	AppTID        uint8
	FdevPortIndex int
	SessionNum    uint16
	StartSeq      uint64
	Route         api.RoutingInfo
}

// SSlot is one unit of in-flight request capacity.
type SSlot struct {
	inUse      bool
	msgbuf     *pool.MsgBuffer
	reqCounter uint64
}

func (s *SSlot) InUse() bool             { return s.inUse }
func (s *SSlot) MsgBuf() *pool.MsgBuffer { return s.msgbuf }
func (s *SSlot) ReqCounter() uint64      { return s.reqCounter }

// Session is a one-to-one endpoint state object.
type Session struct {
	role   Role
	state  State
	client Metadata
	server Metadata

	slots   [ReqWindow]SSlot
	freeVec [ReqWindow]uint8
	numFree int

	pendingTx bool
	cc        bool
}

// New returns a session in StateConnecting with every slot free. local is
// this side's metadata; it fills the client or server half according to role.
func New(role Role, local Metadata) *Session {
	s := &Session{role: role, state: StateConnecting}
	if role == RoleClient {
		s.client = local
	} else {
		s.server = local
	}
	for i := range s.freeVec {
		s.freeVec[i] = uint8(i)
	}
	s.numFree = ReqWindow
	return s
}

func (s *Session) Role() Role        { return s.role }
func (s *Session) State() State      { return s.state }
func (s *Session) IsClient() bool    { return s.role == RoleClient }
func (s *Session) IsConnected() bool { return s.state == StateConnected }
func (s *Session) Client() Metadata  { return s.client }
func (s *Session) Server() Metadata  { return s.server }
func (s *Session) FreeSlots() int    { return s.numFree }
func (s *Session) InUseSlots() int   { return ReqWindow - s.numFree }
func (s *Session) PendingTx() bool   { return s.pendingTx }

// Local returns this side's metadata.
func (s *Session) Local() Metadata {
	if s.role == RoleClient {
		return s.client
	}
	return s.server
}

// Remote returns the peer's metadata.
func (s *Session) Remote() Metadata {
	if s.role == RoleClient {
		return s.server
	}
	return s.client
}

// SetRemote records the peer's metadata learned during establishment.
func (s *Session) SetRemote(m Metadata) {
	if s.role == RoleClient {
		s.server = m
	} else {
		s.client = m
	}
}

// RemoteRoute is the transport routing descriptor of the peer.
func (s *Session) RemoteRoute() *api.RoutingInfo {
	if s.role == RoleClient {
		return &s.server.Route
	}
	return &s.client.Route
}

// Transition moves the session to state to if the state machine allows it.
func (s *Session) Transition(to State) error {
	if int(s.state) < len(transitions) {
		for _, next := range transitions[s.state] {
			if next == to {
				s.state = to
				return nil
			}
		}
	}
	return api.NewError(api.ErrCodeInvalidArgument, "session: invalid state transition").
		WithContext("from", s.state.String()).
		WithContext("to", to.String())
}

// EnableCongestionControl sets the congestion control flag.
func (s *Session) EnableCongestionControl() { s.cc = true }

// DisableCongestionControl clears the congestion control flag.
func (s *Session) DisableCongestionControl() { s.cc = false }

// CongestionControlEnabled reports the congestion control flag.
func (s *Session) CongestionControlEnabled() bool { return s.cc }

// Slot returns slot i for inspection.
func (s *Session) Slot(i int) *SSlot { return &s.slots[i] }

// AcquireSlot pops a free slot index. It returns false, changing nothing,
// when the window is exhausted. Popping a slot marked in use means the
// free-list is corrupt and panics.
func (s *Session) AcquireSlot() (int, bool) {
	if s.numFree == 0 {
		return -1, false
	}
	s.numFree--
	slot := int(s.freeVec[s.numFree])
	if s.slots[slot].inUse {
		panic(fmt.Sprintf("session: free-list slot %d already in use", slot))
	}
	return slot, true
}

// NextReqNum returns c*ReqWindow+slot for the slot's counter c and advances
// the counter. The counter wraps inside the req_num field width.
func (s *Session) NextReqNum(slot int) uint64 {
	sl := &s.slots[slot]
	reqNum := sl.reqCounter*ReqWindow + uint64(slot)
	sl.reqCounter = (sl.reqCounter + 1) & (reqCounterWrap - 1)
	return reqNum
}

// Occupy records mb as the in-flight request of an acquired slot.
func (s *Session) Occupy(slot int, mb *pool.MsgBuffer) {
	sl := &s.slots[slot]
	if mb != nil {
		mb.Lend()
	}
	sl.msgbuf = mb
	sl.inUse = true
}

// ReleaseSlot returns an in-use slot to the free-list and hands back the
// buffer it held. Releasing a free slot panics.
func (s *Session) ReleaseSlot(slot int) *pool.MsgBuffer {
	if slot < 0 || slot >= ReqWindow {
		panic(fmt.Sprintf("session: slot %d out of range", slot))
	}
	sl := &s.slots[slot]
	if !sl.inUse {
		panic(fmt.Sprintf("session: release of free slot %d", slot))
	}
	mb := sl.msgbuf
	if mb != nil {
		mb.Reclaim()
	}
	sl.msgbuf = nil
	sl.inUse = false
	s.freeVec[s.numFree] = uint8(slot)
	s.numFree++
	return mb
}

// MarkPendingTx sets the pending-for-transmission flag and reports whether
// it was previously clear.
func (s *Session) MarkPendingTx() bool {
	if s.pendingTx {
		return false
	}
	s.pendingTx = true
	return true
}

// ClearPendingTx clears the pending-for-transmission flag.
func (s *Session) ClearPendingTx() { s.pendingTx = false }

// SlotState is the observable state of one slot.
type SlotState struct {
	InUse      bool
	MsgBuf     *pool.MsgBuffer
	ReqCounter uint64
}

// Snapshot is a comparable copy of a session's datapath fields.
type Snapshot struct {
	State     State
	Slots     [ReqWindow]SlotState
	FreeVec   [ReqWindow]uint8
	NumFree   int
	PendingTx bool
	CC        bool
}

// Snapshot copies the datapath fields. Owner goroutine only.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:     s.state,
		FreeVec:   s.freeVec,
		NumFree:   s.numFree,
		PendingTx: s.pendingTx,
		CC:        s.cc,
	}
	for i := range s.slots {
		snap.Slots[i] = SlotState{
			InUse:      s.slots[i].inUse,
			MsgBuf:     s.slots[i].msgbuf,
			ReqCounter: s.slots[i].reqCounter,
		}
	}
	return snap
}

func (s *Session) String() string {
	l := s.Local()
	return fmt.Sprintf("[Session %s #%d %s free=%d/%d]", s.role, l.SessionNum, s.state, s.numFree, ReqWindow)
}
