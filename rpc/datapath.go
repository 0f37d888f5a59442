// File: rpc/datapath.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request submission and transmission queue admission.

package rpc

import (
	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/pool"
	"github.com/momentics/hioload-rpc/protocol"
	"github.com/momentics/hioload-rpc/session"
)

// checkArgs tests every Submit precondition except slot availability and
// mutates nothing.
func checkArgs(s *session.Session, mb *pool.MsgBuffer) error {
	if s == nil || !s.IsClient() || !s.IsConnected() {
		return api.ErrInvalidSessionArg
	}
	if mb == nil || mb.Lent() {
		return api.ErrInvalidMsgBufferArg
	}
	if n := mb.DataSize(); n <= 0 || n > protocol.MaxMsgSize {
		return api.ErrInvalidMsgBufferArg
	}
	if n := mb.NumPkts(); n < 1 || n > protocol.MaxPkts {
		return api.ErrInvalidMsgBufferArg
	}
	if !mb.CheckPktHdr0() {
		return api.ErrInvalidMsgBufferArg
	}
	return nil
}

func checkedValidate(s *session.Session, mb *pool.MsgBuffer) error {
	return checkArgs(s, mb)
}

func trustedValidate(s *session.Session, mb *pool.MsgBuffer) error {
	if err := checkArgs(s, mb); err != nil {
		panic(err)
	}
	return nil
}

// Submit enqueues a request of type reqType carried by mb on client session
// s. On success mb is borrowed by the session until CompleteRequest returns
// it; a buffer already lent to a slot is rejected. Every failure leaves the
// session and the transmission queue untouched.
//
// Submit does not allocate and does not block.
func (e *Endpoint) Submit(s *session.Session, reqType uint8, mb *pool.MsgBuffer) error {
	if err := e.validate(s, mb); err != nil {
		e.metrics.SubmitFailed(api.CodeOf(err))
		return err
	}
	slot, ok := s.AcquireSlot()
	if !ok {
		e.metrics.SubmitFailed(api.ErrCodeNoSessionMsgSlots)
		return api.ErrNoSessionMsgSlots
	}
	reqNum := s.NextReqNum(slot)

	h0 := mb.PktHdr(0)
	h0.SetReqType(reqType)
	h0.SetMsgSize(mb.DataSize())
	h0.SetRemoteSessionNum(int(s.Server().SessionNum))
	h0.SetIsReq(true)
	h0.SetIsFirst(true)
	h0.SetIsExpected(false)
	h0.SetPktNum(0)
	h0.SetReqNum(reqNum)

	for i := 1; i < mb.NumPkts(); i++ {
		h := mb.PktHdr(i)
		copy(h, h0)
		h.SetIsFirst(false)
		h.SetPktNum(i)
	}

	s.Occupy(slot, mb)
	if s.MarkPendingTx() {
		e.txQueue.Add(s)
		e.metrics.Admitted()
	}
	e.metrics.Submitted()
	return nil
}

// TxQueueLen is the number of sessions awaiting transmission.
func (e *Endpoint) TxQueueLen() int { return e.txQueue.Length() }

// PopTxSession removes the oldest session from the transmission queue and
// clears its pending flag. A later Submit on it re-admits it.
func (e *Endpoint) PopTxSession() (*session.Session, bool) {
	if e.txQueue.Length() == 0 {
		return nil, false
	}
	s := e.txQueue.Remove().(*session.Session)
	s.ClearPendingTx()
	return s, true
}

// CompleteRequest releases slot of s and returns the buffer it borrowed.
func (e *Endpoint) CompleteRequest(s *session.Session, slot int) (*pool.MsgBuffer, error) {
	if s == nil || slot < 0 || slot >= session.ReqWindow || !s.Slot(slot).InUse() {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "rpc: complete of idle slot").
			WithContext("slot", slot)
	}
	mb := s.ReleaseSlot(slot)
	e.metrics.Completed()
	return mb, nil
}

// AppendTxItems appends one TxItem per packet of every in-use slot of s,
// addressed to the peer. Slots stay in use until completed, so a caller
// draining the queue twice before completion sees the same requests again.
func AppendTxItems(dst []api.TxItem, s *session.Session) []api.TxItem {
	route := s.RemoteRoute()
	for i := 0; i < session.ReqWindow; i++ {
		sl := s.Slot(i)
		if !sl.InUse() || sl.MsgBuf() == nil {
			continue
		}
		mb := sl.MsgBuf()
		for p := 0; p < mb.NumPkts(); p++ {
			dst = append(dst, api.TxItem{Route: route, Header: mb.PktHdr(p), Payload: mb.PktData(p)})
		}
	}
	return dst
}
