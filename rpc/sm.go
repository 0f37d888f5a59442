// File: rpc/sm.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session management: creation, establishment through the Nexus, teardown
// and the owner poll loop.

package rpc

import (
	"context"

	"code.hybscloud.com/iox"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/internal/concurrency"
	"github.com/momentics/hioload-rpc/protocol"
	"github.com/momentics/hioload-rpc/session"
)

// ErrConnectFailed is returned by AwaitSession when the server refused or the
// session was torn down before it connected.
var ErrConnectFailed = api.NewError(api.ErrCodeInternal, "rpc: session connect failed")

// allocSessionNum returns the lowest free local session number.
func (e *Endpoint) allocSessionNum() (uint16, bool) {
	for i, s := range e.sessions {
		if s == nil {
			return uint16(i), true
		}
	}
	if len(e.sessions) >= e.cfg.Endpoint.MaxSessions || len(e.sessions) > protocol.MaxSessionNum {
		return 0, false
	}
	e.sessions = append(e.sessions, nil)
	return uint16(len(e.sessions) - 1), true
}

func (e *Endpoint) localMetadata(num uint16) session.Metadata {
	e.startSeq++
	return session.Metadata{
		Transport:  e.transport.Type(),
		Hostname:   e.nexus.Hostname(),
		AppTID:     e.appTID,
		SessionNum: num,
		StartSeq:   e.startSeq,
		Route:      e.transport.RoutingInfo(),
	}
}

func (e *Endpoint) install(s *session.Session) {
	e.sessions[s.Local().SessionNum] = s
	e.numSessions++
	e.metrics.SessionsDelta(1)
}

// bury drops s from the session table.
func (e *Endpoint) bury(s *session.Session) {
	num := s.Local().SessionNum
	if int(num) < len(e.sessions) && e.sessions[num] == s {
		e.sessions[num] = nil
		e.numSessions--
		e.metrics.SessionsDelta(-1)
	}
}

// CreateSession opens a client session to endpoint remoteAppTID on
// remoteHost. The session starts in StateConnecting; it becomes usable once
// HandleSessionManagement processes the server's response.
func (e *Endpoint) CreateSession(remoteHost string, remoteAppTID uint8) (*session.Session, error) {
	if remoteHost != e.nexus.Hostname() {
		return nil, errors.Wrapf(api.ErrNotSupported, "rpc: remote host %q", remoteHost)
	}
	if remoteAppTID == e.appTID {
		return nil, errors.Wrap(api.ErrInvalidArgument, "rpc: session to self")
	}
	num, ok := e.allocSessionNum()
	if !ok {
		return nil, errors.Wrapf(api.ErrResourceExhausted, "rpc: endpoint %d session table full", e.appTID)
	}
	local := e.localMetadata(num)
	s := session.New(session.RoleClient, local)
	s.SetRemote(session.Metadata{Hostname: remoteHost, AppTID: remoteAppTID})
	e.install(s)

	req := session.EstablishmentReq{
		TransportType: e.transport.Type(),
		Client:        local,
		ServerAppTID:  remoteAppTID,
	}
	if err := e.nexus.DeliverRequest(remoteAppTID, req); err != nil {
		e.bury(s)
		return nil, err
	}
	e.log.Debug().
		Uint16("session", num).
		Uint8("remote_tid", remoteAppTID).
		Msg("connect request sent")
	return s, nil
}

// HandleSessionManagement drains the management hook and processes every
// establishment record. It returns the number of records handled and costs
// one mutex round trip when nothing arrived.
func (e *Endpoint) HandleSessionManagement() int {
	ev := e.hook.Events()
	if ev == e.lastEvents {
		return 0
	}
	e.lastEvents = ev

	e.reqScratch = e.hook.DrainRequests(e.reqScratch[:0])
	e.rspScratch = e.hook.DrainResponses(e.rspScratch[:0])
	for i := range e.reqScratch {
		e.handleConnectReq(&e.reqScratch[i])
	}
	for i := range e.rspScratch {
		e.handleConnectResp(&e.rspScratch[i])
	}
	n := len(e.reqScratch) + len(e.rspScratch)
	e.metrics.HookEvents(n)
	return n
}

func (e *Endpoint) handleConnectReq(req *session.EstablishmentReq) {
	resp := session.EstablishmentResp{
		ClientAppTID:     req.Client.AppTID,
		ClientSessionNum: req.Client.SessionNum,
	}
	resp.Server.Hostname = e.nexus.Hostname()
	resp.Server.AppTID = e.appTID

	var s *session.Session
	switch num, ok := e.allocSessionNum(); {
	case req.TransportType != e.transport.Type():
		resp.Err = api.ErrCodeNotSupported
	case !ok:
		resp.Err = api.ErrCodeResourceExhausted
	default:
		local := e.localMetadata(num)
		s = session.New(session.RoleServer, local)
		s.SetRemote(req.Client)
		if err := s.Transition(session.StateConnected); err != nil {
			panic(err)
		}
		e.install(s)
		resp.Server = local
	}

	if err := e.nexus.DeliverResponse(req.Client.AppTID, resp); err != nil {
		e.log.Warn().Err(err).Uint8("client_tid", req.Client.AppTID).Msg("connect response undeliverable")
		if s != nil {
			_ = s.Transition(session.StateDisconnecting)
			_ = s.Transition(session.StateDisconnected)
			e.bury(s)
		}
		return
	}
	e.log.Debug().
		Uint8("client_tid", req.Client.AppTID).
		Uint16("client_session", req.Client.SessionNum).
		Str("result", resp.Err.String()).
		Msg("connect request handled")
}

func (e *Endpoint) handleConnectResp(resp *session.EstablishmentResp) {
	s, ok := e.Session(resp.ClientSessionNum)
	if !ok || !s.IsClient() || s.State() != session.StateConnecting || s.Remote().AppTID != resp.Server.AppTID {
		e.log.Warn().
			Uint16("session", resp.ClientSessionNum).
			Uint8("server_tid", resp.Server.AppTID).
			Msg("stray connect response")
		return
	}

	if resp.Err != api.ErrCodeOK {
		_ = s.Transition(session.StateError)
		e.log.Info().Uint16("session", resp.ClientSessionNum).Str("err", resp.Err.String()).Msg("connect failed")
		e.notify(s, session.EventConnectFailed, resp.Err)
		_ = s.Transition(session.StateDisconnected)
		e.bury(s)
		return
	}

	s.SetRemote(resp.Server)
	if err := s.Transition(session.StateConnected); err != nil {
		panic(err)
	}
	e.log.Info().
		Uint16("session", resp.ClientSessionNum).
		Uint16("server_session", resp.Server.SessionNum).
		Msg("session connected")
	e.notify(s, session.EventConnected, nil)
}

func (e *Endpoint) notify(s *session.Session, ev session.EventType, arg any) {
	if e.handler != nil {
		e.handler(s, ev, arg)
	}
}

// DestroySession disconnects s and frees its session number. Sessions with
// requests in flight or awaiting transmission are refused.
func (e *Endpoint) DestroySession(s *session.Session) error {
	if s == nil {
		return errors.Wrap(api.ErrInvalidArgument, "rpc: nil session")
	}
	if cur, ok := e.Session(s.Local().SessionNum); !ok || cur != s {
		return errors.Wrap(api.ErrNotFound, "rpc: session not owned by endpoint")
	}
	if s.InUseSlots() > 0 || s.PendingTx() {
		return api.NewError(api.ErrCodeInvalidArgument, "rpc: session busy").
			WithContext("in_use", s.InUseSlots()).
			WithContext("pending_tx", s.PendingTx())
	}
	wasConnected := s.IsConnected()
	if wasConnected {
		_ = s.Transition(session.StateDisconnecting)
	}
	if err := s.Transition(session.StateDisconnected); err != nil {
		return err
	}
	e.bury(s)
	e.log.Debug().Uint16("session", s.Local().SessionNum).Msg("session destroyed")
	if wasConnected && s.IsClient() {
		e.notify(s, session.EventDisconnected, nil)
	}
	return nil
}

// AwaitSession polls the management hook until s is connected, has failed,
// or ctx ends. It spins with adaptive backoff and must run on the owner
// goroutine.
func (e *Endpoint) AwaitSession(ctx context.Context, s *session.Session) error {
	var bo iox.Backoff
	for {
		if e.HandleSessionManagement() > 0 {
			bo.Reset()
		}
		switch s.State() {
		case session.StateConnected:
			return nil
		case session.StateError, session.StateDisconnected:
			return ErrConnectFailed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		bo.Wait()
	}
}

// Serve runs the owner loop for an endpoint that only answers session
// management, pinning the goroutine to cfg.Endpoint.CPU when set. It returns
// nil when ctx ends.
func (e *Endpoint) Serve(ctx context.Context) error {
	if cpu := e.cfg.Endpoint.CPU; cpu >= 0 {
		if err := e.PinToCPU(cpu); err != nil {
			return err
		}
		defer func() {
			e.pinned = false
			_ = concurrency.UnpinCurrentThread()
		}()
	}
	for {
		e.HandleSessionManagement()
		select {
		case <-ctx.Done():
			return nil
		case <-e.hook.Notify():
		}
	}
}
