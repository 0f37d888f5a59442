// File: rpc/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"fmt"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/control"
	"github.com/momentics/hioload-rpc/internal/concurrency"
	"github.com/momentics/hioload-rpc/nexus"
	"github.com/momentics/hioload-rpc/pool"
	"github.com/momentics/hioload-rpc/session"
)

// Endpoint owns sessions, the transmission queue and a message buffer arena.
type Endpoint struct {
	appTID    uint8
	nexus     *nexus.Nexus
	transport api.Transport
	hook      *session.ManagementHook

	cfg            control.Config
	checksOverride *bool
	checked        bool
	validate       func(s *session.Session, mb *pool.MsgBuffer) error

	arena     *pool.Arena
	ownsArena bool

	// sessions is indexed by local session number; nil entries are free.
	sessions    []*session.Session
	numSessions int
	txQueue     *queue.Queue

	handler session.MgmtHandler
	metrics *control.Metrics
	probes  *control.DebugProbes
	log     zerolog.Logger

	lastEvents uint64
	reqScratch []session.EstablishmentReq
	rspScratch []session.EstablishmentResp
	startSeq   uint64
	pinned     bool
	closed     bool
}

// NewEndpoint creates the endpoint with thread id appTID and registers its
// management hook with nx.
func NewEndpoint(nx *nexus.Nexus, appTID uint8, tr api.Transport, opts ...Option) (*Endpoint, error) {
	if nx == nil || tr == nil {
		return nil, errors.Wrap(api.ErrInvalidArgument, "rpc: nil nexus or transport")
	}
	e := &Endpoint{
		appTID:    appTID,
		nexus:     nx,
		transport: tr,
		hook:      session.NewManagementHook(appTID),
		cfg:       control.DefaultConfig(),
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	e.checked = e.cfg.Endpoint.DatapathChecks
	if e.checksOverride != nil {
		e.checked = *e.checksOverride
	}
	if e.checked {
		e.validate = checkedValidate
	} else {
		e.validate = trustedValidate
	}

	if e.arena == nil {
		mtu := e.cfg.Pool.MaxDataPerPkt
		if mtu == 0 {
			mtu = tr.MaxDataPerPkt()
		}
		a, err := pool.NewArena(e.cfg.Pool.MsgBufRegions, e.cfg.Pool.RegionSize, mtu)
		if err != nil {
			return nil, errors.Wrapf(err, "rpc: endpoint %d arena", appTID)
		}
		e.arena = a
		e.ownsArena = true
	}

	e.sessions = make([]*session.Session, 0, 16)
	e.txQueue = queue.New()
	e.reqScratch = make([]session.EstablishmentReq, 0, 8)
	e.rspScratch = make([]session.EstablishmentResp, 0, 8)
	e.startSeq = uint64(appTID) << 32

	if err := nx.Register(e.hook); err != nil {
		if e.ownsArena {
			_ = e.arena.Close()
		}
		return nil, err
	}
	e.log = e.log.With().Uint8("app_tid", appTID).Logger()
	if e.probes != nil {
		e.registerProbes()
	}
	e.log.Info().
		Bool("checked", e.checked).
		Str("transport", tr.Type().String()).
		Int("max_msg", e.arena.MaxDataSize()).
		Msg("endpoint created")
	return e, nil
}

func (e *Endpoint) probeName(what string) string {
	return fmt.Sprintf("rpc.%d.%s", e.appTID, what)
}

// registerProbes exposes owner state; DumpState must run on the owner
// goroutine for these probes to be race free.
func (e *Endpoint) registerProbes() {
	e.probes.RegisterProbe(e.probeName("tx_queue_len"), func() any { return e.txQueue.Length() })
	e.probes.RegisterProbe(e.probeName("sessions"), func() any {
		out := make(map[string]any, e.numSessions)
		for _, s := range e.sessions {
			if s != nil {
				out[fmt.Sprint(s.Local().SessionNum)] = map[string]any{
					"state":      s.State().String(),
					"slots_used": s.InUseSlots(),
					"pending_tx": s.PendingTx(),
				}
			}
		}
		return out
	})
	e.probes.RegisterProbe(e.probeName("arena"), func() any { return e.arena.Stats() })
}

func (e *Endpoint) AppTID() uint8                 { return e.appTID }
func (e *Endpoint) Hook() *session.ManagementHook { return e.hook }
func (e *Endpoint) Transport() api.Transport      { return e.transport }
func (e *Endpoint) Config() control.Config        { return e.cfg }
func (e *Endpoint) Arena() *pool.Arena            { return e.arena }

// Checked reports whether Submit runs in checked mode.
func (e *Endpoint) Checked() bool { return e.checked }

// NumSessions counts live sessions of either role.
func (e *Endpoint) NumSessions() int { return e.numSessions }

// Session returns the session with local number num.
func (e *Endpoint) Session(num uint16) (*session.Session, bool) {
	if int(num) >= len(e.sessions) || e.sessions[num] == nil {
		return nil, false
	}
	return e.sessions[num], true
}

// AllocMsgBuffer returns a buffer with dataSize payload bytes and header 0
// initialized.
func (e *Endpoint) AllocMsgBuffer(dataSize int) (*pool.MsgBuffer, error) {
	return e.arena.Alloc(dataSize)
}

// FreeMsgBuffer returns mb to the arena. Buffers lent to a slot must first be
// reclaimed with CompleteRequest.
func (e *Endpoint) FreeMsgBuffer(mb *pool.MsgBuffer) error {
	return e.arena.Free(mb)
}

// PinToCPU locks the calling goroutine to its OS thread and binds the thread
// to cpu. Call it from the owner goroutine.
func (e *Endpoint) PinToCPU(cpu int) error {
	if err := concurrency.PinCurrentThread(cpu); err != nil {
		_ = concurrency.UnpinCurrentThread()
		return err
	}
	e.pinned = true
	e.log.Debug().Int("cpu", cpu).Msg("owner thread pinned")
	return nil
}

// Close unregisters the endpoint, disconnects all sessions and releases an
// owned arena. Requests still in flight are abandoned: their slots are
// released and arena buffers go back to the arena. The transport is left
// open.
func (e *Endpoint) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.nexus.Unregister(e.appTID)
	for _, s := range e.sessions {
		if s == nil {
			continue
		}
		for slot := 0; slot < session.ReqWindow; slot++ {
			if !s.Slot(slot).InUse() {
				continue
			}
			if mb := s.ReleaseSlot(slot); mb != nil && mb.Handle() != pool.NoHandle {
				_ = e.arena.Free(mb)
			}
			e.metrics.Completed()
		}
		if s.IsConnected() {
			_ = s.Transition(session.StateDisconnecting)
		}
		_ = s.Transition(session.StateDisconnected)
		e.bury(s)
	}
	for e.txQueue.Length() > 0 {
		e.txQueue.Remove().(*session.Session).ClearPendingTx()
	}
	if e.probes != nil {
		for _, n := range []string{"tx_queue_len", "sessions", "arena"} {
			e.probes.UnregisterProbe(e.probeName(n))
		}
	}
	var err error
	if e.pinned {
		err = concurrency.UnpinCurrentThread()
		e.pinned = false
	}
	if e.ownsArena {
		if cerr := e.arena.Close(); err == nil {
			err = cerr
		}
	}
	e.log.Info().Msg("endpoint closed")
	return err
}
