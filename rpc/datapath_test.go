package rpc_test

import (
	"errors"
	"math/rand"
	"testing"

	"code.hybscloud.com/iox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/control"
	"github.com/momentics/hioload-rpc/pool"
	"github.com/momentics/hioload-rpc/protocol"
	"github.com/momentics/hioload-rpc/rpc"
	"github.com/momentics/hioload-rpc/session"
)

const W = session.ReqWindow

func allocN(t testing.TB, ep *rpc.Endpoint, n, size int) []*pool.MsgBuffer {
	t.Helper()
	out := make([]*pool.MsgBuffer, n)
	for i := range out {
		mb, err := ep.AllocMsgBuffer(size)
		require.NoError(t, err)
		out[i] = mb
	}
	return out
}

func TestSubmitFillsWindowThenExhausts(t *testing.T) {
	p := newPair(t, testMTU)
	s := p.connect(t)
	bufs := allocN(t, p.client, W+1, 64)

	used := map[int]bool{}
	for i := 0; i < W; i++ {
		require.NoError(t, p.client.Submit(s, 7, bufs[i]))
		rn := bufs[i].PktHdr(0).ReqNum()
		slot := int(rn % W)
		assert.Equal(t, uint64(slot), rn, "first use of every slot has counter 0")
		assert.Equal(t, W-1-i, slot, "free-list pops in LIFO order")
		assert.False(t, used[slot])
		used[slot] = true
		assert.Equal(t, 1, p.client.TxQueueLen())
	}
	assert.Zero(t, s.FreeSlots())

	before := s.Snapshot()
	err := p.client.Submit(s, 7, bufs[W])
	assert.Same(t, api.ErrNoSessionMsgSlots, err)
	assert.True(t, errors.Is(err, iox.ErrWouldBlock))
	assert.Equal(t, api.ErrCodeNoSessionMsgSlots, api.CodeOf(err))
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 1, p.client.TxQueueLen())
}

func TestSubmitStampsHeaders(t *testing.T) {
	p := newPair(t, 3000)
	s := p.connect(t)

	mb, err := p.client.AllocMsgBuffer(9000)
	require.NoError(t, err)
	require.Equal(t, 3, mb.NumPkts())
	require.NoError(t, p.client.Submit(s, 42, mb))

	h0 := mb.PktHdr(0).Decode()
	assert.Equal(t, uint8(protocol.PktHdrMagic), h0.Magic)
	assert.Equal(t, uint8(42), h0.ReqType)
	assert.Equal(t, 9000, h0.MsgSize)
	assert.Equal(t, int(s.Server().SessionNum), h0.RemoteSessionNum)
	assert.True(t, h0.IsReq)
	assert.True(t, h0.IsFirst)
	assert.False(t, h0.IsExpected)
	assert.Zero(t, h0.PktNum)

	for i := 1; i < mb.NumPkts(); i++ {
		hi := mb.PktHdr(i).Decode()
		assert.False(t, hi.IsFirst)
		assert.Equal(t, i, hi.PktNum)
		hi.IsFirst, hi.PktNum = true, 0
		assert.Equal(t, h0, hi, "packet %d differs beyond is_first/pkt_num", i)
	}

	// stale bytes in trailing headers are overwritten, not merged
	_, err = p.client.CompleteRequest(s, int(h0.ReqNum%W))
	require.NoError(t, err)
	mb.PktHdr(2).SetReqType(0xFF)
	require.NoError(t, p.client.Submit(s, 43, mb))
	assert.Equal(t, uint8(43), mb.PktHdr(2).ReqType())
}

func TestSubmitRemoteSessionNum(t *testing.T) {
	p := newPair(t, testMTU)
	// occupy server session 0 with a second client so the session under test
	// maps to server session 1
	first := p.connect(t)
	s := p.connect(t)
	require.NotEqual(t, first.Server().SessionNum, s.Server().SessionNum)

	mb := allocN(t, p.client, 1, 10)[0]
	require.NoError(t, p.client.Submit(s, 1, mb))
	assert.Equal(t, int(s.Server().SessionNum), mb.PktHdr(0).RemoteSessionNum())
}

func TestSubmitBeforeConnected(t *testing.T) {
	p := newPair(t, testMTU)
	s, err := p.client.CreateSession(testHost, serverTID)
	require.NoError(t, err)
	mb := allocN(t, p.client, 1, 64)[0]

	before := s.Snapshot()
	assert.Same(t, api.ErrInvalidSessionArg, p.client.Submit(s, 1, mb))
	assert.Equal(t, before, s.Snapshot())
	assert.Zero(t, p.client.TxQueueLen())
}

func TestSubmitCheckedRejectsWithoutSideEffects(t *testing.T) {
	p := newPair(t, testMTU)
	s := p.connect(t)
	srvSession, ok := p.server.Session(s.Server().SessionNum)
	require.True(t, ok)
	good := allocN(t, p.client, 1, 64)[0]

	withMagic := func(mb *pool.MsgBuffer) *pool.MsgBuffer {
		mb.PktHdr(0).Init()
		return mb
	}
	oversize := protocol.MaxMsgSize + 1
	tooMany := protocol.MaxPkts + 1

	lent := allocN(t, p.client, 1, 64)[0]
	require.NoError(t, p.client.Submit(s, 1, lent))
	p.client.PopTxSession()

	inState := func(states ...session.State) *session.Session {
		ss := session.New(session.RoleClient, session.Metadata{AppTID: clientTID})
		for _, st := range states {
			require.NoError(t, ss.Transition(st))
		}
		return ss
	}

	cases := []struct {
		name string
		s    *session.Session
		mb   *pool.MsgBuffer
		want *api.Error
	}{
		{"nil session", nil, good, api.ErrInvalidSessionArg},
		{"server session", srvSession, good, api.ErrInvalidSessionArg},
		{"nil buffer", s, nil, api.ErrInvalidMsgBufferArg},
		{"no region", s, pool.WrapMsgBuffer(nil, 10, 1), api.ErrInvalidMsgBufferArg},
		{"short region", s, pool.WrapMsgBuffer(make([]byte, 20), 10, 1), api.ErrInvalidMsgBufferArg},
		{"no magic", s, pool.WrapMsgBuffer(make([]byte, 64), 32, 1), api.ErrInvalidMsgBufferArg},
		{"empty payload", s, withMagic(pool.WrapMsgBuffer(make([]byte, 16), 0, 1)), api.ErrInvalidMsgBufferArg},
		{"zero packets", s, withMagic(pool.WrapMsgBuffer(make([]byte, 64), 32, 0)), api.ErrInvalidMsgBufferArg},
		{"oversize", s, withMagic(pool.WrapMsgBuffer(make([]byte, oversize+16), oversize, 1)), api.ErrInvalidMsgBufferArg},
		{"too many packets", s, withMagic(pool.WrapMsgBuffer(make([]byte, 32+tooMany*protocol.PktHdrSize), 32, tooMany)), api.ErrInvalidMsgBufferArg},
		{"absurd packet count", s, pool.WrapMsgBuffer(make([]byte, 0), 0, 1<<60), api.ErrInvalidMsgBufferArg},
		{"absurd packet count with payload", s, pool.WrapMsgBuffer(make([]byte, 0), 32, 1<<60), api.ErrInvalidMsgBufferArg},
		{"buffer already in a slot", s, lent, api.ErrInvalidMsgBufferArg},
		{"connecting session", inState(), good, api.ErrInvalidSessionArg},
		{"disconnected session", inState(session.StateConnected, session.StateDisconnected), good, api.ErrInvalidSessionArg},
		{"errored session", inState(session.StateError), good, api.ErrInvalidSessionArg},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			before := s.Snapshot()
			srvBefore := srvSession.Snapshot()
			lentReqNum := lent.PktHdr(0).ReqNum()
			var err error
			require.NotPanics(t, func() { err = p.client.Submit(c.s, 3, c.mb) })
			assert.Same(t, c.want, err)
			assert.Equal(t, lentReqNum, lent.PktHdr(0).ReqNum())
			assert.Equal(t, before, s.Snapshot())
			assert.Equal(t, srvBefore, srvSession.Snapshot())
			assert.Zero(t, p.client.TxQueueLen())
		})
	}
	assert.True(t, good.CheckPktHdr0())
	assert.Zero(t, good.PktHdr(0).ReqType(), "rejected buffers are not stamped")
}

func TestSubmitTrustedPanics(t *testing.T) {
	p := newPair(t, testMTU, rpc.WithDatapathChecks(false))
	require.False(t, p.client.Checked())
	s, err := p.client.CreateSession(testHost, serverTID)
	require.NoError(t, err)
	mb := allocN(t, p.client, 1, 64)[0]

	assert.PanicsWithValue(t, api.ErrInvalidSessionArg, func() { _ = p.client.Submit(s, 1, mb) })
	require.Equal(t, 1, p.server.HandleSessionManagement())
	require.Equal(t, 1, p.client.HandleSessionManagement())
	assert.PanicsWithValue(t, api.ErrInvalidMsgBufferArg, func() { _ = p.client.Submit(s, 1, nil) })
	assert.PanicsWithValue(t, api.ErrInvalidSessionArg, func() { _ = p.client.Submit(nil, 1, mb) })

	// exhaustion stays a returned error
	bufs := allocN(t, p.client, W, 64)
	for _, b := range bufs {
		require.NoError(t, p.client.Submit(s, 1, b))
	}
	assert.NotPanics(t, func() {
		assert.Same(t, api.ErrNoSessionMsgSlots, p.client.Submit(s, 1, mb))
	})
	assert.PanicsWithValue(t, api.ErrInvalidMsgBufferArg, func() { _ = p.client.Submit(s, 1, bufs[0]) })
}

func TestTxQueueAdmissionIsIdempotent(t *testing.T) {
	p := newPair(t, testMTU)
	a := p.connect(t)
	b := p.connect(t)
	bufs := allocN(t, p.client, 6, 32)

	require.NoError(t, p.client.Submit(a, 1, bufs[0]))
	require.NoError(t, p.client.Submit(a, 1, bufs[1]))
	require.NoError(t, p.client.Submit(b, 1, bufs[2]))
	require.NoError(t, p.client.Submit(a, 1, bufs[3]))
	assert.Equal(t, 2, p.client.TxQueueLen())
	assert.True(t, a.PendingTx())

	got, ok := p.client.PopTxSession()
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.False(t, a.PendingTx())
	assert.Equal(t, 3, a.InUseSlots(), "draining does not release slots")

	require.NoError(t, p.client.Submit(a, 1, bufs[4]))
	assert.Equal(t, 2, p.client.TxQueueLen())

	got, _ = p.client.PopTxSession()
	assert.Same(t, b, got)
	got, _ = p.client.PopTxSession()
	assert.Same(t, a, got)
	_, ok = p.client.PopTxSession()
	assert.False(t, ok)
}

func TestReqNumContinuesAfterRelease(t *testing.T) {
	p := newPair(t, testMTU)
	s := p.connect(t)
	mb := allocN(t, p.client, 1, 64)[0]

	slot := -1
	for c := uint64(0); c < 4; c++ {
		require.NoError(t, p.client.Submit(s, 1, mb))
		rn := mb.PktHdr(0).ReqNum()
		if slot < 0 {
			slot = int(rn % W)
		}
		assert.Equal(t, c*W+uint64(slot), rn)
		got, err := p.client.CompleteRequest(s, slot)
		require.NoError(t, err)
		assert.Same(t, mb, got)
	}
	assert.Equal(t, uint64(4), s.Slot(slot).ReqCounter())
}

func TestCompleteRequestRejectsIdleSlot(t *testing.T) {
	p := newPair(t, testMTU)
	s := p.connect(t)
	for _, slot := range []int{-1, 0, W} {
		_, err := p.client.CompleteRequest(s, slot)
		assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err), "slot %d", slot)
	}
	_, err := p.client.CompleteRequest(nil, 0)
	assert.Error(t, err)
}

// TestDatapathProperties drives random submit/complete/drain sequences and
// checks slot disjointness, per-slot monotonicity and queue membership after
// every step.
func TestDatapathProperties(t *testing.T) {
	p := newPair(t, testMTU)
	s := p.connect(t)
	free := allocN(t, p.client, W+2, 128)
	inflight := map[int]*pool.MsgBuffer{}
	last := map[int]uint64{}
	rng := rand.New(rand.NewSource(1))

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(10); {
		case op < 5:
			mb := free[len(free)-1]
			err := p.client.Submit(s, uint8(step), mb)
			if len(inflight) == W {
				require.Same(t, api.ErrNoSessionMsgSlots, err)
				break
			}
			require.NoError(t, err)
			free = free[:len(free)-1]
			rn := mb.PktHdr(0).ReqNum()
			slot := int(rn % W)
			if prev, seen := last[slot]; seen {
				require.Equal(t, prev+W, rn, "slot %d", slot)
			}
			last[slot] = rn
			require.NotContains(t, inflight, slot)
			inflight[slot] = mb
		case op < 8:
			for slot, mb := range inflight {
				got, err := p.client.CompleteRequest(s, slot)
				require.NoError(t, err)
				require.Same(t, mb, got)
				delete(inflight, slot)
				free = append(free, got)
				break
			}
		default:
			if got, ok := p.client.PopTxSession(); ok {
				require.Same(t, s, got)
			}
		}

		snap := s.Snapshot()
		require.Equal(t, W, snap.NumFree+len(inflight))
		for _, idx := range snap.FreeVec[:snap.NumFree] {
			require.False(t, snap.Slots[idx].InUse, "free slot %d marked in use", idx)
			require.NotContains(t, inflight, int(idx))
		}
		for slot := range inflight {
			require.True(t, snap.Slots[slot].InUse)
		}
		require.LessOrEqual(t, p.client.TxQueueLen(), 1)
		require.Equal(t, snap.PendingTx, p.client.TxQueueLen() == 1)
	}
}

func TestSubmitDoesNotAllocate(t *testing.T) {
	p := newPair(t, testMTU)
	s := p.connect(t)
	mb := allocN(t, p.client, 1, 4000)[0]

	allocs := testing.AllocsPerRun(200, func() {
		if err := p.client.Submit(s, 1, mb); err != nil {
			panic(err)
		}
		p.client.PopTxSession()
		if _, err := p.client.CompleteRequest(s, int(mb.PktHdr(0).ReqNum()%W)); err != nil {
			panic(err)
		}
	})
	assert.Zero(t, allocs)
}

func TestSubmitMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := control.NewMetrics(reg, control.MetricsConfig{Enabled: true, Namespace: "rpc_test"})
	require.NoError(t, err)
	p := newPair(t, testMTU, rpc.WithMetrics(m))
	s := p.connect(t)
	bufs := allocN(t, p.client, W+1, 32)

	for _, b := range bufs {
		_ = p.client.Submit(s, 1, b)
	}
	_ = p.client.Submit(s, 1, nil)
	_, err = p.client.CompleteRequest(s, 0)
	require.NoError(t, err)

	assert.Equal(t, float64(W), testutil.ToFloat64(m.SubmitsCounter()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdmissionsCounter()))
	assert.Equal(t, float64(W-1), testutil.ToFloat64(m.SlotsInUse()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmitErrors().WithLabelValues("no_session_msg_slots")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmitErrors().WithLabelValues("invalid_msgbuffer_arg")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions()))
}

func TestAppendTxItemsFeedsTransport(t *testing.T) {
	p := newPair(t, testMTU)
	s := p.connect(t)
	mb := allocN(t, p.client, 1, 2500)[0]
	for i := range mb.Data() {
		mb.Data()[i] = byte(i)
	}
	require.NoError(t, p.client.Submit(s, 9, mb))

	got, ok := p.client.PopTxSession()
	require.True(t, ok)
	items := rpc.AppendTxItems(nil, got)
	require.Len(t, items, 3)
	require.NoError(t, p.ctr.TxBurst(items))

	sent := p.ctr.Sent()
	require.Len(t, sent, 3)
	total := 0
	for i, pkt := range sent {
		h, err := protocol.DecodePktHdr(pkt.Header)
		require.NoError(t, err)
		assert.Equal(t, i, h.PktNum)
		assert.Equal(t, 2500, h.MsgSize)
		assert.Equal(t, byte(serverTID), pkt.Route[0], "routed to the server transport")
		total += len(pkt.Payload)
	}
	assert.Equal(t, 2500, total)
}

func BenchmarkSubmitCycle(b *testing.B) {
	p := newPair(b, testMTU)
	s := p.connect(b)
	mb := allocN(b, p.client, 1, 4096)[0]

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.client.Submit(s, 1, mb); err != nil {
			b.Fatal(err)
		}
		p.client.PopTxSession()
		if _, err := p.client.CompleteRequest(s, int(mb.PktHdr(0).ReqNum()%W)); err != nil {
			b.Fatal(err)
		}
	}
}
