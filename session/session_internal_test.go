package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-rpc/protocol"
)

func TestReqCounterWraps(t *testing.T) {
	s := New(RoleClient, Metadata{})
	const slot = 3
	s.slots[slot].reqCounter = reqCounterWrap - 1

	rn := s.NextReqNum(slot)
	assert.Equal(t, uint64(slot), rn%ReqWindow)
	assert.LessOrEqual(t, rn, uint64(protocol.MaxReqNum))
	assert.Zero(t, s.slots[slot].reqCounter)

	rn = s.NextReqNum(slot)
	assert.Equal(t, uint64(slot), rn)
}

func TestCounterSurvivesRelease(t *testing.T) {
	s := New(RoleClient, Metadata{})
	slot, ok := s.AcquireSlot()
	require.True(t, ok)
	s.slots[slot].reqCounter = 41
	s.Occupy(slot, nil)
	s.ReleaseSlot(slot)

	again, ok := s.AcquireSlot()
	require.True(t, ok)
	require.Equal(t, slot, again)
	assert.Equal(t, uint64(41*ReqWindow+slot), s.NextReqNum(again))
}

func TestCorruptFreeListPanics(t *testing.T) {
	s := New(RoleClient, Metadata{})
	s.slots[ReqWindow-1].inUse = true
	assert.Panics(t, func() { s.AcquireSlot() })
}
