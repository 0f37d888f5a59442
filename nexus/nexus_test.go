package nexus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/nexus"
	"github.com/momentics/hioload-rpc/session"
)

func TestRegisterLookup(t *testing.T) {
	nx := nexus.New("host-a")
	assert.Equal(t, "host-a", nx.Hostname())

	h := session.NewManagementHook(3)
	require.NoError(t, nx.Register(h))
	got, ok := nx.Lookup(3)
	require.True(t, ok)
	assert.Same(t, h, got)
	assert.Equal(t, 1, nx.Len())

	err := nx.Register(session.NewManagementHook(3))
	assert.True(t, errors.Is(err, api.ErrAlreadyExists))

	nx.Unregister(3)
	nx.Unregister(3)
	_, ok = nx.Lookup(3)
	assert.False(t, ok)
	assert.Zero(t, nx.Len())
}

func TestDeliver(t *testing.T) {
	nx := nexus.New("host-a")
	h := session.NewManagementHook(1)
	require.NoError(t, nx.Register(h))

	require.NoError(t, nx.DeliverRequest(1, session.EstablishmentReq{ServerAppTID: 1}))
	require.NoError(t, nx.DeliverResponse(1, session.EstablishmentResp{ClientAppTID: 1}))
	reqs, resps := h.Pending()
	assert.Equal(t, 1, reqs)
	assert.Equal(t, 1, resps)
	assert.Equal(t, uint64(2), h.Events())

	err := nx.DeliverRequest(9, session.EstablishmentReq{})
	assert.True(t, errors.Is(err, api.ErrNotFound))
	err = nx.DeliverResponse(9, session.EstablishmentResp{})
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

type serverFunc func(ctx context.Context) error

func (f serverFunc) Serve(ctx context.Context) error { return f(ctx) }

func TestRunStopsOnCancel(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	wait := serverFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	done := make(chan error, 1)
	go func() { done <- nexus.Run(ctx, wait, wait) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestRunPropagatesFirstError(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Second)()

	boom := errors.New("boom")
	failing := serverFunc(func(context.Context) error { return boom })
	waiting := serverFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := nexus.Run(context.Background(), waiting, failing)
	assert.ErrorIs(t, err, boom)
}
