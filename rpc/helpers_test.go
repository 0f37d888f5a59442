package rpc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-rpc/control"
	"github.com/momentics/hioload-rpc/fake"
	"github.com/momentics/hioload-rpc/nexus"
	"github.com/momentics/hioload-rpc/rpc"
	"github.com/momentics/hioload-rpc/session"
)

const (
	testHost   = "node-0"
	serverTID  = 1
	clientTID  = 2
	testMTU    = 1024
	testRegion = 16 << 10
)

func testConfig() control.Config {
	cfg := control.DefaultConfig()
	cfg.Pool.MsgBufRegions = 32
	cfg.Pool.RegionSize = testRegion
	cfg.Endpoint.MaxSessions = 8
	cfg.Endpoint.DatapathChecks = true
	return cfg
}

type pair struct {
	nx     *nexus.Nexus
	server *rpc.Endpoint
	client *rpc.Endpoint
	ctr    *fake.Transport
}

func newEndpoint(t testing.TB, nx *nexus.Nexus, tid uint8, mtu int, opts ...rpc.Option) (*rpc.Endpoint, *fake.Transport) {
	t.Helper()
	tr := fake.NewTransport(mtu, tid)
	opts = append([]rpc.Option{rpc.WithConfig(testConfig())}, opts...)
	ep, err := rpc.NewEndpoint(nx, tid, tr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep, tr
}

// newPair builds a server and a client endpoint on one Nexus. clientOpts
// apply to the client only.
func newPair(t testing.TB, mtu int, clientOpts ...rpc.Option) *pair {
	t.Helper()
	nx := nexus.New(testHost)
	srv, _ := newEndpoint(t, nx, serverTID, mtu)
	cli, ctr := newEndpoint(t, nx, clientTID, mtu, clientOpts...)
	return &pair{nx: nx, server: srv, client: cli, ctr: ctr}
}

// connect runs the establishment handshake on the calling goroutine.
func (p *pair) connect(t testing.TB) *session.Session {
	t.Helper()
	s, err := p.client.CreateSession(testHost, serverTID)
	require.NoError(t, err)
	require.Equal(t, session.StateConnecting, s.State())
	require.Equal(t, 1, p.server.HandleSessionManagement())
	require.Equal(t, 1, p.client.HandleSessionManagement())
	require.Equal(t, session.StateConnected, s.State())
	return s
}
