package udp

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-rpc/api"
)

func TestRouteRoundTrip(t *testing.T) {
	ap := netip.MustParseAddrPort("10.1.2.3:31850")
	r := EncodeRoute(ap)
	got, err := DecodeRoute(&r)
	require.NoError(t, err)
	assert.Equal(t, ap, got)
}

func TestDecodeForeignRoute(t *testing.T) {
	var r api.RoutingInfo
	r[0] = 7
	_, err := DecodeRoute(&r)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = DecodeRoute(nil)
	assert.Error(t, err)
}

func TestParseListenAddr(t *testing.T) {
	_, err := parseListenAddr("127.0.0.1:0", 1024, 16)
	assert.NoError(t, err)

	_, err = parseListenAddr("nonsense", 1024, 16)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = parseListenAddr("[::1]:0", 1024, 16)
	assert.True(t, errors.Is(err, api.ErrNotSupported))
	_, err = parseListenAddr("127.0.0.1:0", MaxDatagram, 16)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = parseListenAddr("127.0.0.1:0", 0, 16)
	assert.Error(t, err)
}
