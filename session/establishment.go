// File: session/establishment.go
// Author: momentics <momentics@gmail.com>
//
// Session establishment records exchanged through the management hook, and
// the application callback fired on session events.

package session

import (
	"github.com/momentics/hioload-rpc/api"
)

// EstablishmentReq is sent by a client endpoint to open a session.
type EstablishmentReq struct {
	TransportType api.TransportType
	Client        Metadata // client hostname, app tid, session number, start seq, route
	ServerAppTID  uint8
}

// EstablishmentResp answers an EstablishmentReq. Err is ErrCodeOK on success.
type EstablishmentResp struct {
	Server           Metadata // server hostname, app tid, session number, start seq, route
	ClientAppTID     uint8
	ClientSessionNum uint16
	Err              api.ErrorCode
}

// EventType classifies session management events.
type EventType uint8

const (
	EventConnected EventType = iota
	EventConnectFailed
	EventDisconnected
)

func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MgmtHandler is invoked on the owning endpoint goroutine for each event.
type MgmtHandler func(s *Session, ev EventType, arg any)
