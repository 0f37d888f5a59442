// File: nexus/nexus.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nexus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/session"
)

// Nexus routes establishment records between endpoints of one process.
type Nexus struct {
	hostname string
	log      zerolog.Logger

	mu    sync.RWMutex
	hooks map[uint8]*session.ManagementHook
}

// Option configures a Nexus.
type Option func(*Nexus)

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Nexus) { n.log = l }
}

// New creates an empty registry for hostname.
func New(hostname string, opts ...Option) *Nexus {
	n := &Nexus{
		hostname: hostname,
		log:      zerolog.Nop(),
		hooks:    make(map[uint8]*session.ManagementHook),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Hostname is the host every registered endpoint lives on.
func (n *Nexus) Hostname() string { return n.hostname }

// Register adds hook under its app thread id.
func (n *Nexus) Register(h *session.ManagementHook) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, dup := n.hooks[h.AppTID()]; dup {
		return errors.Wrapf(api.ErrAlreadyExists, "nexus: app tid %d", h.AppTID())
	}
	n.hooks[h.AppTID()] = h
	n.log.Debug().Uint8("app_tid", h.AppTID()).Msg("hook registered")
	return nil
}

// Unregister removes the hook of appTID. Unknown ids are ignored.
func (n *Nexus) Unregister(appTID uint8) {
	n.mu.Lock()
	_, ok := n.hooks[appTID]
	delete(n.hooks, appTID)
	n.mu.Unlock()
	if ok {
		n.log.Debug().Uint8("app_tid", appTID).Msg("hook unregistered")
	}
}

// Lookup returns the hook registered for appTID.
func (n *Nexus) Lookup(appTID uint8) (*session.ManagementHook, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	h, ok := n.hooks[appTID]
	return h, ok
}

// Len reports the number of registered hooks.
func (n *Nexus) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.hooks)
}

// DeliverRequest enqueues req on the hook of the target endpoint.
func (n *Nexus) DeliverRequest(appTID uint8, req session.EstablishmentReq) error {
	h, ok := n.Lookup(appTID)
	if !ok {
		return errors.Wrapf(api.ErrNotFound, "nexus: deliver request to app tid %d", appTID)
	}
	h.EnqueueRequest(req)
	return nil
}

// DeliverResponse enqueues resp on the hook of the target endpoint.
func (n *Nexus) DeliverResponse(appTID uint8, resp session.EstablishmentResp) error {
	h, ok := n.Lookup(appTID)
	if !ok {
		return errors.Wrapf(api.ErrNotFound, "nexus: deliver response to app tid %d", appTID)
	}
	h.EnqueueResponse(resp)
	return nil
}

// Server is anything that polls until its context ends, typically an
// endpoint owner loop.
type Server interface {
	Serve(ctx context.Context) error
}

// Run serves every s on its own goroutine and returns when all have
// returned. The first error cancels the others.
func Run(ctx context.Context, servers ...Server) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error { return s.Serve(ctx) })
	}
	return g.Wait()
}
