// File: session/hook.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session management mailbox shared by one endpoint and the process registry.

package session

import (
	"sync"

	"github.com/eapache/queue"
)

// ManagementHook carries establishment records between exactly two parties:
// the endpoint that created it (reader) and the registry (writer). One mutex
// guards both queues and the event counter.
//
// The counter is a cheap "something changed" signal; Notify offers the same
// information as a channel for pollers that prefer to block.
type ManagementHook struct {
	appTID uint8

	mu        sync.Mutex
	evCounter uint64
	reqQueue  *queue.Queue
	respQueue *queue.Queue

	notify chan struct{}
}

// NewManagementHook creates the hook of the endpoint with thread id appTID.
func NewManagementHook(appTID uint8) *ManagementHook {
	return &ManagementHook{
		appTID:    appTID,
		reqQueue:  queue.New(),
		respQueue: queue.New(),
		notify:    make(chan struct{}, 1),
	}
}

// AppTID is the thread id of the owning endpoint.
func (h *ManagementHook) AppTID() uint8 { return h.appTID }

// EnqueueRequest appends an establishment request and bumps the counter.
func (h *ManagementHook) EnqueueRequest(req EstablishmentReq) {
	h.mu.Lock()
	h.reqQueue.Add(req)
	h.evCounter++
	h.mu.Unlock()
	h.signal()
}

// EnqueueResponse appends an establishment response and bumps the counter.
func (h *ManagementHook) EnqueueResponse(resp EstablishmentResp) {
	h.mu.Lock()
	h.respQueue.Add(resp)
	h.evCounter++
	h.mu.Unlock()
	h.signal()
}

func (h *ManagementHook) signal() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Events returns the number of records ever enqueued.
func (h *ManagementHook) Events() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evCounter
}

// Notify returns a channel that receives after one or more enqueues. A
// receive does not drain anything; the reader still has to call Drain*.
func (h *ManagementHook) Notify() <-chan struct{} { return h.notify }

// Pending returns the queued request and response counts.
func (h *ManagementHook) Pending() (reqs, resps int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reqQueue.Length(), h.respQueue.Length()
}

// DrainRequests moves every queued request onto dst in FIFO order. Records
// are processed by the caller after the mutex is released.
func (h *ManagementHook) DrainRequests(dst []EstablishmentReq) []EstablishmentReq {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.reqQueue.Length() > 0 {
		dst = append(dst, h.reqQueue.Remove().(EstablishmentReq))
	}
	return dst
}

// DrainResponses moves every queued response onto dst in FIFO order.
func (h *ManagementHook) DrainResponses(dst []EstablishmentResp) []EstablishmentResp {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.respQueue.Length() > 0 {
		dst = append(dst, h.respQueue.Remove().(EstablishmentResp))
	}
	return dst
}
