// Package hub is the in-memory fan-out relay between reporting clients and
// live viewers. Delivery is best effort and connection scoped: there is no
// replay buffer and nothing is queued for clients that are not connected at
// emission time. Viewers treat an event as a wake-up hint and re-fetch the
// active-unit list from the API; the store stays the source of truth even
// with total event loss.
package hub

import (
	"sync"
)

// Subscriber is one connected client. Push must not block; it reports true
// once the subscriber is gone so the hub can drop it.
type Subscriber interface {
	Push(d []byte) bool
}

// Meta tags a subscriber with the identity it authenticated as. The role tag
// is recorded but not used to scope delivery: every connected client receives
// every event, sender included. Filtering on Role here is the place to change
// that if supervisor-only delivery is ever wanted.
type Meta struct {
	Id   uint64
	Name string
	Role string
}

type Hub struct {
	mu   sync.Mutex
	subs map[Subscriber]Meta
}

func New() *Hub {
	h := &Hub{}
	h.subs = make(map[Subscriber]Meta)
	return h
}

func (h *Hub) Subscribe(sub Subscriber, m Meta) {
	h.mu.Lock()
	h.subs[sub] = m
	h.mu.Unlock()
}

func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Tag replaces the meta of an already connected subscriber (viewer
// announcements). Unknown subscribers are ignored.
func (h *Hub) Tag(sub Subscriber, m Meta) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		h.subs[sub] = m
	}
	h.mu.Unlock()
}

func (h *Hub) Broadcast(d []byte) {
	h.mu.Lock()
	for sub := range h.subs {
		closed := sub.Push(d)
		if closed {
			delete(h.subs, sub)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
