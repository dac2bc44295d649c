// Package stream fans out full-state snapshots to per-key subscribers.
package stream

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription delivers snapshots for one key. A receiver that falls behind
// only ever sees the most recent snapshot.
type Subscription[T any] struct {
	ID  string
	key string
	hub *Hub[T]

	ch   chan T
	done chan struct{}
	mu   sync.Mutex
	once sync.Once
}

// C returns the snapshot channel. It is closed after Cancel.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Done is closed once the subscription has been cancelled.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Offer delivers v, replacing any snapshot the receiver has not taken yet.
func (s *Subscription[T]) Offer(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}

// Cancel detaches the subscription from its hub and closes its channel. Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		if s.hub != nil {
			s.hub.remove(s)
		}
		s.mu.Lock()
		close(s.done)
		close(s.ch)
		s.mu.Unlock()
	})
}

// Hub tracks subscriptions grouped by key (a user id).
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription[T]
}

// NewHub creates an empty Hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[string]*Subscription[T])}
}

// Subscribe registers a new subscription for key.
func (h *Hub[T]) Subscribe(key string) *Subscription[T] {
	s := &Subscription[T]{
		ID:   uuid.NewString(),
		key:  key,
		hub:  h,
		ch:   make(chan T, 1),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[string]*Subscription[T])
	}
	h.subs[key][s.ID] = s
	return s
}

// Publish offers v to every subscriber of key.
func (h *Hub[T]) Publish(key string, v T) {
	h.mu.RLock()
	targets := make([]*Subscription[T], 0, len(h.subs[key]))
	for _, s := range h.subs[key] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Offer(v)
	}
}

// Keys returns every key with at least one subscriber.
func (h *Hub[T]) Keys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.subs))
	for k := range h.subs {
		keys = append(keys, k)
	}
	return keys
}

// Count returns the number of subscribers for key.
func (h *Hub[T]) Count(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Drop cancels every subscription for key.
func (h *Hub[T]) Drop(key string) {
	h.mu.RLock()
	group := make([]*Subscription[T], 0, len(h.subs[key]))
	for _, s := range h.subs[key] {
		group = append(group, s)
	}
	h.mu.RUnlock()

	for _, s := range group {
		s.Cancel()
	}
}

// Close cancels every subscription.
func (h *Hub[T]) Close() {
	h.mu.RLock()
	var all []*Subscription[T]
	for _, group := range h.subs {
		for _, s := range group {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		s.Cancel()
	}
}

func (h *Hub[T]) remove(s *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.subs[s.key]
	delete(group, s.ID)
	if len(group) == 0 {
		delete(h.subs, s.key)
	}
}
