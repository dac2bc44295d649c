package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"cinesphere/internal/details"
	"cinesphere/internal/metrics"
	"cinesphere/internal/stream"
)

// SessionManager owns one Session per signed-in user.
type SessionManager struct {
	movies   *MovieService
	library  *LibraryService
	fetcher  details.Fetcher
	debounce time.Duration
	hub      *stream.Hub[SessionState]

	opening  singleflight.Group
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(movies *MovieService, library *LibraryService, fetcher details.Fetcher, debounce time.Duration) *SessionManager {
	return &SessionManager{
		movies:   movies,
		library:  library,
		fetcher:  fetcher,
		debounce: debounce,
		hub:      stream.NewHub[SessionState](),
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, opening it on first use. Concurrent first calls share one open.
func (m *SessionManager) Get(ctx context.Context, uid string) (*Session, error) {
	if s := m.lookup(uid); s != nil {
		return s, nil
	}
	v, err, _ := m.opening.Do(uid, func() (any, error) {
		if s := m.lookup(uid); s != nil {
			return s, nil
		}
		s := newSession(uid, m.movies, m.library, m.fetcher, m.hub, m.debounce)
		if err := s.open(ctx); err != nil {
			s.Close()
			return nil, err
		}
		m.mu.Lock()
		m.sessions[uid] = s
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *SessionManager) lookup(uid string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[uid]
}

// Subscribe streams session snapshots for uid, starting with the current one.
func (m *SessionManager) Subscribe(ctx context.Context, uid string) (*stream.Subscription[SessionState], error) {
	s, err := m.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	sub := m.hub.Subscribe(uid)
	sub.Offer(s.Snapshot())
	return sub, nil
}

// End closes the user's session, if open, and its event streams. It reports whether a session existed.
func (m *SessionManager) End(uid string) bool {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	m.hub.Drop(uid)
	if !ok {
		return false
	}
	s.Close()
	return true
}

// Close ends every session and all event subscriptions.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.hub.Close()
}
