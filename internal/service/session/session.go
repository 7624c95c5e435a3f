// Package session holds the backend bearer token for the process and tells
// interested components when it changes.
package session

import (
	"sync"
)

// Listener is called with the new token; an empty token means signed out.
type Listener func(token string)

type Session struct {
	mu        sync.RWMutex
	token     string
	nextID    int
	listeners map[int]Listener
}

func New(token string) *Session {
	return &Session{token: token, listeners: make(map[int]Listener)}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool { return s.Token() != "" }

// Set replaces the token and notifies listeners when it changed.
func (s *Session) Set(token string) {
	s.mu.Lock()
	if s.token == token {
		s.mu.Unlock()
		return
	}
	s.token = token
	ls := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range ls {
		fn(token)
	}
}

func (s *Session) Clear() { s.Set("") }

// Subscribe registers fn and returns a func that removes it. Listeners run on
// the caller of Set and must not call back into Set.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) snapshotLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}
