package memory

import (
	"context"
	"sync"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository with
// one mutex per key.
type SessionStore struct {
	mu       sync.Mutex
	slots    map[app.SessionKey]*slot
	finished map[app.SessionKey]string
}

type slot struct {
	mu      sync.Mutex
	session *app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		slots:    make(map[app.SessionKey]*slot),
		finished: make(map[app.SessionKey]string),
	}
}

// lock returns the current slot for key with its mutex held, or nil when
// there is none and create is false. A slot dropped while we waited is retried.
func (s *SessionStore) lock(key app.SessionKey, create bool) *slot {
	for {
		s.mu.Lock()
		sl, ok := s.slots[key]
		if !ok && create {
			sl = &slot{}
			s.slots[key] = sl
		}
		s.mu.Unlock()
		if sl == nil {
			return nil
		}

		sl.mu.Lock()
		s.mu.Lock()
		current := s.slots[key] == sl
		s.mu.Unlock()
		if current {
			return sl
		}
		sl.mu.Unlock()
	}
}

// drop removes the slot if it is still current. A non-empty tag is kept as
// the key's finished session until the next Put.
func (s *SessionStore) drop(key app.SessionKey, sl *slot, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[key] == sl {
		delete(s.slots, key)
	}
	if tag == "" {
		delete(s.finished, key)
	} else {
		s.finished[key] = tag
	}
}

func (s *SessionStore) Put(_ context.Context, key app.SessionKey, session *app.Session) error {
	sl := s.lock(key, true)
	defer sl.mu.Unlock()
	sl.session = session.Clone()
	s.mu.Lock()
	delete(s.finished, key)
	s.mu.Unlock()
	return nil
}

// Finished returns the tag of the last session under key that reached a
// terminal state, or "" when a newer session was put since.
func (s *SessionStore) Finished(_ context.Context, key app.SessionKey) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished[key], nil
}

func (s *SessionStore) Get(_ context.Context, key app.SessionKey) (*app.Session, error) {
	sl := s.lock(key, false)
	if sl == nil {
		return nil, domain.ErrSessionNotFound
	}
	defer sl.mu.Unlock()
	if sl.session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sl.session.Clone(), nil
}

func (s *SessionStore) Update(_ context.Context, key app.SessionKey, fn func(*app.Session) error) error {
	sl := s.lock(key, false)
	if sl == nil {
		return domain.ErrSessionNotFound
	}
	defer sl.mu.Unlock()
	if sl.session == nil {
		return domain.ErrSessionNotFound
	}

	working := sl.session.Clone()
	err := fn(working)
	switch {
	case working.State.Terminal():
		sl.session = nil
		s.drop(key, sl, working.Tag())
	case err == nil:
		sl.session = working
	}
	return err
}

func (s *SessionStore) Delete(_ context.Context, key app.SessionKey) error {
	sl := s.lock(key, false)
	if sl == nil {
		return nil
	}
	defer sl.mu.Unlock()
	sl.session = nil
	s.drop(key, sl, "")
	return nil
}

// Len reports how many live sessions are held.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
