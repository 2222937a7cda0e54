package memory

import (
	"context"
	"sync"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository keyed by join code.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.JoinCode()]; ok {
		return domain.ErrJoinCodeTaken
	}
	s.sessions[session.JoinCode()] = session
	return nil
}

func (s *SessionStore) Get(joinCode string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[joinCode]
	return session, ok
}

// Remove releases the join code if it still belongs to session.
func (s *SessionStore) Remove(_ context.Context, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[session.JoinCode()]; ok && current == session {
		delete(s.sessions, session.JoinCode())
	}
}

func (s *SessionStore) All() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
