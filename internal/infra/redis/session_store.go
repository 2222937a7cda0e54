package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - It keeps a local in-memory map of sessions to reuse the in-process broadcast logic.
//   - Join codes are reserved with SETNX so two instances never hand out the same code.
//   - Redis also marks session liveness for other instances and operators.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(ctx context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := session.JoinCode()
	if _, ok := s.sessions[code]; ok {
		return domain.ErrJoinCodeTaken
	}
	ok, err := s.client.SetNX(ctx, s.codeKey(code), session.ID(), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: reserve join code: %v", domain.ErrExternalService, err)
	}
	if !ok {
		return domain.ErrJoinCodeTaken
	}
	s.sessions[code] = session
	// best-effort liveness marker
	_ = s.client.Set(ctx, s.key(session.ID()), code, s.ttl).Err()
	return nil
}

func (s *SessionStore) Get(joinCode string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[joinCode]
	return session, ok
}

// Remove drops the session and releases its join code.
func (s *SessionStore) Remove(ctx context.Context, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := session.JoinCode()
	current, ok := s.sessions[code]
	if !ok || current != session {
		return
	}
	delete(s.sessions, code)
	_ = s.client.Del(ctx, s.codeKey(code), s.key(session.ID())).Err()
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

// Refresh extends the Redis keys of every local session. The sweeper calls it so long running
// sessions keep their codes.
func (s *SessionStore) Refresh(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	pipe := s.client.Pipeline()
	for _, session := range s.All() {
		pipe.Expire(ctx, s.codeKey(session.JoinCode()), s.ttl)
		pipe.Expire(ctx, s.key(session.ID()), s.ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func (s *SessionStore) codeKey(code string) string {
	return "quiz:session:code:" + code
}
