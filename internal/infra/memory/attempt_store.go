package memory

import (
	"context"
	"sort"
	"sync"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.QuizAttempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]domain.QuizAttempt)}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; ok {
		return domain.ErrVersionConflict
	}
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, id string) (domain.QuizAttempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.QuizAttempt{}, false, nil
	}
	return cloneAttempt(attempt), true, nil
}

func (s *AttemptStore) UpdateAttempt(_ context.Context, attempt domain.QuizAttempt, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (s *AttemptStore) ListAttempts(_ context.Context, filter app.AttemptFilter) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	out := make([]domain.QuizAttempt, 0)
	for _, a := range s.attempts {
		switch {
		case filter.QuizID != "" && a.QuizID != filter.QuizID:
			continue
		case filter.StudentID != "" && a.StudentID != filter.StudentID:
			continue
		case filter.Status != "" && a.Status != filter.Status:
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func cloneAttempt(a domain.QuizAttempt) domain.QuizAttempt {
	a.Answers = append([]domain.QuizAnswer(nil), a.Answers...)
	a.QuestionOrder = append([]string(nil), a.QuestionOrder...)
	return a
}
