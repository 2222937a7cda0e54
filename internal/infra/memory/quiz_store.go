package memory

import (
	"context"
	"sort"
	"sync"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

// QuizStore keeps quizzes and schedules in maps. It implements app.QuizStore and QuizLoader.
type QuizStore struct {
	mu        sync.RWMutex
	quizzes   map[string]domain.Quiz
	schedules map[string]domain.ScheduledQuiz
}

// NewQuizStore returns a store seeded with quizzes (useful for tests/demos).
func NewQuizStore(seed ...domain.Quiz) *QuizStore {
	s := &QuizStore{
		quizzes:   make(map[string]domain.Quiz),
		schedules: make(map[string]domain.ScheduledQuiz),
	}
	for _, quiz := range seed {
		s.quizzes[quiz.ID] = cloneQuiz(quiz)
	}
	return s
}

func (s *QuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

func (s *QuizStore) ListQuizzes(_ context.Context, filter app.QuizFilter) ([]domain.Quiz, error) {
	s.mu.RLock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		if matchesQuiz(quiz, filter) {
			out = append(out, cloneQuiz(quiz))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesQuiz(quiz domain.Quiz, filter app.QuizFilter) bool {
	switch {
	case filter.TeacherID != "" && quiz.TeacherID != filter.TeacherID:
		return false
	case filter.CourseID != "" && quiz.CourseID != filter.CourseID:
		return false
	case filter.SchoolID != "" && quiz.SchoolID != filter.SchoolID:
		return false
	case filter.PublishedOnly && !quiz.IsPublished:
		return false
	}
	return true
}

func (s *QuizStore) SaveScheduledQuiz(_ context.Context, scheduled domain.ScheduledQuiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[scheduled.QuizID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.schedules[scheduled.ID] = scheduled
	return nil
}

func (s *QuizStore) GetScheduledQuiz(_ context.Context, id string) (domain.ScheduledQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scheduled, ok := s.schedules[id]
	if !ok {
		return domain.ScheduledQuiz{}, domain.ErrScheduledQuizNotFound
	}
	return scheduled, nil
}

// ListScheduledQuizzes returns the quiz's schedules ordered by start time.
func (s *QuizStore) ListScheduledQuizzes(_ context.Context, quizID string) ([]domain.ScheduledQuiz, error) {
	s.mu.RLock()
	out := make([]domain.ScheduledQuiz, 0)
	for _, scheduled := range s.schedules {
		if scheduled.QuizID == quizID {
			out = append(out, scheduled)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// cloneQuiz copies the question and option slices so callers never share backing arrays.
func cloneQuiz(quiz domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Options = append([]domain.Option(nil), q.Options...)
		questions[i] = q
	}
	quiz.Questions = questions
	return quiz
}
