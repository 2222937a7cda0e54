package app

import (
	"context"

	"edu-quiz-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// Invalidate drops any cached copy so the next GetQuiz reloads it.
	Invalidate(ctx context.Context, quizID string)
}

// QuizFilter selects quizzes by equality on owner fields. Zero values match everything.
type QuizFilter struct {
	TeacherID     string
	CourseID      string
	SchoolID      string
	PublishedOnly bool
	Limit         int
}

// QuizStore is the document store quiz authoring writes to.
type QuizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	// ListQuizzes returns matches ordered by creation time, newest first.
	ListQuizzes(ctx context.Context, filter QuizFilter) ([]domain.Quiz, error)
	SaveScheduledQuiz(ctx context.Context, scheduled domain.ScheduledQuiz) error
	GetScheduledQuiz(ctx context.Context, id string) (domain.ScheduledQuiz, error)
	ListScheduledQuizzes(ctx context.Context, quizID string) ([]domain.ScheduledQuiz, error)
}

// ScheduleReader is the part of QuizStore live sessions need.
type ScheduleReader interface {
	GetScheduledQuiz(ctx context.Context, id string) (domain.ScheduledQuiz, error)
}

// AttemptFilter selects attempts. Zero values match everything.
type AttemptFilter struct {
	QuizID    string
	StudentID string
	Status    domain.AttemptStatus
	Limit     int
}

// AttemptRepository persists quiz attempts.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	// GetAttempt reports ok=false, without error, when the attempt does not exist.
	GetAttempt(ctx context.Context, id string) (domain.QuizAttempt, bool, error)
	// UpdateAttempt stores attempt only if the stored version equals expectedVersion,
	// otherwise it returns domain.ErrVersionConflict.
	UpdateAttempt(ctx context.Context, attempt domain.QuizAttempt, expectedVersion int) error
	// ListAttempts returns matches ordered by start time, newest first.
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]domain.QuizAttempt, error)
}

// ProfileFilter selects profiles for a leaderboard scope.
type ProfileFilter struct {
	Scope   domain.LeaderboardScope
	ScopeID string
}

// ProfileRepository persists gamification profiles.
type ProfileRepository interface {
	// GetProfile reports ok=false, without error, when the user has no profile yet.
	GetProfile(ctx context.Context, userID string) (domain.GamificationProfile, bool, error)
	// SaveProfile inserts when expectedVersion is 0 and compare-and-swaps otherwise.
	SaveProfile(ctx context.Context, profile domain.GamificationProfile, expectedVersion int) error
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]domain.GamificationProfile, error)
}

// SessionRepository abstracts how live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	// Add registers the session under its join code. It returns domain.ErrJoinCodeTaken when
	// another active session holds the code.
	Add(ctx context.Context, session *Session) error
	Get(joinCode string) (*Session, bool)
	// Remove archives the session and releases its join code.
	Remove(ctx context.Context, session *Session)
	All() []*Session
}

// ActivityRecorder receives qualifying activity for gamification.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, user domain.Identity, event domain.ActivityEvent) (domain.GamificationProfile, error)
}
