package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"edu-quiz-service/internal/domain"
)

// SessionService contains the live multiplayer use cases.
type SessionService struct {
	sessions  SessionRepository
	schedules ScheduleReader
	quizzes   QuizRepository
	rewards   ActivityRecorder
	cfg       SessionConfig
	opts      options
}

// NewSessionService wires live sessions. rewards may be nil.
func NewSessionService(sessions SessionRepository, schedules ScheduleReader, quizzes QuizRepository, rewards ActivityRecorder, cfg SessionConfig, opts ...Option) *SessionService {
	return &SessionService{
		sessions:  sessions,
		schedules: schedules,
		quizzes:   quizzes,
		rewards:   rewards,
		cfg:       cfg.withDefaults(),
		opts:      buildOptions(opts),
	}
}

// CreateSession opens a waiting session for a live scheduled quiz and reserves a join code.
func (s *SessionService) CreateSession(ctx context.Context, host domain.Identity, scheduledQuizID string) (domain.SessionSnapshot, error) {
	if !host.IsStaff() {
		return domain.SessionSnapshot{}, domain.ErrRoleDenied
	}
	schedule, err := s.schedules.GetScheduledQuiz(ctx, scheduledQuizID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if schedule.TeacherID != host.UserID && !host.IsAdmin() {
		return domain.SessionSnapshot{}, domain.ErrNotOwner
	}
	if !schedule.IsLive {
		return domain.SessionSnapshot{}, domain.ErrNotLiveQuiz
	}
	quiz, err := s.quizzes.GetQuiz(ctx, schedule.QuizID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if !quiz.IsPublished {
		return domain.SessionSnapshot{}, domain.ErrQuizNotFound
	}

	for i := 0; i < maxJoinCodeAttempts; i++ {
		code, err := s.opts.joinCode()
		if err != nil {
			return domain.SessionSnapshot{}, fmt.Errorf("generate join code: %w", err)
		}
		session := NewSession(SessionParams{
			ID:       s.opts.newID(),
			JoinCode: code,
			Host:     host,
			Schedule: schedule,
			Quiz:     quiz,
			Config:   s.cfg,
			Now:      s.opts.now,
			NewID:    s.opts.newID,
		})
		err = s.sessions.Add(ctx, session)
		if errors.Is(err, domain.ErrJoinCodeTaken) {
			continue
		}
		if err != nil {
			return domain.SessionSnapshot{}, err
		}
		log.Printf("session %s created for scheduled quiz %s with code %s", session.ID(), schedule.ID, code)
		return session.Snapshot(), nil
	}
	return domain.SessionSnapshot{}, fmt.Errorf("reserve join code after %d attempts: %w", maxJoinCodeAttempts, domain.ErrJoinCodeTaken)
}

// Join registers or refreshes a participant while the session waits.
func (s *SessionService) Join(_ context.Context, code string, student domain.Identity) (domain.SessionSnapshot, error) {
	session, err := s.lookup(code)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.join(student)
}

// Leave removes a participant while the session waits.
func (s *SessionService) Leave(_ context.Context, code string, student domain.Identity) (domain.SessionSnapshot, error) {
	session, err := s.lookup(code)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.leave(student.UserID)
}

func (s *SessionService) Start(_ context.Context, code string, host domain.Identity) (domain.SessionSnapshot, error) {
	session, err := s.hosted(code, host)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.start()
}

// SubmitAnswer scores a participant's answer to the open question.
func (s *SessionService) SubmitAnswer(_ context.Context, code string, student domain.Identity, answer domain.LiveAnswer) (domain.AnswerResult, error) {
	session, err := s.lookup(code)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	result, _, err := session.submit(student.UserID, answer)
	return result, err
}

func (s *SessionService) CloseQuestion(_ context.Context, code string, host domain.Identity) (domain.SessionSnapshot, error) {
	session, err := s.hosted(code, host)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.closeQuestion()
}

func (s *SessionService) ShowLeaderboard(_ context.Context, code string, host domain.Identity) (domain.SessionSnapshot, error) {
	session, err := s.hosted(code, host)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.showLeaderboard()
}

// NextQuestion advances to the next question, or completes the session after the last one and
// awards every participant's score.
func (s *SessionService) NextQuestion(ctx context.Context, code string, host domain.Identity) (domain.SessionSnapshot, error) {
	session, err := s.hosted(code, host)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	snapshot, finished, err := session.next()
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if finished {
		s.finish(ctx, session, snapshot, true)
	}
	return snapshot, nil
}

// Cancel completes the session from any state without awarding points.
func (s *SessionService) Cancel(ctx context.Context, code string, host domain.Identity) (domain.SessionSnapshot, error) {
	session, err := s.hosted(code, host)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	snapshot, err := session.cancel()
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	s.finish(ctx, session, snapshot, false)
	return snapshot, nil
}

func (s *SessionService) Snapshot(_ context.Context, code string) (domain.SessionSnapshot, error) {
	session, err := s.lookup(code)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives session snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, code string) (<-chan domain.SessionSnapshot, func(), error) {
	session, err := s.lookup(code)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// ExpireIdle cancels sessions without activity for longer than idle and returns how many it closed.
func (s *SessionService) ExpireIdle(ctx context.Context, idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	now := s.opts.now()
	closed := 0
	for _, session := range s.sessions.All() {
		if now.Sub(session.LastActivity()) <= idle {
			continue
		}
		snapshot, err := session.cancel()
		if err != nil {
			// Already completed by a concurrent call, just make sure it is archived.
			s.sessions.Remove(ctx, session)
			continue
		}
		s.finish(ctx, session, snapshot, false)
		closed++
	}
	return closed
}

func (s *SessionService) finish(ctx context.Context, session *Session, snapshot domain.SessionSnapshot, award bool) {
	s.sessions.Remove(ctx, session)
	log.Printf("session %s completed (cancelled=%t)", session.ID(), snapshot.Cancelled)
	if !award || s.rewards == nil {
		return
	}
	for _, p := range snapshot.Participants {
		event := domain.ActivityEvent{
			Kind:       domain.ActivityLiveSessionFinished,
			SourceID:   session.ID(),
			CourseID:   session.CourseID(),
			Points:     p.Score,
			Correct:    p.CorrectAnswers,
			Won:        p.Rank == 1 && p.Score > 0,
			OccurredAt: snapshot.UpdatedAt,
		}
		student := domain.Identity{
			UserID:   p.StudentID,
			Name:     p.StudentName,
			Role:     domain.RoleStudent,
			SchoolID: session.SchoolID(),
		}
		if _, err := s.rewards.RecordActivity(ctx, student, event); err != nil {
			log.Printf("award session %s points to %s: %v", session.ID(), p.StudentID, err)
		}
	}
}

func (s *SessionService) lookup(code string) (*Session, error) {
	session, ok := s.sessions.Get(NormalizeJoinCode(code))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) hosted(code string, host domain.Identity) (*Session, error) {
	session, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	if !session.isHost(host) {
		return nil, domain.ErrNotHost
	}
	return session, nil
}
