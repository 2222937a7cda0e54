package app

import (
	"context"
	"log"
	"math/rand"
	"time"

	"edu-quiz-service/internal/domain"
	"edu-quiz-service/internal/validation"
)

// AnswerInput is one answer submitted to a solo attempt.
type AnswerInput struct {
	QuestionID string `json:"questionId" validate:"required"`
	OptionID   string `json:"optionId"`
	Text       string `json:"text" validate:"max=500"`
	TimeSpent  int    `json:"timeSpent" validate:"min=0"`
}

// AttemptService runs the solo attempt lifecycle: in_progress -> completed | abandoned.
type AttemptService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	rewards  ActivityRecorder
	locks    keyedMutex
	opts     options
}

// NewAttemptService wires the attempt lifecycle. rewards may be nil.
func NewAttemptService(attempts AttemptRepository, quizzes QuizRepository, rewards ActivityRecorder, opts ...Option) *AttemptService {
	return &AttemptService{attempts: attempts, quizzes: quizzes, rewards: rewards, opts: buildOptions(opts)}
}

// StartAttempt opens a new attempt on a published quiz.
func (s *AttemptService) StartAttempt(ctx context.Context, student domain.Identity, quizID string) (domain.QuizAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if !quiz.IsPublished {
		return domain.QuizAttempt{}, domain.ErrQuizNotFound
	}

	now := s.opts.now()
	order := make([]string, len(quiz.Questions))
	points := make(map[string]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		order[i] = q.ID
		points[q.ID] = q.Points
	}
	if quiz.ShuffleQuestions {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	var optionOrder map[string][]string
	if quiz.ShuffleOptions {
		optionOrder = make(map[string][]string)
		for _, q := range quiz.Questions {
			if len(q.Options) > 1 {
				optionOrder[q.ID] = shuffledOptionIDs(q.Options)
			}
		}
	}

	attempt := domain.QuizAttempt{
		ID:             s.opts.newID(),
		QuizID:         quiz.ID,
		CourseID:       quiz.CourseID,
		StudentID:      student.UserID,
		StudentName:    student.Name,
		SchoolID:       student.SchoolID,
		QuestionOrder:  order,
		QuestionPoints: points,
		OptionOrder:    optionOrder,
		Answers:        []domain.QuizAnswer{},
		TotalPoints:    quiz.TotalPoints,
		PassingScore:   quiz.PassingScore,
		StartedAt:      now,
		Status:         domain.AttemptInProgress,
		Version:        1,
	}
	if quiz.TimeLimit > 0 {
		deadline := now.Add(time.Duration(quiz.TimeLimit) * time.Minute)
		attempt.Deadline = &deadline
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// SubmitAnswer grades one answer and recomputes the attempt score. Points come from the values
// captured when the attempt started.
func (s *AttemptService) SubmitAnswer(ctx context.Context, student domain.Identity, attemptID string, in AnswerInput) (domain.QuizAttempt, error) {
	if err := validation.Struct(in); err != nil {
		return domain.QuizAttempt{}, err
	}

	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.ownedAttempt(ctx, student, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.QuizAttempt{}, domain.ErrAttemptFinalized
	}
	now := s.opts.now()
	if attempt.Deadline != nil && now.After(*attempt.Deadline) {
		return domain.QuizAttempt{}, domain.ErrAttemptFinalized
	}
	if !attempt.HasQuestion(in.QuestionID) {
		return domain.QuizAttempt{}, domain.ErrQuestionNotFound
	}
	if attempt.Answered(in.QuestionID) {
		return domain.QuizAttempt{}, domain.ErrAlreadyAnswered
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	question, ok := quiz.Question(in.QuestionID)
	if !ok {
		return domain.QuizAttempt{}, domain.ErrQuestionNotFound
	}
	correct, err := gradeAnswer(question, in.OptionID, in.Text)
	if err != nil {
		return domain.QuizAttempt{}, err
	}

	answer := domain.QuizAnswer{
		QuestionID:       question.ID,
		SelectedOptionID: in.OptionID,
		TextAnswer:       in.Text,
		IsCorrect:        correct,
		TimeSpent:        in.TimeSpent,
		AnsweredAt:       now,
	}
	if correct {
		answer.PointsEarned = startedPoints(attempt, question)
	}
	attempt.Answers = append(attempt.Answers, answer)
	attempt.Score = scoreOf(attempt.Answers)

	if err := s.save(ctx, &attempt); err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// CompleteAttempt finalizes the attempt. Completing an already completed attempt returns it unchanged.
func (s *AttemptService) CompleteAttempt(ctx context.Context, student domain.Identity, attemptID string, timeTaken int) (domain.QuizAttempt, error) {
	if timeTaken < 0 {
		return domain.QuizAttempt{}, domain.NewValidationError(domain.FieldError{Field: "timeTaken", Message: "timeTaken must be 0 or greater"})
	}

	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.ownedAttempt(ctx, student, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	switch attempt.Status {
	case domain.AttemptCompleted:
		return attempt, nil
	case domain.AttemptAbandoned:
		return domain.QuizAttempt{}, domain.ErrAttemptFinalized
	}

	now := s.opts.now()
	attempt.Score = scoreOf(attempt.Answers)
	attempt.Percentage = percentage(attempt.Score, attempt.TotalPoints)
	attempt.Passed = attempt.Percentage >= attempt.PassingScore
	attempt.TimeTaken = timeTaken
	attempt.CompletedAt = &now
	attempt.IsCompleted = true
	attempt.Status = domain.AttemptCompleted

	if err := s.save(ctx, &attempt); err != nil {
		return domain.QuizAttempt{}, err
	}

	if s.rewards != nil {
		correct := 0
		for _, a := range attempt.Answers {
			if a.IsCorrect {
				correct++
			}
		}
		event := domain.ActivityEvent{
			Kind:       domain.ActivityQuizCompleted,
			SourceID:   attempt.ID,
			CourseID:   attempt.CourseID,
			Points:     attempt.Score,
			Percentage: attempt.Percentage,
			Correct:    correct,
			OccurredAt: now,
		}
		if _, err := s.rewards.RecordActivity(ctx, attemptOwner(attempt), event); err != nil {
			log.Printf("record quiz completion for attempt %s: %v", attempt.ID, err)
		}
	}
	return attempt, nil
}

// AbandonAttempt moves an in-progress attempt to abandoned.
func (s *AttemptService) AbandonAttempt(ctx context.Context, student domain.Identity, attemptID string) (domain.QuizAttempt, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.ownedAttempt(ctx, student, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.QuizAttempt{}, domain.ErrAttemptFinalized
	}
	attempt.Status = domain.AttemptAbandoned
	if err := s.save(ctx, &attempt); err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// GetAttempt returns an attempt to its student or to staff.
func (s *AttemptService) GetAttempt(ctx context.Context, who domain.Identity, attemptID string) (domain.QuizAttempt, error) {
	attempt, ok, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	if attempt.StudentID != who.UserID && !who.IsStaff() {
		return domain.QuizAttempt{}, domain.ErrNotOwner
	}
	return attempt, nil
}

// ListAttempts lists attempts newest first. Students only ever see their own.
func (s *AttemptService) ListAttempts(ctx context.Context, who domain.Identity, filter AttemptFilter) ([]domain.QuizAttempt, error) {
	if !who.IsStaff() {
		filter.StudentID = who.UserID
	}
	return s.attempts.ListAttempts(ctx, filter)
}

// AbandonExpired abandons in-progress attempts past their deadline plus grace, or older than maxAge.
// It returns the number of attempts abandoned.
func (s *AttemptService) AbandonExpired(ctx context.Context, grace, maxAge time.Duration) (int, error) {
	open, err := s.attempts.ListAttempts(ctx, AttemptFilter{Status: domain.AttemptInProgress})
	if err != nil {
		return 0, err
	}
	now := s.opts.now()
	abandoned := 0
	for _, candidate := range open {
		if !expired(candidate, now, grace, maxAge) {
			continue
		}
		ok, err := s.abandonIfExpired(ctx, candidate.ID, now, grace, maxAge)
		if err != nil {
			log.Printf("abandon expired attempt %s: %v", candidate.ID, err)
			continue
		}
		if ok {
			abandoned++
		}
	}
	return abandoned, nil
}

func (s *AttemptService) abandonIfExpired(ctx context.Context, attemptID string, now time.Time, grace, maxAge time.Duration) (bool, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, ok, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil || !ok {
		return false, err
	}
	if attempt.Status != domain.AttemptInProgress || !expired(attempt, now, grace, maxAge) {
		return false, nil
	}
	attempt.Status = domain.AttemptAbandoned
	if err := s.save(ctx, &attempt); err != nil {
		return false, err
	}
	return true, nil
}

func expired(attempt domain.QuizAttempt, now time.Time, grace, maxAge time.Duration) bool {
	if attempt.Deadline != nil && now.After(attempt.Deadline.Add(grace)) {
		return true
	}
	return maxAge > 0 && now.Sub(attempt.StartedAt) > maxAge
}

func (s *AttemptService) ownedAttempt(ctx context.Context, student domain.Identity, attemptID string) (domain.QuizAttempt, error) {
	attempt, ok, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	if attempt.StudentID != student.UserID {
		return domain.QuizAttempt{}, domain.ErrNotOwner
	}
	return attempt, nil
}

// save writes the attempt with a version check and bumps the in-memory version on success.
func (s *AttemptService) save(ctx context.Context, attempt *domain.QuizAttempt) error {
	expected := attempt.Version
	attempt.Version = expected + 1
	if err := s.attempts.UpdateAttempt(ctx, *attempt, expected); err != nil {
		attempt.Version = expected
		return err
	}
	return nil
}

func attemptOwner(attempt domain.QuizAttempt) domain.Identity {
	return domain.Identity{
		UserID:   attempt.StudentID,
		Name:     attempt.StudentName,
		Role:     domain.RoleStudent,
		SchoolID: attempt.SchoolID,
	}
}

func startedPoints(attempt domain.QuizAttempt, question domain.Question) int {
	if points, ok := attempt.QuestionPoints[question.ID]; ok {
		return points
	}
	return question.Points
}

func shuffledOptionIDs(options []domain.Option) []string {
	ids := make([]string, len(options))
	for i, opt := range options {
		ids[i] = opt.ID
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}
