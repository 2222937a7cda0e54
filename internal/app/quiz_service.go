package app

import (
	"context"
	"strings"
	"time"

	"edu-quiz-service/internal/domain"
	"edu-quiz-service/internal/validation"
)

// NewQuiz is the authoring input for a quiz shell.
type NewQuiz struct {
	Title            string          `json:"title" validate:"notblank,max=200"`
	Description      string          `json:"description" validate:"max=4000"`
	Type             domain.QuizType `json:"type" validate:"required,oneof=scheduled practice"`
	CourseID         string          `json:"courseId" validate:"max=64"`
	TimeLimit        int             `json:"timeLimit" validate:"min=0,max=600"`
	ShuffleQuestions bool            `json:"shuffleQuestions"`
	ShuffleOptions   bool            `json:"shuffleOptions"`
	PassingScore     int             `json:"passingScore" validate:"min=0,max=100"`
}

type OptionInput struct {
	Text    string `json:"text" validate:"notblank,max=500"`
	Correct bool   `json:"correct"`
}

// QuestionInput creates or replaces a question.
type QuestionInput struct {
	Type          domain.QuestionType `json:"type" validate:"required,oneof=multiple_choice true_false short_answer"`
	Prompt        string              `json:"prompt" validate:"notblank,max=2000"`
	Options       []OptionInput       `json:"options" validate:"max=10,dive"`
	CorrectAnswer string              `json:"correctAnswer" validate:"max=500"`
	Points        int                 `json:"points" validate:"min=1,max=1000"`
	TimeLimit     int                 `json:"timeLimit" validate:"min=0,max=600"`
}

// ScheduleRequest places a quiz on the calendar.
type ScheduleRequest struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	IsLive    bool      `json:"isLive"`
	CourseID  string    `json:"courseId" validate:"max=64"`
}

// QuizService owns quiz authoring. It keeps TotalPoints equal to the sum of question points
// and question order contiguous on every change.
type QuizService struct {
	store QuizStore
	cache QuizRepository
	locks keyedMutex
	opts  options
}

func NewQuizService(store QuizStore, cache QuizRepository, opts ...Option) *QuizService {
	return &QuizService{store: store, cache: cache, opts: buildOptions(opts)}
}

func (s *QuizService) CreateQuiz(ctx context.Context, who domain.Identity, in NewQuiz) (domain.Quiz, error) {
	if !who.IsStaff() {
		return domain.Quiz{}, domain.ErrRoleDenied
	}
	if err := validation.Struct(in); err != nil {
		return domain.Quiz{}, err
	}
	now := s.opts.now()
	quiz := domain.Quiz{
		ID:               s.opts.newID(),
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Type:             in.Type,
		TeacherID:        who.UserID,
		CourseID:         in.CourseID,
		SchoolID:         who.SchoolID,
		Questions:        []domain.Question{},
		TimeLimit:        in.TimeLimit,
		ShuffleQuestions: in.ShuffleQuestions,
		ShuffleOptions:   in.ShuffleOptions,
		PassingScore:     in.PassingScore,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// GetQuiz returns the quiz. Students only see published quizzes, without answers.
func (s *QuizService) GetQuiz(ctx context.Context, who domain.Identity, quizID string) (domain.Quiz, error) {
	quiz, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if canEdit(who, quiz) {
		return quiz, nil
	}
	if !quiz.IsPublished {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return redactAnswers(quiz), nil
}

func (s *QuizService) ListQuizzes(ctx context.Context, who domain.Identity, filter QuizFilter) ([]domain.Quiz, error) {
	if !who.IsStaff() {
		filter.PublishedOnly = true
	}
	if who.Role != domain.RoleSuperAdmin && who.SchoolID != "" {
		filter.SchoolID = who.SchoolID
	}
	quizzes, err := s.store.ListQuizzes(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Quiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		if !canEdit(who, quiz) {
			if !quiz.IsPublished {
				continue
			}
			quiz = redactAnswers(quiz)
		}
		out = append(out, quiz)
	}
	return out, nil
}

func (s *QuizService) AddQuestion(ctx context.Context, who domain.Identity, quizID string, in QuestionInput) (domain.Quiz, error) {
	question, err := s.buildQuestion(in)
	if err != nil {
		return domain.Quiz{}, err
	}
	return s.edit(ctx, who, quizID, func(quiz *domain.Quiz) error {
		question.ID = s.opts.newID()
		quiz.Questions = append(quiz.Questions, question)
		return nil
	})
}

func (s *QuizService) UpdateQuestion(ctx context.Context, who domain.Identity, quizID, questionID string, in QuestionInput) (domain.Quiz, error) {
	question, err := s.buildQuestion(in)
	if err != nil {
		return domain.Quiz{}, err
	}
	return s.edit(ctx, who, quizID, func(quiz *domain.Quiz) error {
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == questionID {
				question.ID = questionID
				quiz.Questions[i] = question
				return nil
			}
		}
		return domain.ErrQuestionNotFound
	})
}

func (s *QuizService) RemoveQuestion(ctx context.Context, who domain.Identity, quizID, questionID string) (domain.Quiz, error) {
	return s.edit(ctx, who, quizID, func(quiz *domain.Quiz) error {
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == questionID {
				quiz.Questions = append(quiz.Questions[:i], quiz.Questions[i+1:]...)
				return nil
			}
		}
		return domain.ErrQuestionNotFound
	})
}

// ReorderQuestions applies a new order. questionIDs must be a permutation of the quiz's questions.
func (s *QuizService) ReorderQuestions(ctx context.Context, who domain.Identity, quizID string, questionIDs []string) (domain.Quiz, error) {
	return s.edit(ctx, who, quizID, func(quiz *domain.Quiz) error {
		if len(questionIDs) != len(quiz.Questions) {
			return domain.NewValidationError(domain.FieldError{Field: "questionIds", Message: "must list every question exactly once"})
		}
		byID := make(map[string]domain.Question, len(quiz.Questions))
		for _, q := range quiz.Questions {
			byID[q.ID] = q
		}
		reordered := make([]domain.Question, 0, len(questionIDs))
		for _, id := range questionIDs {
			q, ok := byID[id]
			if !ok {
				return domain.NewValidationError(domain.FieldError{Field: "questionIds", Message: "must list every question exactly once"})
			}
			delete(byID, id)
			reordered = append(reordered, q)
		}
		quiz.Questions = reordered
		return nil
	})
}

func (s *QuizService) PublishQuiz(ctx context.Context, who domain.Identity, quizID string) (domain.Quiz, error) {
	return s.edit(ctx, who, quizID, func(quiz *domain.Quiz) error {
		if len(quiz.Questions) == 0 {
			return domain.ErrQuizNotPublishable
		}
		quiz.IsPublished = true
		return nil
	})
}

func (s *QuizService) ScheduleQuiz(ctx context.Context, who domain.Identity, quizID string, in ScheduleRequest) (domain.ScheduledQuiz, error) {
	if err := validation.Struct(in); err != nil {
		return domain.ScheduledQuiz{}, err
	}
	if !in.EndTime.After(in.StartTime) {
		return domain.ScheduledQuiz{}, domain.NewValidationError(domain.FieldError{Field: "endTime", Message: "endTime must be after startTime"})
	}
	quiz, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.ScheduledQuiz{}, err
	}
	if !canEdit(who, quiz) {
		return domain.ScheduledQuiz{}, domain.ErrNotOwner
	}
	courseID := in.CourseID
	if courseID == "" {
		courseID = quiz.CourseID
	}
	scheduled := domain.ScheduledQuiz{
		ID:        s.opts.newID(),
		QuizID:    quiz.ID,
		TeacherID: who.UserID,
		CourseID:  courseID,
		SchoolID:  quiz.SchoolID,
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		IsLive:    in.IsLive,
		CreatedAt: s.opts.now(),
	}
	if err := s.store.SaveScheduledQuiz(ctx, scheduled); err != nil {
		return domain.ScheduledQuiz{}, err
	}
	return scheduled, nil
}

func (s *QuizService) ListSchedules(ctx context.Context, quizID string) ([]domain.ScheduledQuiz, error) {
	return s.store.ListScheduledQuizzes(ctx, quizID)
}

// edit loads, mutates and saves a quiz under its per-quiz lock, then drops cached copies.
func (s *QuizService) edit(ctx context.Context, who domain.Identity, quizID string, mutate func(*domain.Quiz) error) (domain.Quiz, error) {
	unlock := s.locks.Lock(quizID)
	defer unlock()

	quiz, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !canEdit(who, quiz) {
		return domain.Quiz{}, domain.ErrNotOwner
	}
	if err := mutate(&quiz); err != nil {
		return domain.Quiz{}, err
	}
	recomputeQuiz(&quiz)
	quiz.UpdatedAt = s.opts.now()
	if err := s.store.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	s.cache.Invalidate(ctx, quizID)
	return quiz, nil
}

func (s *QuizService) buildQuestion(in QuestionInput) (domain.Question, error) {
	if err := validation.Struct(in); err != nil {
		return domain.Question{}, err
	}
	question := domain.Question{
		Type:      in.Type,
		Prompt:    strings.TrimSpace(in.Prompt),
		Points:    in.Points,
		TimeLimit: in.TimeLimit,
	}
	switch in.Type {
	case domain.QuestionMultipleChoice:
		if len(in.Options) < 2 {
			return domain.Question{}, domain.NewValidationError(domain.FieldError{Field: "options", Message: "multiple choice needs at least 2 options"})
		}
		correct := 0
		for _, opt := range in.Options {
			if opt.Correct {
				correct++
			}
			question.Options = append(question.Options, domain.Option{
				ID:      s.opts.newID(),
				Text:    strings.TrimSpace(opt.Text),
				Correct: opt.Correct,
			})
		}
		if correct != 1 {
			return domain.Question{}, domain.NewValidationError(domain.FieldError{Field: "options", Message: "exactly one option must be correct"})
		}
	case domain.QuestionTrueFalse:
		answer := normalizeAnswer(in.CorrectAnswer)
		if answer != "true" && answer != "false" {
			return domain.Question{}, domain.NewValidationError(domain.FieldError{Field: "correctAnswer", Message: "correctAnswer must be true or false"})
		}
		question.Options = []domain.Option{
			{ID: "true", Text: "True", Correct: answer == "true"},
			{ID: "false", Text: "False", Correct: answer == "false"},
		}
	case domain.QuestionShortAnswer:
		if strings.TrimSpace(in.CorrectAnswer) == "" {
			return domain.Question{}, domain.NewValidationError(domain.FieldError{Field: "correctAnswer", Message: "correctAnswer is required for short answers"})
		}
		question.CorrectAnswer = strings.TrimSpace(in.CorrectAnswer)
	}
	return question, nil
}

// recomputeQuiz renumbers questions 0..n-1 and recomputes TotalPoints.
func recomputeQuiz(quiz *domain.Quiz) {
	total := 0
	for i := range quiz.Questions {
		quiz.Questions[i].Order = i
		quiz.Questions[i].QuizID = quiz.ID
		total += quiz.Questions[i].Points
	}
	quiz.TotalPoints = total
}

func canEdit(who domain.Identity, quiz domain.Quiz) bool {
	switch {
	case who.Role == domain.RoleSuperAdmin:
		return true
	case who.Role == domain.RoleSchoolAdmin:
		return quiz.SchoolID == "" || quiz.SchoolID == who.SchoolID
	case who.Role == domain.RoleTeacher:
		return quiz.TeacherID == who.UserID
	}
	return false
}

// redactAnswers strips correctness so students cannot read answers off the quiz.
func redactAnswers(quiz domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.CorrectAnswer = ""
		if len(q.Options) > 0 {
			options := make([]domain.Option, len(q.Options))
			for j, opt := range q.Options {
				opt.Correct = false
				options[j] = opt
			}
			q.Options = options
		}
		questions[i] = q
	}
	quiz.Questions = questions
	return quiz
}
