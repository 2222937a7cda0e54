package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrQuizNotFound, http.StatusNotFound},
		{domain.NewValidationError(domain.FieldError{Field: "title", Message: "required"}), http.StatusBadRequest},
		{domain.ErrAlreadyAnswered, http.StatusConflict},
		{domain.ErrNotHost, http.StatusForbidden},
		{domain.ErrMissingToken, http.StatusUnauthorized},
		{fmt.Errorf("generate: %w", domain.ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("%w: boom", domain.ErrExternalService), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, got)
		}
	}
	if _, msg := statusFor(domain.ErrRateLimited); msg != domain.RateLimitMessage {
		t.Fatalf("unexpected rate limit message %q", msg)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	var body errorBody
	if status := env.do(t, nil, http.MethodGet, "/quizzes", nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if status := env.do(t, nil, http.MethodGet, "/healthz", nil, nil); status != http.StatusOK {
		t.Fatalf("healthz should be public, got %d", status)
	}
}

func TestAPIErrors(t *testing.T) {
	env := newTestEnv(t)

	if status := env.do(t, &alice, http.MethodPost, "/quizzes", app.NewQuiz{Title: "x", Type: domain.QuizTypePractice}, nil); status != http.StatusForbidden {
		t.Fatalf("student create: expected 403, got %d", status)
	}

	var body errorBody
	status := env.do(t, &teacher, http.MethodPost, "/quizzes", app.NewQuiz{Title: "  ", Type: domain.QuizTypePractice}, &body)
	if status != http.StatusBadRequest {
		t.Fatalf("blank title: expected 400, got %d", status)
	}
	if len(body.Fields) == 0 || body.Fields[0].Field != "title" {
		t.Fatalf("expected title field error, got %+v", body.Fields)
	}

	if status := env.do(t, &teacher, http.MethodGet, "/quizzes/missing", nil, nil); status != http.StatusNotFound {
		t.Fatalf("missing quiz: expected 404, got %d", status)
	}
	if status := env.do(t, &teacher, http.MethodGet, "/quizzes?limit=abc", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", status)
	}
	if status := env.do(t, &teacher, http.MethodPost, "/assist", app.AssistRequest{Task: domain.TaskSummarize, Prompt: "quota"}, &body); status != http.StatusTooManyRequests {
		t.Fatalf("quota: expected 429, got %d", status)
	}
	if body.Error != domain.RateLimitMessage {
		t.Fatalf("unexpected rate limit body %q", body.Error)
	}
}

func TestAPIQuizToProfileFlow(t *testing.T) {
	env := newTestEnv(t)

	var quiz domain.Quiz
	status := env.do(t, &teacher, http.MethodPost, "/quizzes", app.NewQuiz{
		Title:        "Arithmetic",
		Type:         domain.QuizTypePractice,
		CourseID:     "course-1",
		PassingScore: 50,
	}, &quiz)
	if status != http.StatusCreated {
		t.Fatalf("create quiz: expected 201, got %d", status)
	}

	status = env.do(t, &teacher, http.MethodPost, "/quizzes/"+quiz.ID+"/questions", app.QuestionInput{
		Type:   domain.QuestionMultipleChoice,
		Prompt: "What is 2 + 2?",
		Options: []app.OptionInput{
			{Text: "3"},
			{Text: "4", Correct: true},
		},
		Points: 10,
	}, &quiz)
	if status != http.StatusCreated {
		t.Fatalf("add question: expected 201, got %d", status)
	}
	if quiz.TotalPoints != 10 || len(quiz.Questions) != 1 {
		t.Fatalf("unexpected quiz after add: %+v", quiz)
	}
	question := quiz.Questions[0]
	correctID := question.Options[1].ID

	if status := env.do(t, &alice, http.MethodPost, "/quizzes/"+quiz.ID+"/attempts", nil, nil); status != http.StatusNotFound {
		t.Fatalf("unpublished attempt: expected 404, got %d", status)
	}
	if status := env.do(t, &teacher, http.MethodPost, "/quizzes/"+quiz.ID+"/publish", nil, &quiz); status != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d", status)
	}

	var studentView domain.Quiz
	if status := env.do(t, &alice, http.MethodGet, "/quizzes/"+quiz.ID, nil, &studentView); status != http.StatusOK {
		t.Fatalf("student get: expected 200, got %d", status)
	}
	for _, opt := range studentView.Questions[0].Options {
		if opt.Correct {
			t.Fatalf("student view leaks the correct option")
		}
	}

	var attempt domain.QuizAttempt
	if status := env.do(t, &alice, http.MethodPost, "/quizzes/"+quiz.ID+"/attempts", nil, &attempt); status != http.StatusCreated {
		t.Fatalf("start attempt: expected 201, got %d", status)
	}
	answer := app.AnswerInput{QuestionID: question.ID, OptionID: correctID, TimeSpent: 4}
	if status := env.do(t, &alice, http.MethodPost, "/attempts/"+attempt.ID+"/answers", answer, &attempt); status != http.StatusOK {
		t.Fatalf("answer: expected 200, got %d", status)
	}
	if status := env.do(t, &alice, http.MethodPost, "/attempts/"+attempt.ID+"/answers", answer, nil); status != http.StatusConflict {
		t.Fatalf("duplicate answer: expected 409, got %d", status)
	}
	if status := env.do(t, &alice, http.MethodPost, "/attempts/"+attempt.ID+"/complete", map[string]int{"timeTaken": 12}, &attempt); status != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", status)
	}
	if attempt.Percentage != 100 || !attempt.Passed || attempt.Status != domain.AttemptCompleted {
		t.Fatalf("unexpected completed attempt: %+v", attempt)
	}

	var profile domain.GamificationProfile
	if status := env.do(t, &alice, http.MethodGet, "/me/profile", nil, &profile); status != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", status)
	}
	if profile.TotalPoints != 10 || profile.Stats.QuizzesCompleted != 1 || profile.Rank != 1 {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	var board []domain.LeaderboardEntry
	if status := env.do(t, &teacher, http.MethodGet, "/leaderboard?scope=course&scopeId=course-1", nil, &board); status != http.StatusOK {
		t.Fatalf("leaderboard: expected 200, got %d", status)
	}
	if len(board) != 1 || board[0].UserID != alice.UserID || board[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}

	var attempts []domain.QuizAttempt
	if status := env.do(t, &alice, http.MethodGet, "/attempts", nil, &attempts); status != http.StatusOK {
		t.Fatalf("list attempts: expected 200, got %d", status)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
}

func TestAPICreateSession(t *testing.T) {
	env := newTestEnv(t, liveQuiz())
	if err := env.quizzes.SaveScheduledQuiz(context.Background(), liveSchedule()); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	if status := env.do(t, &alice, http.MethodPost, "/sessions", createSessionRequest{ScheduledQuizID: "sched-1"}, nil); status != http.StatusForbidden {
		t.Fatalf("student host: expected 403, got %d", status)
	}
	var snapshot domain.SessionSnapshot
	if status := env.do(t, &teacher, http.MethodPost, "/sessions", createSessionRequest{ScheduledQuizID: "sched-1"}, &snapshot); status != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", status)
	}
	if snapshot.Status != domain.SessionWaiting || !app.ValidJoinCode(snapshot.JoinCode) {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	var fetched domain.SessionSnapshot
	if status := env.do(t, &alice, http.MethodGet, "/sessions/"+snapshot.JoinCode, nil, &fetched); status != http.StatusOK {
		t.Fatalf("get session: expected 200, got %d", status)
	}
	if fetched.ID != snapshot.ID {
		t.Fatalf("expected session %s, got %s", snapshot.ID, fetched.ID)
	}
}
