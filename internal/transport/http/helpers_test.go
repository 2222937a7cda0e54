package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
	"edu-quiz-service/internal/infra/memory"
)

const testSecret = "test-secret"

var (
	teacher = domain.Identity{UserID: "t1", Name: "Ms. Rivera", Role: domain.RoleTeacher, SchoolID: "sch1"}
	alice   = domain.Identity{UserID: "s1", Name: "Alice", Role: domain.RoleStudent, SchoolID: "sch1"}
)

type testEnv struct {
	server   *httptest.Server
	auth     *Authenticator
	services Services
	quizzes  *memory.QuizStore
}

func newTestEnv(t *testing.T, seed ...domain.Quiz) *testEnv {
	t.Helper()
	quizzes := memory.NewQuizStore(seed...)
	cache := memory.NewQuizRepository(quizzes, time.Minute)
	gamification := app.NewGamificationService(memory.NewProfileStore(), app.GamificationConfig{})
	services := Services{
		Quizzes:      app.NewQuizService(quizzes, cache),
		Attempts:     app.NewAttemptService(memory.NewAttemptStore(), cache, gamification),
		Sessions:     app.NewSessionService(memory.NewSessionStore(), quizzes, cache, gamification, app.SessionConfig{}),
		Gamification: gamification,
		Assist:       app.NewAssistService(stubGenerator{}),
	}
	auth := NewAuthenticator(testSecret, "")
	mux := http.NewServeMux()
	NewAPI(services, auth).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testEnv{server: server, auth: auth, services: services, quizzes: quizzes}
}

func (e *testEnv) token(t *testing.T, who domain.Identity) string {
	t.Helper()
	tok, err := e.auth.Sign(who, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// do sends a JSON request and decodes the response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, who *domain.Identity, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *who))
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, req app.GenerationRequest) (string, error) {
	if req.Prompt == "quota" {
		return "", domain.ErrRateLimited
	}
	return "generated: " + req.Prompt, nil
}

// liveQuiz is a published single question quiz with a live schedule "sched-1".
func liveQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Arithmetic",
		Type:         domain.QuizTypeScheduled,
		TeacherID:    teacher.UserID,
		CourseID:     "course-1",
		SchoolID:     "sch1",
		IsPublished:  true,
		PassingScore: 50,
		TotalPoints:  10,
		Questions: []domain.Question{
			{
				ID:     "q1",
				QuizID: "quiz-1",
				Type:   domain.QuestionMultipleChoice,
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", Correct: true},
				},
				Points:    10,
				TimeLimit: 30,
			},
		},
	}
}

func liveSchedule() domain.ScheduledQuiz {
	return domain.ScheduledQuiz{
		ID:        "sched-1",
		QuizID:    "quiz-1",
		TeacherID: teacher.UserID,
		CourseID:  "course-1",
		SchoolID:  "sch1",
		StartTime: time.Now().Add(-time.Minute),
		EndTime:   time.Now().Add(time.Hour),
		IsLive:    true,
	}
}
