package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// Services groups the use cases exposed over HTTP.
type Services struct {
	Quizzes      *app.QuizService
	Attempts     *app.AttemptService
	Sessions     *app.SessionService
	Gamification *app.GamificationService
	Assist       *app.AssistService
}

// API serves the JSON endpoints. Every handler receives the caller's identity explicitly.
type API struct {
	svc  Services
	auth *Authenticator
}

func NewAPI(svc Services, auth *Authenticator) *API {
	return &API{svc: svc, auth: auth}
}

type identityHandler func(w http.ResponseWriter, r *http.Request, who domain.Identity)

func (a *API) authed(fn identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := a.auth.Authenticate(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		fn(w, r, who)
	}
}

// Register installs the API routes and the session WebSocket on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /quizzes", a.authed(a.createQuiz))
	mux.HandleFunc("GET /quizzes", a.authed(a.listQuizzes))
	mux.HandleFunc("GET /quizzes/{id}", a.authed(a.getQuiz))
	mux.HandleFunc("POST /quizzes/{id}/questions", a.authed(a.addQuestion))
	mux.HandleFunc("PUT /quizzes/{id}/questions/order", a.authed(a.reorderQuestions))
	mux.HandleFunc("PUT /quizzes/{id}/questions/{questionID}", a.authed(a.updateQuestion))
	mux.HandleFunc("DELETE /quizzes/{id}/questions/{questionID}", a.authed(a.removeQuestion))
	mux.HandleFunc("POST /quizzes/{id}/publish", a.authed(a.publishQuiz))
	mux.HandleFunc("POST /quizzes/{id}/schedules", a.authed(a.scheduleQuiz))
	mux.HandleFunc("GET /quizzes/{id}/schedules", a.authed(a.listSchedules))

	mux.HandleFunc("POST /quizzes/{id}/attempts", a.authed(a.startAttempt))
	mux.HandleFunc("GET /attempts", a.authed(a.listAttempts))
	mux.HandleFunc("GET /attempts/{id}", a.authed(a.getAttempt))
	mux.HandleFunc("POST /attempts/{id}/answers", a.authed(a.submitAnswer))
	mux.HandleFunc("POST /attempts/{id}/complete", a.authed(a.completeAttempt))
	mux.HandleFunc("POST /attempts/{id}/abandon", a.authed(a.abandonAttempt))

	mux.HandleFunc("POST /sessions", a.authed(a.createSession))
	mux.HandleFunc("GET /sessions/{code}", a.authed(a.getSession))
	mux.Handle("GET /ws/sessions/{code}", NewWSHandler(a.svc.Sessions, a.auth))

	mux.HandleFunc("GET /me/profile", a.authed(a.myProfile))
	mux.HandleFunc("GET /profiles/{userID}", a.authed(a.getProfile))
	mux.HandleFunc("GET /leaderboard", a.authed(a.leaderboard))

	mux.HandleFunc("POST /assist", a.authed(a.assist))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeServiceError(w, domain.NewValidationError(domain.FieldError{Field: "body", Message: "request body must be valid JSON"}))
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeServiceError(w, domain.NewValidationError(domain.FieldError{Field: name, Message: name + " must be a non-negative integer"}))
		return 0, false
	}
	return n, true
}

func (a *API) createQuiz(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in app.NewQuiz
	if !decodeBody(w, r, &in) {
		return
	}
	quiz, err := a.svc.Quizzes.CreateQuiz(r.Context(), who, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	q := r.URL.Query()
	published, _ := strconv.ParseBool(q.Get("published"))
	quizzes, err := a.svc.Quizzes.ListQuizzes(r.Context(), who, app.QuizFilter{
		TeacherID:     q.Get("teacherId"),
		CourseID:      q.Get("courseId"),
		SchoolID:      q.Get("schoolId"),
		PublishedOnly: published,
		Limit:         limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	quiz, err := a.svc.Quizzes.GetQuiz(r.Context(), who, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) addQuestion(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in app.QuestionInput
	if !decodeBody(w, r, &in) {
		return
	}
	quiz, err := a.svc.Quizzes.AddQuestion(r.Context(), who, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) updateQuestion(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in app.QuestionInput
	if !decodeBody(w, r, &in) {
		return
	}
	quiz, err := a.svc.Quizzes.UpdateQuestion(r.Context(), who, r.PathValue("id"), r.PathValue("questionID"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) removeQuestion(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	quiz, err := a.svc.Quizzes.RemoveQuestion(r.Context(), who, r.PathValue("id"), r.PathValue("questionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type reorderRequest struct {
	QuestionIDs []string `json:"questionIds"`
}

func (a *API) reorderQuestions(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in reorderRequest
	if !decodeBody(w, r, &in) {
		return
	}
	quiz, err := a.svc.Quizzes.ReorderQuestions(r.Context(), who, r.PathValue("id"), in.QuestionIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) publishQuiz(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	quiz, err := a.svc.Quizzes.PublishQuiz(r.Context(), who, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) scheduleQuiz(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in app.ScheduleRequest
	if !decodeBody(w, r, &in) {
		return
	}
	scheduled, err := a.svc.Quizzes.ScheduleQuiz(r.Context(), who, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scheduled)
}

func (a *API) listSchedules(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	// Visibility of the quiz decides visibility of its schedules.
	if _, err := a.svc.Quizzes.GetQuiz(r.Context(), who, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	schedules, err := a.svc.Quizzes.ListSchedules(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (a *API) startAttempt(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	attempt, err := a.svc.Attempts.StartAttempt(r.Context(), who, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (a *API) listAttempts(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	q := r.URL.Query()
	attempts, err := a.svc.Attempts.ListAttempts(r.Context(), who, app.AttemptFilter{
		QuizID:    q.Get("quizId"),
		StudentID: q.Get("studentId"),
		Status:    domain.AttemptStatus(q.Get("status")),
		Limit:     limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (a *API) getAttempt(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	attempt, err := a.svc.Attempts.GetAttempt(r.Context(), who, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in app.AnswerInput
	if !decodeBody(w, r, &in) {
		return
	}
	attempt, err := a.svc.Attempts.SubmitAnswer(r.Context(), who, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

type completeRequest struct {
	TimeTaken int `json:"timeTaken"`
}

func (a *API) completeAttempt(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in completeRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &in) {
		return
	}
	attempt, err := a.svc.Attempts.CompleteAttempt(r.Context(), who, r.PathValue("id"), in.TimeTaken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) abandonAttempt(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	attempt, err := a.svc.Attempts.AbandonAttempt(r.Context(), who, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

type createSessionRequest struct {
	ScheduledQuizID string `json:"scheduledQuizId"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in createSessionRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.ScheduledQuizID == "" {
		writeServiceError(w, domain.NewValidationError(domain.FieldError{Field: "scheduledQuizId", Message: "scheduledQuizId is required"}))
		return
	}
	snapshot, err := a.svc.Sessions.CreateSession(r.Context(), who, in.ScheduledQuizID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	snapshot, err := a.svc.Sessions.Snapshot(r.Context(), r.PathValue("code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *API) myProfile(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	profile, err := a.svc.Gamification.EnsureProfile(r.Context(), who)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	profile, err := a.svc.Gamification.GetProfile(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	q := r.URL.Query()
	entries, err := a.svc.Gamification.GetLeaderboard(r.Context(), domain.LeaderboardScope(q.Get("scope")), q.Get("scopeId"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) assist(w http.ResponseWriter, r *http.Request, who domain.Identity) {
	var in app.AssistRequest
	if !decodeBody(w, r, &in) {
		return
	}
	result, err := a.svc.Assist.Assist(r.Context(), who, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
