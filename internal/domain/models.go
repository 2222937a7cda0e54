package domain

import "time"

type QuizType string

const (
	QuizTypeScheduled QuizType = "scheduled"
	QuizTypePractice  QuizType = "practice"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question belongs to exactly one quiz. Order is unique and contiguous within the quiz.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quizId"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Points        int          `json:"points"`
	TimeLimit     int          `json:"timeLimit,omitempty"` // seconds
	Order         int          `json:"order"`
}

// TimeLimitDuration returns the per-question limit, or fallback when unset.
func (q Question) TimeLimitDuration(fallback time.Duration) time.Duration {
	if q.TimeLimit <= 0 {
		return fallback
	}
	return time.Duration(q.TimeLimit) * time.Second
}

// Quiz is an ordered collection of questions. TotalPoints is always the sum of question points.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Type             QuizType   `json:"type"`
	TeacherID        string     `json:"teacherId"`
	CourseID         string     `json:"courseId,omitempty"`
	SchoolID         string     `json:"schoolId,omitempty"`
	Questions        []Question `json:"questions"`
	TotalPoints      int        `json:"totalPoints"`
	TimeLimit        int        `json:"timeLimit,omitempty"` // minutes
	IsPublished      bool       `json:"isPublished"`
	ShuffleQuestions bool       `json:"shuffleQuestions"`
	ShuffleOptions   bool       `json:"shuffleOptions"`
	PassingScore     int        `json:"passingScore"` // percentage
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Question returns the question with the given id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// ScheduledQuiz binds a quiz to a time window. Live schedules can host multiplayer sessions.
type ScheduledQuiz struct {
	ID        string    `json:"id"`
	QuizID    string    `json:"quizId"`
	TeacherID string    `json:"teacherId"`
	CourseID  string    `json:"courseId,omitempty"`
	SchoolID  string    `json:"schoolId,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	IsLive    bool      `json:"isLive"`
	CreatedAt time.Time `json:"createdAt"`
}

type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleSchoolAdmin Role = "school_admin"
	RoleTeacher     Role = "teacher"
	RoleStudent     Role = "student"
)

// Identity is the caller as asserted by the identity provider. It is passed explicitly to
// every service call.
type Identity struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	SchoolID string `json:"schoolId,omitempty"`
}

// IsStaff reports whether the identity can author content.
func (i Identity) IsStaff() bool {
	switch i.Role {
	case RoleTeacher, RoleSchoolAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the identity administers content it does not own.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleSchoolAdmin || i.Role == RoleSuperAdmin
}
