package domain

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// QuizAnswer is one graded answer inside an attempt.
type QuizAnswer struct {
	QuestionID       string    `json:"questionId"`
	SelectedOptionID string    `json:"selectedOptionId,omitempty"`
	TextAnswer       string    `json:"textAnswer,omitempty"`
	IsCorrect        bool      `json:"isCorrect"`
	PointsEarned     int       `json:"pointsEarned"`
	TimeSpent        int       `json:"timeSpent"` // seconds
	AnsweredAt       time.Time `json:"answeredAt"`
}

// QuizAttempt is one student's pass through a quiz. It is append-only once completed.
type QuizAttempt struct {
	ID             string              `json:"id"`
	QuizID         string              `json:"quizId"`
	CourseID       string              `json:"courseId,omitempty"`
	StudentID      string              `json:"studentId"`
	StudentName    string              `json:"studentName"`
	SchoolID       string              `json:"schoolId,omitempty"`
	QuestionOrder  []string            `json:"questionOrder"`
	// QuestionPoints and OptionOrder are fixed at start; later quiz edits do not change them.
	QuestionPoints map[string]int      `json:"questionPoints"`
	OptionOrder    map[string][]string `json:"optionOrder,omitempty"`
	Answers        []QuizAnswer        `json:"answers"`
	Score          int                 `json:"score"`
	TotalPoints    int                 `json:"totalPoints"` // copied from the quiz at start
	PassingScore   int                 `json:"passingScore"`
	Percentage     int                 `json:"percentage"`
	Passed         bool                `json:"passed"`
	TimeTaken      int                 `json:"timeTaken"` // seconds
	StartedAt      time.Time           `json:"startedAt"`
	Deadline       *time.Time          `json:"deadline,omitempty"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
	IsCompleted    bool                `json:"isCompleted"`
	Status         AttemptStatus       `json:"status"`
	Version        int                 `json:"version"`
}

// HasQuestion reports whether the question was part of the quiz when the attempt started.
func (a QuizAttempt) HasQuestion(questionID string) bool {
	for _, id := range a.QuestionOrder {
		if id == questionID {
			return true
		}
	}
	return false
}

// Answered reports whether the attempt already holds an answer for the question.
func (a QuizAttempt) Answered(questionID string) bool {
	for _, answer := range a.Answers {
		if answer.QuestionID == questionID {
			return true
		}
	}
	return false
}
