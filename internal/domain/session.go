package domain

import "time"

type SessionStatus string

const (
	SessionWaiting     SessionStatus = "waiting"
	SessionInProgress  SessionStatus = "in_progress"
	SessionQuestion    SessionStatus = "question"
	SessionResults     SessionStatus = "results"
	SessionLeaderboard SessionStatus = "leaderboard"
	SessionCompleted   SessionStatus = "completed"
)

// SessionParticipant represents a live participant and their accumulated score.
type SessionParticipant struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"sessionId"`
	StudentID         string     `json:"studentId"`
	StudentName       string     `json:"studentName"`
	Score             int        `json:"score"`
	CorrectAnswers    int        `json:"correctAnswers"`
	Streak            int        `json:"streak"`
	HasAnswered       bool       `json:"hasAnswered"`
	LastAnswerCorrect *bool      `json:"lastAnswerCorrect,omitempty"`
	LastAnsweredAt    *time.Time `json:"lastAnsweredAt,omitempty"`
	Rank              int        `json:"rank"`
	JoinedAt          time.Time  `json:"joinedAt"`
}

// LiveQuestion is the question as shown to participants. Correctness is only filled in
// once the question is revealed.
type LiveQuestion struct {
	ID        string       `json:"id"`
	Index     int          `json:"index"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	Options   []Option     `json:"options,omitempty"`
	Points    int          `json:"points"`
	TimeLimit int          `json:"timeLimit"` // seconds
	Revealed  bool         `json:"revealed"`
	Answer    string       `json:"answer,omitempty"`
}

// SessionSnapshot is the read view of a multiplayer session.
type SessionSnapshot struct {
	ID                   string               `json:"id"`
	ScheduledQuizID      string               `json:"scheduledQuizId"`
	QuizID               string               `json:"quizId"`
	JoinCode             string               `json:"joinCode"`
	HostID               string               `json:"hostId"`
	Status               SessionStatus        `json:"status"`
	Cancelled            bool                 `json:"cancelled"`
	CurrentQuestionIndex int                  `json:"currentQuestionIndex"`
	QuestionCount        int                  `json:"questionCount"`
	Question             *LiveQuestion        `json:"question,omitempty"`
	QuestionStartTime    *time.Time           `json:"questionStartTime,omitempty"`
	Participants         []SessionParticipant `json:"participants"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

// Participant returns the participant entry for a student.
func (s SessionSnapshot) Participant(studentID string) (SessionParticipant, bool) {
	for _, p := range s.Participants {
		if p.StudentID == studentID {
			return p, true
		}
	}
	return SessionParticipant{}, false
}

// LiveAnswer is a participant's answer to the current question.
type LiveAnswer struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId,omitempty"`
	Text       string `json:"text,omitempty"`
}

// AnswerResult summarizes the outcome of a live submission for a single participant.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
	Streak     int    `json:"streak"`
	Rank       int    `json:"rank"`
}
