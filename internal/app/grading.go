package app

import (
	"math"
	"strings"
	"time"

	"edu-quiz-service/internal/domain"
)

// gradeAnswer validates the answer against the question and reports whether it is correct.
func gradeAnswer(question domain.Question, optionID, text string) (bool, error) {
	if question.Type == domain.QuestionShortAnswer {
		if strings.TrimSpace(text) == "" {
			return false, domain.NewValidationError(domain.FieldError{Field: "text", Message: "text is required for short answers"})
		}
		return normalizeAnswer(text) == normalizeAnswer(question.CorrectAnswer), nil
	}

	for _, opt := range question.Options {
		if opt.ID == optionID {
			return opt.Correct, nil
		}
	}
	return false, domain.ErrOptionNotFound
}

// normalizeAnswer lowercases and collapses whitespace so "  Paris " matches "paris".
func normalizeAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// correctAnswerText is the revealed answer shown after a live question closes.
func correctAnswerText(question domain.Question) string {
	if question.Type == domain.QuestionShortAnswer {
		return question.CorrectAnswer
	}
	for _, opt := range question.Options {
		if opt.Correct {
			return opt.Text
		}
	}
	return ""
}

// scoreOf sums pointsEarned over correct answers.
func scoreOf(answers []domain.QuizAnswer) int {
	score := 0
	for _, a := range answers {
		if a.IsCorrect {
			score += a.PointsEarned
		}
	}
	return score
}

// percentage is round(100*score/total), 0 when total is 0.
func percentage(score, total int) int {
	if total <= 0 || score <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// SpeedPoints scales base by the fraction of the time limit still left when the answer
// arrived. Any correct answer earns at least floorPercent of base (minimum 1 point).
func SpeedPoints(base int, elapsed, limit time.Duration, floorPercent int) int {
	if base <= 0 {
		return 0
	}
	floor := base * floorPercent / 100
	if floor < 1 {
		floor = 1
	}
	if limit <= 0 {
		return base
	}
	remaining := limit - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if remaining > limit {
		remaining = limit
	}
	points := int(math.Round(float64(base) * float64(remaining) / float64(limit)))
	if points < floor {
		return floor
	}
	return points
}
