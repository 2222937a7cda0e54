package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every specific error below wraps exactly one of them, so transport layers only
// need errors.Is against the kind.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrValidation      = errors.New("validation failed")
	ErrExternalService = errors.New("external service failure")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded, or is not published.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrScheduledQuizNotFound indicates an unknown schedule id.
	ErrScheduledQuizNotFound = fmt.Errorf("scheduled quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = fmt.Errorf("option %w", ErrNotFound)
	// ErrAttemptNotFound is returned for unknown attempt ids.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	// ErrSessionNotFound is returned when no active session uses the join code.
	ErrSessionNotFound = fmt.Errorf("quiz session %w", ErrNotFound)
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = fmt.Errorf("participant %w in session", ErrNotFound)
	// ErrProfileNotFound is returned for users without any gamification activity.
	ErrProfileNotFound = fmt.Errorf("gamification profile %w", ErrNotFound)

	ErrAttemptFinalized   = fmt.Errorf("%w: attempt is no longer in progress", ErrInvalidState)
	ErrAlreadyAnswered    = fmt.Errorf("%w: question already answered", ErrInvalidState)
	ErrQuizNotPublishable = fmt.Errorf("%w: quiz needs at least one question to be published", ErrInvalidState)
	ErrSessionNotJoinable = fmt.Errorf("%w: session is no longer accepting participants", ErrInvalidState)
	ErrNoParticipants     = fmt.Errorf("%w: session has no participants", ErrInvalidState)
	ErrSessionClosed      = fmt.Errorf("%w: session is completed", ErrInvalidState)
	ErrQuestionClosed     = fmt.Errorf("%w: question is not accepting answers", ErrInvalidState)
	ErrTransition         = fmt.Errorf("%w: transition not allowed", ErrInvalidState)
	ErrNotLiveQuiz        = fmt.Errorf("%w: scheduled quiz is not live", ErrInvalidState)
	// ErrVersionConflict is returned by stores when a compare-and-swap write lost the race.
	ErrVersionConflict = fmt.Errorf("%w: concurrent update", ErrInvalidState)
	// ErrJoinCodeTaken is returned by session stores when a join code is already active.
	ErrJoinCodeTaken = fmt.Errorf("%w: join code already in use", ErrInvalidState)

	ErrNotHost      = fmt.Errorf("%w: only the session host can do this", ErrForbidden)
	ErrNotOwner     = fmt.Errorf("%w: resource belongs to another user", ErrForbidden)
	ErrRoleDenied   = fmt.Errorf("%w: role is not allowed to do this", ErrForbidden)
	ErrMissingToken = fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
)

// RateLimitMessage is shown to users when the AI gateway refuses work for quota reasons.
const RateLimitMessage = "AI quota reached, please try again in a few minutes"

// ErrRateLimited is returned when the AI gateway reports a quota or rate limit.
var ErrRateLimited = fmt.Errorf("%w: %s", ErrExternalService, RateLimitMessage)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input. It unwraps to ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
