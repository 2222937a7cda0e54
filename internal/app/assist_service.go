package app

import (
	"context"
	"strings"

	"edu-quiz-service/internal/domain"
	"edu-quiz-service/internal/validation"
)

// GenerationRequest is what the text generator receives.
type GenerationRequest struct {
	Task     domain.AssistTask `json:"task"`
	Prompt   string            `json:"prompt"`
	Document string            `json:"document,omitempty"`
	Role     domain.Role       `json:"role"`
	Locale   string            `json:"locale,omitempty"`
}

// TextGenerator delegates to an external AI gateway.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type AssistRequest struct {
	Task     domain.AssistTask `json:"task" validate:"required,oneof=summarize generate_questions"`
	Prompt   string            `json:"prompt" validate:"max=4000"`
	Document string            `json:"document" validate:"max=200000"`
	Locale   string            `json:"locale" validate:"max=35"`
}

type AssistResult struct {
	Task domain.AssistTask `json:"task"`
	Text string            `json:"text"`
}

type AssistService struct {
	generator TextGenerator
}

func NewAssistService(generator TextGenerator) *AssistService {
	return &AssistService{generator: generator}
}

// Assist runs an AI task for the caller. Students may summarize but not generate questions.
func (s *AssistService) Assist(ctx context.Context, who domain.Identity, req AssistRequest) (AssistResult, error) {
	if err := validation.Struct(req); err != nil {
		return AssistResult{}, err
	}
	if req.Task == domain.TaskGenerateQuestions && !who.IsStaff() {
		return AssistResult{}, domain.ErrRoleDenied
	}
	if strings.TrimSpace(req.Prompt) == "" && strings.TrimSpace(req.Document) == "" {
		return AssistResult{}, domain.NewValidationError(domain.FieldError{Field: "prompt", Message: "prompt or document is required"})
	}
	text, err := s.generator.Generate(ctx, GenerationRequest{
		Task:     req.Task,
		Prompt:   req.Prompt,
		Document: req.Document,
		Role:     who.Role,
		Locale:   req.Locale,
	})
	if err != nil {
		return AssistResult{}, err
	}
	return AssistResult{Task: req.Task, Text: text}, nil
}
