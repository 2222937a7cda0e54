package app_test

import (
	"context"
	"errors"
	"testing"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

type stubGenerator struct {
	text string
	err  error
	got  []app.GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req app.GenerationRequest) (string, error) {
	g.got = append(g.got, req)
	return g.text, g.err
}

func TestAssistRoleRules(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{text: "summary"}
	assist := app.NewAssistService(gen)

	if _, err := assist.Assist(ctx, alice, app.AssistRequest{Task: domain.TaskGenerateQuestions, Prompt: "fractions"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected students to be refused question generation, got %v", err)
	}
	if len(gen.got) != 0 {
		t.Fatalf("generator should not be called for refused requests")
	}

	res, err := assist.Assist(ctx, alice, app.AssistRequest{Task: domain.TaskSummarize, Document: "long text"})
	if err != nil || res.Text != "summary" {
		t.Fatalf("summarize: %+v %v", res, err)
	}
	if _, err := assist.Assist(ctx, teacher, app.AssistRequest{Task: domain.TaskGenerateQuestions, Prompt: "fractions"}); err != nil {
		t.Fatalf("teachers may generate questions: %v", err)
	}
	if gen.got[1].Role != domain.RoleTeacher {
		t.Fatalf("expected the caller role to be forwarded, got %+v", gen.got[1])
	}
}

func TestAssistValidationAndErrors(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{err: domain.ErrRateLimited}
	assist := app.NewAssistService(gen)

	if _, err := assist.Assist(ctx, teacher, app.AssistRequest{Task: domain.TaskSummarize}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected prompt or document to be required, got %v", err)
	}
	if _, err := assist.Assist(ctx, teacher, app.AssistRequest{Task: "translate", Prompt: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unknown task to be rejected, got %v", err)
	}
	_, err := assist.Assist(ctx, teacher, app.AssistRequest{Task: domain.TaskSummarize, Prompt: "x"})
	if !errors.Is(err, domain.ErrRateLimited) || !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected rate limit to surface, got %v", err)
	}
}
