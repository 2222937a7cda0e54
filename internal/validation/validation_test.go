package validation

import (
	"errors"
	"testing"

	"edu-quiz-service/internal/domain"
)

type sample struct {
	Title  string `json:"title" validate:"notblank"`
	Points int    `json:"points" validate:"min=1"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{Title: "   ", Points: 0})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", verr.Fields)
	}
	if verr.Fields[0].Field != "title" || verr.Fields[0].Message != "title cannot be blank" {
		t.Fatalf("unexpected title error: %+v", verr.Fields[0])
	}
	if verr.Fields[1].Field != "points" {
		t.Fatalf("unexpected points error: %+v", verr.Fields[1])
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	if err := Struct(sample{Title: "Fractions", Points: 5}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
