package memory

import (
	"context"
	"errors"
	"testing"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	session := app.NewSession(app.SessionParams{JoinCode: "ABC123", Quiz: sampleQuiz()})
	if err := store.Add(ctx, session); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, ok := store.Get("ABC123"); !ok {
		t.Fatalf("expected session present")
	}

	other := app.NewSession(app.SessionParams{JoinCode: "ABC123", Quiz: sampleQuiz()})
	if err := store.Add(ctx, other); !errors.Is(err, domain.ErrJoinCodeTaken) {
		t.Fatalf("expected join code taken, got %v", err)
	}
	// Removing a session that never owned the code leaves the holder in place.
	store.Remove(ctx, other)
	if _, ok := store.Get("ABC123"); !ok {
		t.Fatalf("expected original session to keep the code")
	}

	store.Remove(ctx, session)
	if _, ok := store.Get("ABC123"); ok {
		t.Fatalf("expected session removed")
	}
	if len(store.All()) != 0 {
		t.Fatalf("expected empty store")
	}
	if err := store.Add(ctx, other); err != nil {
		t.Fatalf("expected released code to be reusable: %v", err)
	}
}
