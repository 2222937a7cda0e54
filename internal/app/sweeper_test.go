package app_test

import (
	"context"
	"testing"
	"time"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
	"edu-quiz-service/internal/infra/memory"
)

func TestSweeperAbandonsAndCloses(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	quiz := publishedQuiz()
	quiz.TimeLimit = 5
	store := memory.NewQuizStore(quiz)
	_ = store.SaveScheduledQuiz(ctx, liveSchedule())
	cache := memory.NewQuizRepository(store, time.Minute)

	attempts := app.NewAttemptService(memory.NewAttemptStore(), cache, nil, app.WithClock(clock.Now))
	sessions := app.NewSessionService(memory.NewSessionStore(), store, cache, nil, app.SessionConfig{}, app.WithClock(clock.Now))

	attempt, _ := attempts.StartAttempt(ctx, alice, quiz.ID)
	created, err := sessions.CreateSession(ctx, teacher, "sched-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	sweeper := app.NewSweeper(attempts, sessions, app.SweeperConfig{
		AttemptGrace:  time.Minute,
		MaxAttemptAge: 24 * time.Hour,
		SessionIdle:   30 * time.Minute,
	})
	passes := 0
	sweeper.AddTask(func(context.Context) { passes++ })
	sweeper.Sweep(ctx)
	if got, _ := attempts.GetAttempt(ctx, alice, attempt.ID); got.Status != domain.AttemptInProgress {
		t.Fatalf("fresh attempt swept: %+v", got)
	}

	clock.Advance(time.Hour)
	sweeper.Sweep(ctx)
	if got, _ := attempts.GetAttempt(ctx, alice, attempt.ID); got.Status != domain.AttemptAbandoned {
		t.Fatalf("expected expired attempt abandoned, got %s", got.Status)
	}
	if _, err := sessions.Snapshot(ctx, created.JoinCode); err == nil {
		t.Fatalf("expected idle session closed")
	}
	if passes != 2 {
		t.Fatalf("expected extra task on every pass, got %d", passes)
	}
}

func TestSweeperSchedule(t *testing.T) {
	sweeper := app.NewSweeper(nil, nil, app.SweeperConfig{})
	if _, err := sweeper.Schedule(context.Background(), "not a spec"); err == nil {
		t.Fatalf("expected invalid cron spec to fail")
	}
	c, err := sweeper.Schedule(context.Background(), "@every 1m")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Fatalf("expected one cron entry, got %d", len(c.Entries()))
	}
}
