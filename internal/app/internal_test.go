package app

import (
	"sync"
	"testing"
	"time"

	"edu-quiz-service/internal/domain"
)

func TestSpeedPoints(t *testing.T) {
	limit := 20 * time.Second
	cases := []struct {
		base    int
		elapsed time.Duration
		want    int
	}{
		{1000, 0, 1000},
		{1000, 5 * time.Second, 750},
		{1000, 15 * time.Second, 500}, // floor
		{1000, 25 * time.Second, 500},
		{1, 19 * time.Second, 1},
		{0, 0, 0},
	}
	for _, tc := range cases {
		if got := SpeedPoints(tc.base, tc.elapsed, limit, 50); got != tc.want {
			t.Fatalf("SpeedPoints(%d, %s) = %d, want %d", tc.base, tc.elapsed, got, tc.want)
		}
	}
	if got := SpeedPoints(10, time.Second, 0, 50); got != 10 {
		t.Fatalf("untimed questions should pay full points, got %d", got)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct{ score, total, want int }{
		{10, 30, 33},
		{20, 30, 67},
		{30, 30, 100},
		{5, 0, 0},
		{0, 10, 0},
	}
	for _, tc := range cases {
		if got := percentage(tc.score, tc.total); got != tc.want {
			t.Fatalf("percentage(%d, %d) = %d, want %d", tc.score, tc.total, got, tc.want)
		}
	}
}

func TestGradeAnswer(t *testing.T) {
	short := domain.Question{Type: domain.QuestionShortAnswer, CorrectAnswer: "New  York"}
	if ok, err := gradeAnswer(short, "", " new york "); err != nil || !ok {
		t.Fatalf("expected normalized match, got %v %v", ok, err)
	}
	if _, err := gradeAnswer(short, "", "  "); err == nil {
		t.Fatalf("expected blank short answer to be rejected")
	}
}

func TestJoinCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := NewJoinCode()
		if err != nil {
			t.Fatalf("join code: %v", err)
		}
		if !ValidJoinCode(code) {
			t.Fatalf("invalid code %q", code)
		}
	}
	if ValidJoinCode("abc123") || ValidJoinCode("ABC12") {
		t.Fatalf("expected malformed codes to be rejected")
	}
	if NormalizeJoinCode(" abc123 ") != "ABC123" {
		t.Fatalf("unexpected normalization")
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("same")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if k.size() != 0 {
		t.Fatalf("expected no lingering locks, got %d", k.size())
	}
}
