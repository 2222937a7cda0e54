package app_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"edu-quiz-service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&n, 1))
	}
}

var (
	teacher = domain.Identity{UserID: "t1", Name: "Ms. Rivera", Role: domain.RoleTeacher, SchoolID: "sch1"}
	alice   = domain.Identity{UserID: "s1", Name: "Alice", Role: domain.RoleStudent, SchoolID: "sch1"}
	bob     = domain.Identity{UserID: "s2", Name: "Bob", Role: domain.RoleStudent, SchoolID: "sch1"}
	carol   = domain.Identity{UserID: "s3", Name: "Carol", Role: domain.RoleStudent, SchoolID: "sch1"}
)

// publishedQuiz has a 10 point multiple choice question and a 20 point short answer.
func publishedQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Basics",
		Type:         domain.QuizTypeScheduled,
		TeacherID:    teacher.UserID,
		CourseID:     "course-1",
		SchoolID:     "sch1",
		IsPublished:  true,
		PassingScore: 50,
		TotalPoints:  30,
		Questions: []domain.Question{
			{
				ID:     "q1",
				QuizID: "quiz-1",
				Type:   domain.QuestionMultipleChoice,
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", Correct: true},
				},
				Points: 10,
				Order:  0,
			},
			{
				ID:            "q2",
				QuizID:        "quiz-1",
				Type:          domain.QuestionShortAnswer,
				Prompt:        "Capital of France?",
				CorrectAnswer: "Paris",
				Points:        20,
				Order:         1,
			},
		},
	}
}

func liveSchedule() domain.ScheduledQuiz {
	return domain.ScheduledQuiz{
		ID:        "sched-1",
		QuizID:    "quiz-1",
		TeacherID: teacher.UserID,
		CourseID:  "course-1",
		SchoolID:  "sch1",
		StartTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		IsLive:    true,
	}
}
