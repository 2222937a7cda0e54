package domain

import "time"

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	EarnedAt    time.Time `json:"earnedAt"`
}

// Streak counts consecutive calendar days with qualifying activity.
type Streak struct {
	Current          int       `json:"current"`
	Longest          int       `json:"longest"`
	LastActivityDate time.Time `json:"lastActivityDate"`
}

type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Progress    int        `json:"progress"`
	Target      int        `json:"target"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ProfileStats are the counters badge and achievement rules are evaluated against.
type ProfileStats struct {
	QuizzesCompleted int `json:"quizzesCompleted"`
	PerfectScores    int `json:"perfectScores"`
	LessonsCompleted int `json:"lessonsCompleted"`
	LiveSessionsDone int `json:"liveSessionsDone"`
	LiveSessionsWon  int `json:"liveSessionsWon"`
	BestPercentage   int `json:"bestPercentage"`
}

// GamificationProfile is the single source of truth for a user's cross-quiz progress.
type GamificationProfile struct {
	UserID          string        `json:"userId"`
	UserName        string        `json:"userName"`
	SchoolID        string        `json:"schoolId,omitempty"`
	SchoolName      string        `json:"schoolName,omitempty"`
	CourseIDs       []string      `json:"courseIds,omitempty"`
	TotalPoints     int           `json:"totalPoints"`
	PointsReachedAt time.Time     `json:"pointsReachedAt"`
	Level           int           `json:"level"`
	LevelName       string        `json:"levelName"`
	XP              int           `json:"xp"`
	XPToNextLevel   int           `json:"xpToNextLevel"`
	Badges          []Badge       `json:"badges"`
	Streak          Streak        `json:"streak"`
	Achievements    []Achievement `json:"achievements"`
	Stats           ProfileStats  `json:"stats"`
	Rank            int           `json:"rank"`
	SchoolRank      int           `json:"schoolRank,omitempty"`
	Version         int           `json:"version"`
}

// HasBadge reports whether the badge id was already earned.
func (p GamificationProfile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

type LeaderboardScope string

const (
	ScopeGlobal LeaderboardScope = "global"
	ScopeSchool LeaderboardScope = "school"
	ScopeCourse LeaderboardScope = "course"
)

// LeaderboardEntry is a read-only projection of a GamificationProfile.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Points     int    `json:"points"`
	Level      int    `json:"level"`
	BadgeCount int    `json:"badgeCount"`
	SchoolID   string `json:"schoolId,omitempty"`
	SchoolName string `json:"schoolName,omitempty"`
}

type ActivityKind string

const (
	ActivityQuizCompleted       ActivityKind = "quiz_completed"
	ActivityLessonCompleted     ActivityKind = "lesson_completed"
	ActivityLiveSessionFinished ActivityKind = "live_session_finished"
)

// ActivityEvent is a qualifying action fed to the gamification engine.
type ActivityEvent struct {
	Kind       ActivityKind `json:"kind"`
	SourceID   string       `json:"sourceId,omitempty"`
	CourseID   string       `json:"courseId,omitempty"`
	Points     int          `json:"points"`
	Percentage int          `json:"percentage,omitempty"`
	Correct    int          `json:"correct,omitempty"`
	Won        bool         `json:"won,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

type AssistTask string

const (
	TaskSummarize         AssistTask = "summarize"
	TaskGenerateQuestions AssistTask = "generate_questions"
)
