package app

import (
	"time"

	"edu-quiz-service/internal/domain"
)

// LevelCurve defines how much XP each level needs: Base + (level-1)*Step.
type LevelCurve struct {
	Base int
	Step int
}

var DefaultLevelCurve = LevelCurve{Base: 100, Step: 50}

// Threshold is the XP needed to move from level to level+1.
func (c LevelCurve) Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	t := c.Base + (level-1)*c.Step
	if t < 1 {
		return 1
	}
	return t
}

var levelNames = []string{
	"Novice",
	"Apprentice",
	"Learner",
	"Scholar",
	"Achiever",
	"Expert",
	"Master",
	"Sage",
	"Luminary",
	"Legend",
}

// LevelName returns the display name of a level. Levels past the table keep the last name.
func LevelName(level int) string {
	if level < 1 {
		level = 1
	}
	if level > len(levelNames) {
		return levelNames[len(levelNames)-1]
	}
	return levelNames[level-1]
}

// applyPoints adds points, levelling up as many times as the XP allows.
func applyPoints(profile *domain.GamificationProfile, points int, curve LevelCurve, now time.Time) {
	if profile.Level < 1 {
		profile.Level = 1
	}
	profile.TotalPoints += points
	profile.XP += points
	profile.PointsReachedAt = now
	for profile.XP >= curve.Threshold(profile.Level) {
		profile.XP -= curve.Threshold(profile.Level)
		profile.Level++
	}
	profile.XPToNextLevel = curve.Threshold(profile.Level)
	profile.LevelName = LevelName(profile.Level)
}

// UpdateStreak applies one activity to a streak using calendar days in loc.
// Activity on the same day or before the last recorded day leaves the streak unchanged.
func UpdateStreak(streak domain.Streak, activity time.Time, loc *time.Location) domain.Streak {
	if loc == nil {
		loc = time.UTC
	}
	day := calendarDay(activity, loc)
	if streak.LastActivityDate.IsZero() || streak.Current == 0 {
		streak.Current = 1
	} else {
		last := calendarDay(streak.LastActivityDate, loc)
		switch {
		case !day.After(last):
			return streak
		case day.Equal(last.AddDate(0, 0, 1)):
			streak.Current++
		default:
			streak.Current = 1
		}
	}
	streak.LastActivityDate = day
	if streak.Current > streak.Longest {
		streak.Longest = streak.Current
	}
	return streak
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

type badgeRule struct {
	badge  domain.Badge
	earned func(p *domain.GamificationProfile, e domain.ActivityEvent) bool
}

var badgeRules = []badgeRule{
	{
		badge: domain.Badge{ID: "first_quiz", Name: "First Steps", Description: "Complete your first quiz", Icon: "🎯"},
		earned: func(p *domain.GamificationProfile, _ domain.ActivityEvent) bool {
			return p.Stats.QuizzesCompleted >= 1
		},
	},
	{
		badge: domain.Badge{ID: "perfect_score", Name: "Perfectionist", Description: "Score 100% on a quiz", Icon: "💯"},
		earned: func(_ *domain.GamificationProfile, e domain.ActivityEvent) bool {
			return e.Kind == domain.ActivityQuizCompleted && e.Percentage >= 100
		},
	},
	{
		badge: domain.Badge{ID: "quiz_ten", Name: "Quiz Enthusiast", Description: "Complete 10 quizzes", Icon: "📚"},
		earned: func(p *domain.GamificationProfile, _ domain.ActivityEvent) bool {
			return p.Stats.QuizzesCompleted >= 10
		},
	},
	{
		badge: domain.Badge{ID: "lessons_50", Name: "Dedicated Learner", Description: "Complete 50 lessons", Icon: "🎓"},
		earned: func(p *domain.GamificationProfile, _ domain.ActivityEvent) bool {
			return p.Stats.LessonsCompleted >= 50
		},
	},
	{
		badge: domain.Badge{ID: "streak_7", Name: "Week Warrior", Description: "Keep a 7 day streak", Icon: "🔥"},
		earned: func(p *domain.GamificationProfile, _ domain.ActivityEvent) bool {
			return p.Streak.Current >= 7
		},
	},
	{
		badge: domain.Badge{ID: "streak_30", Name: "Unstoppable", Description: "Keep a 30 day streak", Icon: "⚡"},
		earned: func(p *domain.GamificationProfile, _ domain.ActivityEvent) bool {
			return p.Streak.Current >= 30
		},
	},
	{
		badge: domain.Badge{ID: "level_5", Name: "Rising Star", Description: "Reach level 5", Icon: "⭐"},
		earned: func(p *domain.GamificationProfile, _ domain.ActivityEvent) bool {
			return p.Level >= 5
		},
	},
	{
		badge: domain.Badge{ID: "live_champion", Name: "Live Champion", Description: "Win a live quiz session", Icon: "🏆"},
		earned: func(p *domain.GamificationProfile, _ domain.ActivityEvent) bool {
			return p.Stats.LiveSessionsWon >= 1
		},
	},
}

// CheckAndAwardBadges appends every badge whose rule now holds and returns the new ones.
// A badge id is never awarded twice.
func CheckAndAwardBadges(profile *domain.GamificationProfile, event domain.ActivityEvent, now time.Time) []domain.Badge {
	var awarded []domain.Badge
	for _, rule := range badgeRules {
		if profile.HasBadge(rule.badge.ID) || !rule.earned(profile, event) {
			continue
		}
		badge := rule.badge
		badge.EarnedAt = now
		profile.Badges = append(profile.Badges, badge)
		awarded = append(awarded, badge)
	}
	return awarded
}

type achievementRule struct {
	id, name, description string
	target                int
	progress              func(p *domain.GamificationProfile) int
}

var achievementRules = []achievementRule{
	{"quiz_explorer", "Quiz Explorer", "Complete 25 quizzes", 25, func(p *domain.GamificationProfile) int { return p.Stats.QuizzesCompleted }},
	{"lesson_marathon", "Lesson Marathon", "Complete 100 lessons", 100, func(p *domain.GamificationProfile) int { return p.Stats.LessonsCompleted }},
	{"streak_keeper", "Streak Keeper", "Reach a 14 day streak", 14, func(p *domain.GamificationProfile) int { return p.Streak.Longest }},
	{"point_collector", "Point Collector", "Earn 5000 points", 5000, func(p *domain.GamificationProfile) int { return p.TotalPoints }},
	{"live_regular", "Live Regular", "Play 10 live sessions", 10, func(p *domain.GamificationProfile) int { return p.Stats.LiveSessionsDone }},
}

// updateAchievements refreshes progress. Completed achievements stay completed.
func updateAchievements(profile *domain.GamificationProfile, now time.Time) {
	byID := make(map[string]int, len(profile.Achievements))
	for i, a := range profile.Achievements {
		byID[a.ID] = i
	}
	for _, rule := range achievementRules {
		i, ok := byID[rule.id]
		if !ok {
			profile.Achievements = append(profile.Achievements, domain.Achievement{
				ID:          rule.id,
				Name:        rule.name,
				Description: rule.description,
				Target:      rule.target,
			})
			i = len(profile.Achievements) - 1
		}
		a := &profile.Achievements[i]
		if a.IsCompleted {
			continue
		}
		a.Progress = rule.progress(profile)
		if a.Progress >= a.Target {
			a.Progress = a.Target
			a.IsCompleted = true
			completedAt := now
			a.CompletedAt = &completedAt
		}
	}
}

func newProfile(user domain.Identity, curve LevelCurve) domain.GamificationProfile {
	profile := domain.GamificationProfile{
		UserID:        user.UserID,
		UserName:      user.Name,
		SchoolID:      user.SchoolID,
		Level:         1,
		LevelName:     LevelName(1),
		XPToNextLevel: curve.Threshold(1),
		Badges:        []domain.Badge{},
		Achievements:  []domain.Achievement{},
	}
	updateAchievements(&profile, time.Time{})
	return profile
}

// applyActivity folds one event into the profile and returns the badges it unlocked.
func applyActivity(profile *domain.GamificationProfile, event domain.ActivityEvent, curve LevelCurve, loc *time.Location, now time.Time) []domain.Badge {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	switch event.Kind {
	case domain.ActivityQuizCompleted:
		profile.Stats.QuizzesCompleted++
		if event.Percentage >= 100 {
			profile.Stats.PerfectScores++
		}
		if event.Percentage > profile.Stats.BestPercentage {
			profile.Stats.BestPercentage = event.Percentage
		}
	case domain.ActivityLessonCompleted:
		profile.Stats.LessonsCompleted++
	case domain.ActivityLiveSessionFinished:
		profile.Stats.LiveSessionsDone++
		if event.Won {
			profile.Stats.LiveSessionsWon++
		}
	}
	if event.CourseID != "" && !containsString(profile.CourseIDs, event.CourseID) {
		profile.CourseIDs = append(profile.CourseIDs, event.CourseID)
	}

	profile.Streak = UpdateStreak(profile.Streak, occurred, loc)
	if event.Points > 0 {
		applyPoints(profile, event.Points, curve, now)
	}
	awarded := CheckAndAwardBadges(profile, event, now)
	updateAchievements(profile, now)
	return awarded
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
