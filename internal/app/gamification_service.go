package app

import (
	"context"
	"log"
	"sort"
	"time"

	"edu-quiz-service/internal/domain"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 500
)

// GamificationConfig sets the level curve and the timezone used for daily streaks.
type GamificationConfig struct {
	Curve    LevelCurve
	Location *time.Location
}

// GamificationService owns points, levels, streaks, badges, achievements and leaderboards.
// Every profile write is serialized per user and version-checked.
type GamificationService struct {
	profiles ProfileRepository
	cfg      GamificationConfig
	locks    keyedMutex
	opts     options
}

func NewGamificationService(profiles ProfileRepository, cfg GamificationConfig, opts ...Option) *GamificationService {
	if cfg.Curve.Base <= 0 {
		cfg.Curve = DefaultLevelCurve
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &GamificationService{profiles: profiles, cfg: cfg, opts: buildOptions(opts)}
}

// GetProfile returns the profile with its global and school ranks filled in.
func (s *GamificationService) GetProfile(ctx context.Context, userID string) (domain.GamificationProfile, error) {
	profile, ok, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.GamificationProfile{}, err
	}
	if !ok {
		return domain.GamificationProfile{}, domain.ErrProfileNotFound
	}
	if err := s.fillRanks(ctx, &profile); err != nil {
		return domain.GamificationProfile{}, err
	}
	return profile, nil
}

// EnsureProfile returns the caller's profile, creating an empty one on first use.
func (s *GamificationService) EnsureProfile(ctx context.Context, user domain.Identity) (domain.GamificationProfile, error) {
	profile, ok, err := s.profiles.GetProfile(ctx, user.UserID)
	if err != nil {
		return domain.GamificationProfile{}, err
	}
	if !ok {
		profile, err = s.mutate(ctx, user, func(*domain.GamificationProfile) {})
		if err != nil {
			return domain.GamificationProfile{}, err
		}
	}
	if err := s.fillRanks(ctx, &profile); err != nil {
		return domain.GamificationProfile{}, err
	}
	return profile, nil
}

// AwardPoints adds points to a user's profile, levelling up as needed.
func (s *GamificationService) AwardPoints(ctx context.Context, user domain.Identity, points int, reason string) (domain.GamificationProfile, error) {
	if points <= 0 {
		return domain.GamificationProfile{}, domain.NewValidationError(domain.FieldError{Field: "points", Message: "points must be greater than 0"})
	}
	profile, err := s.mutate(ctx, user, func(p *domain.GamificationProfile) {
		now := s.opts.now()
		applyPoints(p, points, s.cfg.Curve, now)
		CheckAndAwardBadges(p, domain.ActivityEvent{Points: points, OccurredAt: now}, now)
		updateAchievements(p, now)
	})
	if err != nil {
		return domain.GamificationProfile{}, err
	}
	log.Printf("awarded %d points to %s (%s)", points, user.UserID, reason)
	return profile, nil
}

// RecordActivity applies a qualifying event: stats, streak, points, badges and achievements.
func (s *GamificationService) RecordActivity(ctx context.Context, user domain.Identity, event domain.ActivityEvent) (domain.GamificationProfile, error) {
	switch event.Kind {
	case domain.ActivityQuizCompleted, domain.ActivityLessonCompleted, domain.ActivityLiveSessionFinished:
	default:
		return domain.GamificationProfile{}, domain.NewValidationError(domain.FieldError{Field: "kind", Message: "unknown activity kind"})
	}
	if event.Points < 0 {
		return domain.GamificationProfile{}, domain.NewValidationError(domain.FieldError{Field: "points", Message: "points must be 0 or greater"})
	}
	var badges []domain.Badge
	profile, err := s.mutate(ctx, user, func(p *domain.GamificationProfile) {
		badges = applyActivity(p, event, s.cfg.Curve, s.cfg.Location, s.opts.now())
	})
	if err != nil {
		return domain.GamificationProfile{}, err
	}
	for _, b := range badges {
		log.Printf("user %s earned badge %s", user.UserID, b.ID)
	}
	return profile, nil
}

// GetLeaderboard ranks profiles in a scope: points desc, earliest to reach them, then user id.
func (s *GamificationService) GetLeaderboard(ctx context.Context, scope domain.LeaderboardScope, scopeID string, limit int) ([]domain.LeaderboardEntry, error) {
	switch scope {
	case "":
		scope = domain.ScopeGlobal
	case domain.ScopeGlobal:
	case domain.ScopeSchool, domain.ScopeCourse:
		if scopeID == "" {
			return nil, domain.NewValidationError(domain.FieldError{Field: "scopeId", Message: "scopeId is required for " + string(scope) + " leaderboards"})
		}
	default:
		return nil, domain.NewValidationError(domain.FieldError{Field: "scope", Message: "scope must be one of global school course"})
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	profiles, err := s.ranked(ctx, ProfileFilter{Scope: scope, ScopeID: scopeID})
	if err != nil {
		return nil, err
	}
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	entries := make([]domain.LeaderboardEntry, len(profiles))
	for i, p := range profiles {
		entries[i] = domain.LeaderboardEntry{
			Rank:       i + 1,
			UserID:     p.UserID,
			UserName:   p.UserName,
			Points:     p.TotalPoints,
			Level:      p.Level,
			BadgeCount: len(p.Badges),
			SchoolID:   p.SchoolID,
			SchoolName: p.SchoolName,
		}
	}
	return entries, nil
}

func (s *GamificationService) ranked(ctx context.Context, filter ProfileFilter) ([]domain.GamificationProfile, error) {
	profiles, err := s.profiles.ListProfiles(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].TotalPoints != profiles[j].TotalPoints {
			return profiles[i].TotalPoints > profiles[j].TotalPoints
		}
		if !profiles[i].PointsReachedAt.Equal(profiles[j].PointsReachedAt) {
			return profiles[i].PointsReachedAt.Before(profiles[j].PointsReachedAt)
		}
		return profiles[i].UserID < profiles[j].UserID
	})
	return profiles, nil
}

func (s *GamificationService) fillRanks(ctx context.Context, profile *domain.GamificationProfile) error {
	global, err := s.ranked(ctx, ProfileFilter{Scope: domain.ScopeGlobal})
	if err != nil {
		return err
	}
	profile.Rank = rankOf(global, profile.UserID)
	profile.SchoolRank = 0
	if profile.SchoolID != "" {
		school, err := s.ranked(ctx, ProfileFilter{Scope: domain.ScopeSchool, ScopeID: profile.SchoolID})
		if err != nil {
			return err
		}
		profile.SchoolRank = rankOf(school, profile.UserID)
	}
	return nil
}

func rankOf(profiles []domain.GamificationProfile, userID string) int {
	for i, p := range profiles {
		if p.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// mutate loads (or creates) the user's profile, applies fn and stores it with a version check.
func (s *GamificationService) mutate(ctx context.Context, user domain.Identity, fn func(*domain.GamificationProfile)) (domain.GamificationProfile, error) {
	unlock := s.locks.Lock(user.UserID)
	defer unlock()

	profile, ok, err := s.profiles.GetProfile(ctx, user.UserID)
	if err != nil {
		return domain.GamificationProfile{}, err
	}
	if !ok {
		profile = newProfile(user, s.cfg.Curve)
	}
	if user.Name != "" {
		profile.UserName = user.Name
	}
	if profile.SchoolID == "" {
		profile.SchoolID = user.SchoolID
	}

	fn(&profile)

	expected := profile.Version
	profile.Version = expected + 1
	if err := s.profiles.SaveProfile(ctx, profile, expected); err != nil {
		return domain.GamificationProfile{}, err
	}
	return profile, nil
}
