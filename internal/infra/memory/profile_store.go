package memory

import (
	"context"
	"sync"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileRepository.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.GamificationProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.GamificationProfile)}
}

func (s *ProfileStore) GetProfile(_ context.Context, userID string) (domain.GamificationProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.GamificationProfile{}, false, nil
	}
	return cloneProfile(p), true, nil
}

func (s *ProfileStore) SaveProfile(_ context.Context, profile domain.GamificationProfile, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.profiles[profile.UserID]
	switch {
	case expectedVersion == 0 && ok:
		return domain.ErrVersionConflict
	case expectedVersion != 0 && (!ok || stored.Version != expectedVersion):
		return domain.ErrVersionConflict
	}
	s.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

func (s *ProfileStore) ListProfiles(_ context.Context, filter app.ProfileFilter) ([]domain.GamificationProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GamificationProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		switch filter.Scope {
		case domain.ScopeSchool:
			if p.SchoolID != filter.ScopeID {
				continue
			}
		case domain.ScopeCourse:
			if !hasCourse(p, filter.ScopeID) {
				continue
			}
		}
		out = append(out, cloneProfile(p))
	}
	return out, nil
}

func hasCourse(p domain.GamificationProfile, courseID string) bool {
	for _, id := range p.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

func cloneProfile(p domain.GamificationProfile) domain.GamificationProfile {
	p.CourseIDs = append([]string(nil), p.CourseIDs...)
	p.Badges = append([]domain.Badge(nil), p.Badges...)
	p.Achievements = append([]domain.Achievement(nil), p.Achievements...)
	return p
}
