package memory

import (
	"context"
	"errors"
	"testing"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

func TestProfileStoreInsertAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()
	profile := domain.GamificationProfile{UserID: "u1", SchoolID: "sch1", CourseIDs: []string{"c1"}, Version: 1}

	if err := store.SaveProfile(ctx, profile, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.SaveProfile(ctx, profile, 0); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected duplicate insert conflict, got %v", err)
	}

	profile.TotalPoints = 50
	profile.Version = 2
	if err := store.SaveProfile(ctx, profile, 1); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if err := store.SaveProfile(ctx, profile, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected stale write conflict, got %v", err)
	}

	got, ok, _ := store.GetProfile(ctx, "u1")
	if !ok || got.TotalPoints != 50 {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestProfileStoreScopes(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()
	_ = store.SaveProfile(ctx, domain.GamificationProfile{UserID: "u1", SchoolID: "sch1", CourseIDs: []string{"c1"}, Version: 1}, 0)
	_ = store.SaveProfile(ctx, domain.GamificationProfile{UserID: "u2", SchoolID: "sch2", CourseIDs: []string{"c1", "c2"}, Version: 1}, 0)

	cases := []struct {
		filter app.ProfileFilter
		want   int
	}{
		{app.ProfileFilter{Scope: domain.ScopeGlobal}, 2},
		{app.ProfileFilter{Scope: domain.ScopeSchool, ScopeID: "sch1"}, 1},
		{app.ProfileFilter{Scope: domain.ScopeCourse, ScopeID: "c1"}, 2},
		{app.ProfileFilter{Scope: domain.ScopeCourse, ScopeID: "c2"}, 1},
	}
	for _, tc := range cases {
		got, err := store.ListProfiles(ctx, tc.filter)
		if err != nil {
			t.Fatalf("list %+v: %v", tc.filter, err)
		}
		if len(got) != tc.want {
			t.Fatalf("filter %+v: expected %d, got %d", tc.filter, tc.want, len(got))
		}
	}
}
