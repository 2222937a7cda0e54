package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"

	"github.com/uptrace/bun"
)

type profileRow struct {
	bun.BaseModel `bun:"table:gamification_profiles,alias:gp"`

	UserID          string                     `bun:"user_id,pk"`
	SchoolID        string                     `bun:"school_id,notnull"`
	CourseIDs       []string                   `bun:"course_ids,array"`
	TotalPoints     int                        `bun:"total_points,notnull"`
	PointsReachedAt time.Time                  `bun:"points_reached_at,nullzero"`
	Version         int                        `bun:"version,notnull"`
	Data            domain.GamificationProfile `bun:"data,type:jsonb,notnull"`
}

func newProfileRow(p domain.GamificationProfile) *profileRow {
	courses := p.CourseIDs
	if courses == nil {
		courses = []string{}
	}
	// Ranks are computed per read and never persisted.
	p.Rank, p.SchoolRank = 0, 0
	return &profileRow{
		UserID:          p.UserID,
		SchoolID:        p.SchoolID,
		CourseIDs:       courses,
		TotalPoints:     p.TotalPoints,
		PointsReachedAt: p.PointsReachedAt,
		Version:         p.Version,
		Data:            p,
	}
}

// ProfileRepository implements app.ProfileRepository on Postgres.
type ProfileRepository struct {
	db *bun.DB
}

func NewProfileRepository(db *bun.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (domain.GamificationProfile, bool, error) {
	var row profileRow
	err := r.db.NewSelect().Model(&row).Where("gp.user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GamificationProfile{}, false, nil
	}
	if err != nil {
		return domain.GamificationProfile{}, false, storeError("get profile", err)
	}
	return row.Data, true, nil
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, profile domain.GamificationProfile, expectedVersion int) error {
	row := newProfileRow(profile)
	if expectedVersion == 0 {
		_, err := r.db.NewInsert().Model(row).Exec(ctx)
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		if err != nil {
			return storeError("insert profile", err)
		}
		return nil
	}
	res, err := r.db.NewUpdate().Model(row).
		Column("school_id", "course_ids", "total_points", "points_reached_at", "version", "data").
		WherePK().
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return storeError("update profile", err)
	}
	return checkAffected(res)
}

func (r *ProfileRepository) ListProfiles(ctx context.Context, filter app.ProfileFilter) ([]domain.GamificationProfile, error) {
	var rows []profileRow
	q := r.db.NewSelect().Model(&rows).
		OrderExpr("gp.total_points DESC, gp.points_reached_at ASC NULLS LAST, gp.user_id ASC")
	switch filter.Scope {
	case domain.ScopeSchool:
		q = q.Where("gp.school_id = ?", filter.ScopeID)
	case domain.ScopeCourse:
		q = q.Where("? = ANY(gp.course_ids)", filter.ScopeID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeError("list profiles", err)
	}
	out := make([]domain.GamificationProfile, len(rows))
	for i, row := range rows {
		out[i] = row.Data
	}
	return out, nil
}
