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

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID        string             `bun:"id,pk"`
	QuizID    string             `bun:"quiz_id,notnull"`
	StudentID string             `bun:"student_id,notnull"`
	Status    string             `bun:"status,notnull"`
	StartedAt time.Time          `bun:"started_at,notnull"`
	Version   int                `bun:"version,notnull"`
	Data      domain.QuizAttempt `bun:"data,type:jsonb,notnull"`
}

func newAttemptRow(attempt domain.QuizAttempt) *attemptRow {
	return &attemptRow{
		ID:        attempt.ID,
		QuizID:    attempt.QuizID,
		StudentID: attempt.StudentID,
		Status:    string(attempt.Status),
		StartedAt: attempt.StartedAt,
		Version:   attempt.Version,
		Data:      attempt,
	}
}

// AttemptRepository implements app.AttemptRepository with a version column for
// compare-and-swap updates.
type AttemptRepository struct {
	db *bun.DB
}

func NewAttemptRepository(db *bun.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	_, err := r.db.NewInsert().Model(newAttemptRow(attempt)).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrVersionConflict
	}
	if err != nil {
		return storeError("create attempt", err)
	}
	return nil
}

func (r *AttemptRepository) GetAttempt(ctx context.Context, id string) (domain.QuizAttempt, bool, error) {
	var row attemptRow
	err := r.db.NewSelect().Model(&row).Where("a.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizAttempt{}, false, nil
	}
	if err != nil {
		return domain.QuizAttempt{}, false, storeError("get attempt", err)
	}
	return row.Data, true, nil
}

func (r *AttemptRepository) UpdateAttempt(ctx context.Context, attempt domain.QuizAttempt, expectedVersion int) error {
	res, err := r.db.NewUpdate().Model(newAttemptRow(attempt)).
		Column("status", "version", "data").
		WherePK().
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return storeError("update attempt", err)
	}
	if err := checkAffected(res); err != nil {
		if !errors.Is(err, domain.ErrVersionConflict) {
			return storeError("update attempt", err)
		}
		exists, existsErr := r.db.NewSelect().Model((*attemptRow)(nil)).Where("a.id = ?", attempt.ID).Exists(ctx)
		if existsErr == nil && !exists {
			return domain.ErrAttemptNotFound
		}
		return err
	}
	return nil
}

func (r *AttemptRepository) ListAttempts(ctx context.Context, filter app.AttemptFilter) ([]domain.QuizAttempt, error) {
	var rows []attemptRow
	q := r.db.NewSelect().Model(&rows).OrderExpr("a.started_at DESC, a.id ASC")
	if filter.QuizID != "" {
		q = q.Where("a.quiz_id = ?", filter.QuizID)
	}
	if filter.StudentID != "" {
		q = q.Where("a.student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		q = q.Where("a.status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeError("list attempts", err)
	}
	out := make([]domain.QuizAttempt, len(rows))
	for i, row := range rows {
		out[i] = row.Data
	}
	return out, nil
}
