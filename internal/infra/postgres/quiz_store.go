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

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID        string      `bun:"id,pk"`
	TeacherID string      `bun:"teacher_id,notnull"`
	CourseID  string      `bun:"course_id,notnull"`
	SchoolID  string      `bun:"school_id,notnull"`
	Published bool        `bun:"published,notnull"`
	CreatedAt time.Time   `bun:"created_at,notnull"`
	UpdatedAt time.Time   `bun:"updated_at,notnull"`
	Data      domain.Quiz `bun:"data,type:jsonb,notnull"`
}

type scheduledQuizRow struct {
	bun.BaseModel `bun:"table:scheduled_quizzes,alias:sq"`

	ID        string    `bun:"id,pk"`
	QuizID    string    `bun:"quiz_id,notnull"`
	TeacherID string    `bun:"teacher_id,notnull"`
	CourseID  string    `bun:"course_id,notnull"`
	SchoolID  string    `bun:"school_id,notnull"`
	StartTime time.Time `bun:"start_time,notnull"`
	EndTime   time.Time `bun:"end_time,notnull"`
	IsLive    bool      `bun:"is_live,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r scheduledQuizRow) toDomain() domain.ScheduledQuiz {
	return domain.ScheduledQuiz{
		ID:        r.ID,
		QuizID:    r.QuizID,
		TeacherID: r.TeacherID,
		CourseID:  r.CourseID,
		SchoolID:  r.SchoolID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		IsLive:    r.IsLive,
		CreatedAt: r.CreatedAt,
	}
}

// QuizStore implements app.QuizStore on Postgres. Quizzes are stored as one JSONB document
// with the filterable fields copied into columns.
type QuizStore struct {
	db *bun.DB
}

func NewQuizStore(db *bun.DB) *QuizStore {
	return &QuizStore{db: db}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).Where("q.id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, storeError("load quiz", err)
	}
	return row.Data, nil
}

func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	row := &quizRow{
		ID:        quiz.ID,
		TeacherID: quiz.TeacherID,
		CourseID:  quiz.CourseID,
		SchoolID:  quiz.SchoolID,
		Published: quiz.IsPublished,
		CreatedAt: quiz.CreatedAt,
		UpdatedAt: quiz.UpdatedAt,
		Data:      quiz,
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("teacher_id = EXCLUDED.teacher_id").
		Set("course_id = EXCLUDED.course_id").
		Set("school_id = EXCLUDED.school_id").
		Set("published = EXCLUDED.published").
		Set("updated_at = EXCLUDED.updated_at").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return storeError("save quiz", err)
	}
	return nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context, filter app.QuizFilter) ([]domain.Quiz, error) {
	var rows []quizRow
	q := s.db.NewSelect().Model(&rows).OrderExpr("q.created_at DESC, q.id ASC")
	if filter.TeacherID != "" {
		q = q.Where("q.teacher_id = ?", filter.TeacherID)
	}
	if filter.CourseID != "" {
		q = q.Where("q.course_id = ?", filter.CourseID)
	}
	if filter.SchoolID != "" {
		q = q.Where("q.school_id = ?", filter.SchoolID)
	}
	if filter.PublishedOnly {
		q = q.Where("q.published")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeError("list quizzes", err)
	}
	out := make([]domain.Quiz, len(rows))
	for i, row := range rows {
		out[i] = row.Data
	}
	return out, nil
}

func (s *QuizStore) SaveScheduledQuiz(ctx context.Context, scheduled domain.ScheduledQuiz) error {
	exists, err := s.db.NewSelect().Model((*quizRow)(nil)).Where("q.id = ?", scheduled.QuizID).Exists(ctx)
	if err != nil {
		return storeError("check quiz", err)
	}
	if !exists {
		return domain.ErrQuizNotFound
	}
	row := &scheduledQuizRow{
		ID:        scheduled.ID,
		QuizID:    scheduled.QuizID,
		TeacherID: scheduled.TeacherID,
		CourseID:  scheduled.CourseID,
		SchoolID:  scheduled.SchoolID,
		StartTime: scheduled.StartTime,
		EndTime:   scheduled.EndTime,
		IsLive:    scheduled.IsLive,
		CreatedAt: scheduled.CreatedAt,
	}
	_, err = s.db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("is_live = EXCLUDED.is_live").
		Exec(ctx)
	if err != nil {
		return storeError("save scheduled quiz", err)
	}
	return nil
}

func (s *QuizStore) GetScheduledQuiz(ctx context.Context, id string) (domain.ScheduledQuiz, error) {
	var row scheduledQuizRow
	err := s.db.NewSelect().Model(&row).Where("sq.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduledQuiz{}, domain.ErrScheduledQuizNotFound
	}
	if err != nil {
		return domain.ScheduledQuiz{}, storeError("get scheduled quiz", err)
	}
	return row.toDomain(), nil
}

func (s *QuizStore) ListScheduledQuizzes(ctx context.Context, quizID string) ([]domain.ScheduledQuiz, error) {
	var rows []scheduledQuizRow
	err := s.db.NewSelect().Model(&rows).
		Where("sq.quiz_id = ?", quizID).
		OrderExpr("sq.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, storeError("list scheduled quizzes", err)
	}
	out := make([]domain.ScheduledQuiz, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
