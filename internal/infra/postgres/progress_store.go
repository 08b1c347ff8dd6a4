package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"

	"github.com/uptrace/bun"
)

type weeklyProgressRow struct {
	bun.BaseModel `bun:"table:weekly_progress,alias:wp"`

	UserID    string                `bun:"user_id,pk"`
	WeekStart time.Time             `bun:"week_start,pk"`
	Data      domain.WeeklyProgress `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time             `bun:"updated_at,notnull"`
}

type weeklySetRow struct {
	bun.BaseModel `bun:"table:weekly_sets,alias:ws"`

	WeekStart   time.Time `bun:"week_start,pk"`
	QuestionIDs []string  `bun:"question_ids,type:jsonb,notnull"`
}

// ProgressStore persists weekly challenge progress and the shared weekly set.
type ProgressStore struct {
	db *bun.DB
}

var _ app.ProgressRepository = (*ProgressStore)(nil)

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) LoadProgress(ctx context.Context, userID string, weekStart time.Time) (domain.WeeklyProgress, bool, error) {
	row := new(weeklyProgressRow)
	err := s.db.NewSelect().Model(row).
		Where("user_id = ?", userID).
		Where("week_start = ?", weekStart).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WeeklyProgress{}, false, nil
	}
	if err != nil {
		return domain.WeeklyProgress{}, false, err
	}
	return row.Data, true, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, p domain.WeeklyProgress) error {
	row := &weeklyProgressRow{UserID: p.UserID, WeekStart: p.WeekStart, Data: p, UpdatedAt: p.UpdatedAt}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (user_id, week_start) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *ProgressStore) WeeklySet(ctx context.Context, weekStart time.Time) ([]string, bool, error) {
	row := new(weeklySetRow)
	err := s.db.NewSelect().Model(row).Where("week_start = ?", weekStart).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.QuestionIDs, true, nil
}

// SaveWeeklySet keeps the first set written for a week.
func (s *ProgressStore) SaveWeeklySet(ctx context.Context, weekStart time.Time, questionIDs []string) error {
	row := &weeklySetRow{WeekStart: weekStart, QuestionIDs: questionIDs}
	_, err := s.db.NewInsert().Model(row).On("CONFLICT (week_start) DO NOTHING").Exec(ctx)
	return err
}
