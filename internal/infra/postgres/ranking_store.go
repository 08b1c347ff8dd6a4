package postgres

import (
	"context"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"

	"github.com/uptrace/bun"
)

type periodPointsRow struct {
	bun.BaseModel `bun:"table:period_points,alias:pp"`

	Period      string    `bun:"period,pk"`
	PeriodStart time.Time `bun:"period_start,pk"`
	UserID      string    `bun:"user_id,pk"`
	Points      int       `bun:"points,notnull,default:0"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// RankingStore is the weekly/monthly points ledger in period_points.
type RankingStore struct {
	db *bun.DB
}

var _ app.RankingRepository = (*RankingStore)(nil)

func NewRankingStore(db *bun.DB) *RankingStore {
	return &RankingStore{db: db}
}

func (s *RankingStore) AddPoints(ctx context.Context, e domain.RankingEntry) error {
	row := &periodPointsRow{
		Period:      string(e.Period),
		PeriodStart: e.PeriodStart,
		UserID:      e.UserID,
		Points:      e.Points,
		UpdatedAt:   e.UpdatedAt,
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (period, period_start, user_id) DO UPDATE").
		Set("points = pp.points + EXCLUDED.points").
		Set("updated_at = GREATEST(pp.updated_at, EXCLUDED.updated_at)").
		Exec(ctx)
	return err
}

func (s *RankingStore) Entries(ctx context.Context, period domain.Period, start time.Time) ([]domain.RankingEntry, error) {
	var rows []periodPointsRow
	err := s.db.NewSelect().Model(&rows).
		Where("period = ?", string(period)).
		Where("period_start = ?", start).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RankingEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.RankingEntry{
			UserID:      r.UserID,
			Period:      domain.Period(r.Period),
			PeriodStart: start,
			Points:      r.Points,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out, nil
}
