package postgres

import (
	"context"
	"database/sql"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"

	"github.com/uptrace/bun"
)

type profileRow struct {
	bun.BaseModel `bun:"table:user_profiles"`

	UserID                    string     `bun:"user_id,pk"`
	TotalPoints               int        `bun:"total_points,notnull"`
	QuestionsAnswered         int        `bun:"questions_answered,notnull"`
	QuestionsCorrect          int        `bun:"questions_correct,notnull"`
	CurrentStreak             int        `bun:"current_streak,notnull"`
	BestStreak                int        `bun:"best_streak,notnull"`
	PlayStreakDays            int        `bun:"play_streak_days,notnull"`
	EasyCorrect               int        `bun:"easy_correct,notnull"`
	MediumCorrect             int        `bun:"medium_correct,notnull"`
	HardCorrect               int        `bun:"hard_correct,notnull"`
	DailyChallengesCompleted  int        `bun:"daily_challenges_completed,notnull"`
	WeeklyChallengesCompleted int        `bun:"weekly_challenges_completed,notnull"`
	LastPlayed                time.Time  `bun:"last_played,nullzero"`
	DailyChallengeCompleted   *time.Time `bun:"daily_challenge_completed"`
	WeeklyChallengeCompleted  *time.Time `bun:"weekly_challenge_completed"`
	PreferredDifficulty       string     `bun:"preferred_difficulty,nullzero"`
	CreatedAt                 time.Time  `bun:"created_at,notnull"`
}

func (r profileRow) profile() domain.UserProfile {
	return domain.UserProfile{
		UserID:                    r.UserID,
		TotalPoints:               r.TotalPoints,
		QuestionsAnswered:         r.QuestionsAnswered,
		QuestionsCorrect:          r.QuestionsCorrect,
		CurrentStreak:             r.CurrentStreak,
		BestStreak:                r.BestStreak,
		PlayStreakDays:            r.PlayStreakDays,
		EasyCorrect:               r.EasyCorrect,
		MediumCorrect:             r.MediumCorrect,
		HardCorrect:               r.HardCorrect,
		DailyChallengesCompleted:  r.DailyChallengesCompleted,
		WeeklyChallengesCompleted: r.WeeklyChallengesCompleted,
		LastPlayed:                r.LastPlayed,
		DailyChallengeCompleted:   r.DailyChallengeCompleted,
		WeeklyChallengeCompleted:  r.WeeklyChallengeCompleted,
		PreferredDifficulty:       domain.Difficulty(r.PreferredDifficulty),
		CreatedAt:                 r.CreatedAt,
	}
}

func rowFromProfile(p domain.UserProfile) *profileRow {
	return &profileRow{
		UserID:                    p.UserID,
		TotalPoints:               p.TotalPoints,
		QuestionsAnswered:         p.QuestionsAnswered,
		QuestionsCorrect:          p.QuestionsCorrect,
		CurrentStreak:             p.CurrentStreak,
		BestStreak:                p.BestStreak,
		PlayStreakDays:            p.PlayStreakDays,
		EasyCorrect:               p.EasyCorrect,
		MediumCorrect:             p.MediumCorrect,
		HardCorrect:               p.HardCorrect,
		DailyChallengesCompleted:  p.DailyChallengesCompleted,
		WeeklyChallengesCompleted: p.WeeklyChallengesCompleted,
		LastPlayed:                p.LastPlayed,
		DailyChallengeCompleted:   p.DailyChallengeCompleted,
		WeeklyChallengeCompleted:  p.WeeklyChallengeCompleted,
		PreferredDifficulty:       string(p.PreferredDifficulty),
		CreatedAt:                 p.CreatedAt,
	}
}

type achievementRow struct {
	bun.BaseModel `bun:"table:user_achievements"`

	UserID        string    `bun:"user_id,pk"`
	AchievementID string    `bun:"achievement_id,pk"`
	UnlockedAt    time.Time `bun:"unlocked_at,notnull"`
}

// ProfileStore persists user profiles and achievement unlocks with bun.
type ProfileStore struct {
	db *bun.DB
}

var (
	_ app.ProfileRepository     = (*ProfileStore)(nil)
	_ app.AchievementRepository = (*ProfileStore)(nil)
)

func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) GetOrCreate(ctx context.Context, userID string, now time.Time) (domain.UserProfile, error) {
	if err := ensureProfile(ctx, s.db, userID, now); err != nil {
		return domain.UserProfile{}, err
	}
	row := new(profileRow)
	if err := s.db.NewSelect().Model(row).Where("user_id = ?", userID).Scan(ctx); err != nil {
		return domain.UserProfile{}, err
	}
	return row.profile(), nil
}

// Update runs fn against the row locked with SELECT ... FOR UPDATE.
func (s *ProfileStore) Update(ctx context.Context, userID string, now time.Time, fn func(*domain.UserProfile)) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureProfile(ctx, tx, userID, now); err != nil {
			return err
		}
		row := new(profileRow)
		if err := tx.NewSelect().Model(row).Where("user_id = ?", userID).For("UPDATE").Scan(ctx); err != nil {
			return err
		}
		p := row.profile()
		fn(&p)
		p.UserID = userID
		if _, err := tx.NewUpdate().Model(rowFromProfile(p)).WherePK().Exec(ctx); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *ProfileStore) List(ctx context.Context) ([]domain.UserProfile, error) {
	var rows []profileRow
	if err := s.db.NewSelect().Model(&rows).Order("user_id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.UserProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.profile())
	}
	return out, nil
}

func (s *ProfileStore) Unlock(ctx context.Context, ua domain.UserAchievement) (bool, error) {
	row := &achievementRow{UserID: ua.UserID, AchievementID: ua.AchievementID, UnlockedAt: ua.UnlockedAt}
	res, err := s.db.NewInsert().Model(row).On("CONFLICT (user_id, achievement_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *ProfileStore) ListAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	var rows []achievementRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC", "achievement_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserAchievement, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.UserAchievement{UserID: r.UserID, AchievementID: r.AchievementID, UnlockedAt: r.UnlockedAt})
	}
	return out, nil
}

func ensureProfile(ctx context.Context, db bun.IDB, userID string, now time.Time) error {
	row := &profileRow{UserID: userID, CreatedAt: now}
	_, err := db.NewInsert().Model(row).On("CONFLICT (user_id) DO NOTHING").Exec(ctx)
	return err
}
