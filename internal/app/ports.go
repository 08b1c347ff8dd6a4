package app

import (
	"context"
	"time"

	"trivia-bot/internal/domain"
)

// QuestionFilter narrows question selection. Zero values mean "any".
type QuestionFilter struct {
	Difficulty    domain.Difficulty
	Type          domain.QuestionType
	ExcludeRecent bool
	Exclude       []string
}

// QuestionStore owns the question catalog and its counters.
type QuestionStore interface {
	SelectQuestion(ctx context.Context, filter QuestionFilter) (domain.Question, error)
	Get(ctx context.Context, id string) (domain.Question, error)
	RecordOutcome(ctx context.Context, questionID string, correct bool)
	AddCustomQuestion(ctx context.Context, rec domain.QuestionRecord) (domain.Question, error)
	Stats(ctx context.Context) (domain.QuestionStats, error)
}

// ProfileRepository persists user profiles. Update must run fn atomically
// (row lock or equivalent) against the stored profile, creating it if absent.
type ProfileRepository interface {
	GetOrCreate(ctx context.Context, userID string, now time.Time) (domain.UserProfile, error)
	Update(ctx context.Context, userID string, now time.Time, fn func(*domain.UserProfile)) (domain.UserProfile, error)
	List(ctx context.Context) ([]domain.UserProfile, error)
}

// AchievementRepository stores unlocks under a unique (user, achievement) key.
// Unlock reports false when the pair already existed.
type AchievementRepository interface {
	Unlock(ctx context.Context, ua domain.UserAchievement) (bool, error)
	ListAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error)
}

// RankingRepository is the weekly/monthly points ledger. AddPoints adds a delta
// to the (user, period, period start) row.
type RankingRepository interface {
	AddPoints(ctx context.Context, entry domain.RankingEntry) error
	Entries(ctx context.Context, period domain.Period, start time.Time) ([]domain.RankingEntry, error)
}

// ProgressRepository persists weekly challenge state between sessions.
type ProgressRepository interface {
	LoadProgress(ctx context.Context, userID string, weekStart time.Time) (domain.WeeklyProgress, bool, error)
	SaveProgress(ctx context.Context, p domain.WeeklyProgress) error
	WeeklySet(ctx context.Context, weekStart time.Time) ([]string, bool, error)
	SaveWeeklySet(ctx context.Context, weekStart time.Time, questionIDs []string) error
}

// Presenter is the outbound surface towards the chat platform. Implementations
// return domain.ErrChannelInaccessible when the bot can no longer post.
type Presenter interface {
	PostQuestion(ctx context.Context, prompt domain.QuestionPrompt) error
	PostResult(ctx context.Context, outcome domain.Outcome) error
	PostAchievementUnlock(ctx context.Context, channelID string, unlocked domain.UnlockedAchievement) error
	PostLeaderboard(ctx context.Context, channelID string, board domain.Leaderboard) error
	PostNotice(ctx context.Context, channelID, userID, text string) error
}
