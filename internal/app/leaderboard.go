package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"
)

// Leaderboard derives ranked views from profiles (all-time) and the period
// ledger (weekly, monthly). Reads tolerate in-flight writes.
type Leaderboard struct {
	profiles ProfileRepository
	ledger   RankingRepository
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	log      *logger.Logger
}

func NewLeaderboard(profiles ProfileRepository, ledger RankingRepository, cfg StatisticsConfig, log *logger.Logger) *Leaderboard {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Leaderboard{
		profiles: profiles,
		ledger:   ledger,
		loc:      cfg.Location,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		log:      log.With("component", "leaderboard"),
	}
}

// Record adds points to the weekly and monthly buckets containing at.
func (l *Leaderboard) Record(ctx context.Context, userID string, points int, at time.Time) error {
	for _, period := range []domain.Period{domain.PeriodWeekly, domain.PeriodMonthly} {
		err := l.ledger.AddPoints(ctx, domain.RankingEntry{
			UserID:      userID,
			Period:      period,
			PeriodStart: PeriodStart(period, at, l.loc),
			Points:      points,
			UpdatedAt:   at,
		})
		if err != nil {
			return fmt.Errorf("record %s points: %w", period, err)
		}
	}
	return nil
}

// PeriodStart returns the start of the current period.
func (l *Leaderboard) PeriodStart(period domain.Period) time.Time {
	return PeriodStart(period, l.now(), l.loc)
}

// GetTop returns the top entries of the current period.
func (l *Leaderboard) GetTop(ctx context.Context, period domain.Period, limit int) (domain.Leaderboard, error) {
	return l.GetTopAt(ctx, period, l.PeriodStart(period), limit)
}

// GetTopAt returns the top entries for a specific (possibly historical) period.
func (l *Leaderboard) GetTopAt(ctx context.Context, period domain.Period, start time.Time, limit int) (domain.Leaderboard, error) {
	entries, err := l.ranked(ctx, period, start)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	total := len(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return domain.Leaderboard{
		Period:       period,
		PeriodStart:  start,
		Entries:      entries,
		Participants: total,
		GeneratedAt:  l.now(),
	}, nil
}

// GetUserRank returns the user's rank in the current period; Rank is 0 when the
// user has no entry.
func (l *Leaderboard) GetUserRank(ctx context.Context, userID string, period domain.Period) (domain.UserRank, error) {
	entries, err := l.ranked(ctx, period, l.PeriodStart(period))
	if err != nil {
		return domain.UserRank{}, err
	}
	rank := domain.UserRank{UserID: userID, Period: period, TotalParticipants: len(entries)}
	for _, e := range entries {
		if e.UserID == userID {
			rank.Rank = e.Rank
			rank.Points = e.Points
			break
		}
	}
	return rank, nil
}

// Nearby returns the entries ranked within n places of the user in the current
// period, the user included. It is empty when the user is unranked.
func (l *Leaderboard) Nearby(ctx context.Context, userID string, period domain.Period, n int) ([]domain.LeaderboardEntry, error) {
	entries, err := l.ranked(ctx, period, l.PeriodStart(period))
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	for i, e := range entries {
		if e.UserID != userID {
			continue
		}
		lo, hi := i-n, i+n+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(entries) {
			hi = len(entries)
		}
		return entries[lo:hi], nil
	}
	return nil, nil
}

// WeeklyRankChange compares the user's rank this week with last week. ok is
// false when the user is unranked in either week.
func (l *Leaderboard) WeeklyRankChange(ctx context.Context, userID string) (domain.RankChange, bool, error) {
	start := l.PeriodStart(domain.PeriodWeekly)
	current, err := l.GetTopAt(ctx, domain.PeriodWeekly, start, 0)
	if err != nil {
		return domain.RankChange{}, false, err
	}
	previous, err := l.GetTopAt(ctx, domain.PeriodWeekly, start.AddDate(0, 0, -7), 0)
	if err != nil {
		return domain.RankChange{}, false, err
	}
	rc := domain.RankChange{Current: rankOf(current.Entries, userID), Previous: rankOf(previous.Entries, userID)}
	if rc.Current == 0 || rc.Previous == 0 {
		return rc, false, nil
	}
	rc.Delta = rc.Previous - rc.Current
	return rc, true, nil
}

func rankOf(entries []domain.LeaderboardEntry, userID string) int {
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}

func (l *Leaderboard) ranked(ctx context.Context, period domain.Period, start time.Time) ([]domain.LeaderboardEntry, error) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	profiles, err := l.profiles.List(cctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list profiles: %v", domain.ErrStatisticsUnavailable, err)
	}
	byUser := make(map[string]domain.UserProfile, len(profiles))
	for _, p := range profiles {
		byUser[p.UserID] = p
	}

	var entries []domain.LeaderboardEntry
	switch period {
	case domain.PeriodAll:
		for _, p := range profiles {
			if p.QuestionsAnswered == 0 && p.TotalPoints == 0 {
				continue
			}
			entries = append(entries, domain.LeaderboardEntry{
				UserID:     p.UserID,
				Points:     p.TotalPoints,
				Accuracy:   p.Accuracy(),
				LastPlayed: p.LastPlayed,
			})
		}
	case domain.PeriodWeekly, domain.PeriodMonthly:
		rows, err := l.ledger.Entries(cctx, period, start)
		if err != nil {
			return nil, fmt.Errorf("%w: ledger: %v", domain.ErrStatisticsUnavailable, err)
		}
		for _, row := range rows {
			if row.Points <= 0 {
				continue
			}
			entries = append(entries, domain.LeaderboardEntry{
				UserID:     row.UserID,
				Points:     row.Points,
				Accuracy:   byUser[row.UserID].Accuracy(),
				LastPlayed: row.UpdatedAt,
			})
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPeriod, period)
	}

	SortEntries(entries)
	return entries, nil
}

// SortEntries orders by points desc, earlier last played, then user id, and
// assigns 1-based ranks.
func SortEntries(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if !entries[i].LastPlayed.Equal(entries[j].LastPlayed) {
			return entries[i].LastPlayed.Before(entries[j].LastPlayed)
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
