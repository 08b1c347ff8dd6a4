package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"
	"trivia-bot/internal/logger"
)

func TestWeekStartIsMonday(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	sunday := time.Date(2024, 3, 10, 23, 59, 59, 0, loc)
	got := app.WeekStart(sunday, loc)
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if next := app.NextPeriodStart(domain.PeriodWeekly, sunday, loc); !next.Equal(want.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected next week %v", next)
	}
	if m := app.MonthStart(sunday, loc); m.Day() != 1 || m.Month() != time.March {
		t.Fatalf("unexpected month start %v", m)
	}
}

func TestLeaderboardWeeklyRollover(t *testing.T) {
	ctx := context.Background()
	lastSecond := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	now := lastSecond
	board, stats := newBoard(func() time.Time { return now })

	if _, err := stats.ApplyAnswerOutcome(ctx, "u1", true, 30, domain.DifficultyHard); err != nil {
		t.Fatalf("apply: %v", err)
	}
	now = lastSecond.Add(time.Second)
	if _, err := stats.ApplyAnswerOutcome(ctx, "u2", true, 10, domain.DifficultyEasy); err != nil {
		t.Fatalf("apply: %v", err)
	}

	thisWeek := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	old, err := board.GetTopAt(ctx, domain.PeriodWeekly, thisWeek, 10)
	if err != nil {
		t.Fatalf("get top: %v", err)
	}
	if len(old.Entries) != 1 || old.Entries[0].UserID != "u1" || old.Entries[0].Points != 30 {
		t.Fatalf("expected only u1 in the old week, got %+v", old.Entries)
	}

	current, err := board.GetTop(ctx, domain.PeriodWeekly, 10)
	if err != nil {
		t.Fatalf("get top: %v", err)
	}
	if len(current.Entries) != 1 || current.Entries[0].UserID != "u2" {
		t.Fatalf("expected only u2 in the new week, got %+v", current.Entries)
	}

	all, _ := board.GetTop(ctx, domain.PeriodAll, 10)
	if len(all.Entries) != 2 || all.Entries[0].UserID != "u1" {
		t.Fatalf("expected both users all-time with u1 first, got %+v", all.Entries)
	}
}

func TestLeaderboardTieBreakAndRank(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	board, stats := newBoard(func() time.Time { return now })

	now = now.Add(time.Minute)
	_, _ = stats.ApplyAnswerOutcome(ctx, "early", true, 20, domain.DifficultyMedium)
	now = now.Add(time.Minute)
	_, _ = stats.ApplyAnswerOutcome(ctx, "late", true, 20, domain.DifficultyMedium)
	now = now.Add(time.Minute)
	_, _ = stats.ApplyAnswerOutcome(ctx, "top", true, 30, domain.DifficultyHard)
	_, _ = stats.ApplyAnswerOutcome(ctx, "zero", false, 0, domain.DifficultyHard)

	top, err := board.GetTop(ctx, domain.PeriodMonthly, 2)
	if err != nil {
		t.Fatalf("get top: %v", err)
	}
	if top.Participants != 3 || len(top.Entries) != 2 {
		t.Fatalf("expected 3 participants limited to 2 rows, got %+v", top)
	}
	if top.Entries[0].UserID != "top" || top.Entries[1].UserID != "early" {
		t.Fatalf("unexpected order %+v", top.Entries)
	}

	rank, err := board.GetUserRank(ctx, "late", domain.PeriodMonthly)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank.Rank != 3 || rank.TotalParticipants != 3 {
		t.Fatalf("expected late at 3/3, got %+v", rank)
	}
	if rank, _ := board.GetUserRank(ctx, "nobody", domain.PeriodWeekly); rank.Rank != 0 {
		t.Fatalf("expected unranked user, got %+v", rank)
	}
	if _, err := board.GetTop(ctx, domain.Period("daily"), 10); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestLeaderboardIncludesBonusCredits(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	board, stats := newBoard(func() time.Time { return now })

	_, _ = stats.ApplyAnswerOutcome(ctx, "u1", true, 10, domain.DifficultyEasy)
	_, _ = stats.Credit(ctx, "u1", 50, "achievements")

	rank, err := board.GetUserRank(ctx, "u1", domain.PeriodWeekly)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank.Points != 60 {
		t.Fatalf("expected 60 weekly points, got %d", rank.Points)
	}
}

func newBoard(now func() time.Time) (*app.Leaderboard, *app.Statistics) {
	profiles := memory.NewProfileStore()
	cfg := app.StatisticsConfig{Location: time.UTC, Timeout: time.Second, Now: now}
	board := app.NewLeaderboard(profiles, memory.NewRankingStore(), cfg, logger.Nop())
	return board, app.NewStatistics(profiles, board, cfg, logger.Nop())
}

func TestLeaderboardMonthlyRollover(t *testing.T) {
	ctx := context.Background()
	lastSecond := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	now := lastSecond
	board, stats := newBoard(func() time.Time { return now })

	if _, err := stats.ApplyAnswerOutcome(ctx, "u1", true, 30, domain.DifficultyHard); err != nil {
		t.Fatalf("apply: %v", err)
	}
	now = lastSecond.Add(time.Second)
	if _, err := stats.ApplyAnswerOutcome(ctx, "u2", true, 10, domain.DifficultyEasy); err != nil {
		t.Fatalf("apply: %v", err)
	}

	february := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	old, err := board.GetTopAt(ctx, domain.PeriodMonthly, february, 10)
	if err != nil {
		t.Fatalf("get top: %v", err)
	}
	if len(old.Entries) != 1 || old.Entries[0].UserID != "u1" || old.Entries[0].Points != 30 {
		t.Fatalf("expected only u1 in February, got %+v", old.Entries)
	}

	current, err := board.GetTop(ctx, domain.PeriodMonthly, 10)
	if err != nil {
		t.Fatalf("get top: %v", err)
	}
	if !current.PeriodStart.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month start %v", current.PeriodStart)
	}
	if len(current.Entries) != 1 || current.Entries[0].UserID != "u2" || current.Entries[0].Points != 10 {
		t.Fatalf("expected March to start from zero with only u2, got %+v", current.Entries)
	}
	rank, err := board.GetUserRank(ctx, "u1", domain.PeriodMonthly)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank.Rank != 0 || rank.Points != 0 {
		t.Fatalf("expected u1 unranked in March, got %+v", rank)
	}
}

func TestLeaderboardNearby(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	board, stats := newBoard(func() time.Time { return now })

	for i, user := range []string{"u1", "u2", "u3", "u4", "u5"} {
		if _, err := stats.ApplyAnswerOutcome(ctx, user, true, 50-10*i, domain.DifficultyHard); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	around, err := board.Nearby(ctx, "u3", domain.PeriodAll, 1)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(around) != 3 || around[0].UserID != "u2" || around[1].UserID != "u3" || around[2].UserID != "u4" {
		t.Fatalf("expected u2..u4, got %+v", around)
	}
	top, _ := board.Nearby(ctx, "u1", domain.PeriodWeekly, 2)
	if len(top) != 3 || top[0].Rank != 1 || top[2].UserID != "u3" {
		t.Fatalf("expected the window clipped at the top, got %+v", top)
	}
	if none, _ := board.Nearby(ctx, "nobody", domain.PeriodAll, 3); len(none) != 0 {
		t.Fatalf("expected nothing for an unranked user, got %+v", none)
	}
}

func TestWeeklyRankChange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	board, stats := newBoard(func() time.Time { return now })

	_, _ = stats.ApplyAnswerOutcome(ctx, "u1", true, 30, domain.DifficultyHard)
	_, _ = stats.ApplyAnswerOutcome(ctx, "u2", true, 10, domain.DifficultyEasy)

	now = now.AddDate(0, 0, 7)
	_, _ = stats.ApplyAnswerOutcome(ctx, "u2", true, 30, domain.DifficultyHard)
	_, _ = stats.ApplyAnswerOutcome(ctx, "u1", true, 10, domain.DifficultyEasy)
	_, _ = stats.ApplyAnswerOutcome(ctx, "u3", true, 20, domain.DifficultyMedium)

	change, ok, err := board.WeeklyRankChange(ctx, "u2")
	if err != nil {
		t.Fatalf("rank change: %v", err)
	}
	if !ok || change.Previous != 2 || change.Current != 1 || change.Delta != 1 {
		t.Fatalf("expected u2 up one place, got %+v ok=%v", change, ok)
	}
	change, ok, _ = board.WeeklyRankChange(ctx, "u1")
	if !ok || change.Previous != 1 || change.Current != 3 || change.Delta != -2 {
		t.Fatalf("expected u1 down two places, got %+v ok=%v", change, ok)
	}
	if _, ok, _ := board.WeeklyRankChange(ctx, "u3"); ok {
		t.Fatalf("expected no change for a user new this week")
	}
}
