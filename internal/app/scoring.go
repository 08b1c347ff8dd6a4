package app

import "trivia-bot/internal/domain"

// PointsFor returns the base award for a difficulty (easy=10, medium=20, hard=30).
func PointsFor(d domain.Difficulty) int {
	return d.Points()
}

// MultiplierFor returns the challenge multiplier: normal=1, daily=2, weekly=3.
func MultiplierFor(kind domain.ChallengeKind) int {
	switch kind {
	case domain.KindDaily:
		return 2
	case domain.KindWeekly:
		return 3
	}
	return 1
}

// ComputeAward scales base points by the challenge multiplier. The streak before
// the answer does not change the award; streak rewards are credited separately
// by the achievement evaluator.
func ComputeAward(base, _, multiplier int) int {
	if base <= 0 || multiplier <= 0 {
		return 0
	}
	return base * multiplier
}

// NextStreak advances or resets a correct-answer streak.
func NextStreak(current int, correct bool) int {
	if !correct {
		return 0
	}
	return current + 1
}

// UpdateBestStreak keeps the high-water mark.
func UpdateBestStreak(best, current int) int {
	if current > best {
		return current
	}
	return best
}

// WeeklyBadgeFor maps a weekly challenge score to its tier badge id, or "" below 3/5.
func WeeklyBadgeFor(correct int) string {
	switch {
	case correct >= 5:
		return "weekly_perfect"
	case correct == 4:
		return "weekly_excellent"
	case correct == 3:
		return "weekly_good"
	}
	return ""
}
