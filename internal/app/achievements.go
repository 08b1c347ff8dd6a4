package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"
)

// maxEvaluationRounds bounds cascading unlocks (bonus credit crossing a points threshold).
const maxEvaluationRounds = 4

// AchievementEvaluator checks profiles against the declarative catalog.
type AchievementEvaluator struct {
	catalog []domain.Achievement
	byID    map[string]domain.Achievement
	repo    AchievementRepository
	stats   *Statistics
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
}

func NewAchievementEvaluator(catalog []domain.Achievement, repo AchievementRepository, stats *Statistics, log *logger.Logger) *AchievementEvaluator {
	byID := make(map[string]domain.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}
	return &AchievementEvaluator{
		catalog: catalog,
		byID:    byID,
		repo:    repo,
		stats:   stats,
		timeout: stats.timeout,
		now:     stats.now,
		log:     log.With("component", "achievements"),
	}
}

// Catalog returns the achievement definitions in catalog order.
func (e *AchievementEvaluator) Catalog() []domain.Achievement {
	return e.catalog
}

// Evaluate inserts every newly satisfied achievement and returns the fresh unlocks.
// Already-unlocked achievements are never returned twice.
func (e *AchievementEvaluator) Evaluate(ctx context.Context, profile domain.UserProfile, event domain.Event) ([]domain.UnlockedAchievement, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	owned, err := e.repo.ListAchievements(cctx, profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: list achievements: %v", domain.ErrStatisticsUnavailable, err)
	}
	have := make(map[string]struct{}, len(owned))
	for _, ua := range owned {
		have[ua.AchievementID] = struct{}{}
	}

	var unlocked []domain.UnlockedAchievement
	for _, def := range e.catalog {
		if _, ok := have[def.ID]; ok {
			continue
		}
		if !Satisfied(def.Requirement, profile, event) {
			continue
		}
		at := e.now()
		inserted, err := e.repo.Unlock(cctx, domain.UserAchievement{UserID: profile.UserID, AchievementID: def.ID, UnlockedAt: at})
		if err != nil {
			return unlocked, fmt.Errorf("%w: unlock %s: %v", domain.ErrStatisticsUnavailable, def.ID, err)
		}
		if !inserted {
			continue
		}
		unlocked = append(unlocked, domain.UnlockedAchievement{Achievement: def, UserID: profile.UserID, UnlockedAt: at})
	}
	return unlocked, nil
}

// Process evaluates, credits rewards through the statistics store and repeats
// while the credits unlock further achievements. It returns all unlocks and the
// latest known profile.
func (e *AchievementEvaluator) Process(ctx context.Context, profile domain.UserProfile, event domain.Event) ([]domain.UnlockedAchievement, domain.UserProfile, error) {
	var all []domain.UnlockedAchievement
	for round := 0; round < maxEvaluationRounds; round++ {
		unlocked, err := e.Evaluate(ctx, profile, event)
		all = append(all, unlocked...)
		if err != nil {
			return all, profile, err
		}
		if len(unlocked) == 0 {
			return all, profile, nil
		}

		bonus := 0
		for _, u := range unlocked {
			bonus += u.Reward
			e.log.Info("achievement unlocked", "user_id", profile.UserID, "achievement", u.ID, "reward", u.Reward)
		}
		if bonus == 0 {
			return all, profile, nil
		}
		updated, err := e.stats.Credit(ctx, profile.UserID, bonus, "achievements")
		if err != nil {
			return all, profile, err
		}
		profile = updated
		event = domain.Event{Type: domain.EventCredit, Value: bonus}
	}
	return all, profile, nil
}

// List returns a user's unlocked achievements with their definitions.
func (e *AchievementEvaluator) List(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	owned, err := e.repo.ListAchievements(cctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStatisticsUnavailable, err)
	}
	out := make([]domain.UnlockedAchievement, 0, len(owned))
	for _, ua := range owned {
		def, ok := e.byID[ua.AchievementID]
		if !ok {
			def = domain.Achievement{ID: ua.AchievementID, Name: ua.AchievementID}
		}
		out = append(out, domain.UnlockedAchievement{Achievement: def, UserID: userID, UnlockedAt: ua.UnlockedAt})
	}
	return out, nil
}

// LockedProgress reports the progress toward every achievement the user has not
// unlocked yet, in catalog order.
func (e *AchievementEvaluator) LockedProgress(ctx context.Context, userID string) ([]domain.AchievementProgress, error) {
	owned, err := e.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := e.stats.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]struct{}, len(owned))
	for _, a := range owned {
		have[a.ID] = struct{}{}
	}
	out := make([]domain.AchievementProgress, 0, len(e.catalog))
	for _, def := range e.catalog {
		if _, ok := have[def.ID]; ok {
			continue
		}
		current, required := Progress(def.Requirement, profile)
		ap := domain.AchievementProgress{Achievement: def, Current: current, Required: required}
		if required > 0 {
			ap.Percent = math.Min(100, float64(current)*100/float64(required))
		}
		out = append(out, ap)
	}
	return out, nil
}

// Progress returns the current and required values of a requirement, read from
// the same profile fields Satisfied checks. An accuracy requirement reports the
// answered-question count until its minimum volume is reached. Weekly score
// requirements depend on a single completion and report zero progress.
func Progress(r domain.Requirement, p domain.UserProfile) (current, required int) {
	switch r.Kind {
	case domain.RequireStreak:
		return p.CurrentStreak, r.Value
	case domain.RequireDailyStreak:
		return p.PlayStreakDays, r.Value
	case domain.RequireTotalPoints:
		return p.TotalPoints, r.Value
	case domain.RequireTotalQuestions:
		return p.QuestionsAnswered, r.Value
	case domain.RequireAccuracy:
		if p.QuestionsAnswered < r.MinQuestions {
			return p.QuestionsAnswered, r.MinQuestions
		}
		return int(p.Accuracy()), r.Value
	case domain.RequireDifficultyCorrect:
		return p.CorrectFor(r.Difficulty), r.Value
	case domain.RequireChallengeCompletion:
		switch r.Challenge {
		case domain.KindDaily:
			return p.DailyChallengesCompleted, r.Value
		case domain.KindWeekly:
			return p.WeeklyChallengesCompleted, r.Value
		}
	}
	return 0, r.Value
}

// Satisfied evaluates a requirement against a profile and the triggering event.
func Satisfied(r domain.Requirement, p domain.UserProfile, event domain.Event) bool {
	switch r.Kind {
	case domain.RequireStreak:
		return p.CurrentStreak >= r.Value
	case domain.RequireDailyStreak:
		return p.PlayStreakDays >= r.Value
	case domain.RequireTotalPoints:
		return p.TotalPoints >= r.Value
	case domain.RequireTotalQuestions:
		return p.QuestionsAnswered >= r.Value
	case domain.RequireAccuracy:
		return p.QuestionsAnswered >= r.MinQuestions && p.QuestionsAnswered > 0 && p.Accuracy() >= float64(r.Value)
	case domain.RequireDifficultyCorrect:
		return p.CorrectFor(r.Difficulty) >= r.Value
	case domain.RequireChallengeCompletion:
		switch r.Challenge {
		case domain.KindDaily:
			return p.DailyChallengesCompleted >= r.Value
		case domain.KindWeekly:
			return p.WeeklyChallengesCompleted >= r.Value
		}
	case domain.RequireWeeklyScore:
		return event.Type == domain.EventWeeklyChallenge && event.Value == r.Value
	}
	return false
}
