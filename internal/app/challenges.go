package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"
)

// WeeklyMix is the difficulty of each weekly challenge question, in order.
var WeeklyMix = [domain.WeeklyChallengeSize]domain.Difficulty{
	domain.DifficultyEasy,
	domain.DifficultyEasy,
	domain.DifficultyMedium,
	domain.DifficultyMedium,
	domain.DifficultyHard,
}

// WeeklyAnnouncement is produced when a new weekly set is rotated in.
type WeeklyAnnouncement struct {
	WeekStart time.Time           `json:"weekStart"`
	EndsAt    time.Time           `json:"endsAt"`
	Questions int                 `json:"questions"`
	Mix       []domain.Difficulty `json:"mix"`
	MaxPoints int                 `json:"maxPoints"`
}

// ChallengeScheduler decides daily/weekly eligibility and picks challenge content.
type ChallengeScheduler struct {
	stats     *Statistics
	questions QuestionStore
	progress  ProgressRepository
	loc       *time.Location
	timeout   time.Duration
	now       func() time.Time
	log       *logger.Logger

	mu     sync.Mutex
	daily  map[string]string
	weekly map[string][]string
}

func NewChallengeScheduler(stats *Statistics, questions QuestionStore, progress ProgressRepository, log *logger.Logger) *ChallengeScheduler {
	return &ChallengeScheduler{
		stats:     stats,
		questions: questions,
		progress:  progress,
		loc:       stats.loc,
		timeout:   stats.timeout,
		now:       stats.now,
		log:       log.With("component", "challenges"),
		daily:     make(map[string]string),
		weekly:    make(map[string][]string),
	}
}

// MultiplierFor returns the point multiplier of a challenge kind.
func (c *ChallengeScheduler) MultiplierFor(kind domain.ChallengeKind) int {
	return MultiplierFor(kind)
}

// Today returns the start of the current challenge day.
func (c *ChallengeScheduler) Today() time.Time {
	return DayStart(c.now(), c.loc)
}

// CurrentWeek returns Monday 00:00 of the current challenge week.
func (c *ChallengeScheduler) CurrentWeek() time.Time {
	return WeekStart(c.now(), c.loc)
}

// IsDailyEligible is true unless the user already completed the daily challenge on today.
func (c *ChallengeScheduler) IsDailyEligible(ctx context.Context, userID string, today time.Time) (bool, error) {
	p, err := c.stats.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	return p.DailyChallengeCompleted == nil || !sameDay(*p.DailyChallengeCompleted, today, c.loc), nil
}

// IsWeeklyEligible is true unless the user completed the weekly challenge in the week starting at weekStart.
func (c *ChallengeScheduler) IsWeeklyEligible(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	p, err := c.stats.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	if p.WeeklyChallengeCompleted == nil {
		return true, nil
	}
	return !WeekStart(*p.WeeklyChallengeCompleted, c.loc).Equal(WeekStart(weekStart, c.loc)), nil
}

// DailyQuestion returns the day's challenge question: one hard question shared by
// everyone, falling back to any difficulty when the catalog has no hard ones.
func (c *ChallengeScheduler) DailyQuestion(ctx context.Context, day time.Time) (domain.Question, error) {
	key := dayKey(DayStart(day, c.loc))
	c.mu.Lock()
	id, ok := c.daily[key]
	c.mu.Unlock()
	if ok {
		q, err := c.questions.Get(ctx, id)
		if err == nil {
			return q, nil
		}
	}

	q, err := c.questions.SelectQuestion(ctx, QuestionFilter{Difficulty: domain.DifficultyHard})
	if errors.Is(err, domain.ErrNoQuestionsAvailable) {
		q, err = c.questions.SelectQuestion(ctx, QuestionFilter{})
	}
	if err != nil {
		return domain.Question{}, err
	}

	c.mu.Lock()
	if existing, ok := c.daily[key]; ok {
		c.mu.Unlock()
		return c.questions.Get(ctx, existing)
	}
	for k := range c.daily {
		delete(c.daily, k)
	}
	c.daily[key] = q.ID
	c.mu.Unlock()
	return q, nil
}

// WeeklySet returns the week's question ids, selecting and persisting them on
// first use so every user and process sees the same set.
func (c *ChallengeScheduler) WeeklySet(ctx context.Context, weekStart time.Time) ([]string, error) {
	weekStart = WeekStart(weekStart, c.loc)
	key := dayKey(weekStart)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ids, ok := c.weekly[key]; ok {
		return ids, nil
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ids, found, err := c.progress.WeeklySet(cctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("%w: load weekly set: %v", domain.ErrStatisticsUnavailable, err)
	}
	if !found {
		ids, err = c.selectWeekly(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.progress.SaveWeeklySet(cctx, weekStart, ids); err != nil {
			return nil, fmt.Errorf("%w: save weekly set: %v", domain.ErrStatisticsUnavailable, err)
		}
		// Another process may have stored its set first; the stored one wins.
		if stored, ok, err := c.progress.WeeklySet(cctx, weekStart); err == nil && ok {
			ids = stored
		}
		c.log.Info("weekly challenge selected", "week_start", key, "questions", ids)
	}
	for k := range c.weekly {
		delete(c.weekly, k)
	}
	c.weekly[key] = ids
	return ids, nil
}

func (c *ChallengeScheduler) selectWeekly(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(WeeklyMix))
	for _, d := range WeeklyMix {
		q, err := c.questions.SelectQuestion(ctx, QuestionFilter{Difficulty: d, Exclude: ids})
		if errors.Is(err, domain.ErrNoQuestionsAvailable) {
			q, err = c.questions.SelectQuestion(ctx, QuestionFilter{Exclude: ids})
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, q.ID)
	}
	return ids, nil
}

// BeginWeekly loads the user's progress for the week or starts a fresh one.
func (c *ChallengeScheduler) BeginWeekly(ctx context.Context, userID string, weekStart time.Time) (domain.WeeklyProgress, error) {
	weekStart = WeekStart(weekStart, c.loc)
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	p, found, err := c.progress.LoadProgress(cctx, userID, weekStart)
	if err != nil {
		return domain.WeeklyProgress{}, fmt.Errorf("%w: load progress: %v", domain.ErrStatisticsUnavailable, err)
	}
	if found {
		return p, nil
	}
	ids, err := c.WeeklySet(ctx, weekStart)
	if err != nil {
		return domain.WeeklyProgress{}, err
	}
	return domain.WeeklyProgress{
		UserID:      userID,
		WeekStart:   weekStart,
		QuestionIDs: append([]string(nil), ids...),
		UpdatedAt:   c.now(),
	}, nil
}

// SaveProgress persists weekly progress.
func (c *ChallengeScheduler) SaveProgress(ctx context.Context, p domain.WeeklyProgress) error {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	p.UpdatedAt = c.now()
	if err := c.progress.SaveProgress(cctx, p); err != nil {
		return fmt.Errorf("%w: save progress: %v", domain.ErrStatisticsUnavailable, err)
	}
	return nil
}

// RotateWeekly selects the current week's set ahead of the first request and
// returns the announcement for the chat platform.
func (c *ChallengeScheduler) RotateWeekly(ctx context.Context) (WeeklyAnnouncement, error) {
	week := c.CurrentWeek()
	ids, err := c.WeeklySet(ctx, week)
	if err != nil {
		return WeeklyAnnouncement{}, err
	}
	maxPoints := 0
	for _, d := range WeeklyMix {
		maxPoints += ComputeAward(PointsFor(d), 0, MultiplierFor(domain.KindWeekly))
	}
	return WeeklyAnnouncement{
		WeekStart: week,
		EndsAt:    week.AddDate(0, 0, 7),
		Questions: len(ids),
		Mix:       append([]domain.Difficulty(nil), WeeklyMix[:]...),
		MaxPoints: maxPoints,
	}, nil
}

// Status reports eligibility and reset times for both challenges.
func (c *ChallengeScheduler) Status(ctx context.Context, userID string) (domain.ChallengeStatus, error) {
	today := c.Today()
	week := c.CurrentWeek()
	daily, err := c.IsDailyEligible(ctx, userID, today)
	if err != nil {
		return domain.ChallengeStatus{}, err
	}
	weekly, err := c.IsWeeklyEligible(ctx, userID, week)
	if err != nil {
		return domain.ChallengeStatus{}, err
	}
	status := domain.ChallengeStatus{
		UserID:         userID,
		DailyEligible:  daily,
		WeeklyEligible: weekly,
		NextDailyAt:    today.AddDate(0, 0, 1),
		NextWeeklyAt:   week.AddDate(0, 0, 7),
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if p, found, err := c.progress.LoadProgress(cctx, userID, week); err == nil && found {
		status.Weekly = &p
	}
	return status, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
