package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"
)

// PointsRecorder receives every committed points change; the leaderboard ledger
// implements it.
type PointsRecorder interface {
	Record(ctx context.Context, userID string, points int, at time.Time) error
}

// StatisticsConfig tunes the statistics store wrapper.
type StatisticsConfig struct {
	Location *time.Location
	Timeout  time.Duration
	Now      func() time.Time
}

// Statistics is the user statistics store. Writes for the same user are
// serialised; failed writes are queued and replayed before the user's next write.
type Statistics struct {
	repo    ProfileRepository
	ledger  PointsRecorder
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
	locks   *keyedMutex

	pendingMu sync.Mutex
	pending   map[string][]mutation
}

type mutation struct {
	name   string
	at     time.Time
	points int
	apply  func(p *domain.UserProfile)
}

func NewStatistics(repo ProfileRepository, ledger PointsRecorder, cfg StatisticsConfig, log *logger.Logger) *Statistics {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Statistics{
		repo:    repo,
		ledger:  ledger,
		loc:     cfg.Location,
		timeout: cfg.Timeout,
		now:     cfg.Now,
		log:     log.With("component", "statistics"),
		locks:   newKeyedMutex(),
		pending: make(map[string][]mutation),
	}
}

// GetOrCreate returns the profile, creating a zeroed one on first access.
// Queued writes are replayed first; while they cannot be, the profile is
// reported unavailable rather than stale.
func (s *Statistics) GetOrCreate(ctx context.Context, userID string) (domain.UserProfile, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.flushLocked(ctx, userID); err != nil {
		return domain.UserProfile{UserID: userID}, fmt.Errorf("%w: %v", domain.ErrStatisticsUnavailable, err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.repo.GetOrCreate(cctx, userID, s.now())
	if err != nil {
		return domain.UserProfile{UserID: userID}, fmt.Errorf("%w: %v", domain.ErrStatisticsUnavailable, err)
	}
	return p, nil
}

// ApplyAnswerOutcome records one answered question.
func (s *Statistics) ApplyAnswerOutcome(ctx context.Context, userID string, correct bool, points int, difficulty domain.Difficulty) (domain.UserProfile, error) {
	at := s.now()
	if !correct {
		points = 0
	}
	return s.write(ctx, userID, mutation{
		name:   "answer",
		at:     at,
		points: points,
		apply: func(p *domain.UserProfile) {
			p.QuestionsAnswered++
			if correct {
				p.QuestionsCorrect++
				p.TotalPoints += points
				switch difficulty {
				case domain.DifficultyEasy:
					p.EasyCorrect++
				case domain.DifficultyMedium:
					p.MediumCorrect++
				case domain.DifficultyHard:
					p.HardCorrect++
				}
			}
			p.CurrentStreak = NextStreak(p.CurrentStreak, correct)
			p.BestStreak = UpdateBestStreak(p.BestStreak, p.CurrentStreak)
			p.PlayStreakDays = nextPlayStreak(p.LastPlayed, p.PlayStreakDays, at, s.loc)
			p.LastPlayed = at
		},
	})
}

// Credit adds bonus points outside of answer scoring (achievements, weekly challenge).
func (s *Statistics) Credit(ctx context.Context, userID string, points int, reason string) (domain.UserProfile, error) {
	if points <= 0 {
		return s.GetOrCreate(ctx, userID)
	}
	return s.write(ctx, userID, mutation{
		name:   "credit:" + reason,
		at:     s.now(),
		points: points,
		apply: func(p *domain.UserProfile) {
			p.TotalPoints += points
		},
	})
}

// MarkDailyChallengeCompleted is idempotent for the same calendar day.
func (s *Statistics) MarkDailyChallengeCompleted(ctx context.Context, userID string, date time.Time) (domain.UserProfile, error) {
	day := DayStart(date, s.loc)
	return s.write(ctx, userID, mutation{
		name: "daily_completed",
		at:   s.now(),
		apply: func(p *domain.UserProfile) {
			if p.DailyChallengeCompleted != nil && sameDay(*p.DailyChallengeCompleted, day, s.loc) {
				return
			}
			p.DailyChallengeCompleted = &day
			p.DailyChallengesCompleted++
		},
	})
}

// MarkWeeklyChallengeCompleted is idempotent within the same week.
func (s *Statistics) MarkWeeklyChallengeCompleted(ctx context.Context, userID string, date time.Time) (domain.UserProfile, error) {
	day := DayStart(date, s.loc)
	return s.write(ctx, userID, mutation{
		name: "weekly_completed",
		at:   s.now(),
		apply: func(p *domain.UserProfile) {
			if p.WeeklyChallengeCompleted != nil && WeekStart(*p.WeeklyChallengeCompleted, s.loc).Equal(WeekStart(day, s.loc)) {
				return
			}
			p.WeeklyChallengeCompleted = &day
			p.WeeklyChallengesCompleted++
		},
	})
}

// SetPreferredDifficulty stores the user's preference; empty clears it.
func (s *Statistics) SetPreferredDifficulty(ctx context.Context, userID string, d domain.Difficulty) (domain.UserProfile, error) {
	return s.write(ctx, userID, mutation{
		name: "preference",
		at:   s.now(),
		apply: func(p *domain.UserProfile) {
			p.PreferredDifficulty = d
		},
	})
}

// ResetUser zeroes every counter and keeps the record.
func (s *Statistics) ResetUser(ctx context.Context, userID string) (domain.UserProfile, error) {
	return s.write(ctx, userID, mutation{
		name: "reset",
		at:   s.now(),
		apply: func(p *domain.UserProfile) {
			*p = domain.UserProfile{
				UserID:              p.UserID,
				CreatedAt:           p.CreatedAt,
				PreferredDifficulty: p.PreferredDifficulty,
			}
		},
	})
}

// Profiles lists every stored profile.
func (s *Statistics) Profiles(ctx context.Context) ([]domain.UserProfile, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	profiles, err := s.repo.List(cctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStatisticsUnavailable, err)
	}
	return profiles, nil
}

// PendingWrites returns the number of queued writes across all users.
func (s *Statistics) PendingWrites() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	n := 0
	for _, q := range s.pending {
		n += len(q)
	}
	return n
}

// RetryPending replays queued writes for every user and returns how many users
// still have writes outstanding.
func (s *Statistics) RetryPending(ctx context.Context) int {
	s.pendingMu.Lock()
	users := make([]string, 0, len(s.pending))
	for userID := range s.pending {
		users = append(users, userID)
	}
	s.pendingMu.Unlock()

	remaining := 0
	for _, userID := range users {
		unlock := s.locks.Lock(userID)
		if err := s.flushLocked(ctx, userID); err != nil {
			remaining++
		}
		unlock()
	}
	return remaining
}

func (s *Statistics) write(ctx context.Context, userID string, m mutation) (domain.UserProfile, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.flushLocked(ctx, userID); err != nil {
		s.enqueue(userID, m)
		return domain.UserProfile{UserID: userID}, fmt.Errorf("%w: %v", domain.ErrStatisticsUnavailable, err)
	}
	p, err := s.applyLocked(ctx, userID, m)
	if err != nil {
		s.enqueue(userID, m)
		s.log.Warn("statistics write queued", "user_id", userID, "op", m.name, "error", err)
		return domain.UserProfile{UserID: userID}, fmt.Errorf("%w: %v", domain.ErrStatisticsUnavailable, err)
	}
	return p, nil
}

// flushLocked replays queued writes in order. Callers hold the user's lock.
func (s *Statistics) flushLocked(ctx context.Context, userID string) error {
	s.pendingMu.Lock()
	queue := s.pending[userID]
	delete(s.pending, userID)
	s.pendingMu.Unlock()

	for i, m := range queue {
		if _, err := s.applyLocked(ctx, userID, m); err != nil {
			s.pendingMu.Lock()
			s.pending[userID] = append(queue[i:], s.pending[userID]...)
			s.pendingMu.Unlock()
			return err
		}
		s.log.Info("replayed queued statistics write", "user_id", userID, "op", m.name)
	}
	return nil
}

func (s *Statistics) applyLocked(ctx context.Context, userID string, m mutation) (domain.UserProfile, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.repo.Update(cctx, userID, m.at, m.apply)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if m.points != 0 && s.ledger != nil {
		lctx, lcancel := context.WithTimeout(ctx, s.timeout)
		defer lcancel()
		if err := s.ledger.Record(lctx, userID, m.points, m.at); err != nil {
			s.log.Warn("leaderboard ledger write failed", "user_id", userID, "points", m.points, "error", err)
		}
	}
	return p, nil
}

func (s *Statistics) enqueue(userID string, m mutation) {
	s.pendingMu.Lock()
	s.pending[userID] = append(s.pending[userID], m)
	s.pendingMu.Unlock()
}

// nextPlayStreak counts consecutive calendar days with at least one answer.
func nextPlayStreak(last time.Time, streak int, at time.Time, loc *time.Location) int {
	if last.IsZero() || streak == 0 {
		return 1
	}
	lastDay := DayStart(last, loc)
	today := DayStart(at, loc)
	switch {
	case today.Equal(lastDay):
		return streak
	case today.Equal(lastDay.AddDate(0, 0, 1)):
		return streak + 1
	}
	return 1
}
