// Package jobs runs the periodic engine maintenance on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/logger"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 4 * time.Minute

// Config holds the cron specs. Schedules accept the standard five-field
// syntax plus descriptors like "@every 5m".
type Config struct {
	SweepSchedule  string
	WeeklySchedule string
	AnnounceTo     []string
	Location       *time.Location
}

// Deps are the engine parts the jobs drive.
type Deps struct {
	Sessions   *app.SessionManager
	Stats      *app.Statistics
	Challenges *app.ChallengeScheduler
	Presenter  app.Presenter
}

// Scheduler owns the cron runner.
type Scheduler struct {
	Deps
	cfg  Config
	cron *cron.Cron
	log  *logger.Logger
}

func New(deps Deps, cfg Config, log *logger.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Scheduler{Deps: deps, cfg: cfg, log: log.With("component", "jobs")}
	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := s.cron.AddFunc(cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		s.RunSweep(ctx)
	}); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", cfg.SweepSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.WeeklySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := s.RunWeeklyRotation(ctx); err != nil {
			s.log.Error("weekly rotation failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("weekly schedule %q: %w", cfg.WeeklySchedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("jobs started", "sweep", s.cfg.SweepSchedule, "weekly", s.cfg.WeeklySchedule)
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunSweep tears down stale sessions and replays queued statistics writes.
// It returns the number of sessions removed.
func (s *Scheduler) RunSweep(ctx context.Context) int {
	removed := s.Sessions.Sweep(ctx)
	remaining := s.Stats.RetryPending(ctx)
	if removed > 0 || remaining > 0 {
		s.log.Info("sweep finished", "sessions_removed", removed, "pending_writes", remaining)
	}
	return removed
}

// RunWeeklyRotation selects this week's challenge set and announces it.
func (s *Scheduler) RunWeeklyRotation(ctx context.Context) error {
	ann, err := s.Challenges.RotateWeekly(ctx)
	if err != nil {
		return err
	}
	text := AnnouncementText(ann)
	for _, channelID := range s.cfg.AnnounceTo {
		if err := s.Presenter.PostNotice(ctx, channelID, "", text); err != nil {
			s.log.Warn("weekly announcement not posted", "channel_id", channelID, "error", err)
		}
	}
	s.log.Info("weekly challenge rotated", "week_start", ann.WeekStart.Format("2006-01-02"), "channels", len(s.cfg.AnnounceTo))
	return nil
}

// AnnouncementText renders the Monday announcement.
func AnnouncementText(ann app.WeeklyAnnouncement) string {
	mix := make([]string, 0, len(ann.Mix))
	for _, d := range ann.Mix {
		mix = append(mix, string(d))
	}
	return fmt.Sprintf("🏆 A new weekly challenge is live! %d questions (%s), worth up to %d points. Use /weekly before %s.",
		ann.Questions, strings.Join(mix, ", "), ann.MaxPoints, ann.EndsAt.Format("Mon Jan 2 15:04 MST"))
}

// cronLogger adapts the zap wrapper to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
