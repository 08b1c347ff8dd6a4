package jobs_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/catalog"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"
	"trivia-bot/internal/jobs"
	"trivia-bot/internal/logger"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	deps, _, _ := newDeps(t)
	_, err := jobs.New(deps, jobs.Config{SweepSchedule: "every now and then", WeeklySchedule: "0 9 * * MON"}, logger.Nop())
	if err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestWeeklyRotationAnnounces(t *testing.T) {
	deps, notices, _ := newDeps(t)
	s, err := jobs.New(deps, jobs.Config{
		SweepSchedule:  "@every 5m",
		WeeklySchedule: "0 9 * * MON",
		AnnounceTo:     []string{"general", "trivia"},
	}, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunWeeklyRotation(context.Background()); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	got := notices.all()
	if len(got) != 2 || got[0].channelID != "general" {
		t.Fatalf("expected an announcement per channel, got %+v", got)
	}
	if !strings.Contains(got[0].text, "5 questions (easy, easy, medium, medium, hard)") || !strings.Contains(got[0].text, "270 points") {
		t.Fatalf("unexpected announcement %q", got[0].text)
	}
}

func TestSweepRemovesStaleSessions(t *testing.T) {
	deps, notices, clock := newDeps(t)
	s, err := jobs.New(deps, jobs.Config{SweepSchedule: "@every 5m", WeeklySchedule: "@weekly"}, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, err := deps.Sessions.StartGame(ctx, app.StartRequest{ChannelID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if removed := s.RunSweep(ctx); removed != 0 {
		t.Fatalf("expected fresh session kept, removed %d", removed)
	}

	clock.advance(6 * time.Minute)
	if removed := s.RunSweep(ctx); removed != 1 {
		t.Fatalf("expected stale session removed, got %d", removed)
	}
	if deps.Sessions.HasActiveGame("c1") {
		t.Fatalf("expected idle channel after sweep")
	}
	if notices.results() != 1 {
		t.Fatalf("expected a cancellation result for the swept game")
	}

	s.Start()
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	s.Stop(stopCtx)
}

type notice struct {
	channelID string
	text      string
}

type noticePresenter struct {
	mu      sync.Mutex
	notices []notice
	outcome int
}

func (p *noticePresenter) PostQuestion(context.Context, domain.QuestionPrompt) error { return nil }

func (p *noticePresenter) PostResult(context.Context, domain.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome++
	return nil
}

func (p *noticePresenter) PostAchievementUnlock(context.Context, string, domain.UnlockedAchievement) error {
	return nil
}

func (p *noticePresenter) PostLeaderboard(context.Context, string, domain.Leaderboard) error {
	return nil
}

func (p *noticePresenter) PostNotice(_ context.Context, channelID, _, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice{channelID: channelID, text: text})
	return nil
}

func (p *noticePresenter) all() []notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notice(nil), p.notices...)
}

func (p *noticePresenter) results() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func newDeps(t *testing.T) (jobs.Deps, *noticePresenter, *testClock) {
	t.Helper()
	questions, err := catalog.DefaultQuestions()
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	log := logger.Nop()
	clock := &testClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	profiles := memory.NewProfileStore()
	cfg := app.StatisticsConfig{Location: time.UTC, Now: clock.Now}
	board := app.NewLeaderboard(profiles, memory.NewRankingStore(), cfg, log)
	stats := app.NewStatistics(profiles, board, cfg, log)
	store := memory.NewQuestionStore(memory.NewStaticQuestionLoader(questions), 0)
	eval := app.NewAchievementEvaluator(nil, profiles, stats, log)
	challenges := app.NewChallengeScheduler(stats, store, memory.NewProgressStore(), log)
	presenter := &noticePresenter{}

	sessions := app.NewSessionManager(app.ManagerDeps{
		Questions:  store,
		Stats:      stats,
		Evaluator:  eval,
		Challenges: challenges,
		Presenter:  presenter,
		Logger:     log,
	},
		app.WithManagerClock(clock.Now),
		app.WithAfterFunc(func(time.Duration, func()) app.Timer { return idleTimer{} }),
	)
	t.Cleanup(sessions.Shutdown)

	return jobs.Deps{Sessions: sessions, Stats: stats, Challenges: challenges, Presenter: presenter}, presenter, clock
}
