package bot_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/bot"
	"trivia-bot/internal/catalog"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"
	"trivia-bot/internal/logger"
)

func TestUserMessageHidesRawErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("start: %w", domain.ErrGameAlreadyActive), "already running"},
		{domain.ErrDailyAlreadyCompleted, "today's daily challenge"},
		{domain.ErrWeeklyAlreadyCompleted, "this week's challenge"},
		{fmt.Errorf("%w: pq: connection refused", domain.ErrStatisticsUnavailable), "temporarily unavailable"},
		{domain.ErrPermissionDenied, "admins"},
		{fmt.Errorf("%w: difficulty \"insane\"", bot.ErrInvalidOption), "Unknown option"},
		{errors.New("dial tcp 10.0.0.1:5432: i/o timeout"), "Something went wrong"},
	}
	for _, tc := range cases {
		got := bot.UserMessage(tc.err)
		if !strings.Contains(got, tc.want) {
			t.Fatalf("%v: expected message containing %q, got %q", tc.err, tc.want, got)
		}
		if strings.Contains(got, "5432") || strings.Contains(got, "pq:") {
			t.Fatalf("raw error leaked: %q", got)
		}
	}
	if bot.UserMessage(nil) != "" {
		t.Fatalf("expected empty message for nil error")
	}
}

func TestAdminCommandsRequirePermission(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	if err := h.OnConfigSet(ctx, "u1", "default_timeout", "20s"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := h.OnResetStats(ctx, "u1", "u2"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := h.OnCancelGame(ctx, "u1", "c1"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if err := h.OnConfigSet(ctx, "admin", "default_timeout", "20s"); err != nil {
		t.Fatalf("admin set: %v", err)
	}
	all, err := h.OnConfigGet(ctx, "admin", "")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if len(all) != 4 || all["default_timeout"] != "20s" {
		t.Fatalf("unexpected settings %v", all)
	}
	if _, err := h.OnConfigGet(ctx, "admin", "bot_token"); !errors.Is(err, domain.ErrUnknownSetting) {
		t.Fatalf("expected ErrUnknownSetting, got %v", err)
	}
}

func TestStartGameUsesPreferredDifficulty(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	if _, err := h.OnStartGame(ctx, bot.StartGameCommand{ChannelID: "c1", UserID: "u1", Difficulty: "insane"}); !errors.Is(err, bot.ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if _, err := h.OnSetPreference(ctx, "u1", "Hard"); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	prompt, err := h.OnStartGame(ctx, bot.StartGameCommand{ChannelID: "c1", UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if prompt.Difficulty != domain.DifficultyHard {
		t.Fatalf("expected a hard question, got %s", prompt.Difficulty)
	}
	if _, err := h.OnStartGame(ctx, bot.StartGameCommand{ChannelID: "c1", UserID: "u2"}); !errors.Is(err, domain.ErrGameAlreadyActive) {
		t.Fatalf("expected ErrGameAlreadyActive, got %v", err)
	}
	if stats := h.OnGameStats(ctx); stats.ActiveGames != 1 || stats.ByDifficulty[domain.DifficultyHard] != 1 {
		t.Fatalf("unexpected game stats %+v", stats)
	}
}

func TestAnswerUpdatesStatsAndLeaderboard(t *testing.T) {
	h, presenter := newHandler(t)
	ctx := context.Background()

	prompt, err := h.OnStartGame(ctx, bot.StartGameCommand{ChannelID: "c1", UserID: "u1", Difficulty: "easy"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q, err := h.Questions.Get(ctx, prompt.QuestionID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if _, err := h.OnAnswerAttempt(ctx, bot.AnswerCommand{ChannelID: "c1", UserID: "u1", Text: "   "}); !errors.Is(err, domain.ErrInvalidAnswerFormat) {
		t.Fatalf("expected ErrInvalidAnswerFormat, got %v", err)
	}
	out, err := h.OnAnswerAttempt(ctx, bot.AnswerCommand{ChannelID: "c1", UserID: "u1", Text: correctRaw(q), Token: prompt.Token})
	if err != nil || out == nil {
		t.Fatalf("answer: %v %+v", err, out)
	}
	if !out.Correct || out.PointsAwarded != 10 {
		t.Fatalf("expected 10 points, got %+v", out)
	}

	stats, err := h.OnStatsQuery(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Profile.TotalPoints != 10 || stats.Rank.Rank != 1 || stats.Accuracy != 100 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	board, err := h.OnLeaderboardQuery(ctx, "c1", "weekly", 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].UserID != "u1" {
		t.Fatalf("unexpected board %+v", board)
	}
	if presenter.boardCount() != 1 {
		t.Fatalf("expected the board posted to the channel")
	}
	if _, err := h.OnLeaderboardQuery(ctx, "c1", "daily", 0); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	reply, err := h.OnAchievementsQuery(ctx, "u1")
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	if len(reply.Unlocked)+len(reply.Locked) != len(h.Evaluator.Catalog()) {
		t.Fatalf("unlocked and locked should cover the catalog, got %d + %d", len(reply.Unlocked), len(reply.Locked))
	}
	var streak *domain.AchievementProgress
	for i := range reply.Locked {
		if reply.Locked[i].ID == "hot_streak" {
			streak = &reply.Locked[i]
		}
	}
	if streak == nil || streak.Current != 1 || streak.Required != 5 || streak.Percent != 20 {
		t.Fatalf("expected hot_streak at 1/5, got %+v", streak)
	}

	standing, err := h.OnRankQuery(ctx, "u1", "weekly")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if standing.Rank.Rank != 1 || len(standing.Nearby) != 1 || standing.Change != nil {
		t.Fatalf("unexpected rank reply %+v", standing)
	}
	if _, err := h.OnRankQuery(ctx, "u1", "daily"); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestCancelGame(t *testing.T) {
	h, presenter := newHandler(t)
	ctx := context.Background()

	if err := h.OnCancelGame(ctx, "admin", "c1"); !errors.Is(err, domain.ErrNoActiveGame) {
		t.Fatalf("expected ErrNoActiveGame, got %v", err)
	}
	if _, err := h.OnStartGame(ctx, bot.StartGameCommand{ChannelID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.OnCancelGame(ctx, "admin", "c1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if presenter.resultCount() != 1 {
		t.Fatalf("expected a cancellation result")
	}
	if h.Sessions.HasActiveGame("c1") {
		t.Fatalf("expected idle channel")
	}
}

func TestAddQuestionValidates(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()
	rec := domain.QuestionRecord{
		Text:       "Which club won the first MLS Cup?",
		Type:       domain.TypeFillBlank,
		Difficulty: domain.DifficultyMedium,
		Correct:    "D.C. United",
		Variants:   []string{"DC United"},
	}
	if _, err := h.OnAddQuestion(ctx, "u1", rec); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	q, err := h.OnAddQuestion(ctx, "admin", rec)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(q.ID, "custom-") {
		t.Fatalf("expected generated id, got %s", q.ID)
	}

	bad := rec
	bad.Type = domain.TypeMultipleChoice
	bad.Options = []string{"a", "b"}
	if _, err := h.OnAddQuestion(ctx, "admin", bad); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}

	stats, err := h.OnQuestionStats(ctx)
	if err != nil {
		t.Fatalf("question stats: %v", err)
	}
	base, _ := catalog.DefaultQuestions()
	if stats.Total != len(base)+1 {
		t.Fatalf("expected %d questions, got %d", len(base)+1, stats.Total)
	}
}

func TestChallengeStatusAfterDaily(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	prompt, err := h.OnDailyChallengeRequest(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	q, _ := h.Questions.Get(ctx, prompt.QuestionID)
	if _, err := h.OnAnswerAttempt(ctx, bot.AnswerCommand{ChannelID: "c1", UserID: "u1", Text: correctRaw(q)}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	status, err := h.OnChallengeStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.DailyEligible || !status.WeeklyEligible {
		t.Fatalf("unexpected status %+v", status)
	}
	if _, err := h.OnDailyChallengeRequest(ctx, "c2", "u1"); !errors.Is(err, domain.ErrDailyAlreadyCompleted) {
		t.Fatalf("expected ErrDailyAlreadyCompleted, got %v", err)
	}
}

type recordingPresenter struct {
	mu      sync.Mutex
	prompts []domain.QuestionPrompt
	results []domain.Outcome
	boards  []domain.Leaderboard
}

func (p *recordingPresenter) PostQuestion(_ context.Context, prompt domain.QuestionPrompt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	return nil
}

func (p *recordingPresenter) PostResult(_ context.Context, out domain.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, out)
	return nil
}

func (p *recordingPresenter) PostAchievementUnlock(context.Context, string, domain.UnlockedAchievement) error {
	return nil
}

func (p *recordingPresenter) PostLeaderboard(_ context.Context, _ string, board domain.Leaderboard) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boards = append(p.boards, board)
	return nil
}

func (p *recordingPresenter) PostNotice(context.Context, string, string, string) error {
	return nil
}

func (p *recordingPresenter) resultCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

func (p *recordingPresenter) boardCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.boards)
}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func newHandler(t *testing.T) (*bot.Handler, *recordingPresenter) {
	t.Helper()
	questions, err := catalog.DefaultQuestions()
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	achievements, err := catalog.DefaultAchievements()
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}

	log := logger.Nop()
	profiles := memory.NewProfileStore()
	cfg := app.StatisticsConfig{Location: time.UTC}
	board := app.NewLeaderboard(profiles, memory.NewRankingStore(), cfg, log)
	stats := app.NewStatistics(profiles, board, cfg, log)
	store := memory.NewQuestionStore(memory.NewStaticQuestionLoader(questions), 0, memory.WithSeed(7))
	eval := app.NewAchievementEvaluator(achievements, profiles, stats, log)
	challenges := app.NewChallengeScheduler(stats, store, memory.NewProgressStore(), log)
	settings := app.NewSettings(app.DefaultGameSettings())
	presenter := &recordingPresenter{}

	sessions := app.NewSessionManager(app.ManagerDeps{
		Questions:  store,
		Stats:      stats,
		Evaluator:  eval,
		Challenges: challenges,
		Presenter:  presenter,
		Settings:   settings,
		Logger:     log,
	}, app.WithAfterFunc(func(time.Duration, func()) app.Timer { return idleTimer{} }))
	t.Cleanup(sessions.Shutdown)

	h := bot.NewHandler(bot.Deps{
		Sessions:    sessions,
		Stats:       stats,
		Leaderboard: board,
		Evaluator:   eval,
		Challenges:  challenges,
		Questions:   store,
		Settings:    settings,
		Presenter:   presenter,
	}, []string{"admin"}, 10, log)
	return h, presenter
}

func correctRaw(q domain.Question) string {
	switch a := q.Answer.(type) {
	case domain.MultipleChoice:
		return string(rune('A' + a.Correct))
	case domain.TrueFalse:
		if a.Correct {
			return "true"
		}
		return "false"
	case domain.FillBlank:
		return a.Canonical
	}
	return ""
}
