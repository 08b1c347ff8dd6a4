package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/catalog"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"
	"trivia-bot/internal/logger"
)

type fakePresenter struct {
	mu          sync.Mutex
	prompts     []domain.QuestionPrompt
	results     []domain.Outcome
	unlocks     []domain.UnlockedAchievement
	notices     []string
	boards      []domain.Leaderboard
	questionErr error
	panicResult bool

	// When block is set PostResult signals entered and waits for block to close.
	entered chan struct{}
	block   chan struct{}
}

func (p *fakePresenter) PostQuestion(_ context.Context, prompt domain.QuestionPrompt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.questionErr != nil {
		return p.questionErr
	}
	p.prompts = append(p.prompts, prompt)
	return nil
}

func (p *fakePresenter) PostResult(_ context.Context, out domain.Outcome) error {
	p.mu.Lock()
	block, entered, panicResult := p.block, p.entered, p.panicResult
	p.mu.Unlock()
	if panicResult {
		panic("presenter exploded")
	}
	if block != nil {
		entered <- struct{}{}
		<-block
	}
	p.mu.Lock()
	p.results = append(p.results, out)
	p.mu.Unlock()
	return nil
}

func (p *fakePresenter) PostAchievementUnlock(_ context.Context, _ string, u domain.UnlockedAchievement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocks = append(p.unlocks, u)
	return nil
}

func (p *fakePresenter) PostLeaderboard(_ context.Context, _ string, board domain.Leaderboard) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boards = append(p.boards, board)
	return nil
}

func (p *fakePresenter) PostNotice(_ context.Context, _, _, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, text)
	return nil
}

func (p *fakePresenter) noticeTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notices...)
}

func (p *fakePresenter) lastPrompt(t *testing.T) domain.QuestionPrompt {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		t.Fatalf("no question posted")
	}
	return p.prompts[len(p.prompts)-1]
}

func (p *fakePresenter) resultCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

func (p *fakePresenter) lastResult(t *testing.T) domain.Outcome {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		t.Fatalf("no result posted")
	}
	return p.results[len(p.results)-1]
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

// fire runs the callback even when stopped, like a timer that already fired
// while its session moved on.
func (t *manualTimer) fire() { t.f() }

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) app.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) all() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*manualTimer(nil), m.timers...)
}

func (m *manualTimers) last(t *testing.T) *manualTimer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		t.Fatalf("no timer armed")
	}
	return m.timers[len(m.timers)-1]
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engine struct {
	ctx        context.Context
	clock      *fixedClock
	timers     *manualTimers
	presenter  *fakePresenter
	questions  *memory.QuestionStore
	profiles   *memory.ProfileStore
	ranking    *memory.RankingStore
	progress   *memory.ProgressStore
	stats      *app.Statistics
	board      *app.Leaderboard
	evaluator  *app.AchievementEvaluator
	challenges *app.ChallengeScheduler
	settings   *app.Settings
	manager    *app.SessionManager
}

// Wednesday noon, mid-week and mid-month.
var testStart = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, questions []domain.Question) *engine {
	t.Helper()
	achievements, err := catalog.DefaultAchievements()
	if err != nil {
		t.Fatalf("load achievements: %v", err)
	}
	e := &engine{
		ctx:       context.Background(),
		clock:     &fixedClock{now: testStart},
		timers:    &manualTimers{},
		presenter: &fakePresenter{},
		profiles:  memory.NewProfileStore(),
		ranking:   memory.NewRankingStore(),
		progress:  memory.NewProgressStore(),
	}
	log := logger.Nop()
	cfg := app.StatisticsConfig{Location: time.UTC, Timeout: time.Second, Now: e.clock.Now}
	e.questions = memory.NewQuestionStore(memory.NewStaticQuestionLoader(questions), 0, memory.WithSeed(42))
	e.board = app.NewLeaderboard(e.profiles, e.ranking, cfg, log)
	e.stats = app.NewStatistics(e.profiles, e.board, cfg, log)
	e.evaluator = app.NewAchievementEvaluator(achievements, e.profiles, e.stats, log)
	e.challenges = app.NewChallengeScheduler(e.stats, e.questions, e.progress, log)
	e.settings = app.NewSettings(app.DefaultGameSettings())

	ids := 0
	e.manager = app.NewSessionManager(app.ManagerDeps{
		Questions:  e.questions,
		Stats:      e.stats,
		Evaluator:  e.evaluator,
		Challenges: e.challenges,
		Presenter:  e.presenter,
		Settings:   e.settings,
		Logger:     log,
	},
		app.WithManagerClock(e.clock.Now),
		app.WithAfterFunc(e.timers.AfterFunc),
		app.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		}),
	)
	return e
}

// answer submits the correct (or a wrong) answer to the channel's current question.
func (e *engine) answer(t *testing.T, channelID, userID string, correct bool) *domain.Outcome {
	t.Helper()
	prompt := e.presenter.lastPrompt(t)
	q, err := e.questions.Get(e.ctx, prompt.QuestionID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	raw := correctAnswer(q)
	if !correct {
		raw = wrongAnswer(q)
	}
	out, err := e.manager.SubmitAnswer(e.ctx, app.AnswerAttempt{ChannelID: channelID, UserID: userID, Raw: raw, Token: prompt.Token})
	if err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	if out == nil {
		t.Fatalf("answer by %s was ignored", userID)
	}
	return out
}

func (e *engine) profile(t *testing.T, userID string) domain.UserProfile {
	t.Helper()
	p, err := e.stats.GetOrCreate(e.ctx, userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return p
}

func correctAnswer(q domain.Question) string {
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

func wrongAnswer(q domain.Question) string {
	switch a := q.Answer.(type) {
	case domain.MultipleChoice:
		return string(rune('A' + (a.Correct+1)%4))
	case domain.TrueFalse:
		if a.Correct {
			return "false"
		}
		return "true"
	}
	return "definitely not it"
}

func testQuestions() []domain.Question {
	mc := func(id string, d domain.Difficulty, correct int) domain.Question {
		return domain.Question{
			ID:         id,
			Text:       "Question " + id,
			Category:   "general",
			Difficulty: d,
			Answer:     domain.MultipleChoice{Options: [4]string{"one", "two", "three", "four"}, Correct: correct},
		}
	}
	return []domain.Question{
		mc("easy-1", domain.DifficultyEasy, 0),
		mc("easy-2", domain.DifficultyEasy, 1),
		mc("easy-3", domain.DifficultyEasy, 2),
		{ID: "medium-1", Text: "Galaxy won the 2002 MLS Cup.", Difficulty: domain.DifficultyMedium, Answer: domain.TrueFalse{Correct: true}},
		{ID: "medium-2", Text: "Galaxy play in San Diego.", Difficulty: domain.DifficultyMedium, Answer: domain.TrueFalse{Correct: false}},
		{ID: "hard-1", Text: "All-time leading scorer?", Difficulty: domain.DifficultyHard, Answer: domain.FillBlank{Canonical: "Landon Donovan", Variants: []string{"Donovan"}}},
		mc("hard-2", domain.DifficultyHard, 3),
	}
}
