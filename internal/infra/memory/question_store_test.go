package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

func TestQuestionStoreCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	store := NewQuestionStore(loader, time.Minute, WithStoreClock(func() time.Time { return now }))

	if _, err := store.Get(context.Background(), "mc-1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}
	if _, err := store.SelectQuestion(context.Background(), app.QuestionFilter{}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(context.Background(), "mc-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestQuestionStoreFilters(t *testing.T) {
	store := NewQuestionStore(NewStaticQuestionLoader(sampleQuestions()), 0, WithSeed(1))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		q, err := store.SelectQuestion(ctx, app.QuestionFilter{Difficulty: domain.DifficultyHard})
		if err != nil {
			t.Fatalf("select hard: %v", err)
		}
		if q.Difficulty != domain.DifficultyHard {
			t.Fatalf("expected hard question, got %s", q.Difficulty)
		}
	}

	q, err := store.SelectQuestion(ctx, app.QuestionFilter{Type: domain.TypeTrueFalse})
	if err != nil {
		t.Fatalf("select true/false: %v", err)
	}
	if q.ID != "tf-1" {
		t.Fatalf("expected tf-1, got %s", q.ID)
	}

	_, err = store.SelectQuestion(ctx, app.QuestionFilter{Difficulty: domain.DifficultyHard, Type: domain.TypeTrueFalse})
	if !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected ErrNoQuestionsAvailable, got %v", err)
	}
}

func TestQuestionStoreExcludeRecentFallsBack(t *testing.T) {
	store := NewQuestionStore(NewStaticQuestionLoader(sampleQuestions()), 0, WithSeed(7), WithRecentWindow(10))
	ctx := context.Background()

	filter := app.QuestionFilter{Difficulty: domain.DifficultyEasy, ExcludeRecent: true}
	first, err := store.SelectQuestion(ctx, filter)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	second, err := store.SelectQuestion(ctx, filter)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected a different easy question, got %s twice", first.ID)
	}
	// Both easy questions are now recent; selection falls back to the full set.
	if _, err := store.SelectQuestion(ctx, filter); err != nil {
		t.Fatalf("expected fallback selection, got %v", err)
	}
}

func TestQuestionStoreRecordOutcome(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	store := NewQuestionStore(NewStaticQuestionLoader(sampleQuestions()), 0, WithOutcomeSink(sink))
	ctx := context.Background()

	store.RecordOutcome(ctx, "mc-1", true)
	store.RecordOutcome(ctx, "mc-1", false)

	q, err := store.Get(ctx, "mc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.TimesAsked != 2 || q.TimesCorrect != 1 {
		t.Fatalf("expected 2 asked / 1 correct, got %d / %d", q.TimesAsked, q.TimesCorrect)
	}
	if sink.calls != 2 {
		t.Fatalf("expected sink to be called twice, got %d", sink.calls)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != len(sampleQuestions()) || stats.TimesAsked != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestQuestionStoreAddCustomQuestion(t *testing.T) {
	store := NewQuestionStore(NewStaticQuestionLoader(sampleQuestions()), 0)
	ctx := context.Background()

	_, err := store.AddCustomQuestion(ctx, domain.QuestionRecord{
		Text:       "Which club won MLS Cup 2024?",
		Type:       domain.TypeMultipleChoice,
		Difficulty: domain.DifficultyEasy,
		Options:    []string{"LA Galaxy", "NYRB"},
		Correct:    "A",
	})
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion for 2 options, got %v", err)
	}

	q, err := store.AddCustomQuestion(ctx, domain.QuestionRecord{
		Text:       "LA Galaxy won MLS Cup 2024.",
		Type:       domain.TypeTrueFalse,
		Difficulty: domain.DifficultyEasy,
		Correct:    "true",
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	got, err := store.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("get custom: %v", err)
	}
	if got.Type() != domain.TypeTrueFalse {
		t.Fatalf("expected true/false question, got %s", got.Type())
	}
}

type countingLoader struct {
	QuestionLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuestionLoader.LoadQuestions(ctx)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type recordingSink struct {
	calls int
	err   error
}

func (s *recordingSink) RecordOutcome(context.Context, string, bool) error {
	s.calls++
	return s.err
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:         "mc-1",
			Text:       "Which year was LA Galaxy founded?",
			Difficulty: domain.DifficultyEasy,
			Category:   "history",
			Answer:     domain.MultipleChoice{Options: [4]string{"1994", "1995", "1996", "1997"}, Correct: 1},
		},
		{
			ID:         "mc-2",
			Text:       "What is the Galaxy's home stadium?",
			Difficulty: domain.DifficultyEasy,
			Category:   "stadium",
			Answer:     domain.MultipleChoice{Options: [4]string{"Rose Bowl", "Dignity Health Sports Park", "SoFi", "BMO"}, Correct: 1},
		},
		{
			ID:         "tf-1",
			Text:       "LA Galaxy has won more than three MLS Cups.",
			Difficulty: domain.DifficultyMedium,
			Answer:     domain.TrueFalse{Correct: true},
		},
		{
			ID:         "fb-1",
			Text:       "Name the Galaxy's all-time leading scorer.",
			Difficulty: domain.DifficultyHard,
			Answer:     domain.FillBlank{Canonical: "Landon Donovan", Variants: []string{"Donovan"}},
		},
	}
}
