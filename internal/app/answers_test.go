package app_test

import (
	"errors"
	"testing"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

func TestFillBlankNormalisation(t *testing.T) {
	q := domain.Question{ID: "fb", Answer: domain.FillBlank{Canonical: "Landon Donovan", Variants: []string{"Donovan", "L. Donovan"}}}
	for _, raw := range []string{"Landon Donovan", "landon donovan", " Landon Donovan ", "LANDON   donovan", "donovan", "l. donovan"} {
		r, err := app.ParseAnswer(q, raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !app.CheckAnswer(q, r) {
			t.Fatalf("expected %q to match", raw)
		}
	}
	r, _ := app.ParseAnswer(q, "Beckham")
	if app.CheckAnswer(q, r) {
		t.Fatalf("expected Beckham to be wrong")
	}
	if _, err := app.ParseAnswer(q, "   "); !errors.Is(err, domain.ErrInvalidAnswerFormat) {
		t.Fatalf("expected empty answer to be rejected, got %v", err)
	}
}

func TestMultipleChoiceSelectors(t *testing.T) {
	q := domain.Question{ID: "mc", Answer: domain.MultipleChoice{Options: [4]string{"1994", "1995", "Rose Bowl", "4"}, Correct: 1}}
	for _, raw := range []string{"2", "B", "b)", "b.", "🇧", "1995"} {
		r, err := app.ParseAnswer(q, raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !app.CheckAnswer(q, r) {
			t.Fatalf("expected %q to select B", raw)
		}
	}
	// Selectors win over option text that looks like a selector.
	r, err := app.ParseAnswer(q, "4")
	if err != nil || r.Choice != 3 {
		t.Fatalf("expected 4 to select D, got %+v %v", r, err)
	}
	r, err = app.ParseAnswer(q, "rose bowl")
	if err != nil || r.Choice != 2 {
		t.Fatalf("expected option text to select C, got %+v %v", r, err)
	}
	if _, err := app.ParseAnswer(q, "E"); !errors.Is(err, domain.ErrInvalidAnswerFormat) {
		t.Fatalf("expected E to be rejected, got %v", err)
	}
}

func TestTrueFalseSelectors(t *testing.T) {
	q := domain.Question{ID: "tf", Answer: domain.TrueFalse{Correct: false}}
	for _, raw := range []string{"❌", "false", "F", "no", "N"} {
		r, err := app.ParseAnswer(q, raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !app.CheckAnswer(q, r) {
			t.Fatalf("expected %q to be correct", raw)
		}
	}
	r, _ := app.ParseAnswer(q, "✅")
	if app.CheckAnswer(q, r) {
		t.Fatalf("expected ✅ to be wrong")
	}
	if _, err := app.ParseAnswer(q, "maybe"); !errors.Is(err, domain.ErrInvalidAnswerFormat) {
		t.Fatalf("expected maybe to be rejected, got %v", err)
	}
	if got := app.Affordances(domain.TypeTrueFalse); len(got) != 2 {
		t.Fatalf("expected two reactions, got %v", got)
	}
}
