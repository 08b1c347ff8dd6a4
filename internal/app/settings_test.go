package app_test

import (
	"errors"
	"testing"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

func TestSettingsGetSet(t *testing.T) {
	s := app.NewSettings(app.DefaultGameSettings())

	if got, err := s.Get("daily_timeout"); err != nil || got != "45s" {
		t.Fatalf("expected 45s, got %q %v", got, err)
	}
	if err := s.Set("default_timeout", "20s"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.Snapshot().TimeoutFor(domain.KindNormal); got != 20*time.Second {
		t.Fatalf("expected 20s, got %v", got)
	}
	if err := s.Set("default_timeout", "1s"); !errors.Is(err, domain.ErrInvalidSetting) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	if err := s.Set("weekly_timeout", "soon"); !errors.Is(err, domain.ErrInvalidSetting) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := s.Get("bot_token"); !errors.Is(err, domain.ErrUnknownSetting) {
		t.Fatalf("expected ErrUnknownSetting, got %v", err)
	}
	if keys := s.Keys(); len(keys) != 4 || keys[0] != "daily_timeout" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestSettingsApplyToNextQuestion(t *testing.T) {
	e := newEngine(t, testQuestions())
	if err := e.settings.Set("default_timeout", "10s"); err != nil {
		t.Fatalf("set: %v", err)
	}
	prompt, err := e.manager.StartGame(e.ctx, app.StartRequest{ChannelID: "c1", UserID: "u1"})
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	if prompt.Timeout != 10*time.Second || e.timers.last(t).d != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", prompt.Timeout)
	}
}
