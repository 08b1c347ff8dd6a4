package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"trivia-bot/internal/domain"
)

// GameSettings are the runtime-adjustable timing knobs.
type GameSettings struct {
	DefaultTimeout time.Duration
	DailyTimeout   time.Duration
	WeeklyTimeout  time.Duration
	MaxSessionAge  time.Duration
}

// DefaultGameSettings mirrors the shipped config defaults.
func DefaultGameSettings() GameSettings {
	return GameSettings{
		DefaultTimeout: 30 * time.Second,
		DailyTimeout:   45 * time.Second,
		WeeklyTimeout:  60 * time.Second,
		MaxSessionAge:  5 * time.Minute,
	}
}

// TimeoutFor returns the per-question timeout of a challenge kind.
func (g GameSettings) TimeoutFor(kind domain.ChallengeKind) time.Duration {
	switch kind {
	case domain.KindDaily:
		return g.DailyTimeout
	case domain.KindWeekly:
		return g.WeeklyTimeout
	}
	return g.DefaultTimeout
}

type settingRange struct {
	min, max time.Duration
	field    func(*GameSettings) *time.Duration
}

var settingRanges = map[string]settingRange{
	"default_timeout": {5 * time.Second, 5 * time.Minute, func(g *GameSettings) *time.Duration { return &g.DefaultTimeout }},
	"daily_timeout":   {5 * time.Second, 5 * time.Minute, func(g *GameSettings) *time.Duration { return &g.DailyTimeout }},
	"weekly_timeout":  {5 * time.Second, 5 * time.Minute, func(g *GameSettings) *time.Duration { return &g.WeeklyTimeout }},
	"max_session_age": {time.Minute, time.Hour, func(g *GameSettings) *time.Duration { return &g.MaxSessionAge }},
}

// Settings guards GameSettings for admin get/set at runtime.
type Settings struct {
	mu     sync.RWMutex
	values GameSettings
}

func NewSettings(values GameSettings) *Settings {
	return &Settings{values: values}
}

// Snapshot returns a copy of the current values.
func (s *Settings) Snapshot() GameSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Keys lists the adjustable setting names.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(settingRanges))
	for k := range settingRanges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get renders a setting value.
func (s *Settings) Get(key string) (string, error) {
	rng, ok := settingRanges[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownSetting, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.values
	return rng.field(&v).String(), nil
}

// Set parses and stores a duration setting within its allowed range.
func (s *Settings) Set(key, raw string) error {
	rng, ok := settingRanges[key]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSetting, key)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidSetting, key, err)
	}
	if d < rng.min || d > rng.max {
		return fmt.Errorf("%w: %s must be between %s and %s", domain.ErrInvalidSetting, key, rng.min, rng.max)
	}
	s.mu.Lock()
	*rng.field(&s.values) = d
	s.mu.Unlock()
	return nil
}
