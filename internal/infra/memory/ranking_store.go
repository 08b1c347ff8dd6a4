package memory

import (
	"context"
	"sync"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

// RankingStore is an in-memory period ledger.
type RankingStore struct {
	mu      sync.RWMutex
	entries map[rankingKey]domain.RankingEntry
}

type rankingKey struct {
	period domain.Period
	start  int64
	userID string
}

var _ app.RankingRepository = (*RankingStore)(nil)

func NewRankingStore() *RankingStore {
	return &RankingStore{entries: make(map[rankingKey]domain.RankingEntry)}
}

func (s *RankingStore) AddPoints(_ context.Context, e domain.RankingEntry) error {
	key := rankingKey{period: e.Period, start: e.PeriodStart.Unix(), userID: e.UserID}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[key]
	if !ok {
		cur = domain.RankingEntry{UserID: e.UserID, Period: e.Period, PeriodStart: e.PeriodStart}
	}
	cur.Points += e.Points
	if e.UpdatedAt.After(cur.UpdatedAt) {
		cur.UpdatedAt = e.UpdatedAt
	}
	s.entries[key] = cur
	return nil
}

func (s *RankingStore) Entries(_ context.Context, period domain.Period, start time.Time) ([]domain.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RankingEntry
	for k, e := range s.entries {
		if k.period == period && k.start == start.Unix() {
			out = append(out, e)
		}
	}
	return out, nil
}
