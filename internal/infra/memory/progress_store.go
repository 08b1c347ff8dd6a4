package memory

import (
	"context"
	"sync"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

// ProgressStore keeps weekly challenge progress and weekly sets in memory.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[string]domain.WeeklyProgress
	sets     map[int64][]string
}

var _ app.ProgressRepository = (*ProgressStore)(nil)

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		progress: make(map[string]domain.WeeklyProgress),
		sets:     make(map[int64][]string),
	}
}

func progressKey(userID string, weekStart time.Time) string {
	return weekStart.UTC().Format("2006-01-02") + "/" + userID
}

func (s *ProgressStore) LoadProgress(_ context.Context, userID string, weekStart time.Time) (domain.WeeklyProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[progressKey(userID, weekStart)]
	if ok {
		p.QuestionIDs = append([]string(nil), p.QuestionIDs...)
	}
	return p, ok, nil
}

func (s *ProgressStore) SaveProgress(_ context.Context, p domain.WeeklyProgress) error {
	p.QuestionIDs = append([]string(nil), p.QuestionIDs...)
	s.mu.Lock()
	s.progress[progressKey(p.UserID, p.WeekStart)] = p
	s.mu.Unlock()
	return nil
}

func (s *ProgressStore) WeeklySet(_ context.Context, weekStart time.Time) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.sets[weekStart.Unix()]
	return append([]string(nil), ids...), ok, nil
}

func (s *ProgressStore) SaveWeeklySet(_ context.Context, weekStart time.Time, questionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[weekStart.Unix()]; !ok {
		s.sets[weekStart.Unix()] = append([]string(nil), questionIDs...)
	}
	return nil
}
