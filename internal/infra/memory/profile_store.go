package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileRepository and
// app.AchievementRepository.
type ProfileStore struct {
	mu           sync.RWMutex
	profiles     map[string]*domain.UserProfile
	achievements map[string]map[string]domain.UserAchievement
}

var (
	_ app.ProfileRepository     = (*ProfileStore)(nil)
	_ app.AchievementRepository = (*ProfileStore)(nil)
)

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles:     make(map[string]*domain.UserProfile),
		achievements: make(map[string]map[string]domain.UserAchievement),
	}
}

func (s *ProfileStore) GetOrCreate(_ context.Context, userID string, now time.Time) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(userID, now), nil
}

// Update applies fn to the stored profile under the store lock.
func (s *ProfileStore) Update(_ context.Context, userID string, now time.Time, fn func(*domain.UserProfile)) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(userID, now)
	next := *p
	fn(&next)
	*p = next
	return next, nil
}

func (s *ProfileStore) List(_ context.Context) ([]domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Unlock inserts the (user, achievement) pair unless it already exists.
func (s *ProfileStore) Unlock(_ context.Context, ua domain.UserAchievement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned, ok := s.achievements[ua.UserID]
	if !ok {
		owned = make(map[string]domain.UserAchievement)
		s.achievements[ua.UserID] = owned
	}
	if _, exists := owned[ua.AchievementID]; exists {
		return false, nil
	}
	owned[ua.AchievementID] = ua
	return true, nil
}

func (s *ProfileStore) ListAchievements(_ context.Context, userID string) ([]domain.UserAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAchievement, 0, len(s.achievements[userID]))
	for _, ua := range s.achievements[userID] {
		out = append(out, ua)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.Before(out[j].UnlockedAt)
		}
		return out[i].AchievementID < out[j].AchievementID
	})
	return out, nil
}

func (s *ProfileStore) getOrCreateLocked(userID string, now time.Time) *domain.UserProfile {
	if p, ok := s.profiles[userID]; ok {
		return p
	}
	p := &domain.UserProfile{UserID: userID, CreatedAt: now}
	s.profiles[userID] = p
	return p
}
