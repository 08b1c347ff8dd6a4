package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ProgressStore persists weekly challenge progress as JSON documents:
//
//	trivia:weekly:{weekStart}:set           -> ["q1", ...]
//	trivia:weekly:{weekStart}:user:{userID} -> WeeklyProgress
//
// Keys live for ttl past the write, which should exceed one week.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ app.ProgressRepository = (*ProgressStore)(nil)

func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) LoadProgress(ctx context.Context, userID string, weekStart time.Time) (domain.WeeklyProgress, bool, error) {
	var p domain.WeeklyProgress
	ok, err := s.getJSON(ctx, progressKey(userID, weekStart), &p)
	return p, ok, err
}

func (s *ProgressStore) SaveProgress(ctx context.Context, p domain.WeeklyProgress) error {
	return s.setJSON(ctx, progressKey(p.UserID, p.WeekStart), p)
}

func (s *ProgressStore) WeeklySet(ctx context.Context, weekStart time.Time) ([]string, bool, error) {
	var ids []string
	ok, err := s.getJSON(ctx, setKey(weekStart), &ids)
	return ids, ok, err
}

// SaveWeeklySet keeps the first stored set for a week.
func (s *ProgressStore) SaveWeeklySet(ctx context.Context, weekStart time.Time, questionIDs []string) error {
	raw, err := json.Marshal(questionIDs)
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, setKey(weekStart), raw, s.ttl).Err()
}

func (s *ProgressStore) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ProgressStore) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

func weekPrefix(weekStart time.Time) string {
	return "trivia:weekly:" + strconv.FormatInt(weekStart.Unix(), 10)
}

func setKey(weekStart time.Time) string {
	return weekPrefix(weekStart) + ":set"
}

func progressKey(userID string, weekStart time.Time) string {
	return weekPrefix(weekStart) + ":user:" + userID
}
