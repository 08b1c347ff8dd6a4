package redis

import (
	"context"
	"strconv"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RankingStore keeps the weekly/monthly ledger in Redis.
// Points are a sorted set per period:  ZINCRBY trivia:lb:{period}:{start} {points} {userID}
// Last update times are a hash beside it: HSET trivia:lb:{period}:{start}:updated {userID} {unixNano}
type RankingStore struct {
	client    *redis.Client
	retention time.Duration
}

var _ app.RankingRepository = (*RankingStore)(nil)

// addPoints increments the score and keeps the latest update time. Both keys
// share the retention ttl.
var addPoints = redis.NewScript(`
redis.call("ZINCRBY", KEYS[1], ARGV[1], ARGV[2])
local prev = tonumber(redis.call("HGET", KEYS[2], ARGV[2]) or "0")
if tonumber(ARGV[3]) > prev then
  redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
end
if tonumber(ARGV[4]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[4])
  redis.call("PEXPIRE", KEYS[2], ARGV[4])
end
return 1
`)

// NewRankingStore creates the store. Period keys expire after retention; zero keeps them forever.
func NewRankingStore(client *redis.Client, retention time.Duration) *RankingStore {
	return &RankingStore{client: client, retention: retention}
}

func (s *RankingStore) AddPoints(ctx context.Context, e domain.RankingEntry) error {
	key := rankingKey(e.Period, e.PeriodStart)
	return addPoints.Run(ctx, s.client,
		[]string{key, key + ":updated"},
		e.Points, e.UserID, e.UpdatedAt.UnixNano(), s.retention.Milliseconds(),
	).Err()
}

func (s *RankingStore) Entries(ctx context.Context, period domain.Period, start time.Time) ([]domain.RankingEntry, error) {
	key := rankingKey(period, start)
	scores, err := s.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	updated, err := s.client.HGetAll(ctx, key+":updated").Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.RankingEntry, 0, len(scores))
	for _, z := range scores {
		userID, _ := z.Member.(string)
		entry := domain.RankingEntry{
			UserID:      userID,
			Period:      period,
			PeriodStart: start,
			Points:      int(z.Score),
		}
		if raw, ok := updated[userID]; ok {
			if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
				entry.UpdatedAt = time.Unix(0, ns).UTC()
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func rankingKey(period domain.Period, start time.Time) string {
	return "trivia:lb:" + string(period) + ":" + strconv.FormatInt(start.Unix(), 10)
}
