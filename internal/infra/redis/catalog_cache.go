package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogCacheKey = "trivia:catalog"

// CatalogCache is a memory.QuestionLoader that keeps the flattened catalog in
// Redis so several bot replicas share one load from the backing store.
// The catalog is stored as a JSON array of question records under a single key.
type CatalogCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ memory.QuestionLoader = (*CatalogCache)(nil)

func NewCatalogCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(catalogCacheKey, func() (interface{}, error) {
		// Re-check cache in case another replica filled it.
		if questions, ok := c.cached(ctx); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		records := make([]domain.QuestionRecord, 0, len(questions))
		for _, q := range questions {
			records = append(records, domain.RecordFromQuestion(q))
		}
		if raw, err := json.Marshal(records); err == nil {
			_ = c.client.Set(ctx, catalogCacheKey, raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the shared copy, forcing the next load through to the backing store.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, catalogCacheKey).Err()
}

func (c *CatalogCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, catalogCacheKey).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var records []domain.QuestionRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false
	}
	questions, err := fromRecords(records)
	if err != nil {
		return nil, false
	}
	return questions, true
}

func fromRecords(records []domain.QuestionRecord) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(records))
	for _, r := range records {
		q, err := r.Question()
		if err != nil {
			return nil, fmt.Errorf("cached question %s: %w", r.ID, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
