package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/catalog"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "catalog"

// QuestionLoader fetches the question catalog from a backing store (YAML file, Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// OutcomeSink persists question counters; failures are logged and never block scoring.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, questionID string, correct bool) error
}

// QuestionWriter persists custom questions added at runtime.
type QuestionWriter interface {
	SaveQuestion(ctx context.Context, q domain.Question) error
}

// QuestionStore caches the catalog with TTL to avoid repeated loader hits and
// implements app.QuestionStore on top of it.
type QuestionStore struct {
	loader       QuestionLoader
	sink         OutcomeSink
	writer       QuestionWriter
	ttl          time.Duration
	recentWindow int
	clock        func() time.Time
	log          *logger.Logger
	sf           singleflight.Group

	mu        sync.RWMutex
	rnd       *rand.Rand
	questions []domain.Question
	byID      map[string]int
	expiresAt time.Time
	custom    []domain.Question
	recent    []string
	counters  map[string]*counter
}

type counter struct {
	asked   atomic.Int64
	correct atomic.Int64
}

// QuestionStoreOption customises a QuestionStore.
type QuestionStoreOption func(*QuestionStore)

// WithOutcomeSink mirrors counters into a durable store.
func WithOutcomeSink(sink OutcomeSink) QuestionStoreOption {
	return func(s *QuestionStore) { s.sink = sink }
}

// WithQuestionWriter persists custom questions before they become selectable.
func WithQuestionWriter(w QuestionWriter) QuestionStoreOption {
	return func(s *QuestionStore) { s.writer = w }
}

// WithRecentWindow sets how many recently asked ids ExcludeRecent skips.
func WithRecentWindow(n int) QuestionStoreOption {
	return func(s *QuestionStore) { s.recentWindow = n }
}

// WithSeed makes selection deterministic.
func WithSeed(seed int64) QuestionStoreOption {
	return func(s *QuestionStore) { s.rnd = rand.New(rand.NewSource(seed)) }
}

// WithStoreClock overrides the clock used for cache expiry.
func WithStoreClock(now func() time.Time) QuestionStoreOption {
	return func(s *QuestionStore) { s.clock = now }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(log *logger.Logger) QuestionStoreOption {
	return func(s *QuestionStore) { s.log = log.With("component", "questions") }
}

func NewQuestionStore(loader QuestionLoader, ttl time.Duration, opts ...QuestionStoreOption) *QuestionStore {
	s := &QuestionStore{
		loader:       loader,
		ttl:          ttl,
		recentWindow: 20,
		clock:        time.Now,
		log:          logger.Nop(),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		counters:     make(map[string]*counter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ app.QuestionStore = (*QuestionStore)(nil)

// SelectQuestion draws uniformly from the questions matching filter.
func (s *QuestionStore) SelectQuestion(ctx context.Context, filter app.QuestionFilter) (domain.Question, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Question{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	excluded := make(map[string]struct{}, len(filter.Exclude))
	for _, id := range filter.Exclude {
		excluded[id] = struct{}{}
	}
	var candidates []int
	for i, q := range s.questions {
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Type != "" && q.Type() != filter.Type {
			continue
		}
		if _, skip := excluded[q.ID]; skip {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return domain.Question{}, domain.ErrNoQuestionsAvailable
	}
	if filter.ExcludeRecent && len(s.recent) > 0 {
		recent := make(map[string]struct{}, len(s.recent))
		for _, id := range s.recent {
			recent[id] = struct{}{}
		}
		fresh := candidates[:0:0]
		for _, i := range candidates {
			if _, seen := recent[s.questions[i].ID]; !seen {
				fresh = append(fresh, i)
			}
		}
		if len(fresh) > 0 {
			candidates = fresh
		}
	}

	q := s.questions[candidates[s.rnd.Intn(len(candidates))]]
	s.pushRecentLocked(q.ID)
	return s.withCounters(q), nil
}

// Get returns a question by id.
func (s *QuestionStore) Get(ctx context.Context, id string) (domain.Question, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Question{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
	}
	return s.withCounters(s.questions[i]), nil
}

// RecordOutcome bumps the question counters. It never fails.
func (s *QuestionStore) RecordOutcome(ctx context.Context, questionID string, correct bool) {
	c := s.counterFor(questionID)
	c.asked.Add(1)
	if correct {
		c.correct.Add(1)
	}
	if s.sink == nil {
		return
	}
	if err := s.sink.RecordOutcome(ctx, questionID, correct); err != nil {
		s.log.Warn("question outcome not persisted", "question_id", questionID, "error", err)
	}
}

// AddCustomQuestion validates an authored record and adds it to the catalog.
// Custom questions survive catalog reloads.
func (s *QuestionStore) AddCustomQuestion(ctx context.Context, rec domain.QuestionRecord) (domain.Question, error) {
	if rec.ID == "" {
		rec.ID = "custom-" + uuid.NewString()
	}
	q, err := catalog.Compile(rec)
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Question{}, err
	}
	s.mu.RLock()
	_, dup := s.byID[q.ID]
	s.mu.RUnlock()
	if dup {
		return domain.Question{}, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidQuestion, q.ID)
	}
	if s.writer != nil {
		if err := s.writer.SaveQuestion(ctx, q); err != nil {
			return domain.Question{}, fmt.Errorf("save question: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byID[q.ID]; dup {
		return domain.Question{}, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidQuestion, q.ID)
	}
	s.custom = append(s.custom, q)
	s.byID[q.ID] = len(s.questions)
	s.questions = append(s.questions, q)
	s.log.Info("custom question added", "question_id", q.ID, "type", q.Type(), "difficulty", q.Difficulty)
	return q, nil
}

// Stats summarises the catalog and its counters.
func (s *QuestionStore) Stats(ctx context.Context) (domain.QuestionStats, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.QuestionStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.QuestionStats{
		Total:        len(s.questions),
		ByDifficulty: make(map[domain.Difficulty]int),
		ByType:       make(map[domain.QuestionType]int),
		ByCategory:   make(map[string]int),
	}
	for _, q := range s.questions {
		q = s.withCounters(q)
		stats.ByDifficulty[q.Difficulty]++
		stats.ByType[q.Type()]++
		stats.ByCategory[q.Category]++
		stats.TimesAsked += q.TimesAsked
		stats.TimesCorrect += q.TimesCorrect
	}
	return stats, nil
}

// Questions returns a snapshot of the catalog ordered by id.
func (s *QuestionStore) Questions(ctx context.Context) ([]domain.Question, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, s.withCounters(q))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *QuestionStore) ensureLoaded(ctx context.Context) error {
	now := s.clock()
	s.mu.RLock()
	fresh := s.questions != nil && (s.ttl <= 0 || s.expiresAt.After(now))
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	_, err, _ := s.sf.Do(catalogKey, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		fresh := s.questions != nil && (s.ttl <= 0 || s.expiresAt.After(now))
		s.mu.RUnlock()
		if fresh {
			return nil, nil
		}

		loaded, err := s.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		questions := make([]domain.Question, 0, len(loaded)+len(s.custom))
		byID := make(map[string]int, cap(questions))
		for _, q := range append(loaded, s.custom...) {
			if _, dup := byID[q.ID]; dup {
				continue
			}
			byID[q.ID] = len(questions)
			questions = append(questions, q)
			if _, ok := s.counters[q.ID]; !ok {
				c := &counter{}
				c.asked.Store(q.TimesAsked)
				c.correct.Store(q.TimesCorrect)
				s.counters[q.ID] = c
			}
		}
		s.questions = questions
		s.byID = byID
		s.expiresAt = now.Add(s.ttlWithJitter())
		s.log.Debug("question catalog loaded", "questions", len(questions))
		return nil, nil
	})
	if err != nil {
		s.mu.RLock()
		stale := s.questions != nil
		s.mu.RUnlock()
		if stale {
			s.log.Warn("catalog reload failed, serving cached questions", "error", err)
			return nil
		}
		return fmt.Errorf("load questions: %w", err)
	}
	return nil
}

func (s *QuestionStore) counterFor(id string) *counter {
	s.mu.RLock()
	c, ok := s.counters[id]
	s.mu.RUnlock()
	if ok {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.counters[id]; !ok {
		c = &counter{}
		s.counters[id] = c
	}
	return c
}

// withCounters copies the live counters into q. Callers hold s.mu.
func (s *QuestionStore) withCounters(q domain.Question) domain.Question {
	if c, ok := s.counters[q.ID]; ok {
		q.TimesAsked = c.asked.Load()
		q.TimesCorrect = c.correct.Load()
	}
	return q
}

func (s *QuestionStore) pushRecentLocked(id string) {
	if s.recentWindow <= 0 {
		return
	}
	s.recent = append(s.recent, id)
	if over := len(s.recent) - s.recentWindow; over > 0 {
		s.recent = append(s.recent[:0:0], s.recent[over:]...)
	}
}

func (s *QuestionStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return append([]domain.Question(nil), l.questions...), nil
}
