package cli

import (
	"context"
	"fmt"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/catalog"
	"trivia-bot/internal/config"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"
	"trivia-bot/internal/infra/postgres"
	redisstore "trivia-bot/internal/infra/redis"
	"trivia-bot/internal/logger"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

const (
	rankingRetention = 400 * 24 * time.Hour
	progressTTL      = 8 * 24 * time.Hour
)

// engine is the wired application plus the connections it owns.
type engine struct {
	cfg        config.Config
	log        *logger.Logger
	questions  *memory.QuestionStore
	stats      *app.Statistics
	board      *app.Leaderboard
	evaluator  *app.AchievementEvaluator
	challenges *app.ChallengeScheduler
	settings   *app.Settings

	pool  *pgxpool.Pool
	db    *bun.DB
	redis *redis.Client
}

// connect opens the configured backing stores. Each is optional; without them
// the engine runs on the in-memory stores.
func connect(ctx context.Context, cfg config.Config, log *logger.Logger) (*engine, error) {
	e := &engine{cfg: cfg, log: log}
	if cfg.Redis.Addr != "" {
		e.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := e.redis.Ping(ctx).Err(); err != nil {
			e.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		e.pool = pool
		e.db = postgres.OpenDB(cfg.Postgres.URL)
	}
	return e, nil
}

// build wires the engine services on top of the connected stores.
func (e *engine) build(ctx context.Context) error {
	loc, err := e.cfg.Location()
	if err != nil {
		return fmt.Errorf("leaderboard timezone: %w", err)
	}
	storeTimeout := config.TTLDuration(e.cfg.Game.StoreTimeout, 3*time.Second)
	statsCfg := app.StatisticsConfig{Location: loc, Timeout: storeTimeout}

	loader, err := e.questionLoader(ctx)
	if err != nil {
		return err
	}
	opts := []memory.QuestionStoreOption{
		memory.WithRecentWindow(e.cfg.Questions.RecentWindow),
		memory.WithStoreLogger(e.log),
	}
	if e.pool != nil {
		repo := postgres.NewQuestionRepository(e.pool)
		opts = append(opts, memory.WithOutcomeSink(repo), memory.WithQuestionWriter(repo))
	}
	e.questions = memory.NewQuestionStore(loader, config.TTLDuration(e.cfg.Questions.TTL, 10*time.Minute), opts...)

	var (
		profiles     app.ProfileRepository
		achievements app.AchievementRepository
		ranking      app.RankingRepository
		progress     app.ProgressRepository
	)
	switch {
	case e.db != nil:
		store := postgres.NewProfileStore(e.db)
		profiles, achievements = store, store
	default:
		store := memory.NewProfileStore()
		profiles, achievements = store, store
	}
	switch {
	case e.redis != nil:
		ranking = redisstore.NewRankingStore(e.redis, rankingRetention)
		progress = redisstore.NewProgressStore(e.redis, config.TTLDuration(e.cfg.Redis.TTL, progressTTL))
	case e.db != nil:
		ranking = postgres.NewRankingStore(e.db)
		progress = postgres.NewProgressStore(e.db)
	default:
		ranking = memory.NewRankingStore()
		progress = memory.NewProgressStore()
	}

	catalogAchievements, err := catalog.DefaultAchievements()
	if err != nil {
		return err
	}

	e.board = app.NewLeaderboard(profiles, ranking, statsCfg, e.log)
	e.stats = app.NewStatistics(profiles, e.board, statsCfg, e.log)
	e.evaluator = app.NewAchievementEvaluator(catalogAchievements, achievements, e.stats, e.log)
	e.challenges = app.NewChallengeScheduler(e.stats, e.questions, progress, e.log)
	e.settings = app.NewSettings(app.GameSettings{
		DefaultTimeout: config.TTLDuration(e.cfg.Game.DefaultTimeout, 30*time.Second),
		DailyTimeout:   config.TTLDuration(e.cfg.Game.DailyTimeout, 45*time.Second),
		WeeklyTimeout:  config.TTLDuration(e.cfg.Game.WeeklyTimeout, 60*time.Second),
		MaxSessionAge:  config.TTLDuration(e.cfg.Game.MaxSessionAge, 5*time.Minute),
	})
	return nil
}

// questionLoader picks the catalog source: Postgres, then a YAML file, then
// the bundled questions. Redis shares the loaded catalog between replicas.
func (e *engine) questionLoader(ctx context.Context) (memory.QuestionLoader, error) {
	var loader memory.QuestionLoader
	switch {
	case e.pool != nil:
		repo := postgres.NewQuestionRepository(e.pool)
		if err := e.seedQuestions(ctx, repo); err != nil {
			return nil, err
		}
		loader = repo
	case e.cfg.Questions.File != "":
		loader = catalog.NewFileLoader(e.cfg.Questions.File)
	default:
		questions, err := catalog.DefaultQuestions()
		if err != nil {
			return nil, err
		}
		loader = memory.NewStaticQuestionLoader(questions)
	}
	if e.redis != nil {
		loader = redisstore.NewCatalogCache(e.redis, loader, config.TTLDuration(e.cfg.Questions.TTL, 10*time.Minute))
	}
	return loader, nil
}

// seedQuestions fills an empty questions table from the configured file or the bundled catalog.
func (e *engine) seedQuestions(ctx context.Context, repo *postgres.QuestionRepository) error {
	existing, err := repo.LoadQuestions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	questions, err := e.seedSource(ctx)
	if err != nil {
		return err
	}
	n, err := repo.ImportQuestions(ctx, questions)
	if err != nil {
		return err
	}
	e.log.Info("question table seeded", "questions", n)
	return nil
}

func (e *engine) seedSource(ctx context.Context) ([]domain.Question, error) {
	if e.cfg.Questions.File != "" {
		return catalog.NewFileLoader(e.cfg.Questions.File).LoadQuestions(ctx)
	}
	return catalog.DefaultQuestions()
}

func (e *engine) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.redis != nil {
		_ = e.redis.Close()
	}
}
