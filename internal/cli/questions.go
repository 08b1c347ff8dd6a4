package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"trivia-bot/internal/catalog"
	"trivia-bot/internal/config"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"
	"trivia-bot/internal/infra/postgres"
	redisstore "trivia-bot/internal/infra/redis"
	"trivia-bot/internal/logger"

	"github.com/spf13/cobra"
)

// NewQuestionsCmd groups the catalog maintenance subcommands.
func NewQuestionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Manage the question catalog",
	}
	cmd.AddCommand(newQuestionsValidateCmd())
	cmd.AddCommand(newQuestionsImportCmd(configPath))
	cmd.AddCommand(newQuestionsStatsCmd(configPath))
	return cmd
}

func newQuestionsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse a YAML question file and print its composition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, err := readQuestionFile(args[0])
			if err != nil {
				return err
			}
			return printStats(cmd.Context(), cmd, memory.NewStaticQuestionLoader(questions))
		},
	}
}

func newQuestionsImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert a YAML question file into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			questions, err := readQuestionFile(args[0])
			if err != nil {
				return err
			}
			cfg, log, err := loadForCommand(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
				return err
			}

			eng, err := connect(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer eng.close()

			n, err := postgres.NewQuestionRepository(eng.pool).ImportQuestions(ctx, questions)
			if err != nil {
				return err
			}
			if eng.redis != nil {
				cache := redisstore.NewCatalogCache(eng.redis, nil, config.TTLDuration(cfg.Questions.TTL, 10*time.Minute))
				if err := cache.Invalidate(ctx); err != nil {
					log.Warn("catalog cache not invalidated", "error", err)
				}
			}
			log.Info("questions imported", "file", args[0], "questions", n)
			return nil
		},
	}
}

func newQuestionsStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print catalog composition and answer counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadForCommand(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			eng, err := connect(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer eng.close()

			loader, err := eng.questionLoader(ctx)
			if err != nil {
				return err
			}
			return printStats(ctx, cmd, loader)
		},
	}
}

func readQuestionFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return catalog.ParseQuestions(data)
}

func loadForCommand(configPath string) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func printStats(ctx context.Context, cmd *cobra.Command, loader memory.QuestionLoader) error {
	store := memory.NewQuestionStore(loader, time.Minute)
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
