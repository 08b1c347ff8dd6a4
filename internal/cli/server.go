package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-bot/internal/app"
	"trivia-bot/internal/bot"
	"trivia-bot/internal/config"
	"trivia-bot/internal/jobs"
	"trivia-bot/internal/logger"
	transport "trivia-bot/internal/transport/http"

	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia engine and its platform gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	eng, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer eng.close()
	if err := eng.build(ctx); err != nil {
		return err
	}
	loc, _ := cfg.Location()

	hub := transport.NewHub()
	sessions := app.NewSessionManager(app.ManagerDeps{
		Questions:  eng.questions,
		Stats:      eng.stats,
		Evaluator:  eng.evaluator,
		Challenges: eng.challenges,
		Presenter:  hub,
		Settings:   eng.settings,
		Logger:     log,
	})
	defer sessions.Shutdown()

	handler := bot.NewHandler(bot.Deps{
		Sessions:    sessions,
		Stats:       eng.stats,
		Leaderboard: eng.board,
		Evaluator:   eng.evaluator,
		Challenges:  eng.challenges,
		Questions:   eng.questions,
		Settings:    eng.settings,
		Presenter:   hub,
	}, cfg.Admins, cfg.Leaderboard.DefaultLimit, log)

	scheduler, err := jobs.New(jobs.Deps{
		Sessions:   sessions,
		Stats:      eng.stats,
		Challenges: eng.challenges,
		Presenter:  hub,
	}, jobs.Config{
		SweepSchedule:  cfg.Jobs.SweepSchedule,
		WeeklySchedule: cfg.Jobs.WeeklySchedule,
		AnnounceTo:     cfg.Jobs.AnnounceTo,
		Location:       loc,
	}, log)
	if err != nil {
		return err
	}
	scheduler.Start()

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.Routes(transport.NewGateway(hub, handler, log)),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting trivia engine", "port", finalPort, "postgres", eng.pool != nil, "redis", eng.redis != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if pending := eng.stats.RetryPending(shutdownCtx); pending > 0 {
		log.Warn("statistics writes lost on shutdown", "pending", pending)
	}
	return server.Shutdown(shutdownCtx)
}
