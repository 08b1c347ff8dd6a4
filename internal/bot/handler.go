// Package bot is the inbound command surface the chat platform adapter calls.
package bot

import (
	"context"
	"fmt"
	"strings"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"
)

const maxLeaderboardLimit = 25

// Deps wires the handler to the engine.
type Deps struct {
	Sessions    *app.SessionManager
	Stats       *app.Statistics
	Leaderboard *app.Leaderboard
	Evaluator   *app.AchievementEvaluator
	Challenges  *app.ChallengeScheduler
	Questions   app.QuestionStore
	Settings    *app.Settings
	Presenter   app.Presenter
}

// Handler translates platform commands into engine calls. Admin commands are
// checked against the configured admin ids.
type Handler struct {
	Deps
	admins       map[string]struct{}
	defaultLimit int
	log          *logger.Logger
}

func NewHandler(deps Deps, admins []string, defaultLimit int, log *logger.Logger) *Handler {
	set := make(map[string]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Handler{
		Deps:         deps,
		admins:       set,
		defaultLimit: defaultLimit,
		log:          log.With("component", "bot"),
	}
}

// StartGameCommand is a /trivia request. Difficulty and Type are optional.
type StartGameCommand struct {
	ChannelID  string `json:"channelId"`
	UserID     string `json:"userId"`
	Difficulty string `json:"difficulty,omitempty"`
	Type       string `json:"type,omitempty"`
}

// AnswerCommand is a chat message or reaction in a channel with a live question.
type AnswerCommand struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Token     string `json:"token,omitempty"`
}

// StatsReply is the /stats view of a user.
type StatsReply struct {
	Profile      domain.UserProfile `json:"profile"`
	Accuracy     float64            `json:"accuracy"`
	Rank         domain.UserRank    `json:"rank"`
	Achievements int                `json:"achievements"`
}

// AchievementsReply lists unlocked and still locked achievements.
type AchievementsReply struct {
	Unlocked []domain.UnlockedAchievement `json:"unlocked"`
	Locked   []domain.AchievementProgress `json:"locked"`
}

// RankReply is a user's standing in one period with the players around them.
// Change is set for the weekly period once both weeks rank the user.
type RankReply struct {
	Rank   domain.UserRank           `json:"rank"`
	Nearby []domain.LeaderboardEntry `json:"nearby"`
	Change *domain.RankChange        `json:"change,omitempty"`
}

// OnStartGame starts a regular game. Without an explicit difficulty the user's
// preferred difficulty applies.
func (h *Handler) OnStartGame(ctx context.Context, cmd StartGameCommand) (domain.QuestionPrompt, error) {
	req := app.StartRequest{ChannelID: cmd.ChannelID, UserID: cmd.UserID}
	if cmd.Difficulty != "" {
		d, ok := domain.ParseDifficulty(strings.ToLower(strings.TrimSpace(cmd.Difficulty)))
		if !ok {
			return domain.QuestionPrompt{}, fmt.Errorf("%w: difficulty %q", ErrInvalidOption, cmd.Difficulty)
		}
		req.Difficulty = d
	} else if p, err := h.Stats.GetOrCreate(ctx, cmd.UserID); err == nil {
		req.Difficulty = p.PreferredDifficulty
	}
	if cmd.Type != "" {
		t, ok := domain.ParseQuestionType(strings.ToLower(strings.TrimSpace(cmd.Type)))
		if !ok {
			return domain.QuestionPrompt{}, fmt.Errorf("%w: type %q", ErrInvalidOption, cmd.Type)
		}
		req.Type = t
	}
	return h.Sessions.StartGame(ctx, req)
}

// OnAnswerAttempt submits an answer. A nil outcome with a nil error means the
// attempt was ignored.
func (h *Handler) OnAnswerAttempt(ctx context.Context, cmd AnswerCommand) (*domain.Outcome, error) {
	return h.Sessions.SubmitAnswer(ctx, app.AnswerAttempt{
		ChannelID: cmd.ChannelID,
		UserID:    cmd.UserID,
		Raw:       cmd.Text,
		Token:     cmd.Token,
	})
}

func (h *Handler) OnStatsQuery(ctx context.Context, userID string) (StatsReply, error) {
	p, err := h.Stats.GetOrCreate(ctx, userID)
	if err != nil {
		return StatsReply{}, err
	}
	rank, err := h.Leaderboard.GetUserRank(ctx, userID, domain.PeriodAll)
	if err != nil {
		return StatsReply{}, err
	}
	owned, err := h.Evaluator.List(ctx, userID)
	if err != nil {
		return StatsReply{}, err
	}
	return StatsReply{Profile: p, Accuracy: p.Accuracy(), Rank: rank, Achievements: len(owned)}, nil
}

// OnLeaderboardQuery builds the board and posts it to the channel.
func (h *Handler) OnLeaderboardQuery(ctx context.Context, channelID, period string, limit int) (domain.Leaderboard, error) {
	p, ok := domain.ParsePeriod(strings.ToLower(strings.TrimSpace(period)))
	if !ok {
		return domain.Leaderboard{}, fmt.Errorf("%w: %q", domain.ErrInvalidPeriod, period)
	}
	if limit <= 0 {
		limit = h.defaultLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	board, err := h.Leaderboard.GetTop(ctx, p, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if err := h.Presenter.PostLeaderboard(ctx, channelID, board); err != nil {
		h.log.Warn("leaderboard not posted", "channel_id", channelID, "error", err)
	}
	return board, nil
}

func (h *Handler) OnAchievementsQuery(ctx context.Context, userID string) (AchievementsReply, error) {
	owned, err := h.Evaluator.List(ctx, userID)
	if err != nil {
		return AchievementsReply{}, err
	}
	locked, err := h.Evaluator.LockedProgress(ctx, userID)
	if err != nil {
		return AchievementsReply{}, err
	}
	return AchievementsReply{Unlocked: owned, Locked: locked}, nil
}

const nearbySpan = 3

// OnRankQuery reports where a user stands in a period.
func (h *Handler) OnRankQuery(ctx context.Context, userID, period string) (RankReply, error) {
	p, ok := domain.ParsePeriod(strings.ToLower(strings.TrimSpace(period)))
	if !ok {
		return RankReply{}, fmt.Errorf("%w: %q", domain.ErrInvalidPeriod, period)
	}
	rank, err := h.Leaderboard.GetUserRank(ctx, userID, p)
	if err != nil {
		return RankReply{}, err
	}
	nearby, err := h.Leaderboard.Nearby(ctx, userID, p, nearbySpan)
	if err != nil {
		return RankReply{}, err
	}
	reply := RankReply{Rank: rank, Nearby: nearby}
	if p == domain.PeriodWeekly {
		change, ok, err := h.Leaderboard.WeeklyRankChange(ctx, userID)
		if err != nil {
			return RankReply{}, err
		}
		if ok {
			reply.Change = &change
		}
	}
	return reply, nil
}

func (h *Handler) OnDailyChallengeRequest(ctx context.Context, channelID, userID string) (domain.QuestionPrompt, error) {
	return h.Sessions.StartDailyChallenge(ctx, channelID, userID)
}

func (h *Handler) OnWeeklyChallengeRequest(ctx context.Context, channelID, userID string) (domain.QuestionPrompt, error) {
	return h.Sessions.StartWeeklyChallenge(ctx, channelID, userID)
}

func (h *Handler) OnChallengeStatus(ctx context.Context, userID string) (domain.ChallengeStatus, error) {
	return h.Challenges.Status(ctx, userID)
}

// OnSetPreference stores the difficulty used when /trivia names none; "any" clears it.
func (h *Handler) OnSetPreference(ctx context.Context, userID, difficulty string) (domain.UserProfile, error) {
	raw := strings.ToLower(strings.TrimSpace(difficulty))
	var d domain.Difficulty
	if raw != "" && raw != "any" {
		var ok bool
		if d, ok = domain.ParseDifficulty(raw); !ok {
			return domain.UserProfile{}, fmt.Errorf("%w: difficulty %q", ErrInvalidOption, difficulty)
		}
	}
	return h.Stats.SetPreferredDifficulty(ctx, userID, d)
}

func (h *Handler) OnQuestionStats(ctx context.Context) (domain.QuestionStats, error) {
	return h.Questions.Stats(ctx)
}

func (h *Handler) OnGameStats(_ context.Context) domain.GameStats {
	return h.Sessions.GameStats()
}

// OnChannelInaccessible is reported by the platform when the bot lost access
// to a channel (deleted, kicked, permissions revoked).
func (h *Handler) OnChannelInaccessible(channelID string) {
	h.Sessions.MarkChannelInaccessible(channelID)
}

// OnChannelAccessible clears an inaccessible mark once posting works again.
func (h *Handler) OnChannelAccessible(channelID string) {
	h.Sessions.MarkChannelAccessible(channelID)
}

// Admin commands.

// OnConfigGet returns one setting, or all of them when key is empty.
func (h *Handler) OnConfigGet(_ context.Context, userID, key string) (map[string]string, error) {
	if err := h.requireAdmin(userID); err != nil {
		return nil, err
	}
	keys := []string{key}
	if key == "" {
		keys = h.Settings.Keys()
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := h.Settings.Get(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (h *Handler) OnConfigSet(_ context.Context, userID, key, value string) error {
	if err := h.requireAdmin(userID); err != nil {
		return err
	}
	if err := h.Settings.Set(key, value); err != nil {
		return err
	}
	h.log.Info("setting changed", "admin_id", userID, "key", key, "value", value)
	return nil
}

func (h *Handler) OnResetStats(ctx context.Context, adminID, targetID string) (domain.UserProfile, error) {
	if err := h.requireAdmin(adminID); err != nil {
		return domain.UserProfile{}, err
	}
	p, err := h.Stats.ResetUser(ctx, targetID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	h.log.Info("stats reset", "admin_id", adminID, "user_id", targetID)
	return p, nil
}

// OnCancelGame force-ends a channel's game. A question that is already being
// resolved finishes normally and the call reports ErrNoActiveGame.
func (h *Handler) OnCancelGame(ctx context.Context, userID, channelID string) error {
	if err := h.requireAdmin(userID); err != nil {
		return err
	}
	ok, err := h.Sessions.Cancel(ctx, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoActiveGame
	}
	return nil
}

func (h *Handler) OnAddQuestion(ctx context.Context, userID string, rec domain.QuestionRecord) (domain.Question, error) {
	if err := h.requireAdmin(userID); err != nil {
		return domain.Question{}, err
	}
	q, err := h.Questions.AddCustomQuestion(ctx, rec)
	if err != nil {
		return domain.Question{}, err
	}
	h.log.Info("question added", "admin_id", userID, "question_id", q.ID)
	return q, nil
}

// IsAdmin reports whether userID may run admin commands.
func (h *Handler) IsAdmin(userID string) bool {
	_, ok := h.admins[userID]
	return ok
}

func (h *Handler) requireAdmin(userID string) error {
	if !h.IsAdmin(userID) {
		return domain.ErrPermissionDenied
	}
	return nil
}
