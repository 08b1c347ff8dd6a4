package domain

import "errors"

var (
	// ErrGameAlreadyActive is returned when a channel already hosts a live question.
	ErrGameAlreadyActive = errors.New("a game is already active in this channel")
	// ErrNoActiveGame is returned by admin operations on an idle channel.
	ErrNoActiveGame = errors.New("no active game in this channel")
	// ErrNoQuestionsAvailable indicates the catalog has nothing for the requested filter.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrStatisticsUnavailable wraps persistence failures of the statistics store.
	ErrStatisticsUnavailable = errors.New("statistics unavailable")
	// ErrChannelInaccessible is reported by the chat platform when the bot cannot post.
	ErrChannelInaccessible = errors.New("channel inaccessible")
	// ErrInvalidAnswerFormat means the input could not be parsed for the question type.
	ErrInvalidAnswerFormat = errors.New("invalid answer format")
	// ErrDailyAlreadyCompleted is returned when the daily challenge was already played today.
	ErrDailyAlreadyCompleted = errors.New("daily challenge already completed")
	// ErrWeeklyAlreadyCompleted is returned when the weekly challenge was already finished this week.
	ErrWeeklyAlreadyCompleted = errors.New("weekly challenge already completed")
	// ErrQuestionNotFound indicates an unknown question id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestion rejects malformed authored questions.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrUnknownSetting is returned for config keys the engine does not expose.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrInvalidSetting is returned when a setting value cannot be parsed or is out of range.
	ErrInvalidSetting = errors.New("invalid setting value")
	// ErrPermissionDenied guards admin commands.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidPeriod is returned for unknown leaderboard periods.
	ErrInvalidPeriod = errors.New("invalid leaderboard period")
)
