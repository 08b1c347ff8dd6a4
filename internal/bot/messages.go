package bot

import (
	"errors"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

// GenericMessage is shown for failures with no specific user message.
const GenericMessage = "Something went wrong. Please try again."

// ErrInvalidOption is returned for difficulty, type or limit values the handler cannot parse.
var ErrInvalidOption = errors.New("invalid option")

var userMessages = []struct {
	err error
	msg string
}{
	{domain.ErrGameAlreadyActive, "A game is already running here. Answer it or wait for it to finish."},
	{domain.ErrNoActiveGame, "There is no game running in this channel."},
	{domain.ErrNoQuestionsAvailable, "No questions match that filter. Try another difficulty or type."},
	{domain.ErrStatisticsUnavailable, "Stats are temporarily unavailable. Your result will be saved once the store is back."},
	{domain.ErrChannelInaccessible, "I can't post in that channel anymore."},
	{domain.ErrInvalidAnswerFormat, "I couldn't read that answer. Use A-D or 1-4 for choices, true/false for statements, or type the answer."},
	{domain.ErrDailyAlreadyCompleted, "You've already played today's daily challenge. Come back tomorrow!"},
	{domain.ErrWeeklyAlreadyCompleted, "You've already finished this week's challenge. A new one starts on Monday."},
	{domain.ErrQuestionNotFound, "That question no longer exists."},
	{domain.ErrInvalidQuestion, "That question could not be added. Check its fields and try again."},
	{domain.ErrUnknownSetting, "Unknown setting. Ask for the config list to see what can be changed."},
	{domain.ErrInvalidSetting, "That value is out of range for this setting."},
	{domain.ErrPermissionDenied, "Only bot admins can do that."},
	{domain.ErrInvalidPeriod, "Unknown leaderboard period. Use all, weekly or monthly."},
	{ErrInvalidOption, "Unknown option. Difficulty is easy, medium or hard; type is multiple_choice, true_false or fill_blank."},
	{app.ErrManagerClosed, "The bot is restarting. Try again in a moment."},
}

// UserMessage maps an engine error to the short text shown in chat. Raw error
// strings never reach users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return GenericMessage
}
