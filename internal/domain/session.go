package domain

import "time"

// QuestionPrompt is the structured question handed to the chat platform.
type QuestionPrompt struct {
	ChannelID     string        `json:"channelId"`
	SessionID     string        `json:"sessionId"`
	Token         string        `json:"token"`
	QuestionID    string        `json:"questionId"`
	Text          string        `json:"text"`
	Type          QuestionType  `json:"type"`
	Difficulty    Difficulty    `json:"difficulty"`
	Category      string        `json:"category"`
	Options       []string      `json:"options,omitempty"`
	Affordances   []string      `json:"affordances,omitempty"`
	Points        int           `json:"points"`
	Timeout       time.Duration `json:"timeout"`
	Kind          ChallengeKind `json:"kind"`
	OwnerID       string        `json:"ownerId,omitempty"`
	Sequence      int           `json:"sequence,omitempty"`
	SequenceTotal int           `json:"sequenceTotal,omitempty"`
	PostedAt      time.Time     `json:"postedAt"`
}

// ResolutionReason says how a question left QUESTION_ACTIVE.
type ResolutionReason string

const (
	ReasonAnswered  ResolutionReason = "answered"
	ReasonTimeout   ResolutionReason = "timeout"
	ReasonCancelled ResolutionReason = "cancelled"
)

// Outcome is the result of one resolved question.
type Outcome struct {
	ChannelID     string                `json:"channelId"`
	SessionID     string                `json:"sessionId"`
	QuestionID    string                `json:"questionId"`
	UserID        string                `json:"userId,omitempty"`
	Kind          ChallengeKind         `json:"kind"`
	Reason        ResolutionReason      `json:"reason"`
	Correct       bool                  `json:"correct"`
	PointsAwarded int                   `json:"pointsAwarded"`
	CorrectAnswer string                `json:"correctAnswer"`
	Explanation   string                `json:"explanation,omitempty"`
	Saved         bool                  `json:"saved"`
	Streak        int                   `json:"streak"`
	TotalPoints   int                   `json:"totalPoints"`
	Unlocked      []UnlockedAchievement `json:"unlocked,omitempty"`
	Weekly        *WeeklySummary        `json:"weekly,omitempty"`
	ResolvedAt    time.Time             `json:"resolvedAt"`
}

// WeeklySummary describes progress through a weekly challenge after a resolution.
type WeeklySummary struct {
	WeekStart     time.Time `json:"weekStart"`
	Answered      int       `json:"answered"`
	Correct       int       `json:"correct"`
	Total         int       `json:"total"`
	Completed     bool      `json:"completed"`
	PointsAwarded int       `json:"pointsAwarded"`
	Badge         string    `json:"badge,omitempty"`
}
