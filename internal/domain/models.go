package domain

import "time"

// ChallengeKind distinguishes regular play from the timed challenges.
type ChallengeKind string

const (
	KindNormal ChallengeKind = "normal"
	KindDaily  ChallengeKind = "daily"
	KindWeekly ChallengeKind = "weekly"
)

// WeeklyChallengeSize is the number of questions in a weekly challenge.
const WeeklyChallengeSize = 5

// UserProfile is the persistent per-user aggregate.
type UserProfile struct {
	UserID                    string     `json:"userId"`
	TotalPoints               int        `json:"totalPoints"`
	QuestionsAnswered         int        `json:"questionsAnswered"`
	QuestionsCorrect          int        `json:"questionsCorrect"`
	CurrentStreak             int        `json:"currentStreak"`
	BestStreak                int        `json:"bestStreak"`
	PlayStreakDays            int        `json:"playStreakDays"`
	EasyCorrect               int        `json:"easyCorrect"`
	MediumCorrect             int        `json:"mediumCorrect"`
	HardCorrect               int        `json:"hardCorrect"`
	DailyChallengesCompleted  int        `json:"dailyChallengesCompleted"`
	WeeklyChallengesCompleted int        `json:"weeklyChallengesCompleted"`
	LastPlayed                time.Time  `json:"lastPlayed"`
	DailyChallengeCompleted   *time.Time `json:"dailyChallengeCompleted,omitempty"`
	WeeklyChallengeCompleted  *time.Time `json:"weeklyChallengeCompleted,omitempty"`
	PreferredDifficulty       Difficulty `json:"preferredDifficulty,omitempty"`
	CreatedAt                 time.Time  `json:"createdAt"`
}

// Accuracy returns the percentage of correct answers (0-100).
func (p UserProfile) Accuracy() float64 {
	if p.QuestionsAnswered == 0 {
		return 0
	}
	return float64(p.QuestionsCorrect) / float64(p.QuestionsAnswered) * 100
}

// CorrectFor returns the number of correct answers at a difficulty.
func (p UserProfile) CorrectFor(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return p.EasyCorrect
	case DifficultyMedium:
		return p.MediumCorrect
	case DifficultyHard:
		return p.HardCorrect
	}
	return 0
}

// UserAchievement records a one-time unlock.
type UserAchievement struct {
	UserID        string    `json:"userId"`
	AchievementID string    `json:"achievementId"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

// RequirementKind names the predicate an achievement checks.
type RequirementKind string

const (
	RequireStreak              RequirementKind = "streak"
	RequireDailyStreak         RequirementKind = "daily_streak"
	RequireTotalPoints         RequirementKind = "total_points"
	RequireTotalQuestions      RequirementKind = "total_questions"
	RequireAccuracy            RequirementKind = "accuracy"
	RequireDifficultyCorrect   RequirementKind = "difficulty_correct"
	RequireChallengeCompletion RequirementKind = "challenge_completion"
	RequireWeeklyScore         RequirementKind = "weekly_score"
)

// Requirement is the typed unlock condition of an achievement.
type Requirement struct {
	Kind         RequirementKind `json:"kind" yaml:"kind"`
	Value        int             `json:"value" yaml:"value"`
	MinQuestions int             `json:"minQuestions,omitempty" yaml:"min_questions,omitempty"`
	Difficulty   Difficulty      `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Challenge    ChallengeKind   `json:"challenge,omitempty" yaml:"challenge,omitempty"`
}

// Achievement is a catalog entry.
type Achievement struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Emoji       string      `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	Requirement Requirement `json:"requirement" yaml:"requirement"`
	Reward      int         `json:"reward" yaml:"reward"`
}

// UnlockedAchievement is returned by the evaluator for fresh unlocks.
type UnlockedAchievement struct {
	Achievement
	UserID     string    `json:"userId"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// AchievementProgress is how far a user is from a locked achievement.
type AchievementProgress struct {
	Achievement
	Current  int     `json:"current"`
	Required int     `json:"required"`
	Percent  float64 `json:"percent"`
}

// EventType is the kind of state change that triggered an achievement evaluation.
type EventType string

const (
	EventAnswer          EventType = "answer"
	EventCredit          EventType = "credit"
	EventDailyChallenge  EventType = "daily_challenge"
	EventWeeklyChallenge EventType = "weekly_challenge"
)

// Event is passed to the evaluator. Value carries the event payload, e.g. the
// weekly challenge correct count.
type Event struct {
	Type  EventType `json:"type"`
	Value int       `json:"value"`
}

// Period is a leaderboard aggregation window.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod maps user input to a Period; empty input means all-time.
func ParsePeriod(raw string) (Period, bool) {
	switch raw {
	case "", "all", "alltime", "all-time":
		return PeriodAll, true
	case "week", "weekly":
		return PeriodWeekly, true
	case "month", "monthly":
		return PeriodMonthly, true
	}
	return "", false
}

// RankingEntry is one user's accumulated points in a weekly or monthly period.
type RankingEntry struct {
	UserID      string    `json:"userId"`
	Period      Period    `json:"period"`
	PeriodStart time.Time `json:"periodStart"`
	Points      int       `json:"points"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LeaderboardEntry is a ranked row.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     string    `json:"userId"`
	Points     int       `json:"points"`
	Accuracy   float64   `json:"accuracy"`
	LastPlayed time.Time `json:"lastPlayed"`
}

// Leaderboard is an ordered snapshot for one period.
type Leaderboard struct {
	Period       Period             `json:"period"`
	PeriodStart  time.Time          `json:"periodStart,omitempty"`
	Entries      []LeaderboardEntry `json:"entries"`
	Participants int                `json:"participants"`
	GeneratedAt  time.Time          `json:"generatedAt"`
}

// UserRank is a user's position within a period.
type UserRank struct {
	UserID            string `json:"userId"`
	Period            Period `json:"period"`
	Rank              int    `json:"rank"`
	Points            int    `json:"points"`
	TotalParticipants int    `json:"totalParticipants"`
}

// RankChange compares a user's weekly rank with the previous week. Delta is
// positive when the user moved up.
type RankChange struct {
	Current  int `json:"current"`
	Previous int `json:"previous"`
	Delta    int `json:"delta"`
}

// WeeklyProgress persists an in-progress weekly challenge between sessions.
type WeeklyProgress struct {
	UserID        string    `json:"userId"`
	WeekStart     time.Time `json:"weekStart"`
	QuestionIDs   []string  `json:"questionIds"`
	Cursor        int       `json:"cursor"`
	Correct       int       `json:"correct"`
	PendingPoints int       `json:"pendingPoints"`
	Completed     bool      `json:"completed"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Done reports whether every question in the sequence has been resolved.
func (p WeeklyProgress) Done() bool {
	return p.Cursor >= len(p.QuestionIDs)
}

// ChallengeStatus summarises eligibility for the timed challenges.
type ChallengeStatus struct {
	UserID         string          `json:"userId"`
	DailyEligible  bool            `json:"dailyEligible"`
	WeeklyEligible bool            `json:"weeklyEligible"`
	NextDailyAt    time.Time       `json:"nextDailyAt"`
	NextWeeklyAt   time.Time       `json:"nextWeeklyAt"`
	Weekly         *WeeklyProgress `json:"weekly,omitempty"`
}

// QuestionStats reports catalog composition and lifetime counters.
type QuestionStats struct {
	Total        int                  `json:"total"`
	ByDifficulty map[Difficulty]int   `json:"byDifficulty"`
	ByType       map[QuestionType]int `json:"byType"`
	ByCategory   map[string]int       `json:"byCategory"`
	TimesAsked   int64                `json:"timesAsked"`
	TimesCorrect int64                `json:"timesCorrect"`
}

// GameStats reports the live sessions of the session manager.
type GameStats struct {
	ActiveGames  int                   `json:"activeGames"`
	ByKind       map[ChallengeKind]int `json:"byKind"`
	ByDifficulty map[Difficulty]int    `json:"byDifficulty"`
}
