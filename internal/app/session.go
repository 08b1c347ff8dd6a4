package app

import (
	"sync"
	"time"

	"trivia-bot/internal/domain"
)

// Timer is an armed question timeout.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type sessionState int

const (
	stateActive sessionState = iota + 1
	stateResolving
)

func (s sessionState) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateResolving:
		return "resolving"
	}
	return "idle"
}

// gameSession is the live state of one channel. Fields are guarded by the
// owning slot's mutex; while RESOLVING the resolver owns them exclusively.
type gameSession struct {
	id        string
	channelID string
	kind      domain.ChallengeKind
	ownerID   string
	question  domain.Question
	token     string
	state     sessionState
	startedAt time.Time
	postedAt  time.Time
	timeout   time.Duration
	attempted map[string]struct{}
	timer     Timer
	reminders []Timer
	weekly    *domain.WeeklyProgress
	day       time.Time
}

func (s *gameSession) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for _, r := range s.reminders {
		r.Stop()
	}
	s.reminders = nil
}

func (s *gameSession) prompt() domain.QuestionPrompt {
	q := s.question
	p := domain.QuestionPrompt{
		ChannelID:   s.channelID,
		SessionID:   s.id,
		Token:       s.token,
		QuestionID:  q.ID,
		Text:        q.Text,
		Type:        q.Type(),
		Difficulty:  q.Difficulty,
		Category:    q.Category,
		Options:     q.Options(),
		Affordances: Affordances(q.Type()),
		Points:      ComputeAward(q.BasePoints(), 0, MultiplierFor(s.kind)),
		Timeout:     s.timeout,
		Kind:        s.kind,
		OwnerID:     s.ownerID,
		PostedAt:    s.postedAt,
	}
	if s.weekly != nil {
		p.Sequence = s.weekly.Cursor + 1
		p.SequenceTotal = len(s.weekly.QuestionIDs)
	}
	return p
}

// channelSlot serialises every transition of one channel. A retired slot has
// been removed from the index and must not be used.
type channelSlot struct {
	mu      sync.Mutex
	session *gameSession
	retired bool
}

// StartRequest asks for a regular game. Empty Difficulty or Type means any.
type StartRequest struct {
	ChannelID  string
	UserID     string
	Difficulty domain.Difficulty
	Type       domain.QuestionType
}

// AnswerAttempt is one user message or reaction. Token, when set, must match the
// token of the question it answers.
type AnswerAttempt struct {
	ChannelID string
	UserID    string
	Raw       string
	Token     string
}

type resolution struct {
	reason  domain.ResolutionReason
	userID  string
	correct bool
}
