package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"

	"github.com/google/uuid"
)

// ErrManagerClosed is returned by start operations after Shutdown.
var ErrManagerClosed = errors.New("session manager closed")

const (
	defaultPostTimeout   = 5 * time.Second
	inaccessibleMarkTTL  = time.Hour
	timerResolveDeadline = 15 * time.Second
)

// countdownMarks are the remaining times at which an open question gets a notice.
var countdownMarks = []time.Duration{20 * time.Second, 10 * time.Second}

// ManagerDeps wires the session manager to the rest of the engine.
type ManagerDeps struct {
	Questions  QuestionStore
	Stats      *Statistics
	Evaluator  *AchievementEvaluator
	Challenges *ChallengeScheduler
	Presenter  Presenter
	Settings   *Settings
	Logger     *logger.Logger
}

// ManagerOption customises a SessionManager.
type ManagerOption func(*SessionManager)

// WithManagerClock overrides the wall clock.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *SessionManager) { m.now = now }
}

// WithAfterFunc overrides how question timeouts are armed.
func WithAfterFunc(f AfterFunc) ManagerOption {
	return func(m *SessionManager) { m.afterFunc = f }
}

// WithIDGenerator overrides session and token ids.
func WithIDGenerator(f func() string) ManagerOption {
	return func(m *SessionManager) { m.newID = f }
}

// WithPostTimeout bounds each presenter call.
func WithPostTimeout(d time.Duration) ManagerOption {
	return func(m *SessionManager) { m.postTimeout = d }
}

// SessionManager runs at most one game per channel. Each channel moves
// IDLE -> ACTIVE -> RESOLVING -> IDLE (or back to ACTIVE for the next weekly
// question); timer events carry the session id and question token and are
// dropped when they no longer match.
type SessionManager struct {
	questions  QuestionStore
	stats      *Statistics
	evaluator  *AchievementEvaluator
	challenges *ChallengeScheduler
	presenter  Presenter
	settings   *Settings
	log        *logger.Logger

	now         func() time.Time
	afterFunc   AfterFunc
	newID       func() string
	postTimeout time.Duration

	mu           sync.Mutex
	channels     map[string]*channelSlot
	owners       map[string]string
	inaccessible map[string]time.Time
	closed       bool
}

func NewSessionManager(deps ManagerDeps, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		questions:    deps.Questions,
		stats:        deps.Stats,
		evaluator:    deps.Evaluator,
		challenges:   deps.Challenges,
		presenter:    deps.Presenter,
		settings:     deps.Settings,
		log:          deps.Logger.With("component", "sessions"),
		now:          time.Now,
		afterFunc:    realAfterFunc,
		newID:        uuid.NewString,
		postTimeout:  defaultPostTimeout,
		channels:     make(map[string]*channelSlot),
		owners:       make(map[string]string),
		inaccessible: make(map[string]time.Time),
	}
	if m.settings == nil {
		m.settings = NewSettings(DefaultGameSettings())
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartGame posts a regular question in an idle channel.
func (m *SessionManager) StartGame(ctx context.Context, req StartRequest) (domain.QuestionPrompt, error) {
	if err := m.checkStart(req.ChannelID); err != nil {
		return domain.QuestionPrompt{}, err
	}
	slot := m.lockChannel(req.ChannelID, true)
	defer slot.mu.Unlock()
	if slot.session != nil {
		return domain.QuestionPrompt{}, domain.ErrGameAlreadyActive
	}

	q, err := m.questions.SelectQuestion(ctx, QuestionFilter{
		Difficulty:    req.Difficulty,
		Type:          req.Type,
		ExcludeRecent: true,
	})
	if err != nil {
		m.retireLocked(req.ChannelID, slot)
		return domain.QuestionPrompt{}, err
	}
	sess := m.newSession(req.ChannelID, domain.KindNormal, "", q)
	m.log.Info("game started", "channel_id", req.ChannelID, "user_id", req.UserID, "question_id", q.ID, "difficulty", q.Difficulty)
	return m.presentLocked(ctx, slot, sess)
}

// StartDailyChallenge posts the day's challenge question for userID. Only that
// user may answer it.
func (m *SessionManager) StartDailyChallenge(ctx context.Context, channelID, userID string) (domain.QuestionPrompt, error) {
	if err := m.checkStart(channelID); err != nil {
		return domain.QuestionPrompt{}, err
	}
	today := m.challenges.Today()
	ok, err := m.challenges.IsDailyEligible(ctx, userID, today)
	if err != nil {
		return domain.QuestionPrompt{}, err
	}
	if !ok {
		return domain.QuestionPrompt{}, domain.ErrDailyAlreadyCompleted
	}
	q, err := m.challenges.DailyQuestion(ctx, today)
	if err != nil {
		return domain.QuestionPrompt{}, err
	}

	slot := m.lockChannel(channelID, true)
	defer slot.mu.Unlock()
	if slot.session != nil {
		return domain.QuestionPrompt{}, domain.ErrGameAlreadyActive
	}
	if !m.claimOwner(domain.KindDaily, userID, channelID) {
		m.retireLocked(channelID, slot)
		return domain.QuestionPrompt{}, domain.ErrGameAlreadyActive
	}
	sess := m.newSession(channelID, domain.KindDaily, userID, q)
	sess.day = today
	m.log.Info("daily challenge started", "channel_id", channelID, "user_id", userID, "question_id", q.ID)
	return m.presentLocked(ctx, slot, sess)
}

// StartWeeklyChallenge starts or resumes the user's weekly challenge at the
// first unanswered question.
func (m *SessionManager) StartWeeklyChallenge(ctx context.Context, channelID, userID string) (domain.QuestionPrompt, error) {
	if err := m.checkStart(channelID); err != nil {
		return domain.QuestionPrompt{}, err
	}
	week := m.challenges.CurrentWeek()
	ok, err := m.challenges.IsWeeklyEligible(ctx, userID, week)
	if err != nil {
		return domain.QuestionPrompt{}, err
	}
	if !ok {
		return domain.QuestionPrompt{}, domain.ErrWeeklyAlreadyCompleted
	}

	slot := m.lockChannel(channelID, true)
	defer slot.mu.Unlock()
	if slot.session != nil {
		return domain.QuestionPrompt{}, domain.ErrGameAlreadyActive
	}
	if !m.claimOwner(domain.KindWeekly, userID, channelID) {
		m.retireLocked(channelID, slot)
		return domain.QuestionPrompt{}, domain.ErrGameAlreadyActive
	}
	abort := func() {
		m.releaseOwner(domain.KindWeekly, userID)
		m.retireLocked(channelID, slot)
	}

	progress, err := m.challenges.BeginWeekly(ctx, userID, week)
	if err != nil {
		abort()
		return domain.QuestionPrompt{}, err
	}
	if progress.Done() {
		abort()
		if !progress.Completed {
			// A previous run answered everything but did not finish crediting.
			var summary domain.WeeklySummary
			m.completeWeekly(ctx, userID, &progress, &summary)
		}
		return domain.QuestionPrompt{}, domain.ErrWeeklyAlreadyCompleted
	}
	q, err := m.questions.Get(ctx, progress.QuestionIDs[progress.Cursor])
	if err != nil {
		abort()
		return domain.QuestionPrompt{}, err
	}
	sess := m.newSession(channelID, domain.KindWeekly, userID, q)
	sess.weekly = &progress
	m.log.Info("weekly challenge started", "channel_id", channelID, "user_id", userID, "question", progress.Cursor+1, "of", len(progress.QuestionIDs))
	return m.presentLocked(ctx, slot, sess)
}

// SubmitAnswer resolves the channel's active question with the first valid
// attempt. It returns (nil, nil) for attempts that are ignored: idle channel,
// question already resolving, stale token, non-owner in a challenge or a
// repeated attempt. Unparseable input returns ErrInvalidAnswerFormat and does
// not consume the user's attempt.
func (m *SessionManager) SubmitAnswer(ctx context.Context, att AnswerAttempt) (*domain.Outcome, error) {
	slot := m.lockChannel(att.ChannelID, false)
	if slot == nil {
		return nil, nil
	}
	sess := slot.session
	if sess == nil || sess.state != stateActive ||
		(att.Token != "" && att.Token != sess.token) ||
		(sess.ownerID != "" && att.UserID != sess.ownerID) {
		slot.mu.Unlock()
		return nil, nil
	}
	if _, done := sess.attempted[att.UserID]; done {
		slot.mu.Unlock()
		return nil, nil
	}
	resp, err := ParseAnswer(sess.question, att.Raw)
	if err != nil {
		slot.mu.Unlock()
		return nil, err
	}
	sess.attempted[att.UserID] = struct{}{}
	sess.state = stateResolving
	sess.stopTimer()
	correct := CheckAnswer(sess.question, resp)
	slot.mu.Unlock()

	out := m.resolve(ctx, sess, resolution{reason: domain.ReasonAnswered, userID: att.UserID, correct: correct})
	return &out, nil
}

// OnTimeout is the timer callback of a posted question. It reports whether the
// event matched the live question.
func (m *SessionManager) OnTimeout(channelID, sessionID, token string) bool {
	slot := m.lockChannel(channelID, false)
	if slot == nil {
		return false
	}
	sess := slot.session
	if sess == nil || sess.id != sessionID || sess.token != token || sess.state != stateActive {
		slot.mu.Unlock()
		m.log.Debug("stale timeout dropped", "channel_id", channelID, "session_id", sessionID)
		return false
	}
	sess.state = stateResolving
	sess.stopTimer()
	slot.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timerResolveDeadline)
	defer cancel()
	m.resolve(ctx, sess, resolution{reason: domain.ReasonTimeout})
	return true
}

// Cancel force-ends the channel's game. It is a no-op returning false while the
// current question is being resolved. Weekly progress is kept.
func (m *SessionManager) Cancel(ctx context.Context, channelID string) (bool, error) {
	slot := m.lockChannel(channelID, false)
	if slot == nil {
		return false, domain.ErrNoActiveGame
	}
	sess := slot.session
	if sess == nil {
		slot.mu.Unlock()
		return false, domain.ErrNoActiveGame
	}
	if sess.state == stateResolving {
		slot.mu.Unlock()
		return false, nil
	}
	m.teardownLocked(slot, sess)
	slot.mu.Unlock()

	m.log.Info("game cancelled", "channel_id", channelID, "session_id", sess.id)
	m.publish(ctx, m.cancelledOutcome(sess))
	return true, nil
}

// MarkChannelInaccessible records that the bot can no longer post to the
// channel and tears its session down without notifying anyone.
func (m *SessionManager) MarkChannelInaccessible(channelID string) {
	m.mu.Lock()
	m.inaccessible[channelID] = m.now()
	m.mu.Unlock()

	slot := m.lockChannel(channelID, false)
	if slot == nil {
		return
	}
	defer slot.mu.Unlock()
	if sess := slot.session; sess != nil && sess.state == stateActive {
		m.teardownLocked(slot, sess)
		m.log.Warn("session dropped for inaccessible channel", "channel_id", channelID, "session_id", sess.id)
	}
}

// MarkChannelAccessible clears an inaccessible mark.
func (m *SessionManager) MarkChannelAccessible(channelID string) {
	m.mu.Lock()
	delete(m.inaccessible, channelID)
	m.mu.Unlock()
}

// Sweep cancels sessions whose current question outlived MaxSessionAge or whose
// channel became inaccessible, and expires old inaccessible marks. Sessions in
// RESOLVING are left to their resolver. It returns the number of sessions removed.
func (m *SessionManager) Sweep(ctx context.Context) int {
	now := m.now()
	maxAge := m.settings.Snapshot().MaxSessionAge

	m.mu.Lock()
	for id, at := range m.inaccessible {
		if now.Sub(at) > inaccessibleMarkTTL {
			delete(m.inaccessible, id)
		}
	}
	ids := make([]string, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	removed := 0
	for _, id := range ids {
		slot := m.lockChannel(id, false)
		if slot == nil {
			continue
		}
		sess := slot.session
		if sess == nil || sess.state != stateActive {
			slot.mu.Unlock()
			continue
		}
		gone := m.isInaccessible(id)
		if !gone && now.Sub(sess.postedAt) <= maxAge {
			slot.mu.Unlock()
			continue
		}
		m.teardownLocked(slot, sess)
		slot.mu.Unlock()
		removed++

		m.log.Warn("stale session swept", "channel_id", id, "session_id", sess.id, "inaccessible", gone)
		if !gone {
			m.publish(ctx, m.cancelledOutcome(sess))
		}
	}
	return removed
}

// GameStats reports the live sessions.
func (m *SessionManager) GameStats() domain.GameStats {
	m.mu.Lock()
	slots := make([]*channelSlot, 0, len(m.channels))
	for _, s := range m.channels {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	stats := domain.GameStats{
		ByKind:       make(map[domain.ChallengeKind]int),
		ByDifficulty: make(map[domain.Difficulty]int),
	}
	for _, slot := range slots {
		slot.mu.Lock()
		if sess := slot.session; sess != nil {
			stats.ActiveGames++
			stats.ByKind[sess.kind]++
			stats.ByDifficulty[sess.question.Difficulty]++
		}
		slot.mu.Unlock()
	}
	return stats
}

// HasActiveGame reports whether the channel currently hosts a session.
func (m *SessionManager) HasActiveGame(channelID string) bool {
	slot := m.lockChannel(channelID, false)
	if slot == nil {
		return false
	}
	defer slot.mu.Unlock()
	return slot.session != nil
}

// Shutdown stops every timer and drops all sessions. Later starts fail with
// ErrManagerClosed.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	slots := make(map[string]*channelSlot, len(m.channels))
	for id, s := range m.channels {
		slots[id] = s
	}
	m.mu.Unlock()

	for id, slot := range slots {
		slot.mu.Lock()
		if sess := slot.session; sess != nil {
			sess.stopTimer()
			slot.session = nil
			m.releaseOwner(sess.kind, sess.ownerID)
		}
		m.retireLocked(id, slot)
		slot.mu.Unlock()
	}
	m.log.Info("session manager stopped", "channels", len(slots))
}

func (m *SessionManager) checkStart(channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if _, gone := m.inaccessible[channelID]; gone {
		return domain.ErrChannelInaccessible
	}
	return nil
}

func (m *SessionManager) isInaccessible(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, gone := m.inaccessible[channelID]
	return gone
}

func (m *SessionManager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// lockChannel returns the channel's slot with its mutex held, or nil when the
// channel has no slot and create is false.
func (m *SessionManager) lockChannel(channelID string, create bool) *channelSlot {
	for {
		m.mu.Lock()
		slot, ok := m.channels[channelID]
		if !ok {
			if !create {
				m.mu.Unlock()
				return nil
			}
			slot = &channelSlot{}
			m.channels[channelID] = slot
		}
		m.mu.Unlock()

		slot.mu.Lock()
		if !slot.retired {
			return slot
		}
		slot.mu.Unlock()
	}
}

// retireLocked drops an idle slot from the index. The caller holds slot.mu.
func (m *SessionManager) retireLocked(channelID string, slot *channelSlot) {
	if slot.session != nil || slot.retired {
		return
	}
	slot.retired = true
	m.mu.Lock()
	if m.channels[channelID] == slot {
		delete(m.channels, channelID)
	}
	m.mu.Unlock()
}

func (m *SessionManager) teardownLocked(slot *channelSlot, sess *gameSession) {
	sess.stopTimer()
	slot.session = nil
	m.releaseOwner(sess.kind, sess.ownerID)
	m.retireLocked(sess.channelID, slot)
}

func ownerKey(kind domain.ChallengeKind, userID string) string {
	return string(kind) + ":" + userID
}

// claimOwner keeps a user to one running challenge of each kind across channels.
func (m *SessionManager) claimOwner(kind domain.ChallengeKind, userID, channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ownerKey(kind, userID)
	if _, taken := m.owners[key]; taken {
		return false
	}
	m.owners[key] = channelID
	return true
}

func (m *SessionManager) releaseOwner(kind domain.ChallengeKind, userID string) {
	if userID == "" {
		return
	}
	m.mu.Lock()
	delete(m.owners, ownerKey(kind, userID))
	m.mu.Unlock()
}

func (m *SessionManager) newSession(channelID string, kind domain.ChallengeKind, ownerID string, q domain.Question) *gameSession {
	return &gameSession{
		id:        m.newID(),
		channelID: channelID,
		kind:      kind,
		ownerID:   ownerID,
		question:  q,
		startedAt: m.now(),
	}
}

// presentLocked installs sess as the channel's ACTIVE session, posts its current
// question and arms the timeout. On a failed post the session is torn down.
func (m *SessionManager) presentLocked(ctx context.Context, slot *channelSlot, sess *gameSession) (domain.QuestionPrompt, error) {
	sess.token = m.newID()
	sess.state = stateActive
	sess.postedAt = m.now()
	sess.timeout = m.settings.Snapshot().TimeoutFor(sess.kind)
	sess.attempted = make(map[string]struct{})
	slot.session = sess
	prompt := sess.prompt()

	pctx, cancel := context.WithTimeout(ctx, m.postTimeout)
	err := m.presenter.PostQuestion(pctx, prompt)
	cancel()
	if err != nil {
		m.teardownLocked(slot, sess)
		if errors.Is(err, domain.ErrChannelInaccessible) {
			m.mu.Lock()
			m.inaccessible[sess.channelID] = m.now()
			m.mu.Unlock()
			return prompt, domain.ErrChannelInaccessible
		}
		m.log.Error("post question failed", "channel_id", sess.channelID, "session_id", sess.id, "error", err)
		return prompt, fmt.Errorf("post question: %w", err)
	}

	channelID, sessionID, token := sess.channelID, sess.id, sess.token
	for _, left := range countdownMarks {
		if sess.timeout <= left {
			continue
		}
		left := left
		sess.reminders = append(sess.reminders, m.afterFunc(sess.timeout-left, func() {
			m.countdown(channelID, sessionID, token, left)
		}))
	}
	sess.timer = m.afterFunc(sess.timeout, func() {
		m.OnTimeout(channelID, sessionID, token)
	})
	return prompt, nil
}

// countdown posts a time-remaining notice if the question it was armed for is
// still open.
func (m *SessionManager) countdown(channelID, sessionID, token string, left time.Duration) bool {
	slot := m.lockChannel(channelID, false)
	if slot == nil {
		return false
	}
	sess := slot.session
	live := sess != nil && sess.id == sessionID && sess.token == token && sess.state == stateActive
	slot.mu.Unlock()
	if !live {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.postTimeout)
	defer cancel()
	if err := m.presenter.PostNotice(ctx, channelID, "", CountdownText(left)); err != nil {
		m.log.Warn("countdown notice not posted", "channel_id", channelID, "session_id", sessionID, "error", err)
	}
	return true
}

// CountdownText is the notice posted when left remains on a question.
func CountdownText(left time.Duration) string {
	return fmt.Sprintf("⏰ %d seconds remaining!", int(left/time.Second))
}

// resolve scores a RESOLVING session outside the channel lock, publishes the
// result and returns the channel to IDLE or to the next weekly question. A
// panic while scoring still releases the channel.
func (m *SessionManager) resolve(ctx context.Context, sess *gameSession, res resolution) (out domain.Outcome) {
	ctx = context.WithoutCancel(ctx)
	advance := false
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("resolution panicked", "channel_id", sess.channelID, "session_id", sess.id, "panic", r)
			advance = false
		}
		m.finalize(ctx, sess, advance)
	}()

	out, advance = m.score(ctx, sess, res)
	m.publish(ctx, out)
	return out
}

// score persists one resolution and reports whether a weekly session should
// post its next question. Only an answered weekly question re-arms; a weekly
// timeout advances the stored cursor and ends the session, to be resumed later.
func (m *SessionManager) score(ctx context.Context, sess *gameSession, res resolution) (domain.Outcome, bool) {
	q := sess.question
	out := domain.Outcome{
		ChannelID:     sess.channelID,
		SessionID:     sess.id,
		QuestionID:    q.ID,
		UserID:        res.userID,
		Kind:          sess.kind,
		Reason:        res.reason,
		Correct:       res.correct,
		CorrectAnswer: q.CorrectAnswerText(),
		Explanation:   q.Explanation,
		Saved:         true,
		ResolvedAt:    m.now(),
	}
	m.questions.RecordOutcome(ctx, q.ID, res.correct)

	var (
		profile domain.UserProfile
		known   bool
		award   int
	)
	fail := func(op string, err error) {
		out.Saved = false
		m.log.Warn("resolution write failed", "channel_id", sess.channelID, "session_id", sess.id, "op", op, "error", err)
	}
	unlocked := func(u []domain.UnlockedAchievement, p domain.UserProfile, err error, op string) {
		out.Unlocked = append(out.Unlocked, u...)
		if err != nil {
			fail(op, err)
			return
		}
		profile, known = p, true
	}

	if res.reason == domain.ReasonAnswered {
		if res.correct {
			before, err := m.stats.GetOrCreate(ctx, res.userID)
			if err != nil {
				m.log.Warn("streak lookup failed", "user_id", res.userID, "error", err)
			}
			award = ComputeAward(q.BasePoints(), before.CurrentStreak, MultiplierFor(sess.kind))
		}
		credited := award
		if sess.kind == domain.KindWeekly {
			credited = 0
		}
		p, err := m.stats.ApplyAnswerOutcome(ctx, res.userID, res.correct, credited, q.Difficulty)
		if err != nil {
			fail("answer", err)
		} else {
			profile, known = p, true
			u, p2, err := m.evaluator.Process(ctx, p, domain.Event{Type: domain.EventAnswer, Value: p.CurrentStreak})
			unlocked(u, p2, err, "achievements")
		}
		out.PointsAwarded = credited
	}

	advance := false
	switch sess.kind {
	case domain.KindDaily:
		// The single attempt is consumed by an answer or by the timeout.
		p, err := m.stats.MarkDailyChallengeCompleted(ctx, sess.ownerID, sess.day)
		if err != nil {
			fail("daily_completed", err)
			break
		}
		u, p2, err := m.evaluator.Process(ctx, p, domain.Event{Type: domain.EventDailyChallenge})
		unlocked(u, p2, err, "achievements")
	case domain.KindWeekly:
		wp := sess.weekly
		wp.Cursor++
		if res.reason == domain.ReasonAnswered && res.correct {
			wp.Correct++
			wp.PendingPoints += award
		}
		summary := &domain.WeeklySummary{
			WeekStart: wp.WeekStart,
			Answered:  wp.Cursor,
			Correct:   wp.Correct,
			Total:     len(wp.QuestionIDs),
		}
		out.Weekly = summary
		if err := m.challenges.SaveProgress(ctx, *wp); err != nil {
			fail("weekly_progress", err)
			break
		}
		if wp.Done() {
			u, p, ok := m.completeWeekly(ctx, sess.ownerID, wp, summary)
			out.Unlocked = append(out.Unlocked, u...)
			if !ok {
				out.Saved = false
			} else {
				profile, known = p, true
			}
			break
		}
		advance = res.reason == domain.ReasonAnswered
	}

	if known {
		out.Streak = profile.CurrentStreak
		out.TotalPoints = profile.TotalPoints
	}
	m.log.Info("question resolved",
		"channel_id", sess.channelID,
		"session_id", sess.id,
		"kind", sess.kind,
		"reason", res.reason,
		"user_id", res.userID,
		"correct", res.correct,
		"points", out.PointsAwarded,
		"saved", out.Saved,
	)
	return out, advance
}

// completeWeekly finalises a fully answered weekly challenge exactly once: the
// progress is marked completed before any points move, so a retry after a
// partial failure never credits twice.
func (m *SessionManager) completeWeekly(ctx context.Context, userID string, wp *domain.WeeklyProgress, summary *domain.WeeklySummary) ([]domain.UnlockedAchievement, domain.UserProfile, bool) {
	summary.WeekStart = wp.WeekStart
	summary.Answered = wp.Cursor
	summary.Correct = wp.Correct
	summary.Total = len(wp.QuestionIDs)
	if wp.Completed {
		return nil, domain.UserProfile{}, true
	}
	wp.Completed = true
	if err := m.challenges.SaveProgress(ctx, *wp); err != nil {
		wp.Completed = false
		m.log.Warn("weekly completion not saved", "user_id", userID, "error", err)
		return nil, domain.UserProfile{}, false
	}
	summary.Completed = true
	summary.PointsAwarded = wp.PendingPoints
	summary.Badge = WeeklyBadgeFor(wp.Correct)

	ok := true
	if _, err := m.stats.Credit(ctx, userID, wp.PendingPoints, "weekly_challenge"); err != nil {
		ok = false
		m.log.Warn("weekly credit queued", "user_id", userID, "points", wp.PendingPoints, "error", err)
	}
	p, err := m.stats.MarkWeeklyChallengeCompleted(ctx, userID, wp.WeekStart)
	if err != nil {
		m.log.Warn("weekly completion mark queued", "user_id", userID, "error", err)
		return nil, p, false
	}
	u, p, err := m.evaluator.Process(ctx, p, domain.Event{Type: domain.EventWeeklyChallenge, Value: wp.Correct})
	if err != nil {
		ok = false
	}
	m.log.Info("weekly challenge completed", "user_id", userID, "correct", wp.Correct, "points", wp.PendingPoints, "badge", summary.Badge)
	return u, p, ok
}

// finalize re-acquires the channel and either posts the next weekly question or
// returns the channel to IDLE.
func (m *SessionManager) finalize(ctx context.Context, sess *gameSession, advance bool) {
	slot := m.lockChannel(sess.channelID, false)
	if slot == nil {
		m.releaseOwner(sess.kind, sess.ownerID)
		return
	}
	defer slot.mu.Unlock()
	if slot.session != sess {
		return
	}

	if advance && !m.isClosed() && !m.isInaccessible(sess.channelID) {
		next, err := m.questions.Get(ctx, sess.weekly.QuestionIDs[sess.weekly.Cursor])
		if err == nil {
			sess.question = next
			// presentLocked tears the session down itself when posting fails.
			_, _ = m.presentLocked(ctx, slot, sess)
			return
		}
		m.log.Error("next weekly question unavailable", "channel_id", sess.channelID, "error", err)
	}
	m.teardownLocked(slot, sess)
}

// publish posts a result and its unlocks. A channel that rejects the post is
// marked inaccessible.
func (m *SessionManager) publish(ctx context.Context, out domain.Outcome) {
	pctx, cancel := context.WithTimeout(ctx, m.postTimeout)
	defer cancel()
	err := m.presenter.PostResult(pctx, out)
	for i := 0; err == nil && i < len(out.Unlocked); i++ {
		err = m.presenter.PostAchievementUnlock(pctx, out.ChannelID, out.Unlocked[i])
	}
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrChannelInaccessible) {
		m.mu.Lock()
		m.inaccessible[out.ChannelID] = m.now()
		m.mu.Unlock()
	}
	m.log.Warn("post result failed", "channel_id", out.ChannelID, "session_id", out.SessionID, "error", err)
}

func (m *SessionManager) cancelledOutcome(sess *gameSession) domain.Outcome {
	return domain.Outcome{
		ChannelID:     sess.channelID,
		SessionID:     sess.id,
		QuestionID:    sess.question.ID,
		Kind:          sess.kind,
		Reason:        domain.ReasonCancelled,
		CorrectAnswer: sess.question.CorrectAnswerText(),
		Explanation:   sess.question.Explanation,
		Saved:         true,
		ResolvedAt:    m.now(),
	}
}
