package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"exam-coach/internal/chat"
	"exam-coach/internal/model"
	"exam-coach/internal/repository"
)

var (
	// ErrNoSession is returned when an operation needs an open learning session.
	ErrNoSession = errors.New("no active learning session")
	// ErrContentExhausted means the repository has no active content at all.
	ErrContentExhausted = errors.New("content unavailable")
)

// Phase is the state of a learning session.
type Phase int

const (
	PhaseDelivering Phase = iota
	PhaseAwaitingAnswer
	PhaseAwaitingContinue
)

func (p Phase) String() string {
	switch p {
	case PhaseDelivering:
		return "delivering"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseAwaitingContinue:
		return "awaiting_continue"
	default:
		return "unknown"
	}
}

// LearningSession is one user's study loop. It lives in memory only.
type LearningSession struct {
	ID     uuid.UUID
	UserID int64
	ChatID int64
	Phase  Phase

	Lesson *model.Lesson
	Quiz   *model.QuizItem
	// Turn numbers the quiz on screen; answers carrying another turn are stale.
	Turn int

	Lessons   int
	Correct   int
	Incorrect int

	StartedAt    time.Time
	LastActivity time.Time
}

// SessionStore keeps at most one session per user.
// Callers hold the user's lock across get/put/remove.
type SessionStore struct {
	locks *keyedMutex

	mu       sync.RWMutex
	sessions map[int64]*LearningSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{locks: newKeyedMutex(), sessions: make(map[int64]*LearningSession)}
}

func (s *SessionStore) lock(userID int64) func() {
	return s.locks.Lock(userID)
}

func (s *SessionStore) get(userID int64) *LearningSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[userID]
}

func (s *SessionStore) put(sess *LearningSession) {
	s.mu.Lock()
	s.sessions[sess.UserID] = sess
	s.mu.Unlock()
}

func (s *SessionStore) remove(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// Active reports whether the user has an open session.
func (s *SessionStore) Active(userID int64) bool {
	return s.get(userID) != nil
}

func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Snapshot returns a copy of the user's session.
func (s *SessionStore) Snapshot(userID int64) (LearningSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return LearningSession{}, false
	}
	return *sess, true
}

func (s *SessionStore) users() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LearningOptions tunes the learning service.
type LearningOptions struct {
	RetryDelay time.Duration
	UpsellURL  string
}

// LearningService drives the deliver, quiz, answer, continue loop.
type LearningService struct {
	sessions *SessionStore
	access   *AccessMeter
	selector *ContentSelector
	quizzes  *QuizBuilder
	users    *repository.UserRepository
	attempts *repository.AttemptRepository
	sender   chat.Sender
	opts     LearningOptions
	log      *zap.Logger
	now      func() time.Time
}

func NewLearningService(
	sessions *SessionStore,
	access *AccessMeter,
	selector *ContentSelector,
	quizzes *QuizBuilder,
	users *repository.UserRepository,
	attempts *repository.AttemptRepository,
	sender chat.Sender,
	opts LearningOptions,
	log *zap.Logger,
) *LearningService {
	return &LearningService{
		sessions: sessions,
		access:   access,
		selector: selector,
		quizzes:  quizzes,
		users:    users,
		attempts: attempts,
		sender:   sender,
		opts:     opts,
		log:      log.Named("learning"),
		now:      time.Now,
	}
}

// Start opens a new session, replacing any session the user already has.
// A denied access check sends the upsell and leaves an open session as it was.
func (s *LearningService) Start(ctx context.Context, userID, chatID int64) error {
	unlock := s.sessions.lock(userID)
	defer unlock()
	return s.start(ctx, userID, chatID)
}

func (s *LearningService) start(ctx context.Context, userID, chatID int64) error {
	decision, err := s.access.CheckAccess(ctx, userID)
	if err != nil {
		s.notify(ctx, textMessage(chatID, textTryLater))
		return err
	}
	if !decision.Granted() {
		s.log.Info("access denied", zap.Int64("user", userID))
		s.notify(ctx, renderDenied(chatID, decision, s.opts.UpsellURL))
		return nil
	}

	if old := s.sessions.get(userID); old != nil {
		s.log.Info("replacing open session", zap.Int64("user", userID), zap.Stringer("phase", old.Phase))
		s.sessions.remove(userID)
	}

	now := s.now()
	sess := &LearningSession{
		ID:           uuid.New(),
		UserID:       userID,
		ChatID:       chatID,
		Phase:        PhaseDelivering,
		StartedAt:    now,
		LastActivity: now,
	}
	s.sessions.put(sess)
	return s.deliver(ctx, sess, decision)
}

// deliver runs the Delivering phase with a granted decision.
func (s *LearningService) deliver(ctx context.Context, sess *LearningSession, decision AccessDecision) error {
	sess.Phase = PhaseDelivering

	sel, err := s.selector.Next(ctx, sess.UserID)
	if err != nil {
		s.access.Release(decision)
		s.sessions.remove(sess.UserID)
		s.notify(ctx, textMessage(sess.ChatID, textTryLater))
		return err
	}
	if sel == nil {
		s.access.Release(decision)
		s.sessions.remove(sess.UserID)
		s.log.Warn("no content to deliver", zap.Int64("user", sess.UserID), zap.Error(ErrContentExhausted))
		s.notify(ctx, textMessage(sess.ChatID, textNoContent))
		return nil
	}

	quiz, err := s.quizzes.Build(ctx, sel.Lesson, sel.Quiz)
	if err != nil {
		s.access.Release(decision)
		s.sessions.remove(sess.UserID)
		s.notify(ctx, textMessage(sess.ChatID, textTryLater))
		return err
	}

	if err := s.access.Consume(ctx, decision); err != nil {
		s.sessions.remove(sess.UserID)
		if errors.Is(err, ErrAccessDenied) {
			s.log.Info("debit race lost", zap.Int64("user", sess.UserID))
			s.notify(ctx, renderDenied(sess.ChatID, AccessDecision{Kind: Denied}, s.opts.UpsellURL))
			return nil
		}
		s.notify(ctx, textMessage(sess.ChatID, textTryLater))
		return err
	}

	sess.Lesson = sel.Lesson
	sess.Quiz = quiz
	sess.Turn++
	sess.Lessons++

	turn := sess.Turn
	ts := newTurnSender(s.sender, s.opts.RetryDelay)
	err = ts.send(ctx,
		renderLesson(sess.ChatID, sel.Lesson, ""),
		renderQuiz(sess.ChatID, quiz, func(option int) string { return chat.AnswerToken(turn, option) }),
	)
	if err != nil {
		s.abandon(ctx, sess, err)
		return nil
	}

	sess.Phase = PhaseAwaitingAnswer
	sess.LastActivity = s.now()
	s.log.Debug("lesson delivered",
		zap.Int64("user", sess.UserID),
		zap.Uint("lesson", sel.Lesson.ID),
		zap.Stringer("grant", decision.Kind),
	)
	return nil
}

// Answer grades an option for the quiz of turn. Anything other than a
// current-turn answer in AwaitingAnswer is ignored.
func (s *LearningService) Answer(ctx context.Context, userID int64, turn, option int) error {
	unlock := s.sessions.lock(userID)
	defer unlock()

	sess := s.sessions.get(userID)
	if sess == nil || sess.Phase != PhaseAwaitingAnswer || sess.Turn != turn {
		return nil
	}
	if option < 0 || option >= len(sess.Quiz.Options) {
		return nil
	}

	correct := option == sess.Quiz.CorrectIndex
	rotation := sess.Incorrect
	if correct {
		sess.Correct++
		rotation = sess.Correct
	} else {
		sess.Incorrect++
	}

	if err := s.attempts.Record(ctx, &model.QuizAttempt{
		UserID:   userID,
		LessonID: sess.Lesson.ID,
		QuizID:   sess.Quiz.ID,
		Chosen:   option,
		Correct:  correct,
		Source:   model.AttemptSession,
	}); err != nil {
		s.log.Warn("record attempt", zap.Int64("user", userID), zap.Error(err))
	}

	ts := newTurnSender(s.sender, s.opts.RetryDelay)
	if err := ts.send(ctx, renderFeedback(sess.ChatID, sess.Quiz, correct, rotation, continueButtons(textNext))); err != nil {
		s.abandon(ctx, sess, err)
		return nil
	}

	sess.Phase = PhaseAwaitingContinue
	sess.LastActivity = s.now()
	return nil
}

// Next continues an AwaitingContinue session, or starts one when the user has none.
func (s *LearningService) Next(ctx context.Context, userID, chatID int64) error {
	unlock := s.sessions.lock(userID)
	defer unlock()

	sess := s.sessions.get(userID)
	if sess == nil {
		return s.start(ctx, userID, chatID)
	}
	if sess.Phase != PhaseAwaitingContinue {
		return nil
	}

	decision, err := s.access.CheckAccess(ctx, userID)
	if err != nil {
		s.notify(ctx, textMessage(sess.ChatID, textTryLater))
		return err
	}
	if !decision.Granted() {
		s.sessions.remove(userID)
		s.notify(ctx,
			renderDenied(sess.ChatID, decision, s.opts.UpsellURL),
			renderSummary(sess.ChatID, summarize(sess)),
		)
		return nil
	}
	return s.deliver(ctx, sess, decision)
}

// Stop ends a session waiting at AwaitingContinue and reports its summary.
// Sessions in other phases are left untouched and a nil summary is returned.
func (s *LearningService) Stop(ctx context.Context, userID int64) (*Summary, error) {
	unlock := s.sessions.lock(userID)
	defer unlock()

	sess := s.sessions.get(userID)
	if sess == nil {
		return nil, ErrNoSession
	}
	if sess.Phase != PhaseAwaitingContinue {
		return nil, nil
	}

	sum := summarize(sess)
	s.sessions.remove(userID)
	s.notify(ctx, renderSummary(sess.ChatID, sum))
	return &sum, nil
}

// Active reports whether the user has an open session.
func (s *LearningService) Active(userID int64) bool {
	return s.sessions.Active(userID)
}

// Busy reports whether the user has a session with activity after since.
// An older session is closed so outreach can reach the user again.
func (s *LearningService) Busy(userID int64, since time.Time) bool {
	unlock := s.sessions.lock(userID)
	defer unlock()

	sess := s.sessions.get(userID)
	if sess == nil {
		return false
	}
	if sess.LastActivity.After(since) {
		return true
	}
	s.sessions.remove(userID)
	s.log.Info("closed dormant session",
		zap.Int64("user", userID),
		zap.Stringer("phase", sess.Phase),
		zap.Time("last_activity", sess.LastActivity),
	)
	return false
}

// SweepIdle drops sessions with no activity for longer than idle. Nothing is sent.
func (s *LearningService) SweepIdle(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-idle)
	removed := 0
	for _, userID := range s.sessions.users() {
		unlock := s.sessions.lock(userID)
		if sess := s.sessions.get(userID); sess != nil && sess.LastActivity.Before(cutoff) {
			s.sessions.remove(userID)
			removed++
		}
		unlock()
	}
	if removed > 0 {
		s.log.Info("expired idle sessions", zap.Int("count", removed))
	}
	return removed
}

// abandon drops the session after a failed delivery. No summary is sent.
func (s *LearningService) abandon(ctx context.Context, sess *LearningSession, err error) {
	s.sessions.remove(sess.UserID)
	if errors.Is(err, chat.ErrPermanent) {
		s.log.Info("chat revoked, disabling reminders", zap.Int64("user", sess.UserID))
		if err := s.users.SetReminderEnabled(ctx, sess.UserID, false); err != nil {
			s.log.Error("disable reminders", zap.Int64("user", sess.UserID), zap.Error(err))
		}
		return
	}
	s.log.Warn("turn abandoned", zap.Int64("user", sess.UserID), zap.Error(err))
}

// notify sends best-effort messages outside a turn.
func (s *LearningService) notify(ctx context.Context, msgs ...chat.Message) {
	if err := newTurnSender(s.sender, s.opts.RetryDelay).send(ctx, msgs...); err != nil {
		s.log.Warn("notify", zap.Int64("chat", msgs[0].ChatID), zap.Error(err))
	}
}
