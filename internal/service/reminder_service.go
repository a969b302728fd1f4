package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"exam-coach/internal/chat"
	"exam-coach/internal/model"
	"exam-coach/internal/repository"
)

// QuizLookup loads persisted quizzes for grading late replies.
type QuizLookup interface {
	FindQuiz(ctx context.Context, id uint) (*model.QuizItem, error)
}

// ReminderOptions configures outreach.
type ReminderOptions struct {
	// Hours maps a slot to the local hour its outreach fires.
	Hours         map[string]int
	Location      *time.Location
	Pause         time.Duration
	RetryDelay    time.Duration
	RetentionDays int
	// BusyWindow is how recently a learning session must have been active
	// for outreach to leave the user alone.
	BusyWindow    time.Duration
}

const defaultBusyWindow = 30 * time.Minute

// TickReport summarizes one reminder tick.
type TickReport struct {
	Slot       string
	Day        string
	Candidates int
	Sent       int
	Skipped    int
	Failed     int
	Disabled   int
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeDisabled
)

// ReminderService sends one lesson and quiz to idle users at their study slot.
// Users are processed one at a time with a pause in between.
type ReminderService struct {
	users    *repository.UserRepository
	records  *repository.ReminderRepository
	attempts *repository.AttemptRepository
	quizzes  QuizLookup
	access   *AccessMeter
	selector *ContentSelector
	builder  *QuizBuilder
	learning *LearningService
	sender   chat.Sender
	opts     ReminderOptions
	log      *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReminderService(
	users *repository.UserRepository,
	records *repository.ReminderRepository,
	attempts *repository.AttemptRepository,
	quizzes QuizLookup,
	access *AccessMeter,
	selector *ContentSelector,
	builder *QuizBuilder,
	learning *LearningService,
	sender chat.Sender,
	opts ReminderOptions,
	log *zap.Logger,
) *ReminderService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.BusyWindow <= 0 {
		opts.BusyWindow = defaultBusyWindow
	}
	return &ReminderService{
		users:    users,
		records:  records,
		attempts: attempts,
		quizzes:  quizzes,
		access:   access,
		selector: selector,
		builder:  builder,
		learning: learning,
		sender:   sender,
		opts:     opts,
		log:      log.Named("reminders"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Tick runs outreach for the slot of the current local hour, if any.
func (s *ReminderService) Tick(ctx context.Context) TickReport {
	return s.TickAt(ctx, s.now())
}

// TickAt runs outreach as if the clock read now. Running it twice for the same
// hour sends nothing new: each (user, day, slot) is claimed once.
func (s *ReminderService) TickAt(ctx context.Context, now time.Time) TickReport {
	local := now.In(s.opts.Location)
	slot, ok := s.slotForHour(local.Hour())
	if !ok {
		return TickReport{}
	}
	report := TickReport{Slot: slot, Day: local.Format(dayLayout)}

	users, err := s.users.ListReminderCandidates(ctx, slot, report.Day)
	if err != nil {
		s.log.Error("list candidates", zap.String("slot", slot), zap.Error(err))
		return report
	}
	report.Candidates = len(users)

	for i, user := range users {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.Pause); err != nil {
				s.log.Warn("tick interrupted", zap.Int("remaining", len(users)-i), zap.Error(err))
				break
			}
		}
		switch s.remind(ctx, user, now, report.Day, slot) {
		case outcomeSent:
			report.Sent++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		case outcomeDisabled:
			report.Disabled++
		}
	}

	s.log.Info("reminder tick",
		zap.String("slot", report.Slot),
		zap.String("day", report.Day),
		zap.Int("candidates", report.Candidates),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("disabled", report.Disabled),
	)
	return report
}

// remind delivers one turn to user. Failures stay inside this call.
func (s *ReminderService) remind(ctx context.Context, user model.User, now time.Time, day, slot string) outcome {
	userID := user.TelegramID
	log := s.log.With(zap.Int64("user", userID), zap.String("slot", slot))

	if s.learning != nil && s.learning.Busy(userID, now.Add(-s.opts.BusyWindow)) {
		log.Debug("user is studying, skipped")
		return outcomeSkipped
	}

	claimed, err := s.records.Claim(ctx, userID, day, slot)
	if err != nil {
		log.Error("claim reminder", zap.Error(err))
		return outcomeFailed
	}
	if !claimed {
		return outcomeSkipped
	}

	decision, err := s.access.CheckAccess(ctx, userID)
	if err != nil {
		log.Error("check access", zap.Error(err))
		return outcomeFailed
	}
	if !decision.Granted() {
		log.Debug("no access, skipped")
		return outcomeSkipped
	}

	sel, err := s.selector.Next(ctx, userID)
	if err != nil || sel == nil {
		s.access.Release(decision)
		if err != nil {
			log.Error("select content", zap.Error(err))
			return outcomeFailed
		}
		log.Warn("no content to send", zap.Error(ErrContentExhausted))
		return outcomeSkipped
	}

	quiz, err := s.builder.Build(ctx, sel.Lesson, sel.Quiz)
	if err != nil {
		s.access.Release(decision)
		log.Error("build quiz", zap.Error(err))
		return outcomeFailed
	}
	if err := s.records.Issue(ctx, userID, sel.Lesson.ID, quiz.ID); err != nil {
		s.access.Release(decision)
		log.Error("issue reminder quiz", zap.Error(err))
		return outcomeFailed
	}

	if err := s.access.Consume(ctx, decision); err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return outcomeSkipped
		}
		log.Error("consume access", zap.Error(err))
		return outcomeFailed
	}

	token := func(option int) string {
		return chat.ReminderAnswer{LessonID: sel.Lesson.ID, QuizID: quiz.ID, Option: option}.Token()
	}
	ts := newTurnSender(s.sender, s.opts.RetryDelay)
	err = ts.send(ctx,
		renderLesson(user.ChatID, sel.Lesson, textReminderIntro),
		renderQuiz(user.ChatID, quiz, token),
	)
	if err != nil {
		if errors.Is(err, chat.ErrPermanent) {
			if derr := s.users.SetReminderEnabled(ctx, userID, false); derr != nil {
				log.Error("disable reminders", zap.Error(derr))
				return outcomeFailed
			}
			log.Info("chat revoked, reminders disabled")
			return outcomeDisabled
		}
		log.Warn("send reminder", zap.Error(err))
		return outcomeFailed
	}
	return outcomeSent
}

// Grade answers a reply to a reminder quiz, however late it arrives. Only the
// recipient can answer, and only once.
func (s *ReminderService) Grade(ctx context.Context, userID, chatID int64, ans chat.ReminderAnswer) error {
	quiz, err := s.quizzes.FindQuiz(ctx, ans.QuizID)
	if err != nil {
		return err
	}
	if quiz == nil || quiz.LessonID != ans.LessonID || ans.Option >= len(quiz.Options) {
		return s.reply(ctx, userID, textMessage(chatID, textQuizGone))
	}
	redeemed, err := s.records.Redeem(ctx, userID, quiz.LessonID, quiz.ID)
	if err != nil {
		return err
	}
	if !redeemed {
		s.log.Debug("reminder quiz not open for user", zap.Int64("user", userID), zap.Uint("quiz", quiz.ID))
		return s.reply(ctx, userID, textMessage(chatID, textQuizGone))
	}

	correct := ans.Option == quiz.CorrectIndex
	if err := s.attempts.Record(ctx, &model.QuizAttempt{
		UserID:   userID,
		LessonID: quiz.LessonID,
		QuizID:   quiz.ID,
		Chosen:   ans.Option,
		Correct:  correct,
		Source:   model.AttemptReminder,
	}); err != nil {
		s.log.Warn("record attempt", zap.Int64("user", userID), zap.Error(err))
	}

	return s.reply(ctx, userID, renderFeedback(chatID, quiz, correct, int(quiz.ID), continueButtons(textKeepStudying)))
}

// Purge drops reminder records older than the retention period.
func (s *ReminderService) Purge(ctx context.Context) (int64, error) {
	if s.opts.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().In(s.opts.Location).AddDate(0, 0, -s.opts.RetentionDays)
	day := cutoff.Format(dayLayout)
	n, err := s.records.PurgeBefore(ctx, day)
	if err != nil {
		return 0, err
	}
	issued, err := s.records.PurgeIssuedBefore(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if n > 0 || issued > 0 {
		s.log.Info("purged reminder records",
			zap.Int64("records", n),
			zap.Int64("quizzes", issued),
			zap.String("before", day),
		)
	}
	return n, nil
}

func (s *ReminderService) reply(ctx context.Context, userID int64, msg chat.Message) error {
	err := newTurnSender(s.sender, s.opts.RetryDelay).send(ctx, msg)
	if err != nil && errors.Is(err, chat.ErrPermanent) {
		if derr := s.users.SetReminderEnabled(ctx, userID, false); derr != nil {
			return derr
		}
		return nil
	}
	return err
}

func (s *ReminderService) slotForHour(hour int) (string, bool) {
	for slot, h := range s.opts.Hours {
		if h == hour {
			return slot, true
		}
	}
	return "", false
}
