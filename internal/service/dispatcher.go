package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"exam-coach/internal/chat"
	"exam-coach/internal/model"
	"exam-coach/internal/repository"
)

// Dispatcher routes inbound events to onboarding, the learning loop,
// reminder grading or a command. Routing depends only on the event token
// and on whether the user has finished onboarding or has an open session.
type Dispatcher struct {
	users      *repository.UserRepository
	onboarding *OnboardingService
	learning   *LearningService
	reminders  *ReminderService
	access     *AccessMeter
	sender     chat.Sender
	slotHours  map[string]int
	retryDelay time.Duration
	log        *zap.Logger
}

func NewDispatcher(
	users *repository.UserRepository,
	onboarding *OnboardingService,
	learning *LearningService,
	reminders *ReminderService,
	access *AccessMeter,
	sender chat.Sender,
	slotHours map[string]int,
	retryDelay time.Duration,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		users:      users,
		onboarding: onboarding,
		learning:   learning,
		reminders:  reminders,
		access:     access,
		sender:     sender,
		slotHours:  slotHours,
		retryDelay: retryDelay,
		log:        log.Named("dispatch"),
	}
}

// Handle processes one inbound event.
func (d *Dispatcher) Handle(ctx context.Context, ev chat.Event) error {
	user, created, err := d.users.UpsertFromTelegram(ctx, ev.UserID, ev.ChatID, ev.FirstName, ev.LastName, ev.Username)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if created {
		d.log.Info("new user", zap.Int64("user", ev.UserID))
	}

	if ev.Kind == chat.KindCommand && ev.Payload == "help" {
		return d.send(ctx, ev.UserID, textMessage(ev.ChatID, textHelp))
	}
	if !user.OnboardingComplete {
		return d.onboard(ctx, user, created, ev)
	}

	switch ev.Kind {
	case chat.KindChoice:
		return d.choice(ctx, ev)
	case chat.KindCommand:
		return d.command(ctx, user, ev)
	default:
		if d.learning.Active(ev.UserID) {
			return nil
		}
		return d.send(ctx, ev.UserID, textMessage(ev.ChatID, textUnknownInput))
	}
}

func (d *Dispatcher) onboard(ctx context.Context, user *model.User, created bool, ev chat.Event) error {
	isAnswer := ev.Kind == chat.KindText ||
		(ev.Kind == chat.KindChoice && strings.HasPrefix(ev.Payload, chat.PrefixOnboarding))

	if created || !isAnswer {
		res, err := d.onboarding.Begin(ctx, ev.UserID, ev.ChatID)
		if err != nil {
			d.sendQuiet(ctx, ev.UserID, textMessage(ev.ChatID, textTryLater))
			return err
		}
		var msgs []chat.Message
		if created || ev.Payload == "start" {
			msgs = append(msgs, chat.Message{ChatID: ev.ChatID, Text: fmt.Sprintf(textWelcome, escape(displayName(user)), OnboardingSteps)})
		}
		return d.send(ctx, ev.UserID, append(msgs, res.Prompt)...)
	}

	res, err := d.onboarding.Advance(ctx, ev.UserID, ev.ChatID, ev)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		text := textStaleChoice
		if !verr.Stale {
			text = fmt.Sprintf(textValidation, escape(verr.Input), escape(strings.Join(verr.Accepted, ", ")))
		}
		return d.send(ctx, ev.UserID, chat.Message{ChatID: ev.ChatID, Text: text}, res.Prompt)
	case err != nil:
		d.sendQuiet(ctx, ev.UserID, textMessage(ev.ChatID, textTryLater))
		return err
	}

	if !res.Done {
		return d.send(ctx, ev.UserID, res.Prompt)
	}
	if err := d.send(ctx, ev.UserID, textMessage(ev.ChatID, textProfileDone)); err != nil {
		return err
	}
	return d.learning.Start(ctx, ev.UserID, ev.ChatID)
}

func (d *Dispatcher) choice(ctx context.Context, ev chat.Event) error {
	data := ev.Payload
	if turn, option, ok := chat.ParseAnswer(data); ok {
		return d.learning.Answer(ctx, ev.UserID, turn, option)
	}
	if ans, ok := chat.ParseReminder(data); ok {
		return d.reminders.Grade(ctx, ev.UserID, ev.ChatID, ans)
	}
	switch data {
	case chat.TokenNext:
		return d.learning.Next(ctx, ev.UserID, ev.ChatID)
	case chat.TokenStop:
		_, err := d.learning.Stop(ctx, ev.UserID)
		if errors.Is(err, ErrNoSession) {
			return d.send(ctx, ev.UserID, textMessage(ev.ChatID, textBye))
		}
		return err
	}
	d.log.Debug("unrouted choice", zap.Int64("user", ev.UserID), zap.String("data", data))
	return nil
}

func (d *Dispatcher) command(ctx context.Context, user *model.User, ev chat.Event) error {
	switch ev.Payload {
	case "start":
		return d.send(ctx, ev.UserID, textMessage(ev.ChatID, fmt.Sprintf(textWelcomeBack, escape(displayName(user)))))
	case "study":
		return d.learning.Start(ctx, ev.UserID, ev.ChatID)
	case "stop":
		_, err := d.learning.Stop(ctx, ev.UserID)
		if errors.Is(err, ErrNoSession) {
			return d.send(ctx, ev.UserID, textMessage(ev.ChatID, textNoSession))
		}
		return err
	case "balance":
		return d.balance(ctx, ev)
	case "reminders":
		return d.toggleReminders(ctx, user, ev)
	default:
		return d.send(ctx, ev.UserID, textMessage(ev.ChatID, textUnknownInput))
	}
}

// balance reports which rule would pay for the next lesson without spending it.
func (d *Dispatcher) balance(ctx context.Context, ev chat.Event) error {
	decision, err := d.access.CheckAccess(ctx, ev.UserID)
	if err != nil {
		return err
	}
	d.access.Release(decision)

	var text string
	switch decision.Kind {
	case GrantFreeFirstDay:
		text = fmt.Sprintf(textBalanceFirstDay, decision.Remaining+1)
	case GrantSubscription:
		text = textBalanceSubscription
	case GrantDailyFree:
		text = fmt.Sprintf(textBalanceDailyFree, decision.Remaining+1)
	case GrantCredit:
		text = fmt.Sprintf(textBalanceCredit, decision.BalanceAfter+1)
	default:
		return d.send(ctx, ev.UserID, renderDenied(ev.ChatID, decision, d.learning.opts.UpsellURL))
	}
	return d.send(ctx, ev.UserID, textMessage(ev.ChatID, text))
}

func (d *Dispatcher) toggleReminders(ctx context.Context, user *model.User, ev chat.Event) error {
	if off := strings.EqualFold(strings.TrimSpace(ev.Args), "off"); off {
		if err := d.users.SetReminderEnabled(ctx, ev.UserID, false); err != nil {
			return err
		}
		return d.send(ctx, ev.UserID, textMessage(ev.ChatID, textRemindersOff))
	}
	if err := d.users.SetReminderEnabled(ctx, ev.UserID, true); err != nil {
		return err
	}
	return d.send(ctx, ev.UserID, textMessage(ev.ChatID, fmt.Sprintf(textRemindersOn, d.slotHours[user.StudySlot])))
}

func (d *Dispatcher) send(ctx context.Context, userID int64, msgs ...chat.Message) error {
	err := newTurnSender(d.sender, d.retryDelay).send(ctx, msgs...)
	if err != nil && errors.Is(err, chat.ErrPermanent) {
		d.log.Info("chat revoked, disabling reminders", zap.Int64("user", userID))
		return d.users.SetReminderEnabled(ctx, userID, false)
	}
	return err
}

func (d *Dispatcher) sendQuiet(ctx context.Context, userID int64, msgs ...chat.Message) {
	if err := d.send(ctx, userID, msgs...); err != nil {
		d.log.Warn("send", zap.Int64("user", userID), zap.Error(err))
	}
}

func displayName(user *model.User) string {
	if name := strings.TrimSpace(user.FirstName); name != "" {
		return name
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return "estudante"
}
