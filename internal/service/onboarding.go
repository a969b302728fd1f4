package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"exam-coach/internal/chat"
	"exam-coach/internal/model"
	"exam-coach/internal/repository"
)

// Onboarding steps, asked strictly in this order.
const (
	stepTrack = iota + 1
	stepRegion
	stepRole
	stepLevel
	stepStrong
	stepWeak
	stepTimeToExam
	stepSlot
)

// OnboardingSteps is the number of questions in the questionnaire.
const OnboardingSteps = stepSlot

// ValidationError reports an answer the current step does not accept.
// The step is not advanced.
type ValidationError struct {
	Step     int
	Input    string
	Accepted []string
	// Stale is set for a button tap that belongs to another step.
	Stale bool
}

func (e *ValidationError) Error() string {
	if e.Stale {
		return fmt.Sprintf("onboarding step %d: stale choice %q", e.Step, e.Input)
	}
	return fmt.Sprintf("onboarding step %d: %q is not an accepted answer", e.Step, e.Input)
}

// Catalog supplies the role and topic lists offered during onboarding.
type Catalog interface {
	Topics(ctx context.Context) ([]string, error)
	RolesForTrack(ctx context.Context, track string) ([]string, error)
}

// OnboardingResult is the outcome of one questionnaire event.
type OnboardingResult struct {
	// Prompt asks the current question; empty when Done.
	Prompt chat.Message
	Step   int
	Delta  model.ProfileDelta
	Done   bool
}

// OnboardingService runs the intake questionnaire. Progress is saved after
// every accepted answer so a restart resumes at the same question.
type OnboardingService struct {
	sessions  *repository.OnboardingRepository
	users     *repository.UserRepository
	catalog   Catalog
	slotHours map[string]int
	log       *zap.Logger
}

func NewOnboardingService(sessions *repository.OnboardingRepository, users *repository.UserRepository, catalog Catalog, slotHours map[string]int, log *zap.Logger) *OnboardingService {
	return &OnboardingService{
		sessions:  sessions,
		users:     users,
		catalog:   catalog,
		slotHours: slotHours,
		log:       log.Named("onboarding"),
	}
}

// Begin returns the prompt of the current question, creating the session on first contact.
func (s *OnboardingService) Begin(ctx context.Context, userID, chatID int64) (*OnboardingResult, error) {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.result(ctx, chatID, sess)
}

// Advance applies one answer. An unaccepted answer yields a *ValidationError
// together with a result re-asking the same question.
func (s *OnboardingService) Advance(ctx context.Context, userID, chatID int64, ev chat.Event) (*OnboardingResult, error) {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	input, choice := strings.TrimSpace(ev.Payload), false
	if ev.Kind == chat.KindChoice {
		step, value, ok := chat.ParseOnboarding(ev.Payload)
		if !ok || step != sess.Step {
			return s.reject(ctx, chatID, sess, &ValidationError{Step: sess.Step, Input: ev.Payload, Stale: true})
		}
		input, choice = value, true
	}

	switch sess.Step {
	case stepTrack:
		opt, ok := TrackTable.Match(input)
		if !ok {
			return s.reject(ctx, chatID, sess, s.invalid(sess, input, TrackTable.Accepted()))
		}
		sess.ExamTrack = opt.Value
		if _, regional := regionTableFor(opt.Value); regional {
			sess.Step, sess.AwaitingText = stepRegion, true
		} else {
			sess.Region = model.RegionNationwide
			sess.Step, sess.AwaitingText = stepRole, false
		}

	case stepRegion:
		table, _ := regionTableFor(sess.ExamTrack)
		opt, ok := table.Match(input)
		if !ok {
			return s.reject(ctx, chatID, sess, s.invalid(sess, input, table.Accepted()))
		}
		sess.Region = opt.Value
		sess.Step, sess.AwaitingText = stepRole, false

	case stepRole:
		roles, err := s.roles(ctx, sess.ExamTrack)
		if err != nil {
			return nil, err
		}
		role, ok := pick(roles, input, choice)
		if !ok {
			return s.reject(ctx, chatID, sess, s.invalid(sess, input, roles))
		}
		sess.Role = role
		sess.Step = stepLevel

	case stepLevel:
		opt, ok := LevelTable.Match(input)
		if !ok {
			return s.reject(ctx, chatID, sess, s.invalid(sess, input, LevelTable.Accepted()))
		}
		sess.Level = opt.Value
		sess.Step = stepStrong

	case stepStrong, stepWeak:
		done, err := s.selectTopic(ctx, sess, input, choice)
		if err != nil {
			return s.reject(ctx, chatID, sess, err)
		}
		if done {
			sess.Step++
		}

	case stepTimeToExam:
		opt, ok := TimeToExamTable.Match(input)
		if !ok {
			return s.reject(ctx, chatID, sess, s.invalid(sess, input, TimeToExamTable.Accepted()))
		}
		sess.TimeToExam = opt.Value
		sess.Step = stepSlot

	case stepSlot:
		opt, ok := SlotTable.Match(input)
		if !ok {
			return s.reject(ctx, chatID, sess, s.invalid(sess, input, SlotTable.Accepted()))
		}
		sess.StudySlot = opt.Value
		return s.complete(ctx, sess)

	default:
		return nil, fmt.Errorf("onboarding of user %d at unknown step %d", userID, sess.Step)
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.result(ctx, chatID, sess)
}

// selectTopic handles the repeatable topic steps. It reports whether the step is finished.
func (s *OnboardingService) selectTopic(ctx context.Context, sess *model.OnboardingSession, input string, choice bool) (bool, error) {
	if opt, ok := topicTerminators.Match(input); ok {
		if opt.Value == topicNone {
			s.setTopics(sess, nil)
		}
		return true, nil
	}

	offered, err := s.offeredTopics(ctx, sess)
	if err != nil {
		return false, err
	}
	catalog, err := s.topics(ctx)
	if err != nil {
		return false, err
	}

	topic, ok := pick(catalog, input, choice)
	if ok {
		_, ok = matchName(offered, topic)
	}
	if !ok {
		accepted := append(append([]string(nil), offered...), topicTerminators.Accepted()...)
		return false, s.invalid(sess, input, accepted)
	}

	selected := s.selectedTopics(sess)
	if _, dup := matchName(selected, topic); dup {
		return false, nil
	}
	s.setTopics(sess, append(selected, topic))
	return false, nil
}

func (s *OnboardingService) complete(ctx context.Context, sess *model.OnboardingSession) (*OnboardingResult, error) {
	delta := sess.Delta()
	if err := s.users.CompleteProfile(ctx, sess.UserID, delta); err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, sess.UserID); err != nil {
		return nil, err
	}
	s.log.Info("onboarding complete",
		zap.Int64("user", sess.UserID),
		zap.String("track", delta.ExamTrack),
		zap.String("slot", delta.StudySlot),
	)
	return &OnboardingResult{Step: stepSlot, Delta: delta, Done: true}, nil
}

func (s *OnboardingService) load(ctx context.Context, userID int64) (*model.OnboardingSession, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	sess = &model.OnboardingSession{UserID: userID, Step: stepTrack}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *OnboardingService) reject(ctx context.Context, chatID int64, sess *model.OnboardingSession, err error) (*OnboardingResult, error) {
	res, perr := s.result(ctx, chatID, sess)
	if perr != nil {
		return nil, perr
	}
	return res, err
}

func (s *OnboardingService) invalid(sess *model.OnboardingSession, input string, accepted []string) *ValidationError {
	return &ValidationError{Step: sess.Step, Input: input, Accepted: accepted}
}

func (s *OnboardingService) result(ctx context.Context, chatID int64, sess *model.OnboardingSession) (*OnboardingResult, error) {
	prompt, err := s.prompt(ctx, chatID, sess)
	if err != nil {
		return nil, err
	}
	return &OnboardingResult{Prompt: prompt, Step: sess.Step, Delta: sess.Delta()}, nil
}

func (s *OnboardingService) prompt(ctx context.Context, chatID int64, sess *model.OnboardingSession) (chat.Message, error) {
	msg := chat.Message{ChatID: chatID}
	step := sess.Step

	switch step {
	case stepTrack:
		msg.Buttons = tableButtons(step, TrackTable, nil)
	case stepRegion:
		msg.Text = textRegionState
		if sess.ExamTrack == model.TrackMunicipal {
			msg.Text = textRegionMunicipal
		}
		return msg, nil
	case stepRole:
		roles, err := s.roles(ctx, sess.ExamTrack)
		if err != nil {
			return msg, err
		}
		msg.Buttons = indexButtons(step, roles, nil)
	case stepLevel:
		msg.Buttons = tableButtons(step, LevelTable, nil)
	case stepStrong, stepWeak:
		catalog, err := s.topics(ctx)
		if err != nil {
			return msg, err
		}
		offered, err := s.offeredTopics(ctx, sess)
		if err != nil {
			return msg, err
		}
		selected := s.selectedTopics(sess)
		hide := func(topic string) bool {
			_, isOffered := matchName(offered, topic)
			_, isSelected := matchName(selected, topic)
			return !isOffered || isSelected
		}
		msg.Buttons = indexButtons(step, catalog, hide)
		terminator := topicTerminators.Options()[1]
		if len(selected) > 0 {
			terminator = topicTerminators.Options()[0]
		}
		msg.Buttons = append(msg.Buttons, chat.Row(chat.Button{
			Label: terminator.Label,
			Data:  chat.OnboardingToken(step, terminator.Value),
		}))
		text := onboardingPrompts[step]
		if len(selected) > 0 {
			text += fmt.Sprintf(textSelected, escape(strings.Join(selected, ", ")))
		}
		msg.Text = text
		return msg, nil
	case stepTimeToExam:
		msg.Buttons = tableButtons(step, TimeToExamTable, nil)
	case stepSlot:
		msg.Buttons = tableButtons(step, SlotTable, func(opt Option) string {
			if hour, ok := s.slotHours[opt.Value]; ok {
				return fmt.Sprintf("%s (%02dh)", opt.Label, hour)
			}
			return opt.Label
		})
	}
	msg.Text = onboardingPrompts[step]
	return msg, nil
}

func (s *OnboardingService) roles(ctx context.Context, track string) ([]string, error) {
	roles, err := s.catalog.RolesForTrack(ctx, track)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return fallbackRoles, nil
	}
	return roles, nil
}

func (s *OnboardingService) topics(ctx context.Context) ([]string, error) {
	topics, err := s.catalog.Topics(ctx)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return fallbackTopics, nil
	}
	return topics, nil
}

// offeredTopics is the catalog minus, on the weak step, the topics already marked strong.
func (s *OnboardingService) offeredTopics(ctx context.Context, sess *model.OnboardingSession) ([]string, error) {
	catalog, err := s.topics(ctx)
	if err != nil {
		return nil, err
	}
	if sess.Step != stepWeak {
		return catalog, nil
	}
	out := make([]string, 0, len(catalog))
	for _, topic := range catalog {
		if _, strong := matchName(sess.StrongTopics, topic); !strong {
			out = append(out, topic)
		}
	}
	return out, nil
}

func (s *OnboardingService) selectedTopics(sess *model.OnboardingSession) []string {
	if sess.Step == stepWeak {
		return append([]string(nil), sess.WeakTopics...)
	}
	return append([]string(nil), sess.StrongTopics...)
}

func (s *OnboardingService) setTopics(sess *model.OnboardingSession, topics []string) {
	if topics == nil {
		topics = []string{}
	}
	if sess.Step == stepWeak {
		sess.WeakTopics = datatypes.NewJSONSlice(topics)
		return
	}
	sess.StrongTopics = datatypes.NewJSONSlice(topics)
}

// pick resolves a button index or a typed name against names.
func pick(names []string, input string, choice bool) (string, bool) {
	if choice {
		i, err := strconv.Atoi(input)
		if err != nil || i < 0 || i >= len(names) {
			return "", false
		}
		return names[i], true
	}
	return matchName(names, input)
}

func tableButtons(step int, table AliasTable, label func(Option) string) [][]chat.Button {
	var row []chat.Button
	for _, opt := range table.Options() {
		text := opt.Label
		if label != nil {
			text = label(opt)
		}
		row = append(row, chat.Button{Label: text, Data: chat.OnboardingToken(step, opt.Value)})
	}
	return chunk(row, 3)
}

func indexButtons(step int, names []string, hide func(string) bool) [][]chat.Button {
	var row []chat.Button
	for i, name := range names {
		if hide != nil && hide(name) {
			continue
		}
		row = append(row, chat.Button{Label: name, Data: chat.OnboardingToken(step, strconv.Itoa(i))})
	}
	return chunk(row, 2)
}

func chunk(buttons []chat.Button, size int) [][]chat.Button {
	var rows [][]chat.Button
	for len(buttons) > size {
		rows = append(rows, buttons[:size:size])
		buttons = buttons[size:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}
