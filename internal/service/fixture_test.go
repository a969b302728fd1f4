package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"exam-coach/internal/chat"
	"exam-coach/internal/config"
	"exam-coach/internal/model"
	"exam-coach/internal/repository"
)

var testHours = map[string]int{config.SlotMorning: 8, config.SlotAfternoon: 13, config.SlotEvening: 19}

// fakeSender records messages and fails sends per chat on demand.
type fakeSender struct {
	mu     sync.Mutex
	sent   []chat.Message
	queued map[int64][]error
	always map[int64]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{queued: map[int64][]error{}, always: map[int64]error{}}
}

func (f *fakeSender) Send(_ context.Context, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.queued[msg.ChatID]; len(errs) > 0 {
		f.queued[msg.ChatID] = errs[1:]
		return errs[0]
	}
	if err := f.always[msg.ChatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) failNext(chatID int64, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[chatID] = append(f.queued[chatID], errs...)
}

func (f *fakeSender) failAlways(chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.always[chatID] = err
}

func (f *fakeSender) to(chatID int64) []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) last(chatID int64) chat.Message {
	msgs := f.to(chatID)
	if len(msgs) == 0 {
		return chat.Message{}
	}
	return msgs[len(msgs)-1]
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

// buttonData flattens the callback tokens of a message.
func buttonData(msg chat.Message) []string {
	var out []string
	for _, row := range msg.Buttons {
		for _, b := range row {
			if b.Data != "" {
				out = append(out, b.Data)
			}
		}
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	users      *repository.UserRepository
	onboarding *repository.OnboardingRepository
	content    *repository.ContentRepository
	records    *repository.ReminderRepository
	billing    *repository.BillingRepository
	attempts   *repository.AttemptRepository

	sender     *fakeSender
	access     *AccessMeter
	selector   *ContentSelector
	quizzes    *QuizBuilder
	sessions   *SessionStore
	learning   *LearningService
	intake     *OnboardingService
	reminders  *ReminderService
	dispatcher *Dispatcher
}

var dsnUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := dsnUnsafe.ReplaceAllString(t.Name(), "_")
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	db := newTestDB(t)

	f := &fixture{
		db:         db,
		users:      repository.NewUserRepository(db),
		onboarding: repository.NewOnboardingRepository(db),
		content:    repository.NewContentRepository(db),
		records:    repository.NewReminderRepository(db),
		billing:    repository.NewBillingRepository(db),
		attempts:   repository.NewAttemptRepository(db),
		sender:     newFakeSender(),
		sessions:   NewSessionStore(),
	}

	f.access = NewAccessMeter(f.users, f.billing, AccessPolicy{FirstDayFree: 3}, log)
	f.selector = NewContentSelector(f.content, f.users, 200, 0.7, log)
	f.selector.rnd = func() float64 { return 0 }
	f.quizzes = NewQuizBuilder(f.content)
	f.quizzes.shuffle = func(int, func(i, j int)) {}

	f.learning = NewLearningService(f.sessions, f.access, f.selector, f.quizzes, f.users, f.attempts, f.sender,
		LearningOptions{UpsellURL: "https://example.test/buy"}, log)
	f.intake = NewOnboardingService(f.onboarding, f.users, f.content, testHours, log)
	f.reminders = NewReminderService(f.users, f.records, f.attempts, f.content, f.access, f.selector, f.quizzes,
		f.learning, f.sender, ReminderOptions{Hours: testHours, RetentionDays: 30}, log)
	f.reminders.sleep = func(context.Context, time.Duration) error { return nil }
	f.dispatcher = NewDispatcher(f.users, f.intake, f.learning, f.reminders, f.access, f.sender, testHours, 0, log)
	return f
}

// seedLessons creates n lessons of topic, each with a distinct definition.
func (f *fixture) seedLessons(t *testing.T, topic string, n int) []model.Lesson {
	t.Helper()
	ctx := context.Background()
	out := make([]model.Lesson, 0, n)
	for i := 0; i < n; i++ {
		slug := strings.ToLower(strings.ReplaceAll(topic, " ", "-"))
		lesson := model.Lesson{
			Topic:       topic,
			Title:       fmt.Sprintf("%s %d", topic, i+1),
			Body:        fmt.Sprintf("Conteúdo da aula %d de %s.", i+1, topic),
			Definition:  fmt.Sprintf("definição %s-%d", slug, i+1),
			Explanation: fmt.Sprintf("Explicação %s-%d.", slug, i+1),
		}
		require.NoError(t, f.content.CreateLesson(ctx, &lesson))
		out = append(out, lesson)
	}
	return out
}

// learner creates an onboarded user whose chat id equals its user id.
func (f *fixture) learner(t *testing.T, id int64, slot string, weak, strong []string) *model.User {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.users.UpsertFromTelegram(ctx, id, id, fmt.Sprintf("User%d", id), "", "")
	require.NoError(t, err)
	require.NoError(t, f.users.CompleteProfile(ctx, id, model.ProfileDelta{
		ExamTrack:    model.TrackFederal,
		Region:       model.RegionNationwide,
		Role:         "Analista",
		Level:        "beginner",
		StrongTopics: strong,
		WeakTopics:   weak,
		TimeToExam:   "3to6m",
		StudySlot:    slot,
	}))
	user, err := f.users.FindByTelegramID(ctx, id)
	require.NoError(t, err)
	return user
}

func (f *fixture) seenContent(t *testing.T, id int64) datatypes.JSONSlice[uint] {
	t.Helper()
	user, err := f.users.FindByTelegramID(context.Background(), id)
	require.NoError(t, err)
	return user.SeenContent
}

// seedBrokenLesson stores a lesson with no definition whose only quiz is unusable.
func (f *fixture) seedBrokenLesson(t *testing.T, topic string) model.Lesson {
	t.Helper()
	ctx := context.Background()
	lesson := model.Lesson{Topic: topic, Title: "Aula sem definição", Body: "Conteúdo."}
	require.NoError(t, f.content.CreateLesson(ctx, &lesson))
	require.NoError(t, f.content.SaveQuiz(ctx, &model.QuizItem{
		LessonID: lesson.ID,
		Question: "?",
		Options:  datatypes.NewJSONSlice([]string{"única"}),
	}))
	return lesson
}
