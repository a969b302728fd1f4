package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exam-coach/internal/chat"
	"exam-coach/internal/config"
	"exam-coach/internal/model"
)

func TestLearningCorrectAnswerSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Direito Administrativo", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	sess, ok := f.sessions.Snapshot(1)
	require.True(t, ok)
	assert.Equal(t, PhaseAwaitingAnswer, sess.Phase)
	assert.Equal(t, 1, sess.Lessons)

	msgs := f.sender.to(1)
	require.Len(t, msgs, 2, "lesson then quiz")
	assert.Contains(t, msgs[0].Text, sess.Lesson.Title)
	assert.Equal(t, chat.AnswerToken(1, 0), buttonData(msgs[1])[0])

	require.NoError(t, f.learning.Answer(ctx, 1, sess.Turn, sess.Quiz.CorrectIndex))
	sess, _ = f.sessions.Snapshot(1)
	assert.Equal(t, PhaseAwaitingContinue, sess.Phase)
	assert.Equal(t, 1, sess.Correct)
	assert.Equal(t, 0, sess.Incorrect)
	assert.Equal(t, []string{chat.TokenNext, chat.TokenStop}, buttonData(f.sender.last(1)))

	sum, err := f.learning.Stop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, Summary{Lessons: 1, Correct: 1, Incorrect: 0, Accuracy: 100}, *sum)
	assert.Contains(t, f.sender.last(1).Text, "100%")
	assert.False(t, f.sessions.Active(1))

	attempts, err := f.attempts.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Correct)
	assert.Equal(t, model.AttemptSession, attempts[0].Source)
}

func TestLearningLoopCountsAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 5)
	f.learner(t, 1, config.SlotMorning, nil, nil)

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	for i := 0; i < 3; i++ {
		sess, _ := f.sessions.Snapshot(1)
		option := sess.Quiz.CorrectIndex
		if i == 1 {
			option = (option + 1) % len(sess.Quiz.Options)
		}
		require.NoError(t, f.learning.Answer(ctx, 1, sess.Turn, option))
		if i < 2 {
			require.NoError(t, f.learning.Next(ctx, 1, 1))
		}
	}

	sum, err := f.learning.Stop(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Summary{Lessons: 3, Correct: 2, Incorrect: 1, Accuracy: 67}, *sum)
}

func TestLearningIgnoresEventsWhileAwaitingAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	before, _ := f.sessions.Snapshot(1)
	sent := len(f.sender.to(1))

	require.NoError(t, f.learning.Next(ctx, 1, 1))
	sum, err := f.learning.Stop(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, sum)
	require.NoError(t, f.learning.Answer(ctx, 1, before.Turn+1, 0), "stale turn")
	require.NoError(t, f.learning.Answer(ctx, 1, before.Turn, 99), "unknown option")

	after, _ := f.sessions.Snapshot(1)
	assert.Equal(t, before, after)
	assert.Len(t, f.sender.to(1), sent)
}

func TestLearningStopWithoutSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.learning.Stop(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestLearningDeniedCreatesNoSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)
	f.access.policy.FirstDayFree = 0

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	assert.False(t, f.sessions.Active(1))

	msg := f.sender.last(1)
	assert.Contains(t, msg.Text, "Sem acesso")
	require.Len(t, msg.Buttons, 1)
	assert.Equal(t, "https://example.test/buy", msg.Buttons[0][0].URL)
}

func TestLearningSecondLessonDeniedAfterLastCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)
	f.access.policy.FirstDayFree = 0
	require.NoError(t, f.billing.AddCredits(ctx, 1, 1))

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	sess, ok := f.sessions.Snapshot(1)
	require.True(t, ok)
	balance, err := f.billing.CreditBalance(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, f.learning.Answer(ctx, 1, sess.Turn, sess.Quiz.CorrectIndex))
	f.sender.reset()
	require.NoError(t, f.learning.Next(ctx, 1, 1))

	assert.False(t, f.sessions.Active(1))
	msgs := f.sender.to(1)
	require.Len(t, msgs, 2, "denial then summary")
	assert.Contains(t, msgs[0].Text, "Sem acesso")
	assert.Contains(t, msgs[1].Text, "100%")
}

func TestLearningDeniedStartKeepsOpenSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)
	f.access.policy.FirstDayFree = 0
	require.NoError(t, f.billing.AddCredits(ctx, 1, 1))

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	sess, ok := f.sessions.Snapshot(1)
	require.True(t, ok)
	require.NoError(t, f.learning.Answer(ctx, 1, sess.Turn, sess.Quiz.CorrectIndex))
	f.sender.reset()

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	assert.Contains(t, f.sender.last(1).Text, "Sem acesso")

	after, ok := f.sessions.Snapshot(1)
	require.True(t, ok, "the open session survives a denied restart")
	assert.Equal(t, sess.ID, after.ID)
	assert.Equal(t, PhaseAwaitingContinue, after.Phase)

	sum, err := f.learning.Stop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, Summary{Lessons: 1, Correct: 1, Incorrect: 0, Accuracy: 100}, *sum)
}

func TestLearningUnquizzableLessonChargesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedBrokenLesson(t, "Matemática")
	f.learner(t, 1, config.SlotMorning, nil, nil)
	f.access.policy.FirstDayFree = 0
	require.NoError(t, f.billing.AddCredits(ctx, 1, 3))

	for i := 0; i < 3; i++ {
		_ = f.learning.Start(ctx, 1, 1)
		assert.False(t, f.sessions.Active(1))
	}

	balance, err := f.billing.CreditBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
	assert.Empty(t, f.access.pending, "grants are released")
	for _, msg := range f.sender.to(1) {
		assert.Contains(t, []string{textTryLater, textNoContent}, msg.Text)
		assert.Empty(t, buttonData(msg), "no quiz was shown")
	}
}

func TestLearningNoContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.learner(t, 1, config.SlotMorning, nil, nil)

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	assert.False(t, f.sessions.Active(1))
	assert.Equal(t, textNoContent, f.sender.last(1).Text)

	user, err := f.users.FindByTelegramID(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, user.FreeLessonsUsed, "nothing shown, nothing debited")
}

func TestLearningConcurrentStartsKeepOneSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 20)
	f.learner(t, 1, config.SlotMorning, nil, nil)
	f.access.policy.FirstDayFree = 0
	require.NoError(t, f.billing.SetSubscription(ctx, 1, time.Now().Add(time.Hour)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.learning.Start(ctx, 1, 1))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.sessions.Count())
	sess, ok := f.sessions.Snapshot(1)
	require.True(t, ok)
	assert.Equal(t, 1, sess.Lessons)
	assert.Equal(t, PhaseAwaitingAnswer, sess.Phase)
}

func TestLearningTransientFailureRetriedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)

	f.sender.failNext(1, fmt.Errorf("%w: timeout", chat.ErrTransient))
	require.NoError(t, f.learning.Start(ctx, 1, 1))
	assert.True(t, f.sessions.Active(1))
	assert.Len(t, f.sender.to(1), 2)

	sess, _ := f.sessions.Snapshot(1)
	require.NoError(t, f.learning.Answer(ctx, 1, sess.Turn, 0))
	f.sender.failNext(1, fmt.Errorf("%w: timeout", chat.ErrTransient), fmt.Errorf("%w: timeout", chat.ErrTransient))
	require.NoError(t, f.learning.Next(ctx, 1, 1))
	assert.False(t, f.sessions.Active(1), "second transient failure abandons the turn")
}

func TestLearningPermanentFailureDisablesReminders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)
	f.sender.failAlways(1, fmt.Errorf("%w: blocked", chat.ErrPermanent))

	require.NoError(t, f.learning.Start(ctx, 1, 1))
	assert.False(t, f.sessions.Active(1))

	user, err := f.users.FindByTelegramID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, user.ReminderEnabled)
}

func TestSweepIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLessons(t, "Matemática", 3)
	f.learner(t, 1, config.SlotMorning, nil, nil)
	require.NoError(t, f.learning.Start(ctx, 1, 1))

	assert.Zero(t, f.learning.SweepIdle(0))
	assert.Zero(t, f.learning.SweepIdle(time.Hour))

	f.learning.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, f.learning.SweepIdle(time.Hour))
	assert.False(t, f.sessions.Active(1))
}

func TestSummaryAccuracy(t *testing.T) {
	tests := []struct {
		correct, incorrect, want int
	}{
		{0, 0, 0},
		{1, 0, 100},
		{1, 2, 33},
		{2, 1, 67},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(fmt.Sprint(tt), " ", "_"), func(t *testing.T) {
			sum := summarize(&LearningSession{Lessons: tt.correct + tt.incorrect, Correct: tt.correct, Incorrect: tt.incorrect})
			assert.Equal(t, tt.want, sum.Accuracy)
		})
	}
}
