package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnboardingToken(t *testing.T) {
	step, value, ok := ParseOnboarding(OnboardingToken(5, "done"))
	require.True(t, ok)
	assert.Equal(t, 5, step)
	assert.Equal(t, "done", value)

	step, value, ok = ParseOnboarding("ob:3:2:extra")
	require.True(t, ok)
	assert.Equal(t, 3, step)
	assert.Equal(t, "2:extra", value)

	for _, bad := range []string{"", "ob:", "ob:x:1", "ob:0:a", "qa:1:2", "ob:4"} {
		_, _, ok := ParseOnboarding(bad)
		assert.False(t, ok, bad)
	}
}

func TestAnswerToken(t *testing.T) {
	turn, option, ok := ParseAnswer(AnswerToken(7, 3))
	require.True(t, ok)
	assert.Equal(t, 7, turn)
	assert.Equal(t, 3, option)

	for _, bad := range []string{"qa:1", "qa:1:2:3", "qa:a:1", "qa:1:-1", "rq:1:2"} {
		_, _, ok := ParseAnswer(bad)
		assert.False(t, ok, bad)
	}
}

func TestReminderToken(t *testing.T) {
	in := ReminderAnswer{LessonID: 4021, QuizID: 98812, Option: 2}
	token := in.Token()
	assert.LessOrEqual(t, len(token), 64)

	out, ok := ParseReminder(token)
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, ok = ParseReminder("rq:1:2")
	assert.False(t, ok)
	_, ok = ParseReminder("qa:1:2:3")
	assert.False(t, ok)
}
