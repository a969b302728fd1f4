package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback token prefixes. Telegram limits callback data to 64 bytes.
const (
	PrefixOnboarding = "ob:"
	PrefixAnswer     = "qa:"
	PrefixReminder   = "rq:"
	TokenNext        = "nx"
	TokenStop        = "st"
)

// OnboardingToken encodes an answer to onboarding step.
func OnboardingToken(step int, value string) string {
	return fmt.Sprintf("%s%d:%s", PrefixOnboarding, step, value)
}

// ParseOnboarding decodes an onboarding token.
func ParseOnboarding(data string) (step int, value string, ok bool) {
	raw, found := strings.CutPrefix(data, PrefixOnboarding)
	if !found {
		return 0, "", false
	}
	stepStr, value, found := strings.Cut(raw, ":")
	if !found {
		return 0, "", false
	}
	step, err := strconv.Atoi(stepStr)
	if err != nil || step <= 0 {
		return 0, "", false
	}
	return step, value, true
}

// AnswerToken encodes the option chosen for the quiz of a session turn.
func AnswerToken(turn, option int) string {
	return fmt.Sprintf("%s%d:%d", PrefixAnswer, turn, option)
}

// ParseAnswer decodes an interactive quiz answer token.
func ParseAnswer(data string) (turn, option int, ok bool) {
	raw, found := strings.CutPrefix(data, PrefixAnswer)
	if !found {
		return 0, 0, false
	}
	nums, ok := parseInts(raw, 2)
	if !ok {
		return 0, 0, false
	}
	return nums[0], nums[1], true
}

// ReminderAnswer correlates a reply with a scheduler-sent quiz.
type ReminderAnswer struct {
	LessonID uint
	QuizID   uint
	Option   int
}

// Token encodes the correlation token.
func (a ReminderAnswer) Token() string {
	return fmt.Sprintf("%s%d:%d:%d", PrefixReminder, a.LessonID, a.QuizID, a.Option)
}

// ParseReminder decodes a scheduler correlation token.
func ParseReminder(data string) (ReminderAnswer, bool) {
	raw, found := strings.CutPrefix(data, PrefixReminder)
	if !found {
		return ReminderAnswer{}, false
	}
	nums, ok := parseInts(raw, 3)
	if !ok {
		return ReminderAnswer{}, false
	}
	return ReminderAnswer{LessonID: uint(nums[0]), QuizID: uint(nums[1]), Option: nums[2]}, true
}

func parseInts(raw string, n int) ([]int, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != n {
		return nil, false
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
