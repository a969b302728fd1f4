package service

import (
	"fmt"
	"html"
	"math"
	"strings"

	"exam-coach/internal/chat"
	"exam-coach/internal/model"
)

const optionDisplayLimit = 180

var optionLetters = []string{"A", "B", "C", "D", "E", "F"}

func renderLesson(chatID int64, lesson *model.Lesson, intro string) chat.Message {
	var sb strings.Builder
	if intro != "" {
		sb.WriteString(intro)
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("📚 <b>%s</b>\n", escape(lesson.Title)))
	if lesson.Topic != "" {
		sb.WriteString(fmt.Sprintf("<i>%s</i>\n", escape(lesson.Topic)))
	}
	sb.WriteString("\n")
	sb.WriteString(escape(strings.TrimSpace(lesson.Body)))
	return chat.Message{ChatID: chatID, Text: strings.TrimSpace(sb.String())}
}

// renderQuiz lists the options with display truncation; buttons carry option indices only.
func renderQuiz(chatID int64, quiz *model.QuizItem, token func(option int) string) chat.Message {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("❓ <b>%s</b>\n", escape(quiz.Question)))
	row := make([]chat.Button, 0, len(quiz.Options))
	for i, opt := range quiz.Options {
		letter := optionLetter(i)
		sb.WriteString(fmt.Sprintf("\n<b>%s)</b> %s", letter, escape(truncate(opt, optionDisplayLimit))))
		row = append(row, chat.Button{Label: letter, Data: token(i)})
	}
	return chat.Message{ChatID: chatID, Text: sb.String(), Buttons: [][]chat.Button{row}}
}

func renderFeedback(chatID int64, quiz *model.QuizItem, correct bool, n int, buttons [][]chat.Button) chat.Message {
	var sb strings.Builder
	if correct {
		sb.WriteString(positiveFeedback[n%len(positiveFeedback)])
	} else {
		sb.WriteString(encouragingFeedback[n%len(encouragingFeedback)])
		if quiz.CorrectIndex >= 0 && quiz.CorrectIndex < len(quiz.Options) {
			sb.WriteString("\n")
			sb.WriteString(fmt.Sprintf(textCorrectAnswer, optionLetter(quiz.CorrectIndex)))
		}
	}
	if explanation := strings.TrimSpace(quiz.Explanation); explanation != "" {
		sb.WriteString("\n\n💡 ")
		sb.WriteString(escape(explanation))
	}
	return chat.Message{ChatID: chatID, Text: sb.String(), Buttons: buttons}
}

func continueButtons(nextLabel string) [][]chat.Button {
	return [][]chat.Button{chat.Row(
		chat.Button{Label: nextLabel, Data: chat.TokenNext},
		chat.Button{Label: textStop, Data: chat.TokenStop},
	)}
}

func renderDenied(chatID int64, d AccessDecision, upsellURL string) chat.Message {
	reason := d.Reason
	if reason == "" {
		reason = textDeniedReason
	}
	msg := chat.Message{ChatID: chatID, Text: fmt.Sprintf(textDenied, escape(reason))}
	if upsellURL != "" {
		msg.Buttons = [][]chat.Button{chat.Row(chat.Button{Label: textBuyCredits, URL: upsellURL})}
	} else {
		msg.Menu = true
	}
	return msg
}

// Summary reports the counters of a finished learning session.
type Summary struct {
	Lessons   int
	Correct   int
	Incorrect int
	Accuracy  int // percent of answered quizzes
}

func summarize(s *LearningSession) Summary {
	answered := s.Correct + s.Incorrect
	accuracy := 0
	if answered > 0 {
		accuracy = int(math.Round(float64(s.Correct) * 100 / float64(answered)))
	}
	return Summary{Lessons: s.Lessons, Correct: s.Correct, Incorrect: s.Incorrect, Accuracy: accuracy}
}

func renderSummary(chatID int64, sum Summary) chat.Message {
	return chat.Message{
		ChatID: chatID,
		Text:   fmt.Sprintf(textSummary, sum.Lessons, sum.Correct, sum.Incorrect, sum.Accuracy),
		Menu:   true,
	}
}

func textMessage(chatID int64, text string) chat.Message {
	return chat.Message{ChatID: chatID, Text: text, Menu: true}
}

func optionLetter(i int) string {
	if i >= 0 && i < len(optionLetters) {
		return optionLetters[i]
	}
	return fmt.Sprintf("%d", i+1)
}

func truncate(s string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
