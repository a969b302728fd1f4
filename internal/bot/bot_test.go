package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exam-coach/internal/chat"
)

func privateMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: 7, FirstName: "Ana", UserName: "ana"},
		Chat:      &tgbotapi.Chat{ID: 70, Type: "private"},
		Text:      text,
	}
}

func TestUpdateToEvent(t *testing.T) {
	command := privateMessage("/reminders off")
	command.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 10}}

	group := privateMessage("oi")
	group.Chat.Type = "group"

	tests := []struct {
		name   string
		update tgbotapi.Update
		want   chat.Event
		ok     bool
	}{
		{
			name:   "text",
			update: tgbotapi.Update{Message: privateMessage("  São Paulo ")},
			want:   chat.Event{UserID: 7, ChatID: 70, Kind: chat.KindText, Payload: "São Paulo", FirstName: "Ana", Username: "ana"},
			ok:     true,
		},
		{
			name:   "command",
			update: tgbotapi.Update{Message: command},
			want:   chat.Event{UserID: 7, ChatID: 70, Kind: chat.KindCommand, Payload: "reminders", Args: "off", FirstName: "Ana", Username: "ana"},
			ok:     true,
		},
		{
			name:   "menu label",
			update: tgbotapi.Update{Message: privateMessage(menuLabelBalance)},
			want:   chat.Event{UserID: 7, ChatID: 70, Kind: chat.KindCommand, Payload: "balance", FirstName: "Ana", Username: "ana"},
			ok:     true,
		},
		{
			name: "callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID:      "cb",
				From:    &tgbotapi.User{ID: 7, FirstName: "Ana"},
				Message: privateMessage("❓ pergunta"),
				Data:    "qa:1:2",
			}},
			want: chat.Event{UserID: 7, ChatID: 70, Kind: chat.KindChoice, Payload: "qa:1:2", FirstName: "Ana"},
			ok:   true,
		},
		{name: "group chat", update: tgbotapi.Update{Message: group}},
		{name: "empty text", update: tgbotapi.Update{Message: privateMessage("   ")}},
		{name: "callback without message", update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{From: &tgbotapi.User{ID: 7}}}},
		{name: "other update", update: tgbotapi.Update{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := updateToEvent(tt.update)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"forbidden", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, chat.ErrPermanent},
		{"chat not found", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, chat.ErrPermanent},
		{"deactivated", &tgbotapi.Error{Code: 400, Message: "Forbidden: user is deactivated"}, chat.ErrPermanent},
		{"rate limited", &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 3"}, chat.ErrTransient},
		{"bad gateway", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, chat.ErrTransient},
		{"network", fmt.Errorf("post: %w", errors.New("connection reset by peer")), chat.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifySendError(tt.err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReplyMarkup(t *testing.T) {
	assert.Nil(t, replyMarkup(chat.Message{Text: "x"}))

	menu, ok := replyMarkup(chat.Message{Text: "x", Menu: true}).(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, menu.ResizeKeyboard)
	require.Len(t, menu.Keyboard, 2)
	for _, row := range menu.Keyboard {
		for _, btn := range row {
			assert.NotEmpty(t, menuCommands[strings.ToLower(btn.Text)], btn.Text)
		}
	}

	inline, ok := replyMarkup(chat.Message{
		Menu: true,
		Buttons: [][]chat.Button{
			{{Label: "A", Data: "qa:1:0"}, {Label: "B", Data: "qa:1:1"}},
			{{Label: "Comprar", URL: "https://example.test/buy"}},
		},
	}).(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "inline buttons win over the menu")
	require.Len(t, inline.InlineKeyboard, 2)
	require.NotNil(t, inline.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "qa:1:1", *inline.InlineKeyboard[0][1].CallbackData)
	require.NotNil(t, inline.InlineKeyboard[1][0].URL)
	assert.Equal(t, "https://example.test/buy", *inline.InlineKeyboard[1][0].URL)
}
