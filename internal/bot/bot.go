package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"exam-coach/internal/chat"
)

const (
	menuLabelStudy     = "📚 Estudar"
	menuLabelBalance   = "💰 Saldo"
	menuLabelReminders = "🔔 Lembretes"
	menuLabelHelp      = "ℹ️ Ajuda"
)

// menuCommands maps the persistent menu labels to the commands they stand for.
var menuCommands = map[string]string{
	strings.ToLower(menuLabelStudy):     "study",
	strings.ToLower(menuLabelBalance):   "balance",
	strings.ToLower(menuLabelReminders): "reminders",
	strings.ToLower(menuLabelHelp):      "help",
}

// Handler consumes inbound chat events.
type Handler interface {
	Handle(ctx context.Context, ev chat.Event) error
}

// Bot adapts the Telegram Bot API to chat events and messages.
type Bot struct {
	api *tgbotapi.BotAPI
	log *zap.Logger
}

func New(token string, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log = log.Named("bot")
	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{api: api, log: log}, nil
}

// Start begins polling updates until ctx is cancelled. Events are handled
// one at a time in arrival order.
func (b *Bot) Start(ctx context.Context, h Handler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if cb := update.CallbackQuery; cb != nil {
			b.ackCallback(cb)
		}
		ev, ok := updateToEvent(update)
		if !ok {
			continue
		}
		if err := h.Handle(ctx, ev); err != nil {
			b.log.Error("handle event",
				zap.Int64("user", ev.UserID),
				zap.Int("kind", int(ev.Kind)),
				zap.String("payload", ev.Payload),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Send delivers a rendered message. Errors wrap chat.ErrPermanent when the
// user blocked the bot or the chat is gone, chat.ErrTransient otherwise.
func (b *Bot) Send(ctx context.Context, m chat.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrTransient, err)
	}
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup := replyMarkup(m); markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		return classifySendError(err)
	}
	return nil
}

// ackCallback stops the client spinner and removes the tapped keyboard so
// each prompt can be answered once.
func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug("callback ack", zap.Error(err))
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		b.log.Debug("clear keyboard", zap.Error(err))
	}
}

func updateToEvent(update tgbotapi.Update) (chat.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil || !cb.Message.Chat.IsPrivate() {
			return chat.Event{}, false
		}
		return chat.Event{
			UserID:    cb.From.ID,
			ChatID:    cb.Message.Chat.ID,
			Kind:      chat.KindChoice,
			Payload:   cb.Data,
			FirstName: cb.From.FirstName,
			LastName:  cb.From.LastName,
			Username:  cb.From.UserName,
		}, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
			return chat.Event{}, false
		}
		ev := chat.Event{
			UserID:    msg.From.ID,
			ChatID:    msg.Chat.ID,
			Kind:      chat.KindText,
			Payload:   strings.TrimSpace(msg.Text),
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
			Username:  msg.From.UserName,
		}
		switch {
		case msg.IsCommand():
			ev.Kind = chat.KindCommand
			ev.Payload = strings.ToLower(msg.Command())
			ev.Args = strings.TrimSpace(msg.CommandArguments())
		case menuCommands[strings.ToLower(ev.Payload)] != "":
			ev.Kind = chat.KindCommand
			ev.Payload = menuCommands[strings.ToLower(ev.Payload)]
		case ev.Payload == "":
			return chat.Event{}, false
		}
		return ev, true
	}
	return chat.Event{}, false
}

func replyMarkup(m chat.Message) interface{} {
	if len(m.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Buttons))
		for _, row := range m.Buttons {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, btn := range row {
				if btn.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL))
					continue
				}
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
			}
			if len(buttons) > 0 {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
			}
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if m.Menu {
		return mainMenuKeyboard()
	}
	return nil
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStudy),
			tgbotapi.NewKeyboardButton(menuLabelBalance),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReminders),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

// classifySendError maps Bot API failures onto the chat error taxonomy.
func classifySendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && isRevoked(apiErr.Code, apiErr.Message) {
		return fmt.Errorf("%w: %v", chat.ErrPermanent, err)
	}
	return fmt.Errorf("%w: %v", chat.ErrTransient, err)
}

func isRevoked(code int, message string) bool {
	if code == http.StatusForbidden {
		return true
	}
	msg := strings.ToLower(message)
	return strings.Contains(msg, "chat not found") ||
		strings.Contains(msg, "user is deactivated") ||
		strings.Contains(msg, "bot was blocked")
}
