// Package chat holds the transport-neutral inbound events, outbound messages
// and callback tokens shared by the bot adapter and the services.
package chat

import (
	"context"
	"errors"
)

var (
	// ErrPermanent means the user revoked the channel (blocked the bot, deleted the chat).
	ErrPermanent = errors.New("permanent delivery failure")
	// ErrTransient means the send may succeed if retried.
	ErrTransient = errors.New("transient delivery failure")
)

// Kind tells how an inbound event was produced.
type Kind int

const (
	KindText Kind = iota
	KindChoice
	KindCommand
)

// Event is one inbound chat update.
type Event struct {
	UserID    int64
	ChatID    int64
	Kind      Kind
	Payload   string // text, callback token, or command name without slash
	Args      string // command arguments
	FirstName string
	LastName  string
	Username  string
}

// Button is an inline button carrying either a callback token or a URL.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Message is one outbound rendered message.
type Message struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
	// Menu attaches the persistent main menu when no inline buttons are present.
	Menu bool
}

// Sender delivers messages. Errors wrap ErrPermanent or ErrTransient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Row is a shorthand for a single row of buttons.
func Row(buttons ...Button) []Button {
	return buttons
}
