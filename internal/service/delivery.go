package service

import (
	"context"
	"errors"
	"time"

	"exam-coach/internal/chat"
)

// turnSender sends the messages of one turn, retrying a transient failure at most once per turn.
type turnSender struct {
	sender  chat.Sender
	delay   time.Duration
	retried bool
}

func newTurnSender(sender chat.Sender, delay time.Duration) *turnSender {
	return &turnSender{sender: sender, delay: delay}
}

func (t *turnSender) send(ctx context.Context, msgs ...chat.Message) error {
	for _, msg := range msgs {
		err := t.sender.Send(ctx, msg)
		if err != nil && errors.Is(err, chat.ErrTransient) && !t.retried {
			t.retried = true
			if err := sleepCtx(ctx, t.delay); err != nil {
				return err
			}
			err = t.sender.Send(ctx, msg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
