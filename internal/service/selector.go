package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"exam-coach/internal/model"
	"exam-coach/internal/repository"
)

// ContentSource is the external content repository.
type ContentSource interface {
	FetchUnseen(ctx context.Context, userID int64, excludeIDs []uint, topics []string) (*model.Lesson, *model.QuizItem, error)
}

// Selection is a lesson picked for a user plus the quiz the repository bound to it, if any.
type Selection struct {
	Lesson *model.Lesson
	Quiz   *model.QuizItem
}

// ContentSelector picks the next lesson, favouring weak topics and never
// repeating one inside the user's recently-seen window.
type ContentSelector struct {
	content ContentSource
	users   *repository.UserRepository
	locks   *keyedMutex
	window  int
	bias    float64
	rnd     func() float64
	log     *zap.Logger
}

func NewContentSelector(content ContentSource, users *repository.UserRepository, window int, weakBias float64, log *zap.Logger) *ContentSelector {
	if window <= 0 {
		window = 200
	}
	return &ContentSelector{
		content: content,
		users:   users,
		locks:   newKeyedMutex(),
		window:  window,
		bias:    weakBias,
		rnd:     rand.Float64,
		log:     log.Named("selector"),
	}
}

// Next returns the next lesson for the user, or nil when the repository has no active content.
// The returned lesson is recorded as seen before Next returns.
func (s *ContentSelector) Next(ctx context.Context, userID int64) (*Selection, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.users.FindByTelegramID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	seen := []uint(user.SeenContent)

	var sel *Selection
	if len(user.WeakTopics) > 0 && s.rnd() < s.bias {
		if sel, err = s.fetch(ctx, userID, seen, user.WeakTopics); err != nil {
			return nil, err
		}
	}
	if sel == nil && len(user.StrongTopics) > 0 {
		if sel, err = s.fetch(ctx, userID, seen, user.StrongTopics); err != nil {
			return nil, err
		}
	}
	if sel == nil {
		if sel, err = s.fetch(ctx, userID, seen, nil); err != nil {
			return nil, err
		}
	}
	if sel == nil && len(seen) > 0 {
		s.log.Info("seen window exhausted, resetting", zap.Int64("user", userID), zap.Int("seen", len(seen)))
		seen = nil
		if sel, err = s.fetch(ctx, userID, nil, nil); err != nil {
			return nil, err
		}
		if sel == nil {
			if err := s.users.SetSeenContent(ctx, userID, nil); err != nil {
				return nil, err
			}
		}
	}
	if sel == nil {
		return nil, nil
	}

	seen = append(seen, sel.Lesson.ID)
	if len(seen) > s.window {
		seen = seen[len(seen)-s.window:]
	}
	if err := s.users.SetSeenContent(ctx, userID, seen); err != nil {
		return nil, err
	}
	return sel, nil
}

func (s *ContentSelector) fetch(ctx context.Context, userID int64, exclude []uint, topics []string) (*Selection, error) {
	lesson, quiz, err := s.content.FetchUnseen(ctx, userID, exclude, topics)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	if lesson == nil {
		return nil, nil
	}
	return &Selection{Lesson: lesson, Quiz: quiz}, nil
}
