package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exam-coach/internal/model"
)

// ContentRepository serves lessons, quiz items and the onboarding catalogs.
type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// FetchUnseen returns a random active lesson outside excludeIDs, optionally restricted to topics,
// and one quiz bound to it when the lesson has any. Both are nil when nothing matches.
func (r *ContentRepository) FetchUnseen(ctx context.Context, userID int64, excludeIDs []uint, topics []string) (*model.Lesson, *model.QuizItem, error) {
	db := r.db.WithContext(ctx)
	// A lesson needs a definition or a stored quiz to be quizzed on.
	q := db.Model(&model.Lesson{}).
		Where("active = ?", true).
		Where("(definition <> '' OR EXISTS (SELECT 1 FROM quiz_items WHERE quiz_items.lesson_id = lessons.id))")
	if len(excludeIDs) > 0 {
		q = q.Where("lessons.id NOT IN ?", excludeIDs)
	}
	if len(topics) > 0 {
		q = q.Where("topic IN ?", topics)
	}

	var lesson model.Lesson
	err := q.Order("RANDOM()").Take(&lesson).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("fetch lesson for user %d: %w", userID, err)
	}

	var quiz model.QuizItem
	err = db.Where("lesson_id = ?", lesson.ID).Order("RANDOM()").Take(&quiz).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &lesson, nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("fetch quiz for lesson %d: %w", lesson.ID, err)
	}
	return &lesson, &quiz, nil
}

// Distractors returns up to n definitions of other active lessons, same topic first.
func (r *ContentRepository) Distractors(ctx context.Context, lesson *model.Lesson, n int) ([]string, error) {
	if lesson == nil || n <= 0 {
		return nil, nil
	}
	var defs []string
	err := r.db.WithContext(ctx).Model(&model.Lesson{}).
		Where("id <> ? AND active = ? AND definition <> ''", lesson.ID, true).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN topic = ? THEN 0 ELSE 1 END, RANDOM()",
			Vars:               []interface{}{lesson.Topic},
			WithoutParentheses: true,
		}}).
		Limit(n*3).
		Pluck("definition", &defs).Error
	if err != nil {
		return nil, fmt.Errorf("distractors for lesson %d: %w", lesson.ID, err)
	}
	return defs, nil
}

func (r *ContentRepository) SaveQuiz(ctx context.Context, quiz *model.QuizItem) error {
	if err := r.db.WithContext(ctx).Create(quiz).Error; err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// FindQuiz returns the quiz with id or nil when it does not exist.
func (r *ContentRepository) FindQuiz(ctx context.Context, id uint) (*model.QuizItem, error) {
	var quiz model.QuizItem
	err := r.db.WithContext(ctx).First(&quiz, id).Error
	switch {
	case err == nil:
		return &quiz, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find quiz: %w", err)
	}
}

// Topics lists distinct topics of active lessons.
func (r *ContentRepository) Topics(ctx context.Context) ([]string, error) {
	var topics []string
	if err := r.db.WithContext(ctx).Model(&model.Lesson{}).
		Where("active = ? AND topic <> ''", true).
		Distinct("topic").Order("topic ASC").
		Pluck("topic", &topics).Error; err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// RolesForTrack returns the role catalog of a track ordered by name.
func (r *ContentRepository) RolesForTrack(ctx context.Context, track string) ([]string, error) {
	var roles []string
	if err := r.db.WithContext(ctx).Model(&model.Role{}).
		Where("track = ?", strings.ToLower(track)).
		Order("name ASC").
		Pluck("name", &roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (r *ContentRepository) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	if err := r.db.WithContext(ctx).Create(lesson).Error; err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

func (r *ContentRepository) CreateRole(ctx context.Context, role *model.Role) error {
	role.Track = strings.ToLower(role.Track)
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}
