package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"exam-coach/internal/model"
)

// AttemptRepository logs graded quiz answers.
type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Record(ctx context.Context, attempt *model.QuizAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) ListByUser(ctx context.Context, userID int64) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
