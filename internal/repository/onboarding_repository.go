package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exam-coach/internal/model"
)

// OnboardingRepository persists questionnaire progress so it survives restarts.
type OnboardingRepository struct {
	db *gorm.DB
}

func NewOnboardingRepository(db *gorm.DB) *OnboardingRepository {
	return &OnboardingRepository{db: db}
}

// Get returns the in-progress session or nil when the user has none.
func (r *OnboardingRepository) Get(ctx context.Context, userID int64) (*model.OnboardingSession, error) {
	var session model.OnboardingSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	switch {
	case err == nil:
		return &session, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find onboarding: %w", err)
	}
}

// Save upserts the session. A stored step is never moved backwards.
func (r *OnboardingRepository) Save(ctx context.Context, session *model.OnboardingSession) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"step", "awaiting_text", "exam_track", "region", "role", "level", "strong_topics", "weak_topics", "time_to_exam", "study_slot", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "onboarding_sessions.step <= excluded.step"},
		}},
	}).Create(session).Error
	if err != nil {
		return fmt.Errorf("save onboarding: %w", err)
	}
	return nil
}

func (r *OnboardingRepository) Delete(ctx context.Context, userID int64) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.OnboardingSession{}).Error; err != nil {
		return fmt.Errorf("delete onboarding: %w", err)
	}
	return nil
}
