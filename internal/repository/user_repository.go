package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"exam-coach/internal/model"
)

// UserRepository handles learner profiles.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user based on TelegramID and updates basic profile info.
// The boolean reports whether the row was created by this call.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID, chatID int64, firstName, lastName, username string) (*model.User, bool, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"chat_id":    chatID,
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("update user: %w", err)
		}
		return &user, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID:      telegramID,
			ChatID:          chatID,
			FirstName:       firstName,
			LastName:        lastName,
			Username:        username,
			ReminderEnabled: true,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		return &user, true, nil
	default:
		return nil, false, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CompleteProfile materializes onboarding answers and marks the profile complete.
func (r *UserRepository) CompleteProfile(ctx context.Context, telegramID int64, delta model.ProfileDelta) error {
	updates := map[string]interface{}{
		"exam_track":          delta.ExamTrack,
		"region":              delta.Region,
		"role":                delta.Role,
		"level":               delta.Level,
		"strong_topics":       datatypes.NewJSONSlice(nonNil(delta.StrongTopics)),
		"weak_topics":         datatypes.NewJSONSlice(nonNil(delta.WeakTopics)),
		"time_to_exam":        delta.TimeToExam,
		"study_slot":          delta.StudySlot,
		"onboarding_complete": true,
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("telegram_id = ?", telegramID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("complete profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("complete profile: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *UserRepository) SetSeenContent(ctx context.Context, telegramID int64, ids []uint) error {
	if ids == nil {
		ids = []uint{}
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("telegram_id = ?", telegramID).
		Update("seen_content", datatypes.NewJSONSlice(ids)).Error; err != nil {
		return fmt.Errorf("set seen content: %w", err)
	}
	return nil
}

func (r *UserRepository) SetReminderEnabled(ctx context.Context, telegramID int64, enabled bool) error {
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("telegram_id = ?", telegramID).
		Update("reminder_enabled", enabled).Error; err != nil {
		return fmt.Errorf("set reminder flag: %w", err)
	}
	return nil
}

// ConsumeFreeLesson atomically spends one first-day lesson if fewer than limit were used.
func (r *UserRepository) ConsumeFreeLesson(ctx context.Context, telegramID int64, limit int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ? AND free_lessons_used < ?", telegramID, limit).
		Update("free_lessons_used", gorm.Expr("free_lessons_used + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("consume free lesson: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ConsumeDailyFree atomically spends one lesson of the daily quota for day.
// The counter restarts when the stored day differs.
func (r *UserRepository) ConsumeDailyFree(ctx context.Context, telegramID int64, day string, quota int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ? AND (daily_free_day IS NULL OR daily_free_day <> ? OR daily_free_used < ?)", telegramID, day, quota).
		Updates(map[string]interface{}{
			"daily_free_used": gorm.Expr("CASE WHEN daily_free_day = ? THEN daily_free_used + 1 ELSE 1 END", day),
			"daily_free_day":  day,
		})
	if res.Error != nil {
		return false, fmt.Errorf("consume daily free: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListReminderCandidates returns onboarded users of a slot with reminders on and no record for day.
func (r *UserRepository) ListReminderCandidates(ctx context.Context, slot, day string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("onboarding_complete = ? AND reminder_enabled = ? AND study_slot = ?", true, true, slot).
		Where("NOT EXISTS (SELECT 1 FROM reminder_records rr WHERE rr.user_id = users.telegram_id AND rr.day = ? AND rr.slot = ?)", day, slot).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return users, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
