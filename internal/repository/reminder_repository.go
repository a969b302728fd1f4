package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exam-coach/internal/model"
)

// ReminderRepository stores one record per (user, day, slot) outreach attempt
// and the quizzes outreach has sent.
type ReminderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db, now: time.Now}
}

// Claim inserts the record for (user, day, slot). It reports false when the
// record already existed, in which case nothing is written.
func (r *ReminderRepository) Claim(ctx context.Context, userID int64, day, slot string) (bool, error) {
	record := model.ReminderRecord{UserID: userID, Day: day, Slot: slot}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		return false, fmt.Errorf("claim reminder: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ReminderRepository) Count(ctx context.Context, userID int64, day, slot string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ReminderRecord{}).
		Where("user_id = ? AND day = ? AND slot = ?", userID, day, slot).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return n, nil
}

// PurgeBefore deletes records of days strictly before day (YYYY-MM-DD).
func (r *ReminderRepository) PurgeBefore(ctx context.Context, day string) (int64, error) {
	res := r.db.WithContext(ctx).Where("day < ?", day).Delete(&model.ReminderRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge reminders: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Issue opens quiz for answers from user. Sending the same quiz again reopens it.
func (r *ReminderRepository) Issue(ctx context.Context, userID int64, lessonID, quizID uint) error {
	issued := model.ReminderQuiz{UserID: userID, QuizID: quizID, LessonID: lessonID, IssuedAt: r.now()}
	reopen := clause.Assignments(map[string]interface{}{"lesson_id": lessonID, "issued_at": issued.IssuedAt, "answered_at": nil})
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "quiz_id"}},
		DoUpdates: reopen,
	}).Create(&issued).Error
	if err != nil {
		return fmt.Errorf("issue reminder quiz: %w", err)
	}
	return nil
}

// Redeem closes an open quiz in a single conditional update. It reports false
// when the quiz was never sent to user or was already answered.
func (r *ReminderRepository) Redeem(ctx context.Context, userID int64, lessonID, quizID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.ReminderQuiz{}).
		Where("user_id = ? AND quiz_id = ? AND lesson_id = ? AND answered_at IS NULL", userID, quizID, lessonID).
		Update("answered_at", r.now())
	if res.Error != nil {
		return false, fmt.Errorf("redeem reminder quiz: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// PurgeIssuedBefore deletes quizzes issued before t, answered or not.
func (r *ReminderRepository) PurgeIssuedBefore(ctx context.Context, t time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("issued_at < ?", t).Delete(&model.ReminderQuiz{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge reminder quizzes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
