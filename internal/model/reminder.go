package model

import "time"

// ReminderRecord marks that outreach was attempted for a user in a slot on a day.
type ReminderRecord struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;uniqueIndex:idx_reminder_user_day_slot,priority:1"`
	Day       string `gorm:"not null;uniqueIndex:idx_reminder_user_day_slot,priority:2;index"`
	Slot      string `gorm:"not null;uniqueIndex:idx_reminder_user_day_slot,priority:3"`
	CreatedAt time.Time
}

// ReminderQuiz binds a quiz sent by outreach to its recipient until it is answered.
type ReminderQuiz struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     int64     `gorm:"not null;uniqueIndex:idx_reminder_quiz_user_quiz,priority:1"`
	QuizID     uint      `gorm:"not null;uniqueIndex:idx_reminder_quiz_user_quiz,priority:2"`
	LessonID   uint      `gorm:"not null"`
	IssuedAt   time.Time `gorm:"index"`
	AnsweredAt *time.Time
}
