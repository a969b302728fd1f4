package model

import "time"

// Attempt sources.
const (
	AttemptSession  = "session"
	AttemptReminder = "reminder"
)

// QuizAttempt records one graded answer.
type QuizAttempt struct {
	ID        uint  `gorm:"primaryKey"`
	UserID    int64 `gorm:"index"`
	LessonID  uint
	QuizID    uint
	Chosen    int
	Correct   bool
	Source    string
	CreatedAt time.Time
}
