package model

import (
	"time"

	"gorm.io/datatypes"
)

// Lesson is one unit of study content.
type Lesson struct {
	ID          uint   `gorm:"primaryKey"`
	Topic       string `gorm:"index"`
	Title       string
	Body        string
	Definition  string
	Explanation string
	Active      *bool `gorm:"index;default:true"` // nil means active
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// QuizItem is a multiple-choice question bound to a lesson.
type QuizItem struct {
	ID           uint `gorm:"primaryKey"`
	LessonID     uint `gorm:"index"`
	Question     string
	Options      datatypes.JSONSlice[string]
	CorrectIndex int
	Explanation  string
	Synthesized  bool `gorm:"default:false"`
	CreatedAt    time.Time
}

// Role is a target position offered for an exam track.
type Role struct {
	ID    uint   `gorm:"primaryKey"`
	Track string `gorm:"index"`
	Name  string
}
