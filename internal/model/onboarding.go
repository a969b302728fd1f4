package model

import (
	"time"

	"gorm.io/datatypes"
)

// OnboardingSession is the durable progress of the intake questionnaire.
type OnboardingSession struct {
	UserID       int64 `gorm:"primaryKey;autoIncrement:false"`
	Step         int
	AwaitingText bool

	ExamTrack    string
	Region       string
	Role         string
	Level        string
	StrongTopics datatypes.JSONSlice[string]
	WeakTopics   datatypes.JSONSlice[string]
	TimeToExam   string
	StudySlot    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delta exposes the answered prefix as a profile delta.
func (s *OnboardingSession) Delta() ProfileDelta {
	return ProfileDelta{
		ExamTrack:    s.ExamTrack,
		Region:       s.Region,
		Role:         s.Role,
		Level:        s.Level,
		StrongTopics: append([]string(nil), s.StrongTopics...),
		WeakTopics:   append([]string(nil), s.WeakTopics...),
		TimeToExam:   s.TimeToExam,
		StudySlot:    s.StudySlot,
	}
}
