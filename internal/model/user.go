package model

import (
	"time"

	"gorm.io/datatypes"
)

// Exam tracks offered during onboarding.
const (
	TrackFederal   = "federal"
	TrackState     = "state"
	TrackMunicipal = "municipal"
)

// RegionNationwide is stored for tracks that are not tied to a locality.
const RegionNationwide = "nationwide"

// User is the learner profile keyed by the Telegram user id.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string

	ExamTrack    string
	Region       string
	Role         string
	Level        string
	StrongTopics datatypes.JSONSlice[string]
	WeakTopics   datatypes.JSONSlice[string]
	TimeToExam   string
	StudySlot    string `gorm:"index"`

	OnboardingComplete bool `gorm:"index;default:false"`
	ReminderEnabled    bool `gorm:"index;default:true"`

	// SeenContent holds the most recent lesson ids shown, oldest first.
	SeenContent datatypes.JSONSlice[uint]

	FreeLessonsUsed int `gorm:"default:0"`
	DailyFreeUsed   int `gorm:"default:0"`
	DailyFreeDay    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileDelta carries the answers collected by onboarding.
type ProfileDelta struct {
	ExamTrack    string
	Region       string
	Role         string
	Level        string
	StrongTopics []string
	WeakTopics   []string
	TimeToExam   string
	StudySlot    string
}
