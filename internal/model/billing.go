package model

import "time"

// Wallet stores prepaid credits and the subscription window of a user.
type Wallet struct {
	ID                uint  `gorm:"primaryKey"`
	UserID            int64 `gorm:"uniqueIndex"`
	Credits           int   `gorm:"not null;default:0"`
	SubscriptionUntil *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
