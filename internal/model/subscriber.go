package model

import "time"

// Subscriber stores the Telegram chat that receives the daily digest.
type Subscriber struct {
	ChatID    int64 `gorm:"primaryKey;autoIncrement:false"`
	FirstName string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
