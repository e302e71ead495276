package models

import (
	"time"
)

// User represents a subscriber who receives notifications for matching posts
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TopicPreference is one topic a user subscribed to. Matching is
// case-insensitive; rows store whatever the user typed and the matching
// engine normalizes on read. Preference updates replace all of a user's
// rows atomically.
type TopicPreference struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Topic     string    `gorm:"not null" json:"topic"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
