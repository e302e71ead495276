package models

import (
	"time"
)

// Notification is the durable record that a post was surfaced to a user.
// The composite unique index is the authoritative de-duplication guard:
// inserting a second record for the same (user, post) pair is a no-op,
// which is what makes notification delivery exactly-once under concurrent
// matching passes.
type Notification struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uint      `gorm:"uniqueIndex:idx_user_post;not null" json:"user_id"`
	PostID string    `gorm:"uniqueIndex:idx_user_post;not null" json:"post_id"`
	Read   bool      `gorm:"default:false;index" json:"read"`
	SentAt time.Time `gorm:"autoCreateTime" json:"sent_at"`
}
