package models

import (
	"time"
)

// Known topic labels produced by the classifier. The label set is advisory:
// storage accepts any string so a model change doesn't require a migration.
const (
	TopicSport         = "sport"
	TopicPolitics      = "politics"
	TopicTech          = "tech"
	TopicEntertainment = "entertainment"
	TopicOther         = "other"
)

// Post represents a scraped social-media post or video.
// ID is the platform-assigned identifier and is stable across re-scrapes,
// so it serves as the natural key for upserts.
type Post struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Platform     string    `gorm:"index;not null" json:"platform"` // instagram, tiktok, rss
	Target       string    `gorm:"index" json:"target"`            // scraped account/page/channel
	Text         string    `gorm:"type:text" json:"text"`          // caption / body, classifier input
	URL          string    `json:"url"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	ShareCount   int       `json:"share_count"`
	ViewCount    int       `json:"view_count"`
	Topic        string    `gorm:"index" json:"topic"`        // empty until classified
	RawData      JSON      `gorm:"type:json" json:"raw_data"` // provider payload, not interpreted
	PostedAt     time.Time `json:"posted_at"`
	IngestedAt   time.Time `gorm:"autoCreateTime" json:"ingested_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Comment represents a comment under a scraped post.
// PostID references Post.ID but is not a hard FK: comments may be written
// in a batch after their parent posts within the same ingestion.
type Comment struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	PostID     string    `gorm:"index;not null" json:"post_id"`
	Text       string    `gorm:"type:text" json:"text"`
	AuthorName string    `json:"author_name"`
	LikeCount  int       `json:"like_count"`
	PostedAt   time.Time `json:"posted_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Hashtag is a single tag attached to a post. The (post, tag) pair is
// unique so re-ingesting a redelivered dataset cannot duplicate rows.
type Hashtag struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	PostID string `gorm:"uniqueIndex:idx_post_tag;not null" json:"post_id"`
	Tag    string `gorm:"uniqueIndex:idx_post_tag;not null" json:"tag"`
}

// Mention is a single user mention inside a post, unique per (post, username)
type Mention struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PostID   string `gorm:"uniqueIndex:idx_post_mention;not null" json:"post_id"`
	Username string `gorm:"uniqueIndex:idx_post_mention;not null" json:"username"`
}
