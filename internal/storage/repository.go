package storage

import (
	"context"
	"errors"
	"time"

	"github.com/socialpulse/internal/models"
)

// ErrNotFound reports that a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for data persistence.
//
// Contract notes that matter to callers:
//   - UpsertPosts is transactional and idempotent on Post.ID: re-writing a
//     batch containing already-persisted ids keeps exactly one row per id.
//   - ReplacePreferences is an atomic replace of all of a user's rows.
//   - MarkNotified is a conditional insert on the (user, post) unique index
//     and reports whether a new record was created. It is the dedup guard;
//     callers must not rely on a prior GetNotifiedPostIDs read being fresh.
type Repository interface {
	// Post operations
	UpsertPosts(ctx context.Context, posts []*models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	CountPostsSince(ctx context.Context, since time.Time) (int64, error)

	// Child entity operations
	InsertComments(ctx context.Context, comments []*models.Comment) error
	InsertHashtags(ctx context.Context, hashtags []*models.Hashtag) error
	InsertMentions(ctx context.Context, mentions []*models.Mention) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Preference operations
	GetPreferences(ctx context.Context, userID uint) ([]string, error)
	ReplacePreferences(ctx context.Context, userID uint, topics []string) error

	// Notification operations
	GetNotifiedPostIDs(ctx context.Context, userID uint) ([]string, error)
	MarkNotified(ctx context.Context, userID uint, postID string) (created bool, err error)
	ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID uint, notificationID uint) error
	CountNotificationsSince(ctx context.Context, since time.Time) (int64, error)

	// Maintenance
	Close() error
	Migrate() error
}

// PostFilter defines filtering options for posts
type PostFilter struct {
	Platform  *string
	Topic     *string
	Target    *string
	Limit     int
	Offset    int
	OrderBy   string // "posted_at", "ingested_at"
	OrderDesc bool
}

// DefaultPostFilter returns a filter with sensible defaults
func DefaultPostFilter() PostFilter {
	return PostFilter{
		Limit:     50,
		OrderBy:   "posted_at",
		OrderDesc: true,
	}
}
