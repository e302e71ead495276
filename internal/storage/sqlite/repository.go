package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Post{},
		&models.Comment{},
		&models.Hashtag{},
		&models.Mention{},
		&models.User{},
		&models.TopicPreference{},
		&models.Notification{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Post operations

// UpsertPosts writes a batch of posts in one transaction. Already-persisted
// ids are left untouched, so re-ingesting the same dataset is idempotent.
func (r *Repository) UpsertPosts(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(posts).Error
}

func (r *Repository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *Repository) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.Post, error) {
	var posts []*models.Post
	query := r.db.WithContext(ctx).Model(&models.Post{})

	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.Topic != nil {
		query = query.Where("topic = ?", *filter.Topic)
	}
	if filter.Target != nil {
		query = query.Where("target = ?", *filter.Target)
	}

	// Ordering
	orderCol := "posted_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *Repository) CountPostsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("ingested_at >= ?", since).
		Count(&count).Error
	return count, err
}

// Child entity operations

func (r *Repository) InsertComments(ctx context.Context, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(comments).Error
}

func (r *Repository) InsertHashtags(ctx context.Context, hashtags []*models.Hashtag) error {
	if len(hashtags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "tag"}},
			DoNothing: true,
		}).
		Create(hashtags).Error
}

func (r *Repository) InsertMentions(ctx context.Context, mentions []*models.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "username"}},
			DoNothing: true,
		}).
		Create(mentions).Error
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *Repository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Preference operations

func (r *Repository) GetPreferences(ctx context.Context, userID uint) ([]string, error) {
	var topics []string
	err := r.db.WithContext(ctx).
		Model(&models.TopicPreference{}).
		Where("user_id = ?", userID).
		Pluck("topic", &topics).Error
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// ReplacePreferences swaps all of a user's preference rows in one
// transaction so a concurrent matching pass never observes a half-updated
// set.
func (r *Repository) ReplacePreferences(ctx context.Context, userID uint, topics []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.TopicPreference{}).Error; err != nil {
			return err
		}
		if len(topics) == 0 {
			return nil
		}
		prefs := make([]*models.TopicPreference, 0, len(topics))
		for _, topic := range topics {
			prefs = append(prefs, &models.TopicPreference{UserID: userID, Topic: topic})
		}
		return tx.Create(prefs).Error
	})
}

// Notification operations

func (r *Repository) GetNotifiedPostIDs(ctx context.Context, userID uint) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkNotified conditionally inserts a notification record. The unique
// (user_id, post_id) index makes the insert the dedup point: a concurrent
// pass that got there first turns this call into a no-op, reported through
// the created flag.
func (r *Repository) MarkNotified(ctx context.Context, userID uint, postID string) (bool, error) {
	notification := models.Notification{
		UserID: userID,
		PostID: postID,
		SentAt: time.Now(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Create(&notification)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]*models.Notification, error) {
	var notifications []*models.Notification
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	if err := query.Order("sent_at DESC").Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead flips the read flag for one of the user's own
// notifications. The user id comes from the caller's authenticated context
// and scopes the update so one user can't touch another's records.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID uint, notificationID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) CountNotificationsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("sent_at >= ?", since).
		Count(&count).Error
	return count, err
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
