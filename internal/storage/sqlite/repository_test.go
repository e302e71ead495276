package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := repo.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUpsertPostsIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &models.Post{
		ID:       "ig_1",
		Platform: "instagram",
		Target:   "natgeo",
		Text:     "original caption",
		Topic:    models.TopicTech,
		PostedAt: time.Now().Add(-time.Hour),
	}
	if err := repo.UpsertPosts(ctx, []*models.Post{first}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same id with different content must not overwrite the stored row
	second := &models.Post{
		ID:       "ig_1",
		Platform: "instagram",
		Target:   "natgeo",
		Text:     "edited caption",
		Topic:    models.TopicSport,
		PostedAt: time.Now(),
	}
	if err := repo.UpsertPosts(ctx, []*models.Post{second, {ID: "ig_2", Platform: "instagram", PostedAt: time.Now()}}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetPostByID(ctx, "ig_1")
	if err != nil {
		t.Fatalf("GetPostByID: %v", err)
	}
	if got.Text != "original caption" || got.Topic != models.TopicTech {
		t.Errorf("stored post changed on re-upsert: text=%q topic=%q", got.Text, got.Topic)
	}

	if _, err := repo.GetPostByID(ctx, "ig_2"); err != nil {
		t.Errorf("new post in the same batch not persisted: %v", err)
	}
}

func TestListPostsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	posts := []*models.Post{
		{ID: "p1", Platform: "instagram", Topic: "tech", PostedAt: time.Now().Add(-3 * time.Hour)},
		{ID: "p2", Platform: "tiktok", Topic: "tech", PostedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "p3", Platform: "instagram", Topic: "sport", PostedAt: time.Now().Add(-time.Hour)},
	}
	if err := repo.UpsertPosts(ctx, posts); err != nil {
		t.Fatalf("UpsertPosts: %v", err)
	}

	platform := "instagram"
	topic := "tech"
	got, err := repo.ListPosts(ctx, storage.PostFilter{Platform: &platform, Topic: &topic})
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("filter returned %d posts, want only p1", len(got))
	}

	// Newest first with a limit
	got, err = repo.ListPosts(ctx, storage.PostFilter{OrderBy: "posted_at", OrderDesc: true, Limit: 2})
	if err != nil {
		t.Fatalf("ListPosts ordered: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p3" || got[1].ID != "p2" {
		t.Errorf("unexpected order/limit: got %d posts", len(got))
	}
}

func TestMarkNotifiedConditionalInsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.MarkNotified(ctx, 1, "p1")
	if err != nil {
		t.Fatalf("first MarkNotified: %v", err)
	}
	if !created {
		t.Error("first MarkNotified should report created")
	}

	created, err = repo.MarkNotified(ctx, 1, "p1")
	if err != nil {
		t.Fatalf("second MarkNotified: %v", err)
	}
	if created {
		t.Error("second MarkNotified for the same (user, post) must be a no-op")
	}

	// Different user or post is independent
	if created, _ := repo.MarkNotified(ctx, 2, "p1"); !created {
		t.Error("other user should get its own record")
	}
	if created, _ := repo.MarkNotified(ctx, 1, "p2"); !created {
		t.Error("other post should get its own record")
	}

	ids, err := repo.GetNotifiedPostIDs(ctx, 1)
	if err != nil {
		t.Fatalf("GetNotifiedPostIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("user 1 has %d notified posts, want 2", len(ids))
	}
}

func TestReplacePreferences(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.ReplacePreferences(ctx, 1, []string{"tech", "sport"}); err != nil {
		t.Fatalf("ReplacePreferences: %v", err)
	}
	if err := repo.ReplacePreferences(ctx, 1, []string{"politics"}); err != nil {
		t.Fatalf("second ReplacePreferences: %v", err)
	}

	topics, err := repo.GetPreferences(ctx, 1)
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if len(topics) != 1 || topics[0] != "politics" {
		t.Errorf("preferences after replace = %v, want [politics]", topics)
	}

	// Clearing preferences leaves nothing behind
	if err := repo.ReplacePreferences(ctx, 1, nil); err != nil {
		t.Fatalf("clear ReplacePreferences: %v", err)
	}
	topics, _ = repo.GetPreferences(ctx, 1)
	if len(topics) != 0 {
		t.Errorf("preferences after clear = %v, want empty", topics)
	}
}

func TestMarkNotificationReadScopedToUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.MarkNotified(ctx, 1, "p1"); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	notifications, err := repo.ListNotifications(ctx, 1, false)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifications))
	}
	id := notifications[0].ID

	// Another user can't touch it
	if err := repo.MarkNotificationRead(ctx, 2, id); err == nil {
		t.Error("marking another user's notification read should fail")
	}

	if err := repo.MarkNotificationRead(ctx, 1, id); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread, err := repo.ListNotifications(ctx, 1, true)
	if err != nil {
		t.Fatalf("ListNotifications unread: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("still %d unread notifications after read", len(unread))
	}
}

func TestInsertCommentsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	comments := []*models.Comment{
		{ID: "c1", PostID: "p1", Text: "first"},
		{ID: "c2", PostID: "p1", Text: "second"},
	}
	if err := repo.InsertComments(ctx, comments); err != nil {
		t.Fatalf("InsertComments: %v", err)
	}
	if err := repo.InsertComments(ctx, comments); err != nil {
		t.Fatalf("re-InsertComments: %v", err)
	}

	var count int64
	if err := repo.db.Model(&models.Comment{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("comment count = %d, want 2", count)
	}
}

func TestInsertHashtagsAndMentionsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Fresh structs per call, the way a redelivered dataset produces them
	makeHashtags := func() []*models.Hashtag {
		return []*models.Hashtag{
			{PostID: "p1", Tag: "golang"},
			{PostID: "p1", Tag: "release"},
		}
	}
	makeMentions := func() []*models.Mention {
		return []*models.Mention{{PostID: "p1", Username: "partner"}}
	}

	if err := repo.InsertHashtags(ctx, makeHashtags()); err != nil {
		t.Fatalf("InsertHashtags: %v", err)
	}
	if err := repo.InsertHashtags(ctx, makeHashtags()); err != nil {
		t.Fatalf("re-InsertHashtags: %v", err)
	}
	if err := repo.InsertMentions(ctx, makeMentions()); err != nil {
		t.Fatalf("InsertMentions: %v", err)
	}
	if err := repo.InsertMentions(ctx, makeMentions()); err != nil {
		t.Fatalf("re-InsertMentions: %v", err)
	}

	var hashtagCount, mentionCount int64
	if err := repo.db.Model(&models.Hashtag{}).Count(&hashtagCount).Error; err != nil {
		t.Fatalf("count hashtags: %v", err)
	}
	if hashtagCount != 2 {
		t.Errorf("hashtag count = %d, want 2", hashtagCount)
	}
	if err := repo.db.Model(&models.Mention{}).Count(&mentionCount).Error; err != nil {
		t.Fatalf("count mentions: %v", err)
	}
	if mentionCount != 1 {
		t.Errorf("mention count = %d, want 1", mentionCount)
	}
}

func TestGetPostByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetPostByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want storage.ErrNotFound", err)
	}
}

func TestCountsSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertPosts(ctx, []*models.Post{{ID: "p1", Platform: "rss", PostedAt: time.Now()}}); err != nil {
		t.Fatalf("UpsertPosts: %v", err)
	}
	if _, err := repo.MarkNotified(ctx, 1, "p1"); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}

	cutoff := time.Now().Add(-time.Minute)
	posts, err := repo.CountPostsSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("CountPostsSince: %v", err)
	}
	if posts != 1 {
		t.Errorf("CountPostsSince = %d, want 1", posts)
	}

	notifications, err := repo.CountNotificationsSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("CountNotificationsSince: %v", err)
	}
	if notifications != 1 {
		t.Errorf("CountNotificationsSince = %d, want 1", notifications)
	}

	future, _ := repo.CountPostsSince(ctx, time.Now().Add(time.Hour))
	if future != 0 {
		t.Errorf("CountPostsSince in the future = %d, want 0", future)
	}
}
