package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/storage"
	"github.com/socialpulse/pkg/logger"
)

type fakeRepo struct {
	storage.Repository
	prefs    map[uint][]string
	posts    []*models.Post
	notified map[uint]map[string]bool
	prefsErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		prefs:    make(map[uint][]string),
		notified: make(map[uint]map[string]bool),
	}
}

func (f *fakeRepo) GetPreferences(ctx context.Context, userID uint) ([]string, error) {
	if f.prefsErr != nil {
		return nil, f.prefsErr
	}
	return f.prefs[userID], nil
}

func (f *fakeRepo) GetNotifiedPostIDs(ctx context.Context, userID uint) ([]string, error) {
	var ids []string
	for id := range f.notified[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRepo) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.Post, error) {
	return f.posts, nil
}

func (f *fakeRepo) MarkNotified(ctx context.Context, userID uint, postID string) (bool, error) {
	if f.notified[userID] == nil {
		f.notified[userID] = make(map[string]bool)
	}
	if f.notified[userID][postID] {
		return false, nil
	}
	f.notified[userID][postID] = true
	return true, nil
}

func post(id, topic string) *models.Post {
	return &models.Post{ID: id, Platform: "instagram", Topic: topic}
}

func TestPreferenceFiltering(t *testing.T) {
	repo := newFakeRepo()
	repo.prefs[1] = []string{"tech"}
	repo.posts = []*models.Post{post("p1", "tech"), post("p2", "sport")}

	engine := NewEngine(repo, logger.Nop())
	result, err := engine.RunForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunForUser failed: %v", err)
	}

	if result.Notified != 1 {
		t.Errorf("Notified = %d, want 1", result.Notified)
	}
	if !repo.notified[1]["p1"] {
		t.Error("p1 (tech) should be notified")
	}
	if repo.notified[1]["p2"] {
		t.Error("p2 (sport) must not be notified")
	}
}

func TestNoRepeatNotification(t *testing.T) {
	repo := newFakeRepo()
	repo.prefs[1] = []string{"tech"}
	repo.posts = []*models.Post{post("p1", "tech")}

	engine := NewEngine(repo, logger.Nop())

	first, err := engine.RunForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.Notified != 1 {
		t.Fatalf("first pass Notified = %d, want 1", first.Notified)
	}

	second, err := engine.RunForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.Notified != 0 {
		t.Errorf("second pass Notified = %d, want 0 (already delivered)", second.Notified)
	}
}

func TestEmptyPreferencesShortCircuit(t *testing.T) {
	repo := newFakeRepo()
	repo.posts = []*models.Post{post("p1", "tech"), post("p2", "sport")}

	engine := NewEngine(repo, logger.Nop())
	result, err := engine.RunForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunForUser failed: %v", err)
	}

	if !result.Skipped {
		t.Error("user with no preferences must be skipped")
	}
	if len(repo.notified[1]) != 0 {
		t.Errorf("notified %d posts, want 0", len(repo.notified[1]))
	}
}

func TestMatchingIsCaseInsensitive(t *testing.T) {
	repo := newFakeRepo()
	repo.prefs[1] = []string{"  Tech ", "SPORT"}
	repo.posts = []*models.Post{post("p1", "tech"), post("p2", "Sport"), post("p3", "politics")}

	engine := NewEngine(repo, logger.Nop())
	result, err := engine.RunForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunForUser failed: %v", err)
	}

	if result.Notified != 2 {
		t.Errorf("Notified = %d, want 2 (matching normalizes case and whitespace)", result.Notified)
	}
	if repo.notified[1]["p3"] {
		t.Error("p3 (politics) must not be notified")
	}
}

func TestUnclassifiedPostsNeverMatch(t *testing.T) {
	repo := newFakeRepo()
	repo.prefs[1] = []string{"tech"}
	repo.posts = []*models.Post{post("p1", "")}

	engine := NewEngine(repo, logger.Nop())
	result, err := engine.RunForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunForUser failed: %v", err)
	}
	if result.Notified != 0 {
		t.Errorf("Notified = %d, want 0 (empty topic matches nothing)", result.Notified)
	}
}

func TestLostConditionalInsertCounted(t *testing.T) {
	repo := newFakeRepo()
	repo.prefs[1] = []string{"tech"}
	repo.posts = []*models.Post{post("p1", "tech")}
	// Simulate a concurrent pass that marked the pair between this pass's
	// read and write: the notified-id read comes back empty (stale) while
	// the record already exists, so MarkNotified must be the dedup guard.
	repo.notified[1] = map[string]bool{"p1": true}
	engine := NewEngine(&staleReadRepo{fakeRepo: repo}, logger.Nop())

	result, err := engine.RunForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunForUser failed: %v", err)
	}
	if result.Notified != 0 {
		t.Errorf("Notified = %d, want 0", result.Notified)
	}
	if result.AlreadyNotified != 1 {
		t.Errorf("AlreadyNotified = %d, want 1 (conditional insert is the guard)", result.AlreadyNotified)
	}
}

// staleReadRepo reports an empty notified set regardless of reality, so the
// engine's candidate filter lets already-marked posts through
type staleReadRepo struct {
	*fakeRepo
}

func (s *staleReadRepo) GetNotifiedPostIDs(ctx context.Context, userID uint) ([]string, error) {
	return nil, nil
}

func TestPreferenceLoadErrorPropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.prefsErr = errors.New("db closed")

	engine := NewEngine(repo, logger.Nop())
	_, err := engine.RunForUser(context.Background(), 1)
	if !errors.Is(err, repo.prefsErr) {
		t.Errorf("error = %v, want wrapped %v", err, repo.prefsErr)
	}
}
