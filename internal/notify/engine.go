package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/socialpulse/internal/storage"
	"github.com/socialpulse/pkg/logger"
)

// Engine computes, per user, which newly ingested posts match the user's
// topic preferences and records each delivery exactly once. Users are
// independent; the periodic worker driving the engine isolates per-user
// failures.
type Engine struct {
	repo storage.Repository
	log  *logger.Logger
}

// NewEngine creates a new matching engine
func NewEngine(repo storage.Repository, log *logger.Logger) *Engine {
	return &Engine{
		repo: repo,
		log:  log.WithComponent("notify"),
	}
}

// UserResult contains the outcome of one user's matching pass
type UserResult struct {
	UserID          uint
	Skipped         bool // user has no preferences
	Matched         int  // posts whose topic matched
	Notified        int  // new notification records created
	AlreadyNotified int  // lost the conditional insert to a concurrent pass
}

// RunForUser runs one matching pass for a single user. The user id comes
// from the caller; there is no process-wide default identity.
func (e *Engine) RunForUser(ctx context.Context, userID uint) (*UserResult, error) {
	result := &UserResult{UserID: userID}
	log := e.log.WithUserID(userID)

	// Step 1: load and normalize preferences; a user with none is never
	// interested in anything
	prefs, err := e.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences for user %d: %w", userID, err)
	}
	wanted := normalizeTopics(prefs)
	if len(wanted) == 0 {
		log.Debug().Msg("User has no topic preferences, skipping")
		result.Skipped = true
		return result, nil
	}

	// Step 2: load the already-notified set. This read only trims the
	// candidate list; MarkNotified below is the authoritative guard.
	notifiedIDs, err := e.repo.GetNotifiedPostIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load notified ids for user %d: %w", userID, err)
	}
	notified := make(map[string]bool, len(notifiedIDs))
	for _, id := range notifiedIDs {
		notified[id] = true
	}

	// Step 3: filter the current post set
	posts, err := e.repo.ListPosts(ctx, storage.PostFilter{OrderBy: "posted_at", OrderDesc: true})
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		topic := strings.ToLower(strings.TrimSpace(post.Topic))
		if topic == "" || !wanted[topic] {
			continue
		}
		if notified[post.ID] {
			continue
		}
		result.Matched++

		// Step 4: record the delivery. The conditional insert dedupes
		// against concurrent passes for the same user.
		created, err := e.repo.MarkNotified(ctx, userID, post.ID)
		if err != nil {
			return nil, fmt.Errorf("mark post %s notified for user %d: %w", post.ID, userID, err)
		}
		if !created {
			result.AlreadyNotified++
			continue
		}
		result.Notified++

		log.Info().
			Str("post_id", post.ID).
			Str("topic", post.Topic).
			Str("platform", post.Platform).
			Msg("Notification recorded")
	}

	return result, nil
}

// normalizeTopics trims and lower-cases preference strings, dropping blanks
func normalizeTopics(topics []string) map[string]bool {
	normalized := make(map[string]bool, len(topics))
	for _, topic := range topics {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic == "" {
			continue
		}
		normalized[topic] = true
	}
	return normalized
}
