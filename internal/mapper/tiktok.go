package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/provider"
)

// tiktokItem is the subset of the provider's TikTok payload we extract
type tiktokItem struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	WebVideoURL   string    `json:"webVideoUrl"`
	DiggCount     int       `json:"diggCount"`
	ShareCount    int       `json:"shareCount"`
	PlayCount     int       `json:"playCount"`
	CommentCount  int       `json:"commentCount"`
	CreateTimeISO time.Time `json:"createTimeISO"`
	AuthorMeta    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"authorMeta"`
	Hashtags []struct {
		Name string `json:"name"`
	} `json:"hashtags"`
}

// TikTok maps provider TikTok video items. The provider exposes no comment
// bodies for TikTok, only counters, so videos map to posts and hashtags.
type TikTok struct{}

// NewTikTok creates the TikTok mapper
func NewTikTok() *TikTok {
	return &TikTok{}
}

// Platform returns "tiktok"
func (m *TikTok) Platform() string {
	return "tiktok"
}

// Map converts one raw TikTok item
func (m *TikTok) Map(item provider.RawItem) (*Mapped, error) {
	var raw tiktokItem
	if err := json.Unmarshal(item, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode tiktok item: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("tiktok item missing id")
	}

	var rawData models.JSON
	_ = json.Unmarshal(item, &rawData)

	mapped := &Mapped{
		Post: &models.Post{
			ID:           raw.ID,
			Platform:     "tiktok",
			Target:       raw.AuthorMeta.Name,
			Text:         raw.Text,
			URL:          raw.WebVideoURL,
			AuthorID:     raw.AuthorMeta.ID,
			AuthorName:   raw.AuthorMeta.Name,
			LikeCount:    raw.DiggCount,
			CommentCount: raw.CommentCount,
			ShareCount:   raw.ShareCount,
			ViewCount:    raw.PlayCount,
			RawData:      rawData,
			PostedAt:     raw.CreateTimeISO,
		},
	}

	for _, tag := range raw.Hashtags {
		if tag.Name == "" {
			continue
		}
		mapped.Hashtags = append(mapped.Hashtags, &models.Hashtag{
			PostID: raw.ID,
			Tag:    tag.Name,
		})
	}

	return mapped, nil
}

// Ensure TikTok implements Mapper
var _ Mapper = (*TikTok)(nil)
