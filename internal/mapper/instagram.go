package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/provider"
)

// instagramItem is the subset of the provider's Instagram payload we extract
type instagramItem struct {
	ID             string             `json:"id"`
	Caption        string             `json:"caption"`
	URL            string             `json:"url"`
	OwnerID        string             `json:"ownerId"`
	OwnerUsername  string             `json:"ownerUsername"`
	LikesCount     int                `json:"likesCount"`
	CommentsCount  int                `json:"commentsCount"`
	VideoViewCount int                `json:"videoViewCount"`
	Timestamp      time.Time          `json:"timestamp"`
	Hashtags       []string           `json:"hashtags"`
	Mentions       []string           `json:"mentions"`
	LatestComments []instagramComment `json:"latestComments"`
}

type instagramComment struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	OwnerUsername string    `json:"ownerUsername"`
	LikesCount    int       `json:"likesCount"`
	Timestamp     time.Time `json:"timestamp"`
}

// Instagram maps provider Instagram items, the richest platform shape:
// posts plus comments, hashtags and mentions.
type Instagram struct{}

// NewInstagram creates the Instagram mapper
func NewInstagram() *Instagram {
	return &Instagram{}
}

// Platform returns "instagram"
func (m *Instagram) Platform() string {
	return "instagram"
}

// Map converts one raw Instagram item into a post with its children
func (m *Instagram) Map(item provider.RawItem) (*Mapped, error) {
	var raw instagramItem
	if err := json.Unmarshal(item, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode instagram item: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("instagram item missing id")
	}

	// Keep the untouched payload alongside the extracted fields
	var rawData models.JSON
	_ = json.Unmarshal(item, &rawData)

	mapped := &Mapped{
		Post: &models.Post{
			ID:           raw.ID,
			Platform:     "instagram",
			Target:       raw.OwnerUsername,
			Text:         raw.Caption,
			URL:          raw.URL,
			AuthorID:     raw.OwnerID,
			AuthorName:   raw.OwnerUsername,
			LikeCount:    raw.LikesCount,
			CommentCount: raw.CommentsCount,
			ViewCount:    raw.VideoViewCount,
			RawData:      rawData,
			PostedAt:     raw.Timestamp,
		},
	}

	for _, c := range raw.LatestComments {
		if c.ID == "" {
			continue
		}
		mapped.Comments = append(mapped.Comments, &models.Comment{
			ID:         c.ID,
			PostID:     raw.ID,
			Text:       c.Text,
			AuthorName: c.OwnerUsername,
			LikeCount:  c.LikesCount,
			PostedAt:   c.Timestamp,
		})
	}
	for _, tag := range raw.Hashtags {
		mapped.Hashtags = append(mapped.Hashtags, &models.Hashtag{
			PostID: raw.ID,
			Tag:    tag,
		})
	}
	for _, username := range raw.Mentions {
		mapped.Mentions = append(mapped.Mentions, &models.Mention{
			PostID:   raw.ID,
			Username: username,
		})
	}

	return mapped, nil
}

// Ensure Instagram implements Mapper
var _ Mapper = (*Instagram)(nil)
