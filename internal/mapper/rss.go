package mapper

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/provider"
)

// rssItem is the normalized feed entry produced by the RSS source
type rssItem struct {
	GUID       string    `json:"guid"`
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Summary    string    `json:"summary"`
	Author     string    `json:"author"`
	FeedName   string    `json:"feedName"`
	Categories []string  `json:"categories"`
	Published  time.Time `json:"published"`
}

// RSS maps feed entries from the RSS source. Feeds have no engagement
// counters or comments; entries become plain posts with their categories
// kept as hashtags.
type RSS struct{}

// NewRSS creates the RSS mapper
func NewRSS() *RSS {
	return &RSS{}
}

// Platform returns "rss"
func (m *RSS) Platform() string {
	return "rss"
}

// Map converts one feed entry
func (m *RSS) Map(item provider.RawItem) (*Mapped, error) {
	var raw rssItem
	if err := json.Unmarshal(item, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode rss item: %w", err)
	}
	if raw.Link == "" && raw.GUID == "" {
		return nil, fmt.Errorf("rss item missing guid and link")
	}

	id := raw.GUID
	if id == "" {
		// Some feeds omit GUIDs; derive a stable id from the link so
		// re-fetching the feed stays idempotent.
		hash := sha256.Sum256([]byte("rss:" + raw.Link))
		id = fmt.Sprintf("%x", hash[:16])
	}

	text := cleanText(raw.Title)
	if summary := cleanText(raw.Summary); summary != "" {
		text = text + "\n\n" + summary
	}

	var rawData models.JSON
	_ = json.Unmarshal(item, &rawData)

	mapped := &Mapped{
		Post: &models.Post{
			ID:         id,
			Platform:   "rss",
			Target:     raw.FeedName,
			Text:       text,
			URL:        raw.Link,
			AuthorName: raw.Author,
			RawData:    rawData,
			PostedAt:   raw.Published,
		},
	}

	for _, category := range raw.Categories {
		if category == "" {
			continue
		}
		mapped.Hashtags = append(mapped.Hashtags, &models.Hashtag{
			PostID: id,
			Tag:    category,
		})
	}

	return mapped, nil
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	// Remove HTML tags (simple approach)
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")
	text = strings.ReplaceAll(text, "<p>", "")

	// Remove remaining HTML tags
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	// Clean up whitespace
	text = result.String()
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

// Ensure RSS implements Mapper
var _ Mapper = (*RSS)(nil)
