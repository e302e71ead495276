package rss

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/internal/provider"
	"github.com/socialpulse/pkg/logger"
)

// Source fetches one RSS feed and yields provider-shaped raw items so feed
// entries flow through the same ingestion pipeline as scraped datasets.
// Unlike the scraping provider there is no asynchronous job phase; a fetch
// materializes the "dataset" immediately.
type Source struct {
	name   string
	url    string
	limit  int
	parser *gofeed.Parser
	log    *logger.Logger
}

// New creates a new RSS source for a single feed
func New(feed config.RSSFeed, limit int, log *logger.Logger) *Source {
	return &Source{
		name:   feed.Name,
		url:    feed.URL,
		limit:  limit,
		parser: gofeed.NewParser(),
		log:    log.WithComponent("rss").WithPlatform("rss"),
	}
}

// Name returns the feed name
func (s *Source) Name() string {
	return s.name
}

// item mirrors the shape the rss mapper expects
type item struct {
	GUID       string    `json:"guid"`
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Summary    string    `json:"summary"`
	Author     string    `json:"author"`
	FeedName   string    `json:"feedName"`
	Categories []string  `json:"categories"`
	Published  time.Time `json:"published"`
}

// Fetch retrieves current feed entries as raw items
func (s *Source) Fetch(ctx context.Context) ([]provider.RawItem, error) {
	s.log.Debug().Str("url", s.url).Msg("Fetching RSS feed")

	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed %s: %w", s.name, err)
	}

	items := make([]provider.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if s.limit > 0 && len(items) >= s.limit {
			break
		}

		// Skip entries older than 7 days
		published := time.Now()
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
			if time.Since(published) > 7*24*time.Hour {
				continue
			}
		}

		var author string
		if entry.Author != nil {
			author = entry.Author.Name
		}

		data, err := json.Marshal(item{
			GUID:       entry.GUID,
			Title:      entry.Title,
			Link:       entry.Link,
			Summary:    entry.Description,
			Author:     author,
			FeedName:   s.name,
			Categories: entry.Categories,
			Published:  published,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode feed entry: %w", err)
		}
		items = append(items, provider.RawItem(data))
	}

	s.log.Info().
		Int("count", len(items)).
		Str("feed", s.name).
		Msg("Fetched RSS entries")

	return items, nil
}
