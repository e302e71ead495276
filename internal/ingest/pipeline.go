package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socialpulse/internal/classifier"
	"github.com/socialpulse/internal/mapper"
	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/provider"
	"github.com/socialpulse/internal/storage"
	"github.com/socialpulse/pkg/logger"
)

// DatasetFetcher retrieves the materialized item set of a completed scrape run
type DatasetFetcher interface {
	FetchDataset(ctx context.Context, datasetID string) ([]provider.RawItem, error)
}

// Pipeline converts one completed provider dataset into durable, classified,
// de-duplicated domain records.
type Pipeline struct {
	fetcher    DatasetFetcher
	mappers    *mapper.Registry
	classifier classifier.Classifier
	repo       storage.Repository
	log        *logger.Logger
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(
	fetcher DatasetFetcher,
	mappers *mapper.Registry,
	cls classifier.Classifier,
	repo storage.Repository,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		mappers:    mappers,
		classifier: cls,
		repo:       repo,
		log:        log.WithComponent("ingest"),
	}
}

// Result contains the outcome of one ingestion
type Result struct {
	ItemsFetched      int
	PostsMapped       int
	DuplicatesDropped int
	AlreadyIngested   int
	ClassifyFailures  int
	PostsPersisted    int
	CommentsPersisted int
	HashtagsPersisted int
	MentionsPersisted int
	MapErrors         []error
	Duration          time.Duration
}

// Run fetches a dataset from the provider and ingests it. A fetch failure
// (provider.FetchError) propagates to the caller untouched; the webhook
// boundary turns it into a non-2xx so the provider redelivers.
func (p *Pipeline) Run(ctx context.Context, platform, datasetID string) (*Result, error) {
	items, err := p.fetcher.FetchDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, err)
	}
	return p.IngestItems(ctx, platform, items)
}

// IngestItems runs the map/dedupe/classify/persist steps over raw items.
// The RSS source calls this directly since its fetch is synchronous.
func (p *Pipeline) IngestItems(ctx context.Context, platform string, items []provider.RawItem) (*Result, error) {
	startTime := time.Now()
	result := &Result{ItemsFetched: len(items)}
	log := p.log.WithPlatform(platform)

	// Step 1: an empty dataset is a valid outcome, not a failure
	if len(items) == 0 {
		log.Info().Msg("Dataset is empty, nothing to ingest")
		result.Duration = time.Since(startTime)
		return result, nil
	}

	m, err := p.mappers.Get(platform)
	if err != nil {
		return nil, err
	}

	// Step 2: map raw items to internal shapes
	mapped := make([]*mapper.Mapped, 0, len(items))
	for _, item := range items {
		entry, err := m.Map(item)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping unmappable item")
			result.MapErrors = append(result.MapErrors, err)
			continue
		}
		if entry == nil || entry.Post == nil {
			continue
		}
		mapped = append(mapped, entry)
	}
	result.PostsMapped = len(mapped)

	// Step 3: de-duplicate within the batch before classification so
	// duplicate ids never cost a classifier call. First occurrence wins.
	unique := dedupeBatch(mapped, result)

	// Step 4: classify posts not seen before. An already-persisted id keeps
	// its stored row (the upsert below ignores it) but stays in the batch,
	// so a redelivered dataset retries the child writes that failed last
	// time. One failed classification keeps an empty topic and never aborts
	// the batch.
	newPosts := 0
	for _, entry := range unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, err := p.repo.GetPostByID(ctx, entry.Post.ID)
		if err == nil {
			result.AlreadyIngested++
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("check post %s: %w", entry.Post.ID, err)
		}
		newPosts++

		label, err := p.classifier.Classify(ctx, entry.Post.Text)
		if err != nil {
			log.Warn().
				Err(err).
				Str("post_id", entry.Post.ID).
				Msg("Classification failed, leaving topic empty")
			result.ClassifyFailures++
			continue
		}
		entry.Post.Topic = label
	}

	// Step 5: persist posts first so children always reference a stored
	// parent, then each non-empty child collection. Child write failures
	// are real invariant breaks and propagate.
	posts := make([]*models.Post, 0, len(unique))
	var comments []*models.Comment
	var hashtags []*models.Hashtag
	var mentions []*models.Mention
	for _, entry := range unique {
		posts = append(posts, entry.Post)
		comments = append(comments, entry.Comments...)
		hashtags = append(hashtags, entry.Hashtags...)
		mentions = append(mentions, entry.Mentions...)
	}

	if err := p.repo.UpsertPosts(ctx, posts); err != nil {
		return nil, fmt.Errorf("persist posts: %w", err)
	}
	result.PostsPersisted = newPosts

	if len(comments) > 0 {
		if err := p.repo.InsertComments(ctx, comments); err != nil {
			return nil, fmt.Errorf("persist comments: %w", err)
		}
		result.CommentsPersisted = len(comments)
	}
	if len(hashtags) > 0 {
		if err := p.repo.InsertHashtags(ctx, hashtags); err != nil {
			return nil, fmt.Errorf("persist hashtags: %w", err)
		}
		result.HashtagsPersisted = len(hashtags)
	}
	if len(mentions) > 0 {
		if err := p.repo.InsertMentions(ctx, mentions); err != nil {
			return nil, fmt.Errorf("persist mentions: %w", err)
		}
		result.MentionsPersisted = len(mentions)
	}

	result.Duration = time.Since(startTime)

	log.Info().
		Int("items", result.ItemsFetched).
		Int("persisted", result.PostsPersisted).
		Int("duplicates", result.DuplicatesDropped).
		Int("already_ingested", result.AlreadyIngested).
		Int("classify_failures", result.ClassifyFailures).
		Dur("duration", result.Duration).
		Msg("Ingestion completed")

	return result, nil
}

// dedupeBatch keeps the first occurrence of each post id within the batch
func dedupeBatch(entries []*mapper.Mapped, result *Result) []*mapper.Mapped {
	seen := make(map[string]bool, len(entries))
	unique := make([]*mapper.Mapped, 0, len(entries))

	for _, entry := range entries {
		if seen[entry.Post.ID] {
			result.DuplicatesDropped++
			continue
		}
		seen[entry.Post.ID] = true
		unique = append(unique, entry)
	}

	return unique
}
