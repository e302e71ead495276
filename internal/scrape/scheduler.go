package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/internal/ingest"
	"github.com/socialpulse/internal/source/rss"
	"github.com/socialpulse/internal/worker"
	"github.com/socialpulse/pkg/logger"
)

// Target is one unit of scrape work: an account, page or feed on a platform
type Target struct {
	Platform string
	Name     string
	URL      string // RSS only
	Limit    int
}

func (t Target) String() string {
	return t.Platform + "/" + t.Name
}

// JobStarter starts an asynchronous provider scrape run for one target
type JobStarter interface {
	StartJob(ctx context.Context, platform, target string, limit int) (string, error)
}

// Scheduler wires target enumeration and per-target triggering into the
// generic periodic worker. Scraped platforms only start a provider job
// here; their datasets come back later through the webhook. RSS targets
// have no asynchronous phase and are ingested inline.
type Scheduler struct {
	starter    JobStarter
	pipeline   *ingest.Pipeline
	loadConfig func() (*config.Config, error)
	log        *logger.Logger

	mu          sync.Mutex
	cycleDelay  time.Duration
	targetDelay time.Duration
}

// NewScheduler creates a new scrape scheduler
func NewScheduler(
	starter JobStarter,
	pipeline *ingest.Pipeline,
	loadConfig func() (*config.Config, error),
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		starter:    starter,
		pipeline:   pipeline,
		loadConfig: loadConfig,
		log:        log.WithComponent("scrape"),
	}
}

// EnumerateTargets reloads configuration and lists every enabled target.
// Called fresh at the top of each cycle so target edits, like the pacing
// settings, take effect without a restart.
func (s *Scheduler) EnumerateTargets(ctx context.Context) ([]Target, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}
	s.setDelays(cfg.Scheduler.CycleDelay, cfg.Scheduler.TargetDelay)

	var targets []Target
	if cfg.Platforms.Instagram.Enabled {
		for _, name := range cfg.Platforms.Instagram.Targets {
			targets = append(targets, Target{Platform: "instagram", Name: name, Limit: cfg.Platforms.Instagram.Limit})
		}
	}
	if cfg.Platforms.TikTok.Enabled {
		for _, name := range cfg.Platforms.TikTok.Targets {
			targets = append(targets, Target{Platform: "tiktok", Name: name, Limit: cfg.Platforms.TikTok.Limit})
		}
	}
	if cfg.Platforms.RSS.Enabled {
		for _, feed := range cfg.Platforms.RSS.Feeds {
			targets = append(targets, Target{Platform: "rss", Name: feed.Name, URL: feed.URL, Limit: cfg.Platforms.RSS.Limit})
		}
	}
	return targets, nil
}

// Trigger performs the per-target action of one cycle
func (s *Scheduler) Trigger(ctx context.Context, target Target) error {
	if target.Platform == "rss" {
		return s.ingestFeed(ctx, target)
	}

	jobID, err := s.starter.StartJob(ctx, target.Platform, target.Name, target.Limit)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("platform", target.Platform).
		Str("target", target.Name).
		Str("job_id", jobID).
		Msg("Triggered scrape job")
	return nil
}

// ingestFeed fetches an RSS target and pushes its entries through the
// pipeline in one step
func (s *Scheduler) ingestFeed(ctx context.Context, target Target) error {
	src := rss.New(config.RSSFeed{Name: target.Name, URL: target.URL}, target.Limit, s.log)
	items, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	_, err = s.pipeline.IngestItems(ctx, "rss", items)
	return err
}

// Runner builds the periodic worker that drives scrape cycles. Delays are
// seeded from the given config and refreshed by every cycle's reload.
func (s *Scheduler) Runner(cfg config.SchedulerConfig, log *logger.Logger) *worker.Runner[Target] {
	s.setDelays(cfg.CycleDelay, cfg.TargetDelay)
	return worker.New(worker.Config[Target]{
		Name:       "scrape",
		CycleDelay: s.CycleDelay,
		ItemDelay:  s.TargetDelay,
		Enumerate:  s.EnumerateTargets,
		Action:     s.Trigger,
		Describe:   Target.String,
	}, log)
}

func (s *Scheduler) setDelays(cycle, target time.Duration) {
	s.mu.Lock()
	s.cycleDelay = cycle
	s.targetDelay = target
	s.mu.Unlock()
}

// CycleDelay returns the pacing from the most recent config reload
func (s *Scheduler) CycleDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleDelay
}

// TargetDelay returns the inter-target spacing from the most recent reload
func (s *Scheduler) TargetDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetDelay
}
