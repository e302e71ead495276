package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/pkg/logger"
)

type fakeStarter struct {
	platform string
	target   string
	limit    int
	err      error
}

func (f *fakeStarter) StartJob(ctx context.Context, platform, target string, limit int) (string, error) {
	f.platform = platform
	f.target = target
	f.limit = limit
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func TestEnumerateTargetsReloadsConfig(t *testing.T) {
	loads := 0
	load := func() (*config.Config, error) {
		loads++
		c := &config.Config{}
		c.Platforms.Instagram.Enabled = true
		c.Platforms.Instagram.Limit = 10
		c.Scheduler.CycleDelay = time.Hour
		c.Scheduler.TargetDelay = time.Second
		if loads == 1 {
			c.Platforms.Instagram.Targets = []string{"acme"}
		} else {
			c.Platforms.Instagram.Targets = []string{"acme", "globex"}
			c.Scheduler.CycleDelay = 30 * time.Minute
			c.Scheduler.TargetDelay = 5 * time.Second
		}
		return c, nil
	}
	s := NewScheduler(&fakeStarter{}, nil, load, logger.Nop())

	targets, err := s.EnumerateTargets(context.Background())
	if err != nil {
		t.Fatalf("EnumerateTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].Name != "acme" {
		t.Fatalf("first enumeration = %v, want [instagram/acme]", targets)
	}
	if s.CycleDelay() != time.Hour || s.TargetDelay() != time.Second {
		t.Errorf("delays = %v/%v, want 1h/1s", s.CycleDelay(), s.TargetDelay())
	}

	// Config edits show up on the next cycle, pacing included
	targets, err = s.EnumerateTargets(context.Background())
	if err != nil {
		t.Fatalf("second EnumerateTargets: %v", err)
	}
	if len(targets) != 2 {
		t.Errorf("second enumeration = %d targets, want 2", len(targets))
	}
	if s.CycleDelay() != 30*time.Minute || s.TargetDelay() != 5*time.Second {
		t.Errorf("delays = %v/%v, want 30m/5s after reload", s.CycleDelay(), s.TargetDelay())
	}
}

func TestEnumerateTargetsSkipsDisabledPlatforms(t *testing.T) {
	load := func() (*config.Config, error) {
		c := &config.Config{}
		c.Platforms.Instagram.Targets = []string{"acme"} // not enabled
		c.Platforms.TikTok.Enabled = true
		c.Platforms.TikTok.Targets = []string{"rider"}
		c.Platforms.RSS.Enabled = true
		c.Platforms.RSS.Feeds = []config.RSSFeed{{Name: "blog", URL: "https://blog.test/feed"}}
		return c, nil
	}
	s := NewScheduler(&fakeStarter{}, nil, load, logger.Nop())

	targets, err := s.EnumerateTargets(context.Background())
	if err != nil {
		t.Fatalf("EnumerateTargets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("targets = %v, want tiktok/rider and rss/blog only", targets)
	}
	for _, target := range targets {
		if target.Platform == "instagram" {
			t.Error("disabled platform must not be enumerated")
		}
	}
}

func TestEnumerateTargetsConfigErrorPropagates(t *testing.T) {
	loadErr := errors.New("config unreadable")
	s := NewScheduler(&fakeStarter{}, nil, func() (*config.Config, error) {
		return nil, loadErr
	}, logger.Nop())

	_, err := s.EnumerateTargets(context.Background())
	if !errors.Is(err, loadErr) {
		t.Errorf("error = %v, want wrapped %v", err, loadErr)
	}
}

func TestTriggerStartsProviderJob(t *testing.T) {
	starter := &fakeStarter{}
	s := NewScheduler(starter, nil, nil, logger.Nop())

	err := s.Trigger(context.Background(), Target{Platform: "instagram", Name: "acme", Limit: 25})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if starter.platform != "instagram" || starter.target != "acme" || starter.limit != 25 {
		t.Errorf("starter got %s/%s/%d", starter.platform, starter.target, starter.limit)
	}
}

func TestTriggerStartErrorPropagates(t *testing.T) {
	starter := &fakeStarter{err: errors.New("provider down")}
	s := NewScheduler(starter, nil, nil, logger.Nop())

	err := s.Trigger(context.Background(), Target{Platform: "tiktok", Name: "rider", Limit: 5})
	if !errors.Is(err, starter.err) {
		t.Errorf("error = %v, want %v", err, starter.err)
	}
}
