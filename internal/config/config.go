package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// ProviderConfig holds scraping provider API settings
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	// Actors maps a platform name to the provider-side actor/job template ID
	// used to start scrape jobs for that platform.
	Actors map[string]string `mapstructure:"actors"`
}

// AnthropicConfig holds Claude API settings for topic classification
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// PlatformsConfig holds per-platform scrape target configuration
type PlatformsConfig struct {
	Instagram PlatformConfig `mapstructure:"instagram"`
	TikTok    PlatformConfig `mapstructure:"tiktok"`
	RSS       RSSConfig      `mapstructure:"rss"`
}

// PlatformConfig holds targets for one scraped platform
type PlatformConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Targets []string `mapstructure:"targets"` // usernames / page URLs / channel ids
	Limit   int      `mapstructure:"limit"`   // max items per scrape job
}

// RSSConfig holds RSS feed settings
type RSSConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	Feeds   []RSSFeed `mapstructure:"feeds"`
	Limit   int       `mapstructure:"limit"`
}

// RSSFeed represents a single RSS feed
type RSSFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// SchedulerConfig holds periodic worker settings
type SchedulerConfig struct {
	CycleDelay     time.Duration `mapstructure:"cycle_delay"`     // delay between full scrape cycles
	TargetDelay    time.Duration `mapstructure:"target_delay"`    // spacing between targets within a cycle
	NotifyInterval time.Duration `mapstructure:"notify_interval"` // delay between notification match passes
	DigestCron     string        `mapstructure:"digest_cron"`     // cron expression for the daily digest log
}

// WebhookConfig holds settings for the provider callback endpoint
type WebhookConfig struct {
	Port            string `mapstructure:"port"`
	Secret          string `mapstructure:"secret"`
	MinDatasetIDLen int    `mapstructure:"min_dataset_id_len"` // rejects provider test payloads
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	ProviderRequestsPerMinute   int `mapstructure:"provider_requests_per_minute"`
	ClassifierRequestsPerMinute int `mapstructure:"classifier_requests_per_minute"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables.
// Callers that need fresh target lists re-invoke Load each cycle rather
// than caching the result for the process lifetime.
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".socialpulse"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("SOCIALPULSE")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("provider.base_url", "SOCIALPULSE_PROVIDER_BASE_URL")
	v.BindEnv("provider.token", "SOCIALPULSE_PROVIDER_TOKEN")
	v.BindEnv("anthropic.api_key", "SOCIALPULSE_ANTHROPIC_API_KEY")
	v.BindEnv("database.driver", "SOCIALPULSE_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "SOCIALPULSE_DATABASE_DSN")
	v.BindEnv("webhook.secret", "SOCIALPULSE_WEBHOOK_SECRET")
	v.BindEnv("webhook.port", "SOCIALPULSE_WEBHOOK_PORT")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/socialpulse.db")

	// Provider defaults
	v.SetDefault("provider.base_url", "https://api.scrapehub.io/v2")
	v.SetDefault("provider.actors", map[string]string{
		"instagram": "scrapehub~instagram-posts",
		"tiktok":    "scrapehub~tiktok-videos",
	})

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 64)

	// Platform defaults
	v.SetDefault("platforms.instagram.enabled", false)
	v.SetDefault("platforms.instagram.limit", 50)
	v.SetDefault("platforms.tiktok.enabled", false)
	v.SetDefault("platforms.tiktok.limit", 50)
	v.SetDefault("platforms.rss.enabled", false)
	v.SetDefault("platforms.rss.limit", 50)

	// Scheduler defaults
	v.SetDefault("scheduler.cycle_delay", "2h")
	v.SetDefault("scheduler.target_delay", "30s")
	v.SetDefault("scheduler.notify_interval", "10m")
	v.SetDefault("scheduler.digest_cron", "0 8 * * *") // 8am daily

	// Webhook defaults
	v.SetDefault("webhook.port", "10000")
	v.SetDefault("webhook.min_dataset_id_len", 10)

	// Rate limit defaults
	v.SetDefault("rate_limit.provider_requests_per_minute", 30)
	v.SetDefault("rate_limit.classifier_requests_per_minute", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	if (c.Platforms.Instagram.Enabled || c.Platforms.TikTok.Enabled) && c.Provider.Token == "" {
		return fmt.Errorf("provider.token is required when a scraped platform is enabled")
	}
	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required")
	}
	return nil
}
