package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/socialpulse/internal/classifier"
	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/internal/ingest"
	"github.com/socialpulse/internal/mapper"
	"github.com/socialpulse/internal/notify"
	"github.com/socialpulse/internal/provider"
	"github.com/socialpulse/internal/scrape"
	"github.com/socialpulse/internal/storage"
	"github.com/socialpulse/internal/storage/sqlite"
	"github.com/socialpulse/internal/webhook"
	"github.com/socialpulse/internal/worker"
	"github.com/socialpulse/pkg/logger"
	"github.com/socialpulse/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "socialpulse-scheduler",
		Short: "Background daemon for the socialpulse ingestion pipeline",
		Long: `Runs the periodic scrape scheduler, the provider webhook endpoint and
the notification matching worker. This daemon should be run as a service
for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting socialpulse scheduler")

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize rate limiter from config
	limiter := ratelimit.NewDefaultLimiter()
	if rpm := cfg.RateLimit.ProviderRequestsPerMinute; rpm > 0 {
		limiter.AddLimiter(ratelimit.LimiterProvider, float64(rpm)/60, 5)
	}
	if rpm := cfg.RateLimit.ClassifierRequestsPerMinute; rpm > 0 {
		limiter.AddLimiter(ratelimit.LimiterClassifier, float64(rpm)/60, 2)
	}

	// Initialize clients and pipeline
	providerClient := provider.NewClient(cfg.Provider, limiter, log)
	topicClassifier := classifier.NewAnthropic(cfg.Anthropic, limiter, log)
	mappers := mapper.NewDefaultRegistry()
	pipeline := ingest.NewPipeline(providerClient, mappers, topicClassifier, repo, log)

	// Matching engine
	engine := notify.NewEngine(repo, log)

	// Scrape scheduler; targets re-read from config every cycle
	scrapeScheduler := scrape.NewScheduler(providerClient, pipeline, func() (*config.Config, error) {
		return config.Load(cfgFile)
	}, log)
	scrapeRunner := scrapeScheduler.Runner(cfg.Scheduler, log)

	// Notification matching worker; the interval is re-read each cycle
	// like the scrape targets
	notifyRunner := worker.New(worker.Config[uint]{
		Name: "notify",
		CycleDelay: func() time.Duration {
			fresh, err := config.Load(cfgFile)
			if err != nil {
				return cfg.Scheduler.NotifyInterval
			}
			return fresh.Scheduler.NotifyInterval
		},
		Enumerate: func(ctx context.Context) ([]uint, error) {
			users, err := repo.ListUsers(ctx)
			if err != nil {
				return nil, err
			}
			ids := make([]uint, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			return ids, nil
		},
		Action: func(ctx context.Context, userID uint) error {
			result, err := engine.RunForUser(ctx, userID)
			if err != nil {
				return err
			}
			if result.Notified > 0 {
				log.Info().
					Uint("user_id", userID).
					Int("notified", result.Notified).
					Msg("Matching pass delivered notifications")
			}
			return nil
		},
		Describe: func(userID uint) string { return "user/" + strconv.FormatUint(uint64(userID), 10) },
	}, log)

	// Cancellation for all loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scrapeRunner.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		notifyRunner.Run(ctx)
	}()

	// Webhook + health server
	webhookHandler := webhook.NewHandler(cfg.Webhook, pipeline, log)
	server := startHTTPServer(cfg.Webhook.Port, webhookHandler)

	// Daily digest job
	c := cron.New(cron.WithLogger(cronLogger{log}))
	_, err = c.AddFunc(cfg.Scheduler.DigestCron, func() {
		digestCtx, digestCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer digestCancel()

		since := time.Now().Add(-24 * time.Hour)
		posts, err := repo.CountPostsSince(digestCtx, since)
		if err != nil {
			log.Error().Err(err).Msg("Digest: post count failed")
			return
		}
		notifications, err := repo.CountNotificationsSince(digestCtx, since)
		if err != nil {
			log.Error().Err(err).Msg("Digest: notification count failed")
			return
		}
		log.Info().
			Int64("posts_ingested_24h", posts).
			Int64("notifications_sent_24h", notifications).
			Msg("Daily digest")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule digest job: %w", err)
	}
	c.Start()
	log.Info().Str("cron", cfg.Scheduler.DigestCron).Msg("Digest job scheduled")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	cancel()
	c.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	wg.Wait()
	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHTTPServer serves the provider webhook and a health check endpoint
func startHTTPServer(port string, webhookHandler *webhook.Handler) *http.Server {
	mux := http.NewServeMux()
	webhookHandler.Register(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		log.Info().Str("port", port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return server
}
