package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/socialpulse/internal/classifier"
	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/internal/ingest"
	"github.com/socialpulse/internal/mapper"
	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/notify"
	"github.com/socialpulse/internal/provider"
	"github.com/socialpulse/internal/storage"
	"github.com/socialpulse/internal/storage/sqlite"
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
		Use:   "socialpulse",
		Short: "Social media scrape-and-notify pipeline",
		Long: `Collects social media content through a scraping provider, classifies
each post's topic and notifies subscribed users of newly matching content.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(notificationsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// newPipeline builds the ingestion pipeline for one-off CLI runs
func newPipeline() (*ingest.Pipeline, *provider.Client) {
	limiter := ratelimit.NewDefaultLimiter()
	providerClient := provider.NewClient(cfg.Provider, limiter, log)
	topicClassifier := classifier.NewAnthropic(cfg.Anthropic, limiter, log)
	return ingest.NewPipeline(providerClient, mapper.NewDefaultRegistry(), topicClassifier, repo, log), providerClient
}

// parseUserID converts a positional user id argument
func parseUserID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", arg, err)
	}
	return uint(id), nil
}

// ============ SCRAPE COMMANDS ============

func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape job commands",
	}

	cmd.AddCommand(scrapeTriggerCmd())
	return cmd
}

func scrapeTriggerCmd() *cobra.Command {
	var platform string
	var target string
	var limit int

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start a provider scrape job for one target",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, providerClient := newPipeline()

			jobID, err := providerClient.StartJob(ctx, platform, target, limit)
			if err != nil {
				return err
			}

			fmt.Printf("Scrape job started: %s\n", jobID)
			fmt.Println("The dataset will be ingested when the provider calls the webhook.")
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "instagram", "Platform to scrape (instagram, tiktok)")
	cmd.Flags().StringVar(&target, "target", "", "Account/page/channel to scrape")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum items to scrape")
	cmd.MarkFlagRequired("target")

	return cmd
}

// ============ INGEST COMMANDS ============

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Dataset ingestion commands",
	}

	cmd.AddCommand(ingestRunCmd())
	return cmd
}

func ingestRunCmd() *cobra.Command {
	var platform string
	var datasetID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest a completed provider dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pipeline, _ := newPipeline()

			result, err := pipeline.Run(ctx, platform, datasetID)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Ingestion result ===\n")
			fmt.Printf("Items fetched:      %d\n", result.ItemsFetched)
			fmt.Printf("Posts persisted:    %d\n", result.PostsPersisted)
			fmt.Printf("Duplicates dropped: %d\n", result.DuplicatesDropped)
			fmt.Printf("Already ingested:   %d\n", result.AlreadyIngested)
			fmt.Printf("Classify failures:  %d\n", result.ClassifyFailures)
			fmt.Printf("Comments:           %d\n", result.CommentsPersisted)
			fmt.Printf("Hashtags:           %d\n", result.HashtagsPersisted)
			fmt.Printf("Mentions:           %d\n", result.MentionsPersisted)
			fmt.Printf("Duration:           %s\n", result.Duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "instagram", "Platform the dataset belongs to")
	cmd.Flags().StringVar(&datasetID, "dataset", "", "Provider dataset id")
	cmd.MarkFlagRequired("dataset")

	return cmd
}

// ============ NOTIFY COMMANDS ============

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification matching commands",
	}

	cmd.AddCommand(notifyRunCmd())
	return cmd
}

func notifyRunCmd() *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one notification matching pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			engine := notify.NewEngine(repo, log)

			var userIDs []uint
			if userID > 0 {
				userIDs = []uint{userID}
			} else {
				users, err := repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				for _, u := range users {
					userIDs = append(userIDs, u.ID)
				}
			}

			total := 0
			for _, id := range userIDs {
				result, err := engine.RunForUser(ctx, id)
				if err != nil {
					// One user failing never stops the pass for the rest
					log.Error().Err(err).Uint("user_id", id).Msg("Matching failed for user")
					continue
				}
				if result.Skipped {
					fmt.Printf("user %d: skipped (no preferences)\n", id)
					continue
				}
				fmt.Printf("user %d: %d new notifications (%d matched)\n", id, result.Notified, result.Matched)
				total += result.Notified
			}

			fmt.Printf("\nTotal new notifications: %d\n", total)
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "Run for a single user id only")

	return cmd
}

// ============ USER COMMANDS ============

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage notification subscribers",
	}

	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersAddCmd() *cobra.Command {
	var email string
	var name string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a subscriber",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			user := &models.User{Email: email, DisplayName: name}
			if err := repo.CreateUser(ctx, user); err != nil {
				return err
			}

			fmt.Printf("Created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func usersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			users, err := repo.ListUsers(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Users (%d) ===\n\n", len(users))
			for _, u := range users {
				prefs, err := repo.GetPreferences(ctx, u.ID)
				if err != nil {
					return err
				}
				fmt.Printf("[%d] %s (%s)\n", u.ID, u.Email, u.DisplayName)
				fmt.Printf("    Topics: %v\n", prefs)
			}
			return nil
		},
	}

	return cmd
}

// ============ PREFERENCE COMMANDS ============

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage a user's topic preferences",
	}

	cmd.AddCommand(prefsSetCmd())
	cmd.AddCommand(prefsGetCmd())
	return cmd
}

func prefsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [user-id] [topic...]",
		Short: "Replace a user's topic preferences",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			topics := args[1:]
			if err := repo.ReplacePreferences(ctx, userID, topics); err != nil {
				return err
			}

			fmt.Printf("User %d now subscribed to %v\n", userID, topics)
			return nil
		},
	}

	return cmd
}

func prefsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [user-id]",
		Short: "Show a user's topic preferences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			topics, err := repo.GetPreferences(ctx, userID)
			if err != nil {
				return err
			}

			fmt.Printf("User %d topics: %v\n", userID, topics)
			return nil
		},
	}

	return cmd
}

// ============ POST COMMANDS ============

func postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List ingested posts",
	}

	cmd.AddCommand(postsListCmd())
	return cmd
}

func postsListCmd() *cobra.Command {
	var platform string
	var topic string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultPostFilter()
			filter.Limit = limit
			if platform != "" {
				filter.Platform = &platform
			}
			if topic != "" {
				filter.Topic = &topic
			}

			posts, err := repo.ListPosts(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Posts (%d) ===\n\n", len(posts))
			for _, p := range posts {
				topicLabel := p.Topic
				if topicLabel == "" {
					topicLabel = "unclassified"
				}

				fmt.Printf("[%s] %s | %s\n", p.ID, p.Platform, topicLabel)
				fmt.Printf("    Author: %s\n", p.AuthorName)
				fmt.Printf("    Posted: %s\n", p.PostedAt.Format(time.RFC1123))
				if len(p.Text) > 120 {
					fmt.Printf("    Text: %s...\n", p.Text[:120])
				} else if p.Text != "" {
					fmt.Printf("    Text: %s\n", p.Text)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "Filter by platform")
	cmd.Flags().StringVar(&topic, "topic", "", "Filter by topic")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum posts to show")

	return cmd
}

// ============ NOTIFICATION COMMANDS ============

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List and manage a user's notifications",
	}

	cmd.AddCommand(notificationsListCmd())
	cmd.AddCommand(notificationsReadCmd())
	return cmd
}

func notificationsListCmd() *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "list [user-id]",
		Short: "List a user's notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			notifications, err := repo.ListNotifications(ctx, userID, unreadOnly)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Notifications for user %d (%d) ===\n\n", userID, len(notifications))
			for _, n := range notifications {
				status := "unread"
				if n.Read {
					status = "read"
				}
				fmt.Printf("[%d] post %s | %s | %s\n", n.ID, n.PostID, status, n.SentAt.Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Show unread notifications only")

	return cmd
}

func notificationsReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [user-id] [notification-id]",
		Short: "Mark one of the user's notifications as read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			notificationID, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid notification id %q: %w", args[1], err)
			}

			if err := repo.MarkNotificationRead(ctx, userID, uint(notificationID)); err != nil {
				return err
			}

			fmt.Printf("Notification %d marked read\n", notificationID)
			return nil
		},
	}

	return cmd
}
