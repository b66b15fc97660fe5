package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"melodex/cache"
	"melodex/config"
	"melodex/core/ingest"
	"melodex/core/provider/jamendo"
	"melodex/db"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/storage"

	"github.com/spf13/cobra"
)

var (
	syncTag   string
	syncLimit int
	syncUser  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one catalog ingestion pass",
	Long: `Fetches popular tracks for a genre tag from the provider and reconciles
them into the local catalog. Meant to run from cron; the exit code reflects
whether the provider could be reached, not per-track outcomes.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSync(); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVarP(&syncTag, "tag", "t", "", "genre tag to ingest (defaults to the configured genre)")
	syncCmd.Flags().IntVarP(&syncLimit, "limit", "l", 20, "number of tracks to request")
	syncCmd.Flags().StringVarP(&syncUser, "user", "u", "", "catalog owner username (defaults to the configured sync user)")

	syncCmd.Example = `  # Ingest 20 pop tracks for the default catalog user
  melodex sync -t pop

  # Ingest 50 jazz tracks for a specific user
  melodex sync -t jazz -l 50 -u alice`
}

func runSync() error {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})

	if err := db.ConnectDB(cfg); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		return fmt.Errorf("database schema: %w", err)
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		return fmt.Errorf("database (gorm): %w", err)
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.Artist{}, &model.Album{}, &model.Song{}); err != nil {
		return fmt.Errorf("migration: %w", err)
	}

	// Redis is optional for a one-shot sync; without it the report is just
	// not cached.
	var reports ingest.ReportStore
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, reports will not be cached", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
		reports = cache.NewReportCache(db.RedisClient, 24*time.Hour)
	}

	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	artistRepo := repository.NewArtistRepository(db.GormDB)
	albumRepo := repository.NewAlbumRepository(db.GormDB)
	songRepo := repository.NewSongRepository(db.GormDB)

	username := syncUser
	if username == "" {
		username = cfg.SyncUsername
	}
	owner, err := userRepo.GetOrCreateByUsername(username)
	if err != nil {
		return fmt.Errorf("resolve catalog owner %q: %w", username, err)
	}

	provider := jamendo.NewClient(cfg)
	normalizer := ingest.NewNormalizer(cfg.DefaultGenre, cfg.DefaultReleaseDate)
	materializer := ingest.NewMaterializer(store, cfg.MaxAssetFetchBytes)
	reconciler := ingest.NewReconciler(artistRepo, albumRepo, songRepo, normalizer, materializer, jamendo.Source)
	controller := ingest.NewController(provider, reconciler, songRepo, reports,
		cfg.IngestWorkers, cfg.MaxFetchLimit, cfg.DefaultGenre)

	// SIGINT/SIGTERM cancels dispatch; tracks already being reconciled
	// finish cleanly and get counted.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := controller.Run(ctx, syncTag, syncLimit, owner.ID, false)
	if err != nil {
		return fmt.Errorf("ingestion run: %w", err)
	}

	printReport(report)
	return nil
}

func printReport(report *ingest.JobReport) {
	fmt.Printf("Sync finished for tag %q (user %d) in %s\n",
		report.Tag, report.UserID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Printf("  created:   %d\n", report.Created)
	fmt.Printf("  skipped:   %d\n", report.Skipped)
	fmt.Printf("  failed:    %d\n", report.Failed)
	fmt.Printf("  cancelled: %d\n", report.Cancelled)

	for _, o := range report.Outcomes {
		if o.Status == ingest.StatusFailed {
			fmt.Printf("  FAILED %s: %s\n", o.ExternalID, o.Reason)
		}
	}
	for _, w := range report.Warnings() {
		fmt.Printf("  warning: %s\n", w)
	}
}
