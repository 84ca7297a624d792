// Command sweep runs one lifecycle pass from the command line: a
// hot→warm→cold migration sweep, or a cold-archive cleanup with
// -cleanup. Useful for cron-driven deployments and for draining tiers
// before maintenance without waiting for the in-process schedule.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/cold"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/config"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/hot"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/lifecycle"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/postgres"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/redis"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/warm"
)

func main() {
	var (
		runCleanup = flag.Bool("cleanup", false, "delete cold objects past retention instead of sweeping")
		keepDays   = flag.Int("days", 0, "days of cold archives to keep (default COLD_RETENTION_DAYS)")
		timeout    = flag.Duration("timeout", 30*time.Minute, "overall deadline for the run")
		verbose    = flag.Bool("verbose", false, "verbose logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	clock := clockwork.NewRealClock()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = redisClient.Close() }()

	logIndex, err := warm.NewLogIndex(cfg.OpenSearchURL, cfg.OpenSearchUser, cfg.OpenSearchPass)
	if err != nil {
		log.Fatalf("Failed to create OpenSearch client: %v", err)
	}
	warmStore := warm.NewStore(
		warm.NewTimeseries(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket),
		logIndex,
	)

	storage, err := cold.NewS3Storage(cold.S3Config{
		Endpoint:  cfg.ObjectStorageEndpoint,
		AccessKey: cfg.ObjectStorageAccess,
		SecretKey: cfg.ObjectStorageSecret,
		Bucket:    cfg.ObjectStorageBucket,
		Region:    cfg.ObjectStorageRegion,
		UseSSL:    cfg.ObjectStorageSSL,
	})
	if err != nil {
		log.Fatalf("Failed to create object storage client: %v", err)
	}

	hotStore := hot.NewStore(
		postgres.NewSentimentRepo(pool),
		redis.NewLatestCache(redisClient, cfg.CacheTTL),
	)
	coldStore := cold.NewStore(storage, clock)
	lock := redis.NewSweepLock(redisClient, "sweep-cli-"+uuid.NewString())

	coordinator := lifecycle.NewCoordinator(hotStore, warmStore, coldStore, lock, clock, lifecycle.Policy{
		HotRetention:  cfg.HotRetention,
		WarmRetention: cfg.WarmRetention,
		PageSize:      cfg.SweepPageSize,
	})

	if *runCleanup {
		days := *keepDays
		if days <= 0 {
			days = cfg.ColdRetentionDays
		}
		deleted, err := coordinator.Cleanup(ctx, days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		slog.Info("Cleanup complete", "deleted_objects", deleted, "days_kept", days)
		return
	}

	report, err := coordinator.RunSweep(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	if report.Skipped {
		slog.Info("Sweep skipped, another instance holds the lock")
		return
	}
	slog.Info("Sweep complete",
		"hot_migrated", report.HotMigrated,
		"warm_archived", report.WarmArchived,
		"archived_days", report.ArchivedDays,
		"duration", report.Duration)
}
