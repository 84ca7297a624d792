package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/app"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/cold"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/config"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/hot"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/lifecycle"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/platform/logging"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/postgres"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/publisher"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/query"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/redis"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/registry"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/server"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/warm"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupPostgres(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := postgres.InitSchema(ctx, pool); err != nil {
		slog.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupWarm(cfg *config.Config) *warm.Store {
	series := warm.NewTimeseries(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)

	logIndex, err := warm.NewLogIndex(cfg.OpenSearchURL, cfg.OpenSearchUser, cfg.OpenSearchPass)
	if err != nil {
		slog.Error("Failed to create OpenSearch client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := logIndex.EnsureIndices(ctx); err != nil {
		slog.Error("Failed to ensure search indices", "error", err)
		os.Exit(1)
	}

	return warm.NewStore(series, logIndex)
}

func setupCold(cfg *config.Config, clock clockwork.Clock) *cold.Store {
	storage, err := cold.NewS3Storage(cold.S3Config{
		Endpoint:  cfg.ObjectStorageEndpoint,
		AccessKey: cfg.ObjectStorageAccess,
		SecretKey: cfg.ObjectStorageSecret,
		Bucket:    cfg.ObjectStorageBucket,
		Region:    cfg.ObjectStorageRegion,
		UseSSL:    cfg.ObjectStorageSSL,
	})
	if err != nil {
		slog.Error("Failed to create object storage client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := storage.EnsureBucket(ctx); err != nil {
		slog.Error("Failed to ensure archive bucket", "error", err)
		os.Exit(1)
	}

	return cold.NewStore(storage, clock)
}

// redisPinger adapts the go-redis client to the health-check surface.
type redisPinger struct{ client *goredis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupPostgres(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	hotStore := hot.NewStore(
		postgres.NewSentimentRepo(pool),
		redis.NewLatestCache(redisClient, cfg.CacheTTL),
	)
	warmStore := setupWarm(cfg)
	coldStore := setupCold(cfg, clock)

	instanceID := uuid.NewString()
	lock := redis.NewSweepLock(redisClient, instanceID)
	coordinator := lifecycle.NewCoordinator(hotStore, warmStore, coldStore, lock, clock, lifecycle.Policy{
		HotRetention:  cfg.HotRetention,
		WarmRetention: cfg.WarmRetention,
		PageSize:      cfg.SweepPageSize,
	})

	router := query.NewRouter(hotStore, warmStore, coldStore, clock, query.Retention{
		Hot:  cfg.HotRetention,
		Warm: cfg.WarmRetention,
	})

	appSvc := app.NewService(hotStore, coldStore, router, coordinator)

	kafkaPub := publisher.NewKafka(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
	defer func() { _ = kafkaPub.Close() }()

	tools := registry.NewStatic()
	for _, ep := range []struct{ server, tool, url string }{
		{"scoring", "analyze_sentiment", cfg.ScoringToolURL},
		{"collector", "collect_posts", cfg.CollectorToolURL},
	} {
		if err := tools.Register(ep.server, ep.tool, ep.url); err != nil {
			slog.Error("Invalid tool endpoint", "server", ep.server, "tool", ep.tool, "error", err)
			os.Exit(1)
		}
	}

	runnerCtx, stopRunner := context.WithCancel(context.Background())
	runner := lifecycle.NewRunner(coordinator, cfg.SweepInterval)
	go runner.Run(runnerCtx)
	slog.Info("Lifecycle sweep scheduled", "interval", cfg.SweepInterval, "instance_id", instanceID)

	srv := server.NewServer(cfg, appSvc, kafkaPub, tools, map[string]server.Pinger{
		"postgres": pool,
		"redis":    redisPinger{client: redisClient},
	})

	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		stopRunner()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		close(done)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	<-done
}
