package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config is constructed once at startup and passed by reference into
// each tier's constructor. No ambient global lookup.
type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8080"`

	// Hot tier
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" default:"300s"`

	// Warm tier
	InfluxURL      string `env:"INFLUXDB_URL" default:"http://localhost:8086"`
	InfluxToken    string `env:"INFLUXDB_TOKEN"`
	InfluxOrg      string `env:"INFLUXDB_ORG" default:"stock-org"`
	InfluxBucket   string `env:"INFLUXDB_BUCKET" default:"sentiment-data"`
	OpenSearchURL  string `env:"OPENSEARCH_URL" default:"http://localhost:9200"`
	OpenSearchUser string `env:"OPENSEARCH_USER"`
	OpenSearchPass string `env:"OPENSEARCH_PASSWORD"`

	// Cold tier (S3-compatible object storage)
	ObjectStorageEndpoint string `env:"OBJECT_STORAGE_ENDPOINT" default:"kr.object.ncloudstorage.com"`
	ObjectStorageAccess   string `env:"OBJECT_STORAGE_ACCESS_KEY"`
	ObjectStorageSecret   string `env:"OBJECT_STORAGE_SECRET_KEY"`
	ObjectStorageBucket   string `env:"OBJECT_STORAGE_BUCKET" default:"stock-sentiment-archive"`
	ObjectStorageRegion   string `env:"OBJECT_STORAGE_REGION" default:"kr-standard"`
	ObjectStorageSSL      bool   `env:"OBJECT_STORAGE_SSL" default:"true"`

	// Downstream bus
	KafkaBrokers string `env:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string `env:"KAFKA_TOPIC" default:"stock-sentiment"`

	// Collaborator tool endpoints, resolved through the registry.
	ScoringToolURL   string `env:"SCORING_TOOL_URL" default:"http://localhost:8010/tools/analyze_sentiment"`
	CollectorToolURL string `env:"COLLECTOR_TOOL_URL" default:"http://localhost:8011/tools/collect_posts"`

	// Lifecycle policy. Retention thresholds are configuration, not
	// per-record state: changing them takes effect on the next sweep.
	HotRetention      time.Duration `env:"HOT_RETENTION" default:"24h"`
	WarmRetention     time.Duration `env:"WARM_RETENTION" default:"720h"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" default:"1h"`
	SweepPageSize     int           `env:"SWEEP_PAGE_SIZE" default:"500"`
	ColdRetentionDays int           `env:"COLD_RETENTION_DAYS" default:"365"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if cfg.HotRetention <= 0 || cfg.WarmRetention <= 0 {
		return errors.New("retention thresholds must be positive")
	}
	if cfg.HotRetention >= cfg.WarmRetention {
		return fmt.Errorf("HOT_RETENTION (%s) must be shorter than WARM_RETENTION (%s)", cfg.HotRetention, cfg.WarmRetention)
	}
	if cfg.SweepPageSize <= 0 {
		return errors.New("SWEEP_PAGE_SIZE must be positive")
	}
	if cfg.ColdRetentionDays < 0 {
		return errors.New("COLD_RETENTION_DAYS must not be negative")
	}

	return nil
}
