package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheFile   = "file"
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Scrape cycle.
	Schedule        string
	Location        *time.Location
	FetchBatchSize  int
	FetchBatchPause time.Duration
	FetchTimeout    time.Duration
	FetchMaxRetries int

	TideURL     string
	TideHorizon time.Duration

	// Raw payload cache.
	CacheBackend string
	CacheDir     string
	CacheTTL     time.Duration
	CacheSize    int
	RedisAddr    string

	// Kafka publishing is disabled when no brokers are configured.
	KafkaBrokers       []string
	KafkaForecastTopic string
	KafkaTideTopic     string

	WebhookURL  string
	SpotsFile   string
	SourcesFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := parseInt("FETCH_BATCH_SIZE", 8, 1, 1000)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("FETCH_MAX_RETRIES", 100, 1, 10000)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("CACHE_SIZE", 1000, 1, 1_000_000)
	if err != nil {
		return nil, err
	}

	batchPause, err := parseDuration("FETCH_BATCH_PAUSE", "10s", true)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "20s", false)
	if err != nil {
		return nil, err
	}
	tideHorizon, err := parseDuration("TIDE_HORIZON", "360h", false)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "1h", false)
	if err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("TIMEZONE", "Atlantic/Canary")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Schedule:        sharedcfg.EnvOrDefault("SCHEDULE", "@every 1h"),
		Location:        loc,
		FetchBatchSize:  batchSize,
		FetchBatchPause: batchPause,
		FetchTimeout:    fetchTimeout,
		FetchMaxRetries: maxRetries,

		TideURL:     sharedcfg.EnvOrDefault("TIDE_URL", ""),
		TideHorizon: tideHorizon,

		CacheBackend: sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheFile),
		CacheDir:     sharedcfg.EnvOrDefault("CACHE_DIR", "data/cache"),
		CacheTTL:     cacheTTL,
		CacheSize:    cacheSize,
		RedisAddr:    sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),

		KafkaForecastTopic: sharedcfg.EnvOrDefault("KAFKA_FORECAST_TOPIC", "surf-forecast"),
		KafkaTideTopic:     sharedcfg.EnvOrDefault("KAFKA_TIDE_TOPIC", "surf-tides"),

		WebhookURL:  sharedcfg.EnvOrDefault("WEBHOOK_URL", ""),
		SpotsFile:   sharedcfg.EnvOrDefault("SPOTS_FILE", "config/spots.json"),
		SourcesFile: sharedcfg.EnvOrDefault("SOURCES_FILE", "config/sources.json"),
	}
	if brokers := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE %q: %w", cfg.Schedule, err)
	}
	switch cfg.CacheBackend {
	case CacheFile, CacheRedis, CacheMemory, CacheNone:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if cfg.CacheBackend == CacheFile && cfg.CacheDir == "" {
		return nil, errors.New("CACHE_DIR is required for the file cache")
	}
	if len(cfg.KafkaBrokers) > 0 && (cfg.KafkaForecastTopic == "" || cfg.KafkaTideTopic == "") {
		return nil, errors.New("KAFKA_FORECAST_TOPIC and KAFKA_TIDE_TOPIC are required with KAFKA_BROKERS")
	}
	if cfg.SourcesFile == "" {
		return nil, errors.New("SOURCES_FILE is required")
	}

	return cfg, nil
}

// KafkaEnabled reports whether forecast tables should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func parseInt(key string, def, lo, hi int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %q: must be an integer between %d and %d", key, s, lo, hi)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}
