package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/surf-forecast-etl/internal/adapter/http"
	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/jsonfeed"
	kafkaadapter "github.com/couchcryptid/surf-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/tides"
	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/upstream"
	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/webhook"
	"github.com/couchcryptid/surf-forecast-etl/internal/config"
	"github.com/couchcryptid/surf-forecast-etl/internal/observability"
	"github.com/couchcryptid/surf-forecast-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newCacheStore(ctx, cfg, clock)
	if err != nil {
		logger.Error("failed to open payload cache", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("payload cache configured", "backend", cfg.CacheBackend, "ttl", cfg.CacheTTL)

	client := upstream.NewClient(cfg.FetchTimeout, logger.With("component", "upstream"))
	var fetcher jsonfeed.Fetcher = client
	if store != nil {
		fetcher = cache.NewCachedFetcher(client, store, logger.With("component", "cache"), metrics)
	}

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		logger.Error("failed to load sources", "path", cfg.SourcesFile, "error", err)
		os.Exit(1)
	}
	jobs := buildJobs(cfg, sources, fetcher, logger)

	conditions, err := config.LoadSpotConditions(cfg.SpotsFile)
	if err != nil {
		logger.Warn("spot alerts disabled", "path", cfg.SpotsFile, "error", err)
	}

	var tideSource pipeline.TideSource
	if cfg.TideURL != "" {
		tideSource = tides.NewSource(fetcher, cfg.TideURL, cfg.Location, clock)
	} else {
		logger.Info("tide source disabled")
	}

	var loader pipeline.Loader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, clock, logger.With("component", "kafka"))
		loader = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "forecast_topic", cfg.KafkaForecastTopic, "tide_topic", cfg.KafkaTideTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	var notifier pipeline.Notifier
	if cfg.WebhookURL != "" {
		notifier = webhook.NewNotifier(cfg.WebhookURL, cfg.FetchTimeout, logger.With("component", "webhook"))
	}

	orchestrator := pipeline.NewOrchestrator(cfg.FetchBatchSize, cfg.FetchBatchPause, clock, logger, metrics)
	p := pipeline.New(orchestrator, jobs, tideSource, loader, notifier, pipeline.Options{
		Location:     cfg.Location,
		Clock:        clock,
		TideHorizon:  cfg.TideHorizon,
		MaxRetries:   cfg.FetchMaxRetries,
		RetryBackoff: pipeline.DefaultRetryBackoff,
		Conditions:   conditions,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start forecast scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx, cfg.Schedule); err != nil {
			logger.Error("pipeline error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("forecast cycle still running at shutdown deadline")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	client.CloseIdleConnections()

	logger.Info("shutdown complete")
}

// newCacheStore opens the configured payload cache. A nil store means caching
// is disabled.
func newCacheStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (cache.Store, func(), error) {
	noop := func() {}
	switch cfg.CacheBackend {
	case config.CacheFile:
		s, err := cache.NewFileStore(cfg.CacheDir, cfg.CacheTTL, clock)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.CacheRedis:
		s := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.CacheTTL, clock)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, noop, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		return s, func() { _ = s.Close() }, nil
	case config.CacheMemory:
		return cache.NewMemoryStore(cfg.CacheSize, cfg.CacheTTL, clock), noop, nil
	default:
		return nil, noop, nil
	}
}

func buildJobs(cfg *config.Config, sources []config.Source, fetcher jsonfeed.Fetcher, logger *slog.Logger) []pipeline.Job {
	jobs := make([]pipeline.Job, 0, len(sources))
	for _, s := range sources {
		job := pipeline.Job{Name: s.Name, Tasks: s.FetchTasks()}
		if s.Mode == config.ModeSession {
			job.Session = jsonfeed.NewSessionSource(s.LandingURL, cfg.FetchTimeout, logger.With("source", s.Name))
		} else {
			job.Source = jsonfeed.NewSource(fetcher)
		}
		jobs = append(jobs, job)
		logger.Info("source configured", "source", s.Name, "mode", s.Mode, "tasks", len(job.Tasks))
	}
	return jobs
}
