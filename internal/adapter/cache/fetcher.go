package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/surf-forecast-etl/internal/observability"
)

// Fetcher retrieves a raw payload by URL.
type Fetcher interface {
	FetchPayload(ctx context.Context, url string) ([]byte, error)
}

// CachedFetcher serves payloads from a Store, falling through to the wrapped
// Fetcher on a miss. Store errors degrade to a fetch.
type CachedFetcher struct {
	inner   Fetcher
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner Fetcher, store Store, logger *slog.Logger, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *CachedFetcher) FetchPayload(ctx context.Context, url string) ([]byte, error) {
	payload, err := c.store.Get(ctx, url)
	switch {
	case err == nil:
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return payload, nil
	case errors.Is(err, ErrMiss):
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		c.metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", "url", url, "error", err)
	}

	payload, err = c.inner.FetchPayload(ctx, url)
	if err != nil {
		return nil, err
	}
	// Empty bodies are not cached so the next cycle asks upstream again.
	if len(payload) > 0 {
		if err := c.store.Set(ctx, url, payload); err != nil {
			c.logger.Warn("cache write failed", "url", url, "error", err)
		}
	}
	return payload, nil
}

// Invalidate drops the cached payload for url. Sources call it when a payload
// does not parse, so the next attempt goes back to upstream.
func (c *CachedFetcher) Invalidate(ctx context.Context, url string) {
	if err := c.store.Delete(ctx, url); err != nil {
		c.logger.Warn("cache invalidate failed", "url", url, "error", err)
		return
	}
	c.metrics.CacheLookups.WithLabelValues("invalidated").Inc()
}
