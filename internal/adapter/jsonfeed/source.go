package jsonfeed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/adapter/upstream"
	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/couchcryptid/surf-forecast-etl/internal/pipeline"
)

// Fetcher retrieves a raw payload by URL.
type Fetcher interface {
	FetchPayload(ctx context.Context, url string) ([]byte, error)
}

// Invalidator is implemented by caching fetchers that can forget a payload.
type Invalidator interface {
	Invalidate(ctx context.Context, url string)
}

// Source fetches one feed per task. It holds no per-call state and is safe
// for concurrent use.
type Source struct {
	fetcher Fetcher
}

// NewSource creates a Source reading payloads through fetcher.
func NewSource(fetcher Fetcher) *Source {
	return &Source{fetcher: fetcher}
}

func (s *Source) Fetch(ctx context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
	payload, err := s.fetcher.FetchPayload(ctx, task.URL)
	if err != nil {
		return nil, err
	}
	recs, err := Parse(payload, task.Spot)
	if err != nil {
		s.invalidate(ctx, task.URL)
		return nil, fmt.Errorf("%s/%s: %w", task.Source, task.Spot, err)
	}
	if len(recs) == 0 {
		s.invalidate(ctx, task.URL)
	}
	return recs, nil
}

// invalidate evicts an unusable payload so a retry refetches it.
func (s *Source) invalidate(ctx context.Context, url string) {
	if inv, ok := s.fetcher.(Invalidator); ok {
		inv.Invalidate(ctx, url)
	}
}

// SessionSource opens one cookie-carrying client per cycle, optionally
// visiting a landing page first so the upstream issues its session.
type SessionSource struct {
	landingURL string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewSessionSource creates a SessionSource. landingURL may be empty.
func NewSessionSource(landingURL string, timeout time.Duration, logger *slog.Logger) *SessionSource {
	return &SessionSource{landingURL: landingURL, timeout: timeout, logger: logger}
}

func (s *SessionSource) Open(ctx context.Context) (pipeline.Session, error) {
	client, err := upstream.NewSessionClient(s.timeout, s.logger)
	if err != nil {
		return nil, err
	}
	if s.landingURL != "" {
		if _, err := client.FetchPayload(ctx, s.landingURL); err != nil {
			client.CloseIdleConnections()
			return nil, fmt.Errorf("open landing page: %w", err)
		}
	}
	return &session{client: client}, nil
}

type session struct {
	client *upstream.Client
}

func (s *session) Fetch(ctx context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
	return NewSource(s.client).Fetch(ctx, task)
}

func (s *session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
