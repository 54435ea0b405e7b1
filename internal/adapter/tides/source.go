package tides

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves a raw payload by URL.
type Fetcher interface {
	FetchPayload(ctx context.Context, url string) ([]byte, error)
}

// Invalidator is implemented by caching fetchers that can forget a payload.
type Invalidator interface {
	Invalidate(ctx context.Context, url string)
}

// Source fetches and parses the tide page. It implements pipeline.TideSource.
type Source struct {
	fetcher Fetcher
	url     string
	loc     *time.Location
	clock   clockwork.Clock
}

// NewSource creates a tide Source. The page's first table is taken to be
// today in loc according to clock.
func NewSource(fetcher Fetcher, url string, loc *time.Location, clock clockwork.Clock) *Source {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Source{fetcher: fetcher, url: url, loc: loc, clock: clock}
}

func (s *Source) FetchTides(ctx context.Context) ([]domain.TideEvent, error) {
	payload, err := s.fetcher.FetchPayload(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch tide page: %w", err)
	}
	events, err := Parse(payload, s.clock.Now().In(s.loc))
	if err != nil {
		s.invalidate(ctx)
		return nil, err
	}
	if len(events) == 0 {
		s.invalidate(ctx)
		return nil, fmt.Errorf("tide page %s has no events", s.url)
	}
	return events, nil
}

func (s *Source) invalidate(ctx context.Context) {
	if inv, ok := s.fetcher.(Invalidator); ok {
		inv.Invalidate(ctx, s.url)
	}
}
