package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/couchcryptid/surf-forecast-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// ErrNoForecast is returned when every attempt of a cycle produced an empty
// forecast.
var ErrNoForecast = errors.New("could not obtain forecast")

// Retry backoff between empty attempts: start at DefaultRetryBackoff, double
// each retry, cap at maxRetryBackoff.
const (
	DefaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 5 * time.Second
)

// Alert delivery runs after the load with at most alertConcurrency requests
// in flight. The whole pass is bounded by Options.AlertTimeout.
const (
	DefaultAlertTimeout = 30 * time.Second
	alertConcurrency    = 4
)

// Cycle outcomes recorded in metrics.
const (
	cycleSuccess    = "success"
	cycleNoForecast = "no_forecast"
	cycleLoadFailed = "load_failed"
)

// TideSource returns the sparse high and low water events for the coast.
type TideSource interface {
	FetchTides(ctx context.Context) ([]domain.TideEvent, error)
}

// Loader hands the canonical tables to the presentation layer.
type Loader interface {
	LoadForecast(ctx context.Context, runID string, forecast domain.ForecastTable, tides domain.TideTable) error
}

// Notifier delivers one alert message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Job is one configured source with its tasks. Session is used when set,
// otherwise Source.
type Job struct {
	Name    string
	Source  Source
	Session SessionSource
	Tasks   []domain.FetchTask
}

// Options tunes a Pipeline. Zero values fall back to UTC, the real clock and
// no retries.
type Options struct {
	Location     *time.Location
	Clock        clockwork.Clock
	TideHorizon  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	AlertTimeout time.Duration
	Conditions   []domain.SpotConditionSet
}

// Pipeline runs forecast cycles: fetch every job, normalize the merged
// records, alert, then load.
type Pipeline struct {
	orchestrator *Orchestrator
	jobs         []Job
	tides        TideSource
	loader       Loader
	notifier     Notifier
	opts         Options
	logger       *slog.Logger
	metrics      *observability.Metrics
	ready        atomic.Bool

	mu      sync.RWMutex
	latest  *snapshot
	lastErr error
}

type snapshot struct {
	forecast domain.ForecastTable
	tides    domain.TideTable
}

// New creates a Pipeline. tides, loader and notifier may be nil to disable
// the corresponding stage.
func New(o *Orchestrator, jobs []Job, tides TideSource, loader Loader, notifier Notifier, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.AlertTimeout <= 0 {
		opts.AlertTimeout = DefaultAlertTimeout
	}
	return &Pipeline{
		orchestrator: o,
		jobs:         jobs,
		tides:        tides,
		loader:       loader,
		notifier:     notifier,
		opts:         opts,
		logger:       logger,
		metrics:      metrics,
	}
}

// CheckReadiness returns nil once a cycle has produced a forecast.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no forecast cycle has completed yet")
	}
	return nil
}

// LatestForecast returns the tables of the last cycle. It returns
// ErrNoForecast before the first successful cycle and after a cycle that
// exhausted its retries.
func (p *Pipeline) LatestForecast() (domain.ForecastTable, domain.TideTable, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.lastErr != nil || p.latest == nil {
		return domain.ForecastTable{}, domain.TideTable{}, ErrNoForecast
	}
	return p.latest.forecast, p.latest.tides, nil
}

// RunCycle performs one complete fetch-normalize-load-alert cycle. The whole
// fetch is retried while it yields no records, up to MaxRetries times; after
// that the cycle fails with ErrNoForecast. Alerts go out after the load, so a
// slow webhook never delays publishing.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := p.opts.Clock.Now()
	logger.Info("cycle started", "jobs", len(p.jobs))

	events := domain.ReconstructTideTimeline(p.fetchTides(ctx, logger), p.opts.TideHorizon)
	p.metrics.TideEvents.Set(float64(len(events)))

	batches, err := p.fetchWithRetry(ctx, logger)
	if err != nil {
		if errors.Is(err, ErrNoForecast) {
			p.metrics.Cycles.WithLabelValues(cycleNoForecast).Inc()
			p.setFailed(err)
			logger.Error("cycle failed", "error", err, "attempts", p.opts.MaxRetries+1)
		}
		return err
	}

	normalizer := domain.NewNormalizer(
		domain.WithLocation(p.opts.Location),
		domain.WithClock(p.opts.Clock),
		domain.WithTides(domain.NewTideTimeline(events)),
	)
	forecast := normalizer.Normalize(batches...)
	tides := domain.BuildTideTable(events, p.opts.Location)

	p.store(forecast, tides)
	p.ready.Store(true)
	p.metrics.ForecastRecords.Set(float64(forecast.Len()))
	for _, row := range forecast.Rows {
		p.metrics.SpotRecords.WithLabelValues(row.SpotName).Inc()
	}

	loadErr := p.load(ctx, runID, forecast, tides)
	p.sendAlerts(ctx, logger, forecast)
	if loadErr != nil {
		p.metrics.Cycles.WithLabelValues(cycleLoadFailed).Inc()
		logger.Error("load forecast failed", "error", loadErr)
		return fmt.Errorf("load forecast: %w", loadErr)
	}

	elapsed := p.opts.Clock.Since(start)
	p.metrics.CycleDuration.Observe(elapsed.Seconds())
	p.metrics.Cycles.WithLabelValues(cycleSuccess).Inc()
	logger.Info("cycle complete",
		"records", forecast.Len(),
		"tide_events", len(events),
		"duration", elapsed,
	)
	return nil
}

func (p *Pipeline) fetchTides(ctx context.Context, logger *slog.Logger) []domain.TideEvent {
	if p.tides == nil {
		return nil
	}
	events, err := p.tides.FetchTides(ctx)
	if err != nil {
		logger.Warn("fetch tides failed, continuing without tides", "error", err)
		return nil
	}
	return events
}

// fetchWithRetry repeats fetchJobs until it yields at least one record.
func (p *Pipeline) fetchWithRetry(ctx context.Context, logger *slog.Logger) ([][]domain.ForecastRecord, error) {
	backoff := p.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		p.metrics.CycleAttempts.Inc()
		batches := p.fetchJobs(ctx, logger)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if countRecords(batches) > 0 {
			return batches, nil
		}
		if attempt >= p.opts.MaxRetries {
			return nil, ErrNoForecast
		}

		logger.Warn("forecast is empty, retrying", "attempt", attempt+1, "backoff", backoff)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, maxRetryBackoff)
	}
}

// fetchJobs runs every job concurrently and returns their records in job
// order.
func (p *Pipeline) fetchJobs(ctx context.Context, logger *slog.Logger) [][]domain.ForecastRecord {
	results := make([][]domain.ForecastRecord, len(p.jobs))

	var g errgroup.Group
	for i, job := range p.jobs {
		g.Go(func() error {
			var (
				recs []domain.ForecastRecord
				err  error
			)
			if job.Session != nil {
				recs, err = p.orchestrator.FetchSequential(ctx, job.Session, job.Tasks)
			} else {
				recs, err = p.orchestrator.FetchAll(ctx, job.Source, job.Tasks)
			}
			if err != nil && ctx.Err() == nil {
				logger.Warn("source failed", "source", job.Name, "error", err)
			}
			logger.Debug("source fetched", "source", job.Name, "records", len(recs))
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) load(ctx context.Context, runID string, forecast domain.ForecastTable, tides domain.TideTable) error {
	if p.loader == nil {
		return nil
	}
	if err := p.loader.LoadForecast(ctx, runID, forecast, tides); err != nil {
		return err
	}
	p.metrics.RecordsPublished.Add(float64(forecast.Len() + len(tides.Rows)))
	return nil
}

// sendAlerts delivers every matching alert concurrently. Failures are logged
// and counted; alerts still pending when AlertTimeout expires fail with the
// context error.
func (p *Pipeline) sendAlerts(ctx context.Context, logger *slog.Logger, forecast domain.ForecastTable) {
	if p.notifier == nil || len(p.opts.Conditions) == 0 {
		return
	}
	alerts := domain.MatchAlerts(p.opts.Conditions, forecast)
	if len(alerts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.AlertTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(alertConcurrency)
	for _, alert := range alerts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				p.metrics.Alerts.WithLabelValues("failed").Inc()
				return nil
			}
			if err := p.notifier.Notify(ctx, alert.Message()); err != nil {
				p.metrics.Alerts.WithLabelValues("failed").Inc()
				logger.Warn("alert delivery failed", "spot", alert.Spot, "error", err)
				return nil
			}
			p.metrics.Alerts.WithLabelValues("sent").Inc()
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) store(forecast domain.ForecastTable, tides domain.TideTable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = &snapshot{forecast: forecast, tides: tides}
	p.lastErr = nil
}

func (p *Pipeline) setFailed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

func countRecords(batches [][]domain.ForecastRecord) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}
