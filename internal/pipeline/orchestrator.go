package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/couchcryptid/surf-forecast-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Source fetches and field-maps one task. Implementations must be safe for
// concurrent use.
type Source interface {
	Fetch(ctx context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error)
}

// SessionSource opens a stateful upstream session that is reused for every
// task of a cycle.
type SessionSource interface {
	Open(ctx context.Context) (Session, error)
}

// Session fetches tasks one at a time over shared state. It is not safe for
// concurrent use.
type Session interface {
	Fetch(ctx context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error)
	Close() error
}

// Fetch task outcomes recorded in metrics.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeEmpty   = "empty"
)

// Orchestrator runs fetch tasks in fixed-size concurrent batches with a pause
// between batches. A failing task contributes nothing and never affects its
// siblings.
type Orchestrator struct {
	batchSize int
	pause     time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewOrchestrator creates an Orchestrator. A batch size below one is treated
// as one; a zero pause disables waiting between batches.
func NewOrchestrator(batchSize int, pause time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	if batchSize < 1 {
		batchSize = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		batchSize: batchSize,
		pause:     pause,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// FetchAll runs tasks against src batch by batch and returns the records of
// every successful task in task order. The only error it returns is the
// context's, in which case the records merged so far are returned with it.
func (o *Orchestrator) FetchAll(ctx context.Context, src Source, tasks []domain.FetchTask) ([]domain.ForecastRecord, error) {
	var merged []domain.ForecastRecord

	for start := 0; start < len(tasks); start += o.batchSize {
		if start > 0 {
			if err := o.wait(ctx); err != nil {
				return merged, err
			}
		}
		end := min(start+o.batchSize, len(tasks))
		batch := tasks[start:end]

		results := make([][]domain.ForecastRecord, len(batch))
		var g errgroup.Group
		for i, task := range batch {
			g.Go(func() error {
				results[i] = o.fetchOne(ctx, src.Fetch, task)
				return nil
			})
		}
		_ = g.Wait()
		o.metrics.FetchBatches.Inc()

		for _, recs := range results {
			merged = append(merged, recs...)
		}
		o.logger.Debug("fetch batch complete", "batch_start", start, "batch_size", len(batch), "records", len(merged))

		if err := ctx.Err(); err != nil {
			return merged, err
		}
	}
	return merged, nil
}

// FetchSequential opens a single session and runs every task through it in
// order. Task failures are isolated exactly as in FetchAll.
func (o *Orchestrator) FetchSequential(ctx context.Context, src SessionSource, tasks []domain.FetchTask) ([]domain.ForecastRecord, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	session, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Warn("close session failed", "error", err)
		}
	}()

	var merged []domain.ForecastRecord
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		merged = append(merged, o.fetchOne(ctx, session.Fetch, task)...)
	}
	o.metrics.FetchBatches.Inc()
	return merged, nil
}

func (o *Orchestrator) fetchOne(ctx context.Context, fetch func(context.Context, domain.FetchTask) ([]domain.ForecastRecord, error), task domain.FetchTask) []domain.ForecastRecord {
	start := o.clock.Now()
	recs, err := fetch(ctx, task)
	o.metrics.FetchDuration.WithLabelValues(task.Source).Observe(o.clock.Since(start).Seconds())

	switch {
	case err != nil:
		o.logger.Warn("fetch task failed",
			"source", task.Source,
			"spot", task.Spot,
			"url", task.URL,
			"error", err,
		)
		o.metrics.FetchTasks.WithLabelValues(task.Source, outcomeError).Inc()
		return nil
	case len(recs) == 0:
		o.metrics.FetchTasks.WithLabelValues(task.Source, outcomeEmpty).Inc()
		return nil
	default:
		o.metrics.FetchTasks.WithLabelValues(task.Source, outcomeSuccess).Inc()
		return recs
	}
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.pause <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.clock.After(o.pause):
		return nil
	}
}
