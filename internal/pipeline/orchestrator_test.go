package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/couchcryptid/surf-forecast-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// funcSource adapts a function to pipeline.Source.
type funcSource func(ctx context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error)

func (f funcSource) Fetch(ctx context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
	return f(ctx, task)
}

// echoSource returns one record per task, tagged with the task's spot.
func echoSource() funcSource {
	return func(_ context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
		return []domain.ForecastRecord{{SpotName: task.Spot}}, nil
	}
}

type mockSessionSource struct {
	opened  atomic.Int32
	closed  atomic.Int32
	openErr error
	fail    map[string]bool
}

func (m *mockSessionSource) Open(_ context.Context) (pipeline.Session, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened.Add(1)
	return &mockSession{src: m}, nil
}

type mockSession struct {
	src *mockSessionSource
}

func (s *mockSession) Fetch(_ context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
	if s.src.fail[task.Spot] {
		return nil, errors.New("render failed")
	}
	return []domain.ForecastRecord{{SpotName: task.Spot}}, nil
}

func (s *mockSession) Close() error {
	s.src.closed.Add(1)
	return nil
}

func tasks(source string, spots ...string) []domain.FetchTask {
	out := make([]domain.FetchTask, len(spots))
	for i, s := range spots {
		out[i] = domain.FetchTask{Source: source, Spot: s, URL: "https://feeds.example/" + s}
	}
	return out
}

func spotNames(recs []domain.ForecastRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.SpotName
	}
	return out
}

// --- tests ---

func TestOrchestrator_FetchAll_IsolatesFailingTask(t *testing.T) {
	metrics := newTestMetrics()
	o := pipeline.NewOrchestrator(8, 0, clockwork.NewFakeClock(), slog.Default(), metrics)

	src := funcSource(func(_ context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
		if task.Spot == "broken" {
			return nil, errors.New("status 503")
		}
		return []domain.ForecastRecord{{SpotName: task.Spot}}, nil
	})

	got, err := o.FetchAll(context.Background(), src, tasks("feed", "broken", "famara"))
	require.NoError(t, err)

	assert.Equal(t, []string{"famara"}, spotNames(got))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchTasks.WithLabelValues("feed", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchTasks.WithLabelValues("feed", "success")), 0)
}

func TestOrchestrator_FetchAll_MergesInTaskOrder(t *testing.T) {
	metrics := newTestMetrics()
	o := pipeline.NewOrchestrator(2, 0, clockwork.NewFakeClock(), slog.Default(), metrics)

	src := funcSource(func(_ context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
		// Finish the first task of each batch last.
		if task.Spot == "a" || task.Spot == "c" {
			time.Sleep(20 * time.Millisecond)
		}
		return []domain.ForecastRecord{{SpotName: task.Spot}}, nil
	})

	got, err := o.FetchAll(context.Background(), src, tasks("feed", "a", "b", "c", "d", "e"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, spotNames(got))
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.FetchBatches), 0)
}

func TestOrchestrator_FetchAll_EmptyResultCounted(t *testing.T) {
	metrics := newTestMetrics()
	o := pipeline.NewOrchestrator(4, 0, clockwork.NewFakeClock(), slog.Default(), metrics)

	src := funcSource(func(context.Context, domain.FetchTask) ([]domain.ForecastRecord, error) {
		return nil, nil
	})

	got, err := o.FetchAll(context.Background(), src, tasks("feed", "famara"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchTasks.WithLabelValues("feed", "empty")), 0)
}

func TestOrchestrator_FetchAll_BoundsConcurrencyToBatch(t *testing.T) {
	o := pipeline.NewOrchestrator(3, 0, clockwork.NewFakeClock(), slog.Default(), newTestMetrics())

	var inFlight, peak atomic.Int32
	src := funcSource(func(_ context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return []domain.ForecastRecord{{SpotName: task.Spot}}, nil
	})

	got, err := o.FetchAll(context.Background(), src, tasks("feed", "a", "b", "c", "d", "e", "f", "g"))
	require.NoError(t, err)
	assert.Len(t, got, 7)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestOrchestrator_FetchAll_PausesBetweenBatches(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := pipeline.NewOrchestrator(1, 10*time.Second, clock, slog.Default(), newTestMetrics())

	var (
		mu    sync.Mutex
		calls []string
	)
	src := funcSource(func(_ context.Context, task domain.FetchTask) ([]domain.ForecastRecord, error) {
		mu.Lock()
		calls = append(calls, task.Spot)
		mu.Unlock()
		return []domain.ForecastRecord{{SpotName: task.Spot}}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan []domain.ForecastRecord, 1)
	go func() {
		recs, _ := o.FetchAll(ctx, src, tasks("feed", "a", "b"))
		done <- recs
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	mu.Lock()
	assert.Equal(t, []string{"a"}, calls)
	mu.Unlock()

	clock.Advance(10 * time.Second)

	select {
	case recs := <-done:
		assert.Equal(t, []string{"a", "b"}, spotNames(recs))
	case <-ctx.Done():
		t.Fatal("FetchAll did not resume after the pause")
	}
}

func TestOrchestrator_FetchAll_CancelledDuringPause(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := pipeline.NewOrchestrator(1, time.Minute, clock, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		recs []domain.ForecastRecord
		err  error
	}
	done := make(chan result, 1)
	go func() {
		recs, err := o.FetchAll(ctx, echoSource(), tasks("feed", "a", "b"))
		done <- result{recs, err}
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	res := <-done
	require.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, []string{"a"}, spotNames(res.recs))
}

func TestOrchestrator_FetchSequential_SharesOneSession(t *testing.T) {
	metrics := newTestMetrics()
	o := pipeline.NewOrchestrator(8, time.Hour, clockwork.NewFakeClock(), slog.Default(), metrics)
	src := &mockSessionSource{fail: map[string]bool{"b": true}}

	got, err := o.FetchSequential(context.Background(), src, tasks("rendered", "a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, spotNames(got))
	assert.Equal(t, int32(1), src.opened.Load())
	assert.Equal(t, int32(1), src.closed.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchTasks.WithLabelValues("rendered", "error")), 0)
}

func TestOrchestrator_FetchSequential_OpenError(t *testing.T) {
	o := pipeline.NewOrchestrator(8, 0, clockwork.NewFakeClock(), slog.Default(), newTestMetrics())
	src := &mockSessionSource{openErr: errors.New("browser unavailable")}

	got, err := o.FetchSequential(context.Background(), src, tasks("rendered", "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open session")
	assert.Empty(t, got)
}

func TestOrchestrator_FetchSequential_NoTasksSkipsOpen(t *testing.T) {
	o := pipeline.NewOrchestrator(8, 0, clockwork.NewFakeClock(), slog.Default(), newTestMetrics())
	src := &mockSessionSource{}

	got, err := o.FetchSequential(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), src.opened.Load())
}
