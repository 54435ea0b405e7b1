package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Run executes one cycle immediately and then one per schedule until the
// context is cancelled. A cycle that is still running when the next one is
// due causes that run to be skipped.
func (p *Pipeline) Run(ctx context.Context, schedule string) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}

	cl := cronLogger{logger: p.logger.With("component", "scheduler")}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { p.runScheduled(ctx) }))

	c := cron.New(cron.WithLocation(p.opts.Location), cron.WithLogger(cl))
	c.Schedule(sched, job)

	p.logger.Info("pipeline started", "schedule", schedule, "jobs", len(p.jobs))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	c.Start()
	job.Run()

	<-ctx.Done()
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

func (p *Pipeline) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("scheduled cycle failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger. Scheduler chatter goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
