package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/eventprocessor/domain"
	eventservice "github.com/smallbiznis/partnersync/internal/eventprocessor/service"
	obsmetrics "github.com/smallbiznis/partnersync/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// JobProcessWebhookEvents drains pending partner webhook events.
const JobProcessWebhookEvents = "process_webhook_events"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type batchRunner interface {
	Run(ctx context.Context, batchSize int) (*domain.BatchResult, error)
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Runner *eventservice.Runner
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config Config `optional:"true"`
}

type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	genID  *snowflake.Node
	clock  clock.Clock
	runner batchRunner
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Runner == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:    p.Config.withDefaults(),
		genID:  p.GenID,
		clock:  p.Clock,
		runner: p.Runner,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.newJobRun(ctx, name, batchSize)
	s.logJobStart(ctx, run)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx, run)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if errors.Is(err, domain.ErrBatchInProgress) {
		schedMetrics.IncJobSkipped(name, obsmetrics.SchedulerRunSkippedReasonLockHeld)
		s.logger(ctx).Info("scheduler.job.skipped",
			zap.String("job", name),
			zap.String("reason", obsmetrics.SchedulerRunSkippedReasonLockHeld),
		)
		return nil
	}
	if err != nil && run.errorCount == 0 {
		run.AddErrors(1)
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		s.logger(ctx).Warn("scheduler.job.timeout",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.logJobError(ctx, run, err)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, JobProcessWebhookEvents, s.cfg.BatchSize, s.cfg.JobTimeout, s.ProcessWebhookEventsJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now()
	schedMetrics := obsmetrics.Scheduler()

	for {
		if runLag := time.Since(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler.run.failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessWebhookEventsJob runs one processor batch.
func (s *Scheduler) ProcessWebhookEventsJob(ctx context.Context, run *jobRun) error {
	result, err := s.runner.Run(ctx, run.batchSize)
	if err != nil {
		return err
	}
	run.AddProcessed(result.Processed)
	run.AddErrors(result.Errors)
	obsmetrics.Scheduler().AddBatchProcessed(run.job, "webhook_event", result.Processed)
	return nil
}
