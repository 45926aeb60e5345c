package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/eventprocessor/domain"
	"github.com/smallbiznis/partnersync/internal/eventprocessor/mapping"
	obscontext "github.com/smallbiznis/partnersync/internal/observability/context"
	"github.com/smallbiznis/partnersync/internal/observability/logger"
	"github.com/smallbiznis/partnersync/internal/observability/metrics"
	eventdomain "github.com/smallbiznis/partnersync/internal/webhookevent/domain"
	pkgdb "github.com/smallbiznis/partnersync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultEventTimeout = 10 * time.Second
	accountNotFoundMsg  = "account not found"
)

type Params struct {
	fx.In

	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	Events   eventdomain.Repository
	Accounts accountdomain.Repository
	Mapper   *mapping.Mapper
	Clock    clock.Clock
	Pipeline *metrics.PipelineMetrics `optional:"true"`
	Metrics  *metrics.Metrics         `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	events       eventdomain.Repository
	accounts     accountdomain.Repository
	mapper       *mapping.Mapper
	clock        clock.Clock
	pipeline     *metrics.PipelineMetrics
	metrics      *metrics.Metrics
	batchSize    int
	maxRetry     int
	eventTimeout time.Duration
	queryTimeout time.Duration
}

func New(p Params) domain.Service {
	batchSize := p.Cfg.Processor.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	maxRetry := p.Cfg.Processor.MaxRetry
	if maxRetry <= 0 {
		maxRetry = domain.DefaultMaxRetry
	}
	eventTimeout := p.Cfg.Processor.EventTimeout
	if eventTimeout <= 0 {
		eventTimeout = defaultEventTimeout
	}
	mapper := p.Mapper
	if mapper == nil {
		mapper = mapping.New(nil)
	}

	return &Service{
		db:           p.DB,
		log:          p.Log.Named("eventprocessor.service"),
		events:       p.Events,
		accounts:     p.Accounts,
		mapper:       mapper,
		clock:        p.Clock,
		pipeline:     p.Pipeline,
		metrics:      p.Metrics,
		batchSize:    batchSize,
		maxRetry:     maxRetry,
		eventTimeout: eventTimeout,
		queryTimeout: p.Cfg.DBQueryTimeout,
	}
}

func (s *Service) RunBatch(ctx context.Context, batchSize int) (*domain.BatchResult, error) {
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	start := time.Now()
	log := logger.WithContext(ctx, s.log)

	listCtx, cancel := pkgdb.WithTimeout(ctx, s.queryTimeout)
	events, err := s.events.ListPending(listCtx, s.db, batchSize, s.maxRetry)
	cancel()
	if err != nil {
		log.Error("processor.batch.list_failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	// Ordering must not depend on the store honouring ORDER BY.
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.ID < b.ID
	})

	result := &domain.BatchResult{Details: make([]domain.EventResult, 0, len(events))}
	for i := range events {
		if err := ctx.Err(); err != nil {
			log.Warn("processor.batch.interrupted",
				zap.Int("remaining", len(events)-i),
				zap.Error(err),
			)
			break
		}

		detail := s.processOne(ctx, &events[i])
		result.Processed++
		if detail.Success {
			result.Succeeded++
		} else {
			result.Errors++
		}
		result.Details = append(result.Details, detail)
	}

	s.pipeline.ObserveBatch(time.Since(start), len(events))
	log.Info("processor.batch.finished",
		zap.Int("fetched", len(events)),
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *Service) processOne(parent context.Context, event *eventdomain.Event) domain.EventResult {
	ctx := obscontext.WithCorrelationID(parent, ulid.Make().String())
	ctx = obscontext.WithAccountID(ctx, event.AccountID.String())
	log := logger.WithContext(ctx, s.log).With(
		zap.String("event_id", event.ID.String()),
		zap.String("external_event_id", event.ExternalEventID),
		zap.String("event_type", event.EventType),
		zap.Int("retry_count", event.RetryCount),
	)

	detail := domain.EventResult{
		EventID:         event.ID.String(),
		ExternalEventID: event.ExternalEventID,
		EventType:       event.EventType,
		Status:          event.Status,
		RetryCount:      event.RetryCount,
	}

	evCtx, cancel := context.WithTimeout(ctx, s.eventTimeout)
	defer cancel()

	account, err := s.accounts.FindByID(evCtx, s.db, event.AccountID)
	if err != nil {
		return s.fail(ctx, log, event, detail, fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return s.terminal(ctx, log, event, detail)
	}

	patch := s.mapper.Resolve(event.EventType, event.Payload)
	if ignored := mapping.IgnoredStatus(event.EventType, event.Payload); ignored != "" {
		log.Warn("processor.event.status_ignored", zap.String("payload_status", ignored))
	}
	now := s.clock.Now()
	err = s.accounts.ApplyPatch(evCtx, s.db, event.AccountID, patch, accountdomain.Bookkeeping{
		EventType:  event.EventType,
		ReceivedAt: event.ReceivedAt,
		UpdatedAt:  now,
	})
	if errors.Is(err, accountdomain.ErrNotFound) {
		return s.terminal(ctx, log, event, detail)
	}
	if err != nil {
		return s.fail(ctx, log, event, detail, fmt.Errorf("apply patch: %w", err))
	}
	detail.Patch = mapping.Describe(patch)

	recordCtx, cancelRecord := s.recordContext(ctx)
	defer cancelRecord()
	if err := s.events.MarkProcessed(recordCtx, s.db, event.ID, now); err != nil {
		// The patch is applied but the event stays PENDING; the next batch re-applies it.
		log.Error("processor.event.mark_processed_failed", zap.Error(err))
		detail.Error = "mark processed: " + err.Error()
		s.pipeline.IncEventOutcome(metrics.OutcomeError)
		return detail
	}

	if !patch.Empty() {
		s.metrics.RecordPatchApplied(ctx, event.EventType)
	}
	s.pipeline.IncEventOutcome(metrics.OutcomeProcessed)
	detail.Success = true
	detail.Status = eventdomain.StatusProcessed
	log.Info("processor.event.processed", zap.Bool("status_changed", !patch.Empty()))
	return detail
}

// fail consumes one retry. The event moves to ERROR when the budget runs out.
// A cancelled batch leaves the event PENDING with its retries intact.
func (s *Service) fail(ctx context.Context, log *zap.Logger, event *eventdomain.Event, detail domain.EventResult, cause error) domain.EventResult {
	if err := ctx.Err(); err != nil {
		detail.Error = fmt.Errorf("%w: %v", domain.ErrInterrupted, cause).Error()
		s.pipeline.IncEventOutcome(metrics.OutcomeInterrupted)
		log.Warn("processor.event.interrupted", zap.Error(cause))
		return detail
	}

	recordCtx, cancel := s.recordContext(ctx)
	defer cancel()

	status, retries, err := s.events.MarkFailed(recordCtx, s.db, event.ID, cause.Error(), s.maxRetry, s.clock.Now())
	if err != nil {
		log.Error("processor.event.mark_failed_failed", zap.NamedError("cause", cause), zap.Error(err))
		detail.Error = cause.Error() + "; record failure: " + err.Error()
		s.pipeline.IncEventOutcome(metrics.OutcomeError)
		return detail
	}

	detail.Status = status
	detail.RetryCount = retries
	if status == eventdomain.StatusError {
		detail.Error = fmt.Errorf("%w: %v", domain.ErrRetryExhausted, cause).Error()
		s.pipeline.IncEventOutcome(metrics.OutcomeError)
		log.Error("processor.event.exhausted", zap.Int("retries", retries), zap.Error(cause))
		return detail
	}

	detail.Error = cause.Error()
	s.pipeline.IncEventOutcome(metrics.OutcomeRetry)
	log.Warn("processor.event.failed", zap.Int("retries", retries), zap.Error(cause))
	return detail
}

// terminal moves the event to ERROR without consuming retries.
func (s *Service) terminal(ctx context.Context, log *zap.Logger, event *eventdomain.Event, detail domain.EventResult) domain.EventResult {
	recordCtx, cancel := s.recordContext(ctx)
	defer cancel()

	detail.Error = accountdomain.ErrNotFound.Error()
	if err := s.events.MarkError(recordCtx, s.db, event.ID, accountNotFoundMsg, s.clock.Now()); err != nil {
		log.Error("processor.event.mark_error_failed", zap.Error(err))
		detail.Error += "; record failure: " + err.Error()
		s.pipeline.IncEventOutcome(metrics.OutcomeError)
		return detail
	}
	detail.Status = eventdomain.StatusError
	s.pipeline.IncEventOutcome(metrics.OutcomeError)
	log.Error("processor.event.account_not_found")
	return detail
}

// recordContext outlives the per-event deadline so a timed out event still
// gets its outcome written.
func (s *Service) recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return pkgdb.WithTimeout(context.WithoutCancel(ctx), s.queryTimeout)
}
