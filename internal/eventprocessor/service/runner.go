package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/eventprocessor/domain"
	"github.com/smallbiznis/partnersync/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultLockTTL = 2 * time.Minute

type RunnerParams struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Service domain.Service
	Locker  *ratelimit.Locker `optional:"true"`
}

// Runner serializes batches. The mutex covers this process and the redis
// lock, when configured, covers every replica.
type Runner struct {
	svc     domain.Service
	locker  *ratelimit.Locker
	lockTTL time.Duration
	log     *zap.Logger
	mu      sync.Mutex
}

func NewRunner(p RunnerParams) *Runner {
	ttl := p.Cfg.Processor.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Runner{
		svc:     p.Service,
		locker:  p.Locker,
		lockTTL: ttl,
		log:     p.Log.Named("eventprocessor.runner"),
	}
}

// Run executes one batch or returns ErrBatchInProgress when another run holds the lock.
func (r *Runner) Run(ctx context.Context, batchSize int) (*domain.BatchResult, error) {
	if !r.mu.TryLock() {
		return nil, domain.ErrBatchInProgress
	}
	defer r.mu.Unlock()

	if r.locker != nil {
		lease, err := r.locker.Acquire(ctx, ratelimit.ProcessorLock, r.lockTTL)
		if errors.Is(err, ratelimit.ErrLockHeld) {
			holder, _ := r.locker.Holder(ctx, ratelimit.ProcessorLock)
			r.log.Info("processor.lock.held", zap.String("holder", holder))
			return nil, domain.ErrBatchInProgress
		}
		if err != nil {
			r.log.Error("processor.lock.failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrLockUnavailable, err)
		}
		r.log.Debug("processor.lock.acquired", zap.String("owner", lease.Owner))
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := lease.Release(releaseCtx); err != nil {
				r.log.Warn("processor.lock.release_failed", zap.String("owner", lease.Owner), zap.Error(err))
			}
		}()
	}

	return r.svc.RunBatch(ctx, batchSize)
}
