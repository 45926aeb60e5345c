package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/observability/logger"
	"github.com/smallbiznis/partnersync/internal/webhookevent/domain"
	pkgdb "github.com/smallbiznis/partnersync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	repo         domain.Repository
	clock        clock.Clock
	queryTimeout time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("webhookevent.service"),
		repo:         p.Repo,
		clock:        p.Clock,
		queryTimeout: p.Cfg.DBQueryTimeout,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListFilter{Limit: req.Limit}

	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		switch domain.Status(status) {
		case domain.StatusPending, domain.StatusProcessed, domain.StatusError:
			filter.Status = domain.Status(status)
		default:
			return nil, domain.ErrInvalidStatus
		}
	}
	if accountID := strings.TrimSpace(req.AccountID); accountID != "" {
		id, err := snowflake.ParseString(accountID)
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidID
		}
		filter.AccountID = id
	}

	ctx, cancel := pkgdb.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Response, 0, len(items))
	for i := range items {
		out = append(out, domain.ToResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) Requeue(ctx context.Context, rawID string) (*domain.Response, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	ctx, cancel := pkgdb.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	ok, err := s.repo.Requeue(ctx, s.db, id, s.clock.Now())
	if err != nil {
		return nil, err
	}
	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	if !ok {
		return nil, domain.ErrNotRequeuable
	}

	logger.WithContext(ctx, s.log).Info("event.requeued",
		zap.String("event_id", event.ID.String()),
		zap.String("external_event_id", event.ExternalEventID),
	)
	resp := domain.ToResponse(event)
	return &resp, nil
}
