package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	accountdomain "github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	obscontext "github.com/smallbiznis/partnersync/internal/observability/context"
	"github.com/smallbiznis/partnersync/internal/observability/logger"
	"github.com/smallbiznis/partnersync/internal/observability/metrics"
	"github.com/smallbiznis/partnersync/internal/ratelimit"
	"github.com/smallbiznis/partnersync/internal/webhook/domain"
	eventdomain "github.com/smallbiznis/partnersync/internal/webhookevent/domain"
	pkgdb "github.com/smallbiznis/partnersync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultTokenHeader  = "asaas-access-token"
	defaultMinTokenSize = 10
)

type Params struct {
	fx.In

	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Accounts accountdomain.Repository
	Events   eventdomain.Repository
	Clock    clock.Clock
	Limiter  *ratelimit.WebhookLimiter `optional:"true"`
	Pipeline *metrics.PipelineMetrics  `optional:"true"`
	Metrics  *metrics.Metrics          `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	accounts     accountdomain.Repository
	events       eventdomain.Repository
	clock        clock.Clock
	limiter      *ratelimit.WebhookLimiter
	pipeline     *metrics.PipelineMetrics
	metrics      *metrics.Metrics
	validate     *validator.Validate
	tokenHeader  string
	minTokenSize int
	queryTimeout time.Duration
}

func New(p Params) domain.Service {
	header := strings.TrimSpace(p.Cfg.Webhook.TokenHeader)
	if header == "" {
		header = defaultTokenHeader
	}
	minSize := p.Cfg.Webhook.MinTokenLength
	if minSize <= 0 {
		minSize = defaultMinTokenSize
	}

	return &Service{
		db:           p.DB,
		log:          p.Log.Named("webhook.service"),
		genID:        p.GenID,
		accounts:     p.Accounts,
		events:       p.Events,
		clock:        p.Clock,
		limiter:      p.Limiter,
		pipeline:     p.Pipeline,
		metrics:      p.Metrics,
		validate:     validator.New(),
		tokenHeader:  header,
		minTokenSize: minSize,
		queryTimeout: p.Cfg.DBQueryTimeout,
	}
}

func (s *Service) Receive(ctx context.Context, headers http.Header, body []byte) (*domain.Result, error) {
	result, err := s.receive(ctx, headers, body)
	if err != nil {
		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			s.pipeline.IncWebhookReceived(strings.ToLower(string(rejection.Kind)))
		}
		return nil, err
	}
	s.pipeline.IncWebhookReceived(strings.ToLower(string(result.Status)))
	s.metrics.RecordWebhookEvent(ctx, result.EventType, string(result.Status))
	return result, nil
}

func (s *Service) receive(ctx context.Context, headers http.Header, body []byte) (*domain.Result, error) {
	log := logger.WithContext(ctx, s.log)

	token := strings.TrimSpace(headers.Get(s.tokenHeader))
	if token == "" {
		log.Warn("webhook.rejected", zap.String("reason", "missing_token"))
		return nil, domain.Reject(domain.RejectUnauthenticated, "missing access token", nil)
	}
	log = log.With(zap.String("token_prefix", logger.TokenPrefix(token)))
	if len(token) < s.minTokenSize {
		log.Warn("webhook.rejected", zap.String("reason", "short_token"))
		return nil, domain.Reject(domain.RejectUnauthenticated, "invalid access token", nil)
	}

	if s.limiter.Enabled() {
		res, err := s.limiter.Allow(ctx, token)
		if err != nil {
			log.Warn("webhook.rate_limit.error", zap.Error(err))
		}
		if res != nil && !res.Allowed {
			rejection := domain.Reject(domain.RejectRateLimited, "too many deliveries", nil)
			rejection.RetryAfter = res.RetryAfter
			log.Warn("webhook.rejected", zap.String("reason", "rate_limited"))
			return nil, rejection
		}
	}

	account, err := s.resolveAccount(ctx, token)
	if err != nil {
		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			log.Warn("webhook.rejected", zap.String("reason", strings.ToLower(string(rejection.Kind))), zap.Error(rejection.Err))
		}
		return nil, err
	}
	log = logger.WithAccount(log, account.ID.String())

	payload, err := s.parse(body)
	if err != nil {
		log.Warn("webhook.rejected", zap.String("reason", "bad_payload"), zap.Error(err))
		return nil, err
	}
	log = log.With(zap.String("external_event_id", payload.ID), zap.String("event_type", payload.Event))

	now := s.clock.Now()
	event := eventdomain.Event{
		ID:              s.genID.Generate(),
		ExternalEventID: payload.ID,
		AccountID:       account.ID,
		EventType:       payload.Event,
		Payload:         datatypes.JSON(body),
		ReceivedAt:      now,
		Status:          eventdomain.StatusPending,
		UpdatedAt:       now,
	}

	storeCtx, cancel := pkgdb.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.events.Enqueue(storeCtx, s.db, &event); err != nil {
		if errors.Is(err, eventdomain.ErrDuplicateEvent) {
			result := &domain.Result{
				Status:          domain.StatusDuplicate,
				ExternalEventID: payload.ID,
				EventType:       payload.Event,
			}
			if existing, findErr := s.events.FindByExternalID(storeCtx, s.db, payload.ID); findErr == nil && existing != nil {
				result.EventID = existing.ID.String()
			}
			log.Info("webhook.duplicate")
			return result, nil
		}
		log.Error("webhook.enqueue.failed", zap.Error(err))
		return nil, domain.Reject(domain.RejectStorageFailure, "could not store event", err)
	}

	log.Info("webhook.received", zap.String("event_id", event.ID.String()))
	return &domain.Result{
		Status:          domain.StatusEnqueued,
		EventID:         event.ID.String(),
		ExternalEventID: payload.ID,
		EventType:       payload.Event,
	}, nil
}

func (s *Service) resolveAccount(ctx context.Context, token string) (*accountdomain.Account, error) {
	storeCtx, cancel := pkgdb.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	matches, err := s.accounts.FindBySecretToken(storeCtx, s.db, token)
	if err != nil {
		return nil, domain.Reject(domain.RejectStorageFailure, "could not resolve credential", err)
	}
	switch len(matches) {
	case 0:
		return nil, domain.Reject(domain.RejectUnauthenticated, "invalid access token", nil)
	case 1:
	default:
		return nil, domain.Reject(domain.RejectAmbiguousCredential, "credential matches more than one account", nil)
	}

	account := matches[0]
	if account.AccountStatus == accountdomain.StatusCancelled {
		return nil, domain.Reject(domain.RejectUnauthenticated, "account cancelled", nil)
	}
	return &account, nil
}

func (s *Service) parse(body []byte) (*domain.Payload, error) {
	if len(body) == 0 || !json.Valid(body) {
		return nil, domain.Reject(domain.RejectBadPayload, "body is not valid json", nil)
	}
	// jsonb refuses both of these, so they never reach the store.
	if !utf8.Valid(body) {
		return nil, domain.Reject(domain.RejectBadPayload, "body is not valid utf-8", nil)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, domain.Reject(domain.RejectBadPayload, "body is not valid json", err)
	}
	if containsNUL(doc) {
		return nil, domain.Reject(domain.RejectBadPayload, "body contains a NUL character", nil)
	}

	var payload domain.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.Reject(domain.RejectBadPayload, "id and event must be strings", err)
	}
	payload.ID = strings.TrimSpace(payload.ID)
	payload.Event = strings.TrimSpace(payload.Event)
	if err := s.validate.Struct(payload); err != nil {
		return nil, domain.Reject(domain.RejectBadPayload, "id and event are required", err)
	}
	return &payload, nil
}

func containsNUL(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.ContainsRune(t, 0)
	case []any:
		for _, item := range t {
			if containsNUL(item) {
				return true
			}
		}
	case map[string]any:
		for k, item := range t {
			if strings.ContainsRune(k, 0) || containsNUL(item) {
				return true
			}
		}
	}
	return false
}

// WithRequestContext tags ctx with the partner actor for downstream logs.
func WithRequestContext(ctx context.Context, requestID string) context.Context {
	ctx = obscontext.WithRequestID(ctx, requestID)
	return obscontext.WithActor(ctx, obscontext.ActorTypePartner, "webhook")
}
