package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/partnersync/internal/account"
	accountdomain "github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/apikey"
	apikeydomain "github.com/smallbiznis/partnersync/internal/apikey/domain"
	"github.com/smallbiznis/partnersync/internal/audit"
	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	"github.com/smallbiznis/partnersync/internal/authorization"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/credential"
	"github.com/smallbiznis/partnersync/internal/eventprocessor"
	eventservice "github.com/smallbiznis/partnersync/internal/eventprocessor/service"
	"github.com/smallbiznis/partnersync/internal/observability"
	obslogger "github.com/smallbiznis/partnersync/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/partnersync/internal/observability/metrics"
	obstracing "github.com/smallbiznis/partnersync/internal/observability/tracing"
	"github.com/smallbiznis/partnersync/internal/partnerapi"
	"github.com/smallbiznis/partnersync/internal/ratelimit"
	"github.com/smallbiznis/partnersync/internal/webhook"
	webhookdomain "github.com/smallbiznis/partnersync/internal/webhook/domain"
	"github.com/smallbiznis/partnersync/internal/webhookevent"
	eventdomain "github.com/smallbiznis/partnersync/internal/webhookevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	apikey.Module,
	audit.Module,
	credential.Module,
	partnerapi.Module,
	account.Module,
	webhookevent.Module,
	webhook.Module,
	eventprocessor.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http.server.start", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http.server.failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	webhookSvc  webhookdomain.Service
	runner      *eventservice.Runner
	eventSvc    eventdomain.Service
	accountSvc  accountdomain.Service
	apiKeySvc   apikeydomain.Service
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	maxBodySize int64
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	WebhookSvc webhookdomain.Service
	Runner     *eventservice.Runner
	EventSvc   eventdomain.Service
	AccountSvc accountdomain.Service
	APIKeySvc  apikeydomain.Service
	AuthzSvc   authorization.Service
	AuditSvc   auditdomain.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	maxBody := p.Cfg.Webhook.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		webhookSvc:  p.WebhookSvc,
		runner:      p.Runner,
		eventSvc:    p.EventSvc,
		accountSvc:  p.AccountSvc,
		apiKeySvc:   p.APIKeySvc,
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		maxBodySize: maxBody,
	}

	svc.registerWebhookRoutes()
	svc.registerInternalRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/partner", s.ReceivePartnerWebhook)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal")
	internal.Use(s.OperatorAuthRequired())

	// -------- Events --------
	internal.POST("/events/process", s.authorize(authorization.ObjectEvents, authorization.ActionEventsProcess), s.ProcessEvents)
	internal.GET("/events", s.authorize(authorization.ObjectEvents, authorization.ActionEventsView), s.ListEvents)
	internal.POST("/events/:id/requeue", s.authorize(authorization.ObjectEvents, authorization.ActionEventsRequeue), s.RequeueEvent)

	// -------- Accounts --------
	internal.POST("/accounts", s.authorize(authorization.ObjectAccounts, authorization.ActionAccountsProvision), s.ProvisionAccount)
	internal.GET("/accounts/:id", s.authorize(authorization.ObjectAccounts, authorization.ActionAccountsView), s.GetAccount)
	internal.POST("/accounts/:id/sync", s.authorize(authorization.ObjectAccounts, authorization.ActionAccountsSync), s.SyncAccount)
	internal.POST("/accounts/:id/cancel", s.authorize(authorization.ObjectAccounts, authorization.ActionAccountsCancel), s.CancelAccount)

	// -------- Audit --------
	internal.GET("/audit_logs", s.authorize(authorization.ObjectAudit, authorization.ActionAuditView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
