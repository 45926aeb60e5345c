package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	credentialdomain "github.com/smallbiznis/partnersync/internal/credential/domain"
	"github.com/smallbiznis/partnersync/internal/credential/vault"
	"github.com/smallbiznis/partnersync/internal/observability/logger"
	"github.com/smallbiznis/partnersync/internal/partnerapi"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const secretTokenLength = 32

type Params struct {
	fx.In

	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Credentials credentialdomain.Service
	Partner     *partnerapi.Client
	Clock       clock.Clock
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	creds        credentialdomain.Service
	partner      *partnerapi.Client
	clock        clock.Clock
	validate     *validator.Validate
	webhookURL   string
	webhookEmail string
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("account.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		creds:        p.Credentials,
		partner:      p.Partner,
		clock:        p.Clock,
		validate:     validator.New(),
		webhookURL:   strings.TrimSpace(p.Cfg.Partner.WebhookURL),
		webhookEmail: strings.TrimSpace(p.Cfg.Partner.WebhookEmail),
	}
}

func (s *Service) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.Response, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	document, err := normalizeDocument(req.Document)
	if err != nil {
		return nil, err
	}
	if s.webhookURL == "" {
		return nil, domain.ErrCallbackNotConfigured
	}

	existing, err := s.repo.FindByDocument(ctx, s.db, document)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	token, err := vault.GenerateSecureToken(secretTokenLength)
	if err != nil {
		return nil, err
	}

	email := s.webhookEmail
	if email == "" {
		email = strings.TrimSpace(req.Email)
	}
	hook := partnerapi.NewAccountWebhook(s.webhookURL, email, token)
	remote, err := s.partner.CreateAccount(ctx, buildCreateAccountRequest(req, document, hook))
	if err != nil {
		s.log.Warn("account.provision.partner_failed", zap.Error(err))
		return nil, err
	}

	var encryptedKey *string
	if strings.TrimSpace(remote.APIKey) != "" {
		blob, err := s.creds.EncryptSecret(ctx, remote.APIKey)
		if err != nil {
			return nil, err
		}
		encryptedKey = &blob
	} else {
		s.log.Warn("account.provision.api_key_missing", zap.String("external_account_id", remote.ID))
	}

	metadata, err := buildMetadata(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:                s.genID.Generate(),
		ExternalAccountID: optional(remote.ID),
		WalletID:          optional(remote.WalletID),
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		Document:          document,
		SecretToken:       token,
		AccountStatus:     domain.StatusPendingSetup,
		EncryptedAPIKey:   encryptedKey,
		Metadata:          metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, s.db, &account); err != nil {
		s.log.Error("account.provision.insert_failed",
			zap.String("external_account_id", remote.ID),
			zap.Error(err),
		)
		return nil, err
	}

	logger.WithAccount(s.log, account.ID.String()).Info("account.provisioned",
		zap.String("external_account_id", remote.ID),
		zap.String("token_prefix", logger.TokenPrefix(token)),
	)
	return domain.ToResponse(&account), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.ToResponse(account), nil
}

func (s *Service) SyncStatus(ctx context.Context, id string) (*domain.Response, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.EncryptedAPIKey == nil || strings.TrimSpace(*account.EncryptedAPIKey) == "" {
		return nil, domain.ErrMissingAPIKey
	}

	var remote *partnerapi.AccountStatus
	err = s.partner.WithAccountKey(ctx, *account.EncryptedAPIKey, func(api *partnerapi.AccountAPI) error {
		var callErr error
		remote, callErr = api.GetMyAccountStatus(ctx)
		return callErr
	})
	if err != nil {
		s.log.Warn("account.sync.failed", zap.String("account_id", account.ID.String()), zap.Error(err))
		return nil, err
	}

	patch := domain.Patch{
		StatusBank:       optional(remote.BankAccountInfo),
		StatusCommercial: optional(remote.CommercialInfo),
		StatusDocument:   optional(remote.Documentation),
		StatusGeneral:    optional(remote.General),
	}
	if patch.Empty() {
		return domain.ToResponse(account), nil
	}
	if err := s.repo.UpdateAreaStatuses(ctx, s.db, account.ID, patch, s.clock.Now()); err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, account.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	return domain.ToResponse(updated), nil
}

func (s *Service) Cancel(ctx context.Context, id string, req domain.CancelRequest) (*domain.Response, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.AccountStatus == domain.StatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}
	if account.EncryptedAPIKey == nil || strings.TrimSpace(*account.EncryptedAPIKey) == "" {
		return nil, domain.ErrMissingAPIKey
	}

	log := logger.WithAccount(s.log, account.ID.String())
	var remote map[string]any
	err = s.partner.WithAccountKey(ctx, *account.EncryptedAPIKey, func(api *partnerapi.AccountAPI) error {
		var callErr error
		remote, callErr = api.DeleteMyAccount(ctx, req.Reason)
		return callErr
	})
	if err != nil {
		log.Warn("account.cancel.partner_failed", zap.Error(err))
		return nil, err
	}

	now := s.clock.Now()
	metadata, err := cancelMetadata(account.Metadata, req.Reason, now, remote)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkCancelled(ctx, s.db, account.ID, metadata, now); err != nil {
		// The partner side is already closed; a retry hits the partner again.
		log.Error("account.cancel.store_failed", zap.Error(err))
		return nil, err
	}

	account.AccountStatus = domain.StatusCancelled
	account.Metadata = metadata
	account.UpdatedAt = now
	log.Info("account.cancelled", zap.String("reason", req.Reason))
	return domain.ToResponse(account), nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Account, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return nil, domain.ErrInvalidID
	}
	account, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func buildMetadata(req domain.ProvisionRequest) (datatypes.JSON, error) {
	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["slug"] = slug.Make(req.Name)
	meta["person_type"] = string(req.PersonType)
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func cancelMetadata(existing datatypes.JSON, reason string, at time.Time, remote map[string]any) (datatypes.JSON, error) {
	meta := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &meta); err != nil || meta == nil {
			meta = map[string]any{}
		}
	}
	meta["deleted_at"] = at.UTC().Format(time.RFC3339)
	meta["delete_reason"] = reason
	if len(remote) > 0 {
		meta["partner_response"] = remote
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
