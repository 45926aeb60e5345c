package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/partnersync/internal/apikey/domain"
	"github.com/smallbiznis/partnersync/internal/authorization"
	"github.com/smallbiznis/partnersync/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix      = "psk_"
	apiKeySecretBytes = 32
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  apikeydomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  apikeydomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !authorization.IsKnownRole(role) {
		return nil, apikeydomain.ErrInvalidRole
	}

	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := generateAPIKey(keyID)
	if err != nil {
		return nil, err
	}

	key := &apikeydomain.OperatorKey{
		ID:        id,
		KeyID:     keyID,
		Name:      name,
		Role:      role,
		KeyHash:   hash,
		IsActive:  true,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.log.Info("apikey.created", zap.String("key_id", keyID), zap.String("role", role))
	return &apikeydomain.SecretResponse{KeyID: keyID, Role: role, APIKey: plain}, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return apikeydomain.ErrInvalidKeyID
	}

	key, err := s.repo.FindByKeyID(ctx, s.db, trimmed)
	if err != nil {
		return err
	}
	if key == nil {
		return apikeydomain.ErrNotFound
	}
	if err := s.repo.Deactivate(ctx, s.db, key.ID); err != nil {
		return err
	}

	s.log.Info("apikey.revoked", zap.String("key_id", key.KeyID))
	return nil
}

func (s *Service) Authenticate(ctx context.Context, raw string) (*apikeydomain.OperatorKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, apiKeyPrefix) {
		return nil, apikeydomain.ErrInvalidKey
	}

	key, err := s.repo.FindByHash(ctx, s.db, apikeydomain.HashAPIKey(raw))
	if err != nil {
		return nil, err
	}
	if key == nil || !key.IsActive || !apikeydomain.MatchesHash(raw, key.KeyHash) {
		return nil, apikeydomain.ErrInvalidKey
	}

	now := s.clock.Now()
	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, now); err != nil {
		s.log.Warn("apikey.touch_failed", zap.String("key_id", key.KeyID), zap.Error(err))
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

func toResponse(key *apikeydomain.OperatorKey) apikeydomain.Response {
	return apikeydomain.Response{
		KeyID:      key.KeyID,
		Name:       key.Name,
		Role:       key.Role,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
}

func generateAPIKey(keyID string) (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	secretPart := hex.EncodeToString(secret)
	trimmed := strings.TrimPrefix(keyID, "key_")
	plain := fmt.Sprintf("%s%s_%s", apiKeyPrefix, strings.ToLower(trimmed), secretPart)
	return plain, apikeydomain.HashAPIKey(plain), nil
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}
