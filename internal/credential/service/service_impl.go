package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/credential/domain"
	"github.com/smallbiznis/partnersync/internal/credential/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Vault *vault.Vault
}

type Service struct {
	log          *zap.Logger
	vault        *vault.Vault
	masterSecret string
}

func NewService(p Params) domain.Service {
	return &Service{
		log:          p.Log.Named("credential.service"),
		vault:        p.Vault,
		masterSecret: p.Cfg.Vault.MasterSecret,
	}
}

// ProvideVault builds the vault from the configured KDF parameters.
func ProvideVault(cfg config.Config) (*vault.Vault, error) {
	return vault.New(vault.Config{
		Salt:       cfg.Vault.KDFSalt,
		Iterations: cfg.Vault.KDFIterations,
	})
}

func (s *Service) EncryptSecret(ctx context.Context, plaintext string) (string, error) {
	if strings.TrimSpace(s.masterSecret) == "" {
		return "", domain.ErrMasterSecretMissing
	}
	if strings.TrimSpace(plaintext) == "" {
		return "", domain.ErrEmptySecret
	}
	blob, err := s.vault.Encrypt(plaintext, s.masterSecret)
	if err != nil {
		s.log.Error("credential.encrypt.failed", zap.Error(err))
		return "", err
	}
	return blob, nil
}

func (s *Service) DecryptSecret(ctx context.Context, blob string) (string, error) {
	if strings.TrimSpace(s.masterSecret) == "" {
		return "", domain.ErrMasterSecretMissing
	}
	if strings.TrimSpace(blob) == "" {
		return "", domain.ErrEmptyBlob
	}
	plaintext, err := s.vault.Decrypt(blob, s.masterSecret)
	if err != nil {
		s.log.Error("credential.decrypt.failed", zap.Error(err))
		return "", err
	}
	return plaintext, nil
}

// WithSecret decrypts blob and hands the plaintext to fn. Nothing is cached;
// fn is never invoked when decryption fails.
func (s *Service) WithSecret(ctx context.Context, blob string, fn func(secret string) error) error {
	secret, err := s.DecryptSecret(ctx, blob)
	if err != nil {
		return err
	}
	return fn(secret)
}
