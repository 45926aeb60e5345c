package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/partnersync/internal/credential/vault"
)

// Service protects partner API keys at rest and releases them only for the
// duration of a single outbound call.
type Service interface {
	EncryptSecret(ctx context.Context, plaintext string) (string, error)
	DecryptSecret(ctx context.Context, blob string) (string, error)
	WithSecret(ctx context.Context, blob string, fn func(secret string) error) error
}

var (
	ErrMasterSecretMissing = fmt.Errorf("%w: master_secret_missing", vault.ErrCrypto)
	ErrEmptySecret         = errors.New("empty_secret")
	ErrEmptyBlob           = fmt.Errorf("%w: empty_blob", vault.ErrCrypto)
)
