package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/credential/domain"
	credentialservice "github.com/smallbiznis/partnersync/internal/credential/service"
	"github.com/smallbiznis/partnersync/internal/credential/vault"
	"go.uber.org/zap"
)

func newService(t *testing.T, secret string) domain.Service {
	t.Helper()
	cfg := config.Config{Vault: config.VaultConfig{MasterSecret: secret}}
	v, err := credentialservice.ProvideVault(cfg)
	require.NoError(t, err)
	return credentialservice.NewService(credentialservice.Params{
		Cfg:   cfg,
		Log:   zap.NewNop(),
		Vault: v,
	})
}

func TestEncryptDecryptSecret(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, "master")

	blob, err := svc.EncryptSecret(ctx, "$aact_live_key")
	require.NoError(t, err)
	assert.NotContains(t, blob, "$aact_live_key")

	plaintext, err := svc.DecryptSecret(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "$aact_live_key", plaintext)
}

func TestWithSecretPassesPlaintext(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, "master")

	blob, err := svc.EncryptSecret(ctx, "k1")
	require.NoError(t, err)

	var seen string
	err = svc.WithSecret(ctx, blob, func(secret string) error {
		seen = secret
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "k1", seen)
}

func TestWithSecretBlocksCallOnCryptoError(t *testing.T) {
	ctx := context.Background()
	writer := newService(t, "master")
	reader := newService(t, "other-master")

	blob, err := writer.EncryptSecret(ctx, "k1")
	require.NoError(t, err)

	called := false
	err = reader.WithSecret(ctx, blob, func(string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, vault.ErrCrypto)
	assert.False(t, called, "callback must not run with undecryptable credentials")
}

func TestMissingMasterSecret(t *testing.T) {
	svc := newService(t, "")

	_, err := svc.EncryptSecret(context.Background(), "k1")
	assert.True(t, errors.Is(err, domain.ErrMasterSecretMissing))
	assert.True(t, errors.Is(err, vault.ErrCrypto))

	_, err = svc.DecryptSecret(context.Background(), "Zm9v")
	assert.ErrorIs(t, err, domain.ErrMasterSecretMissing)
}

func TestEmptyInputs(t *testing.T) {
	svc := newService(t, "master")

	_, err := svc.EncryptSecret(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptySecret)

	_, err = svc.DecryptSecret(context.Background(), "")
	assert.ErrorIs(t, err, vault.ErrCrypto)
}
