package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/partnersync/internal/apikey/domain"
	"github.com/smallbiznis/partnersync/internal/apikey/repository"
	"github.com/smallbiznis/partnersync/internal/apikey/service"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (apikeydomain.Service, *clock.FakeClock) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fake,
	}), fake
}

func TestCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, fake := newService(t)

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "ops", Role: "Operator"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret.APIKey, "psk_"))
	assert.Equal(t, "operator", secret.Role)

	fake.Advance(time.Minute)
	key, err := svc.Authenticate(ctx, secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, secret.KeyID, key.KeyID)
	require.NotNil(t, key.LastUsedAt)
	assert.True(t, key.LastUsedAt.Equal(fake.Now()))
	assert.Equal(t, "operator_key:"+secret.KeyID, key.Subject())

	listed, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "ops", listed[0].Name)
}

func TestAuthenticateRejectsUnknownAndRevoked(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Authenticate(ctx, "psk_unknown_deadbeef")
	assert.True(t, errors.Is(err, apikeydomain.ErrInvalidKey))

	_, err = svc.Authenticate(ctx, "not-a-key")
	assert.True(t, errors.Is(err, apikeydomain.ErrInvalidKey))

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "temp", Role: "viewer"})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, secret.KeyID))

	_, err = svc.Authenticate(ctx, secret.APIKey)
	assert.True(t, errors.Is(err, apikeydomain.ErrInvalidKey))

	assert.True(t, errors.Is(svc.Revoke(ctx, "key_MISSING"), apikeydomain.ErrNotFound))
}

func TestCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: " ", Role: "admin"})
	assert.True(t, errors.Is(err, apikeydomain.ErrInvalidName))

	_, err = svc.Create(ctx, apikeydomain.CreateRequest{Name: "x", Role: "superuser"})
	assert.True(t, errors.Is(err, apikeydomain.ErrInvalidRole))
}

func TestMatchesHash(t *testing.T) {
	hash := apikeydomain.HashAPIKey("psk_abc")
	assert.True(t, apikeydomain.MatchesHash("psk_abc", hash))
	assert.False(t, apikeydomain.MatchesHash("psk_abd", hash))
}
