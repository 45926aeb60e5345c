package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/account/repository"
	"github.com/smallbiznis/partnersync/internal/account/service"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	credentialdomain "github.com/smallbiznis/partnersync/internal/credential/domain"
	credentialservice "github.com/smallbiznis/partnersync/internal/credential/service"
	"github.com/smallbiznis/partnersync/internal/partnerapi"
	"github.com/smallbiznis/partnersync/internal/testutil"
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	creds credentialdomain.Service
}

func newFixture(t *testing.T, partnerURL string) fixture {
	t.Helper()
	cfg := config.Config{
		Partner: config.PartnerConfig{
			APIURL:       partnerURL,
			APIKey:       "master_key",
			WebhookURL:   "https://partnersync.example.com/webhooks/partner",
			WebhookEmail: "ops@example.com",
		},
		Vault: config.VaultConfig{MasterSecret: "master-secret"},
	}
	db := testutil.SetupTestDB(t)
	v, err := credentialservice.ProvideVault(cfg)
	require.NoError(t, err)
	creds := credentialservice.NewService(credentialservice.Params{Cfg: cfg, Log: zap.NewNop(), Vault: v})
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	svc := service.New(service.Params{
		Cfg:         cfg,
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		Credentials: creds,
		Partner:     partnerapi.New(partnerapi.Params{Cfg: cfg, Log: zap.NewNop(), Credentials: creds}),
		Clock:       clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)),
	})
	return fixture{svc: svc, db: db, creds: creds}
}

func provisionRequest() domain.ProvisionRequest {
	return domain.ProvisionRequest{
		PersonType:  domain.PersonOrganization,
		Name:        "Padaria Central",
		Email:       "contato@padaria.example.com",
		Document:    "12.345.678/0001-99",
		CompanyType: "LTDA",
		IncomeCents: 500000,
		Metadata:    map[string]any{"source": "backoffice"},
	}
}

func TestProvisionStoresEncryptedKey(t *testing.T) {
	var sentToken string
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body partnerapi.CreateAccountRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Webhooks, 1)
		sentToken = body.Webhooks[0].AuthToken
		assert.Equal(t, "12345678000199", body.CpfCnpj)
		assert.Equal(t, "LIMITED", body.CompanyType)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "acc_9", "walletId": "wal_9", "apiKey": "$aact_sub_9"})
	}))
	defer partner.Close()

	f := newFixture(t, partner.URL)
	resp, err := f.svc.Provision(context.Background(), provisionRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingSetup, resp.AccountStatus)
	assert.Equal(t, "acc_9", resp.ExternalAccountID)
	assert.True(t, resp.HasAPIKey)

	var stored struct {
		SecretToken     string
		EncryptedAPIKey string
		Metadata        string
	}
	require.NoError(t, f.db.Raw(`SELECT secret_token, encrypted_api_key, metadata FROM partner_accounts`).Scan(&stored).Error)
	assert.Len(t, stored.SecretToken, 32)
	assert.Equal(t, sentToken, stored.SecretToken)
	assert.NotContains(t, stored.EncryptedAPIKey, "$aact_sub_9")
	assert.Contains(t, stored.Metadata, `"slug":"padaria-central"`)

	plain, err := f.creds.DecryptSecret(context.Background(), stored.EncryptedAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "$aact_sub_9", plain)
}

func TestProvisionRejectsDuplicateDocument(t *testing.T) {
	calls := 0
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "acc_1", "apiKey": "$aact_1"})
	}))
	defer partner.Close()

	f := newFixture(t, partner.URL)
	_, err := f.svc.Provision(context.Background(), provisionRequest())
	require.NoError(t, err)

	_, err = f.svc.Provision(context.Background(), provisionRequest())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, 1, calls)
}

func TestProvisionValidation(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")

	req := provisionRequest()
	req.Email = "not-an-email"
	_, err := f.svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	req = provisionRequest()
	req.Document = "123"
	_, err = f.svc.Provision(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
}

func TestProvisionPartnerFailure(t *testing.T) {
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer partner.Close()

	f := newFixture(t, partner.URL)
	_, err := f.svc.Provision(context.Background(), provisionRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, partnerapi.ErrPartnerRequest))
	testutil.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM partner_accounts`)
}

func TestGetAndSyncStatus(t *testing.T) {
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/myAccount/status", r.URL.Path)
		assert.Equal(t, "$aact_sub", r.Header.Get("access_token"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"commercialInfo": "APPROVED", "bankAccountInfo": "PENDING",
			"documentation": "AWAITING_APPROVAL", "general": "PENDING",
		})
	}))
	defer partner.Close()

	f := newFixture(t, partner.URL)
	blob, err := f.creds.EncryptSecret(context.Background(), "$aact_sub")
	require.NoError(t, err)
	testutil.SeedAccount(t, f.db, testutil.AccountSeed{ID: 77, Token: "tok_seeded_0077", EncryptedAPIKey: &blob})

	got, err := f.svc.Get(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "77", got.ID)
	assert.True(t, got.HasAPIKey)

	synced, err := f.svc.SyncStatus(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", synced.StatusCommercial)
	assert.Equal(t, "PENDING", synced.StatusBank)
	assert.Equal(t, "AWAITING_APPROVAL", synced.StatusDocument)
	assert.Empty(t, synced.LastWebhookEvent)
}

func TestGetErrors(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")

	_, err := f.svc.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.Get(context.Background(), "123")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	testutil.SeedAccount(t, f.db, testutil.AccountSeed{ID: 5, Token: "tok_nokey_00005"})
	_, err = f.svc.SyncStatus(context.Background(), "5")
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)
}

func TestCancelClosesPartnerAccountAndStopsWebhooks(t *testing.T) {
	var got partnerapi.DeleteAccountRequest
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/myAccount/", r.URL.Path)
		assert.Equal(t, "$aact_sub", r.Header.Get("access_token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"deleted": true})
	}))
	defer partner.Close()

	f := newFixture(t, partner.URL)
	blob, err := f.creds.EncryptSecret(context.Background(), "$aact_sub")
	require.NoError(t, err)
	testutil.SeedAccount(t, f.db, testutil.AccountSeed{ID: 88, Token: "tok_cancel_00088", EncryptedAPIKey: &blob})

	res, err := f.svc.Cancel(context.Background(), "88", domain.CancelRequest{Reason: "store closed"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, res.AccountStatus)
	assert.Equal(t, "store closed", got.RemoveReason)

	testutil.AssertCount(t, f.db, 1, `SELECT COUNT(*) FROM partner_accounts WHERE id = 88 AND account_status = 'CANCELLED'`)
	var raw string
	require.NoError(t, f.db.Raw(`SELECT metadata FROM partner_accounts WHERE id = 88`).Scan(&raw).Error)
	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	assert.Equal(t, "store closed", meta["delete_reason"])
	assert.Equal(t, "2026-04-01T09:00:00Z", meta["deleted_at"])
	assert.Equal(t, map[string]any{"deleted": true}, meta["partner_response"])

	items, err := repository.Provide().FindBySecretToken(context.Background(), f.db, "tok_cancel_00088")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.svc.Cancel(context.Background(), "88", domain.CancelRequest{Reason: "again"})
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
}

func TestCancelErrors(t *testing.T) {
	calls := 0
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_action"}]}`))
	}))
	defer partner.Close()

	f := newFixture(t, partner.URL)
	blob, err := f.creds.EncryptSecret(context.Background(), "$aact_sub")
	require.NoError(t, err)
	testutil.SeedAccount(t, f.db, testutil.AccountSeed{ID: 10, Token: "tok_cancel_00010", EncryptedAPIKey: &blob})
	testutil.SeedAccount(t, f.db, testutil.AccountSeed{ID: 11, Token: "tok_cancel_00011"})

	_, err = f.svc.Cancel(context.Background(), "10", domain.CancelRequest{Reason: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.svc.Cancel(context.Background(), "11", domain.CancelRequest{Reason: "closing"})
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)

	_, err = f.svc.Cancel(context.Background(), "404", domain.CancelRequest{Reason: "closing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, calls)

	_, err = f.svc.Cancel(context.Background(), "10", domain.CancelRequest{Reason: "closing"})
	assert.ErrorIs(t, err, partnerapi.ErrPartnerRequest)
	assert.Equal(t, 1, calls)
	testutil.AssertCount(t, f.db, 1, `SELECT COUNT(*) FROM partner_accounts WHERE id = 10 AND account_status = 'ACTIVE'`)
}
