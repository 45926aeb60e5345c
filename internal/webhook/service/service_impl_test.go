package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/smallbiznis/partnersync/internal/account/domain"
	accountrepo "github.com/smallbiznis/partnersync/internal/account/repository"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/testutil"
	"github.com/smallbiznis/partnersync/internal/webhook/domain"
	"github.com/smallbiznis/partnersync/internal/webhook/service"
	eventdomain "github.com/smallbiznis/partnersync/internal/webhookevent/domain"
	eventrepo "github.com/smallbiznis/partnersync/internal/webhookevent/repository"
)

const validToken = "tok_1234567890abcdef"

func newService(t *testing.T, db *gorm.DB, accounts accountdomain.Repository, events eventdomain.Repository) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	if accounts == nil {
		accounts = accountrepo.Provide()
	}
	if events == nil {
		events = eventrepo.Provide()
	}
	return service.New(service.Params{
		Cfg:      config.Config{Webhook: config.WebhookConfig{TokenHeader: "asaas-access-token", MinTokenLength: 10}},
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Accounts: accounts,
		Events:   events,
		Clock:    clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)),
	})
}

func headers(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("asaas-access-token", token)
	}
	return h
}

func requireRejection(t *testing.T, err error, kind domain.RejectionKind) {
	t.Helper()
	var rejection *domain.Rejection
	require.True(t, errors.As(err, &rejection), "expected rejection, got %v", err)
	assert.Equal(t, kind, rejection.Kind)
}

func TestReceiveEnqueuesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: validToken})
	svc := newService(t, db, nil, nil)
	body := []byte(`{"id":"evt_1","event":"ACCOUNT_STATUS_DOCUMENT_APPROVED","account":{"id":"acc_1"}}`)

	first, err := svc.Receive(context.Background(), headers(validToken), body)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnqueued, first.Status)
	assert.NotEmpty(t, first.EventID)

	second, err := svc.Receive(context.Background(), headers(validToken), body)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDuplicate, second.Status)
	assert.Equal(t, first.EventID, second.EventID)

	testutil.AssertCount(t, db, 1, `SELECT COUNT(*) FROM partner_webhook_events WHERE external_event_id = ?`, "evt_1")
	testutil.AssertCount(t, db, 1, `SELECT COUNT(*) FROM partner_webhook_events WHERE account_id = 1 AND status = 'PENDING' AND retry_count = 0`)

	var stored string
	require.NoError(t, db.Raw(`SELECT payload FROM partner_webhook_events`).Scan(&stored).Error)
	assert.Equal(t, string(body), stored)
}

func TestReceiveConcurrentDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: validToken})
	svc := newService(t, db, nil, nil)
	body := []byte(`{"id":"evt_race","event":"ACCOUNT_APPROVED"}`)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enqueued int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Receive(context.Background(), headers(validToken), body)
			if err != nil {
				t.Errorf("receive: %v", err)
				return
			}
			if res.Status == domain.StatusEnqueued {
				mu.Lock()
				enqueued++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, enqueued)
	testutil.AssertCount(t, db, 1, `SELECT COUNT(*) FROM partner_webhook_events`)
}

func TestReceiveRejectsCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: validToken})
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 2, Token: "tok_cancelled_000", Status: "CANCELLED"})
	svc := newService(t, db, nil, nil)
	body := []byte(`{"id":"evt_1","event":"ACCOUNT_APPROVED"}`)

	_, err := svc.Receive(context.Background(), headers(""), body)
	requireRejection(t, err, domain.RejectUnauthenticated)

	_, err = svc.Receive(context.Background(), headers("short"), body)
	requireRejection(t, err, domain.RejectUnauthenticated)

	_, err = svc.Receive(context.Background(), headers("tok_unknown_12345"), body)
	requireRejection(t, err, domain.RejectUnauthenticated)

	_, err = svc.Receive(context.Background(), headers("tok_cancelled_000"), body)
	requireRejection(t, err, domain.RejectUnauthenticated)

	testutil.AssertCount(t, db, 0, `SELECT COUNT(*) FROM partner_webhook_events`)
}

func TestReceiveRejectsBadPayload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: validToken})
	svc := newService(t, db, nil, nil)

	bodies := []string{
		``,
		`not json`,
		`{"event":"ACCOUNT_APPROVED"}`,
		`{"id":"evt_1"}`,
		`{"id":"  ","event":"ACCOUNT_APPROVED"}`,
		`{"id":42,"event":"ACCOUNT_APPROVED"}`,
		`[1,2,3]`,
		`null`,
	}
	for _, body := range bodies {
		_, err := svc.Receive(context.Background(), headers(validToken), []byte(body))
		requireRejection(t, err, domain.RejectBadPayload)
	}
	testutil.AssertCount(t, db, 0, `SELECT COUNT(*) FROM partner_webhook_events`)
}

func TestReceiveRejectsUnstorableText(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: validToken})
	svc := newService(t, db, nil, nil)

	bodies := [][]byte{
		[]byte("{\"id\":\"evt_1\",\"event\":\"ACCOUNT_APPROVED\",\"description\":\"\xff\xfe\"}"),
		[]byte(`{"id":"evt_2","event":"ACCOUNT_APPROVED","description":"a\u0000b"}`),
		[]byte(`{"id":"evt_3","event":"ACCOUNT_APPROVED","account":{"notes":["ok","x\u0000"]}}`),
		[]byte(`{"id":"evt_4","event":"ACCOUNT_APPROVED","k\u0000":1}`),
	}
	for _, body := range bodies {
		_, err := svc.Receive(context.Background(), headers(validToken), body)
		requireRejection(t, err, domain.RejectBadPayload)
	}
	testutil.AssertCount(t, db, 0, `SELECT COUNT(*) FROM partner_webhook_events`)

	// An escaped backslash followed by u0000 is ordinary text.
	res, err := svc.Receive(context.Background(), headers(validToken), []byte(`{"id":"evt_5","event":"ACCOUNT_APPROVED","description":"a\\u0000b"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnqueued, res.Status)
}

type ambiguousAccounts struct {
	accountdomain.Repository
	err error
}

func (a ambiguousAccounts) FindBySecretToken(ctx context.Context, db *gorm.DB, token string) ([]accountdomain.Account, error) {
	if a.err != nil {
		return nil, a.err
	}
	return []accountdomain.Account{
		{ID: 1, AccountStatus: accountdomain.StatusActive},
		{ID: 2, AccountStatus: accountdomain.StatusActive},
	}, nil
}

func TestReceiveAmbiguousAndStorageFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	body := []byte(`{"id":"evt_1","event":"ACCOUNT_APPROVED"}`)

	svc := newService(t, db, ambiguousAccounts{}, nil)
	_, err := svc.Receive(context.Background(), headers(validToken), body)
	requireRejection(t, err, domain.RejectAmbiguousCredential)

	svc = newService(t, db, ambiguousAccounts{err: errors.New("connection refused")}, nil)
	_, err = svc.Receive(context.Background(), headers(validToken), body)
	requireRejection(t, err, domain.RejectStorageFailure)
}

type failingEvents struct {
	eventdomain.Repository
}

func (failingEvents) Enqueue(ctx context.Context, db *gorm.DB, event *eventdomain.Event) error {
	return errors.New("disk full")
}

func TestReceiveEnqueueFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: validToken})
	svc := newService(t, db, nil, failingEvents{})

	_, err := svc.Receive(context.Background(), headers(validToken), []byte(`{"id":"evt_1","event":"ACCOUNT_APPROVED"}`))
	requireRejection(t, err, domain.RejectStorageFailure)
	assert.ErrorContains(t, err, "STORAGE_FAILURE")
}
