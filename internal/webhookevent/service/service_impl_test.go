package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/testutil"
	"github.com/smallbiznis/partnersync/internal/webhookevent/domain"
	"github.com/smallbiznis/partnersync/internal/webhookevent/repository"
	"github.com/smallbiznis/partnersync/internal/webhookevent/service"
)

func setup(t *testing.T) (domain.Service, domain.Repository, *clock.FakeClock) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: "tok_1234567890"})
	repo := repository.Provide()
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	now := clk.Now()
	for i, ext := range []string{"evt_a", "evt_b"} {
		require.NoError(t, repo.Enqueue(context.Background(), db, &domain.Event{
			ID:              snowflake.ID(100 + i),
			ExternalEventID: ext,
			AccountID:       1,
			EventType:       "ACCOUNT_APPROVED",
			Payload:         []byte(`{"id":"` + ext + `","event":"ACCOUNT_APPROVED"}`),
			ReceivedAt:      now.Add(time.Duration(i) * time.Second),
			Status:          domain.StatusPending,
			UpdatedAt:       now,
		}))
	}
	require.NoError(t, repo.MarkError(context.Background(), db, 100, "account not found", now))

	svc := service.New(service.Params{
		Cfg:   config.Config{},
		DB:    db,
		Log:   zap.NewNop(),
		Repo:  repo,
		Clock: clk,
	})
	return svc, repo, clk
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _, _ := setup(t)

	all, err := svc.List(context.Background(), domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "evt_b", all[0].ExternalEventID)

	failed, err := svc.List(context.Background(), domain.ListRequest{Status: "error"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "100", failed[0].ID)

	_, err = svc.List(context.Background(), domain.ListRequest{Status: "LOST"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.List(context.Background(), domain.ListRequest{AccountID: "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestRequeueResetsErrorEvent(t *testing.T) {
	svc, _, clk := setup(t)
	clk.Advance(time.Hour)

	resp, err := svc.Requeue(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, resp.Status)
	assert.Equal(t, 0, resp.RetryCount)
	assert.Nil(t, resp.ProcessingError)

	_, err = svc.Requeue(context.Background(), "101")
	assert.ErrorIs(t, err, domain.ErrNotRequeuable)

	_, err = svc.Requeue(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Requeue(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
