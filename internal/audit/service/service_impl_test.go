package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	"github.com/smallbiznis/partnersync/internal/audit/repository"
	"github.com/smallbiznis/partnersync/internal/audit/service"
	"github.com/smallbiznis/partnersync/internal/clock"
	obscontext "github.com/smallbiznis/partnersync/internal/observability/context"
	"github.com/smallbiznis/partnersync/internal/testutil"
)

func newService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	return service.NewService(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	}), clk
}

func TestRecordTakesActorFromContext(t *testing.T) {
	svc, _ := newService(t)
	ctx := obscontext.WithActor(context.Background(), obscontext.ActorTypeOperator, "key_abc")
	ctx = obscontext.WithRequestID(ctx, "req-1")

	require.NoError(t, svc.Record(ctx, auditdomain.ActionEventRequeue, auditdomain.TargetEvent, "123", map[string]any{
		"api_key": "psk_abcdef123456",
	}))

	logs, err := svc.List(context.Background(), auditdomain.ListRequest{TargetID: "123"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, obscontext.ActorTypeOperator, logs[0].ActorType)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, "key_abc", *logs[0].ActorID)
	require.NotNil(t, logs[0].RequestID)
	assert.Equal(t, "req-1", *logs[0].RequestID)
	assert.Equal(t, "psk_****3456", logs[0].Metadata["api_key"])
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, _ := newService(t)

	require.NoError(t, svc.Record(context.Background(), auditdomain.ActionAPIKeyCreate, auditdomain.TargetAPIKey, "key_1", nil))

	logs, err := svc.List(context.Background(), auditdomain.ListRequest{Action: auditdomain.ActionAPIKeyCreate})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActorTypeSystem, logs[0].ActorType)
	assert.Nil(t, logs[0].ActorID)
}

func TestRecordRejectsBlankAction(t *testing.T) {
	svc, _ := newService(t)
	assert.ErrorIs(t, svc.Record(context.Background(), " ", auditdomain.TargetEvent, "1", nil), auditdomain.ErrInvalidAction)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	svc, clk := newService(t)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, svc.Record(context.Background(), auditdomain.ActionAccountSync, auditdomain.TargetAccount, id, nil))
		clk.Advance(time.Minute)
	}

	logs, err := svc.List(context.Background(), auditdomain.ListRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "3", *logs[0].TargetID)
	assert.Equal(t, "2", *logs[1].TargetID)

	_, err = svc.List(context.Background(), auditdomain.ListRequest{Limit: 1000})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidLimit)
}
