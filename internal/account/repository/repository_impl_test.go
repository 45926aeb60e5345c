package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/testutil"
	"gorm.io/datatypes"
)

func strPtr(v string) *string { return &v }

func TestFindBySecretTokenSkipsCancelled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := Provide()
	ctx := context.Background()

	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: "tok_active_0001"})
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 2, Token: "tok_cancel_0002", Status: "CANCELLED"})

	items, err := repo.FindBySecretToken(ctx, db, "tok_active_0001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("expected account 1, got %+v", items)
	}

	items, err = repo.FindBySecretToken(ctx, db, "tok_cancel_0002")
	if err != nil {
		t.Fatalf("find cancelled: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("cancelled account must not authenticate, got %d", len(items))
	}
}

func TestFindByIDMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item, err := Provide().FindByID(context.Background(), db, snowflake.ID(42))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil, got %+v", item)
	}
}

func TestInsertDuplicateDocument(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first := domain.Account{
		ID: 10, Name: "A", Email: "a@example.com", Document: "12345678901",
		SecretToken: "tok_first_00001", AccountStatus: domain.StatusPendingSetup,
		Metadata: []byte(`{"slug":"a"}`), CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Insert(ctx, db, &first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := first
	second.ID = 11
	second.SecretToken = "tok_second_0001"
	if err := repo.Insert(ctx, db, &second); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	found, err := repo.FindByDocument(ctx, db, "12345678901")
	if err != nil || found == nil {
		t.Fatalf("find by document: %v %v", found, err)
	}
	if string(found.Metadata) != `{"slug":"a"}` {
		t.Fatalf("unexpected metadata %s", found.Metadata)
	}
}

func TestApplyPatchWritesBookkeeping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := Provide()
	ctx := context.Background()
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: "tok_active_0001"})

	received := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rejected := "REJECTED"
	err := repo.ApplyPatch(ctx, db, 1, domain.Patch{
		StatusDocument: &rejected,
		StatusReason:   strPtr("blurry photo"),
	}, domain.Bookkeeping{EventType: "ACCOUNT_STATUS_DOCUMENT_REJECTED", ReceivedAt: received, UpdatedAt: received})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	item, err := repo.FindByID(ctx, db, 1)
	if err != nil || item == nil {
		t.Fatalf("find: %v", err)
	}
	if item.StatusDocument == nil || *item.StatusDocument != "REJECTED" {
		t.Fatalf("expected status_document REJECTED, got %v", item.StatusDocument)
	}
	if item.StatusReason == nil || *item.StatusReason != "blurry photo" {
		t.Fatalf("expected reason, got %v", item.StatusReason)
	}
	if item.LastWebhookEvent == nil || *item.LastWebhookEvent != "ACCOUNT_STATUS_DOCUMENT_REJECTED" {
		t.Fatalf("expected last_webhook_event, got %v", item.LastWebhookEvent)
	}
	if item.LastWebhookReceivedAt == nil || !item.LastWebhookReceivedAt.Equal(received) {
		t.Fatalf("expected last_webhook_received_at %s, got %v", received, item.LastWebhookReceivedAt)
	}

	approved := "APPROVED"
	err = repo.ApplyPatch(ctx, db, 1, domain.Patch{StatusDocument: &approved, ClearReason: true},
		domain.Bookkeeping{EventType: "ACCOUNT_STATUS_DOCUMENT_APPROVED", ReceivedAt: received, UpdatedAt: received})
	if err != nil {
		t.Fatalf("apply clear: %v", err)
	}
	testutil.AssertCount(t, db, 1, `SELECT COUNT(*) FROM partner_accounts WHERE id = 1 AND status_reason IS NULL`)
}

func TestApplyEmptyPatchStillTouchesBookkeeping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := Provide()
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 1, Token: "tok_active_0001"})

	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := repo.ApplyPatch(context.Background(), db, 1, domain.Patch{},
		domain.Bookkeeping{EventType: "SOMETHING_NEW", ReceivedAt: at, UpdatedAt: at}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	testutil.AssertCount(t, db, 1, `SELECT COUNT(*) FROM partner_accounts WHERE last_webhook_event = ?`, "SOMETHING_NEW")
}

func TestApplyPatchMissingAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	at := time.Now().UTC()
	err := Provide().ApplyPatch(context.Background(), db, 99, domain.Patch{},
		domain.Bookkeeping{EventType: "X", ReceivedAt: at, UpdatedAt: at})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkCancelledOnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := Provide()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	testutil.SeedAccount(t, db, testutil.AccountSeed{ID: 3, Token: "tok_mark_00003"})

	if err := repo.MarkCancelled(ctx, db, 3, datatypes.JSON(`{"delete_reason":"closed"}`), at); err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}
	testutil.AssertCount(t, db, 1, `SELECT COUNT(*) FROM partner_accounts WHERE id = 3 AND account_status = 'CANCELLED'`)

	err := repo.MarkCancelled(ctx, db, 3, datatypes.JSON(`{}`), at)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second cancel, got %v", err)
	}
}
