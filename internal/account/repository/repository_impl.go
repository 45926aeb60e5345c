package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnersync/internal/account/domain"
	pkgdb "github.com/smallbiznis/partnersync/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const accountColumns = `id, external_account_id, wallet_id, name, email, document, secret_token,
	account_status, verification_status, status_bank, status_commercial, status_document,
	status_general, status_reason, encrypted_api_key, metadata, last_webhook_event,
	last_webhook_received_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO partner_accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.ExternalAccountID,
		account.WalletID,
		account.Name,
		account.Email,
		account.Document,
		account.SecretToken,
		account.AccountStatus,
		account.VerificationStatus,
		account.StatusBank,
		account.StatusCommercial,
		account.StatusDocument,
		account.StatusGeneral,
		account.StatusReason,
		account.EncryptedAPIKey,
		account.Metadata,
		account.LastWebhookEvent,
		account.LastWebhookReceivedAt,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
	if pkgdb.IsDuplicateKeyErr(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByDocument(ctx context.Context, db *gorm.DB, document string) (*domain.Account, error) {
	return r.findOne(ctx, db, `document = ?`, document)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Account, error) {
	var item domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+`
		 FROM partner_accounts
		 WHERE `+where+`
		 LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindBySecretToken(ctx context.Context, db *gorm.DB, token string) ([]domain.Account, error) {
	var items []domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+`
		 FROM partner_accounts
		 WHERE secret_token = ? AND account_status <> ?
		 ORDER BY id ASC
		 LIMIT 2`,
		token,
		domain.StatusCancelled,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ApplyPatch(ctx context.Context, db *gorm.DB, id snowflake.ID, patch domain.Patch, book domain.Bookkeeping) error {
	set := statusAssignments(patch)
	set.add("last_webhook_event", book.EventType)
	set.add("last_webhook_received_at", book.ReceivedAt)
	set.add("updated_at", book.UpdatedAt)
	return r.update(ctx, db, id, set)
}

func (r *repo) UpdateAreaStatuses(ctx context.Context, db *gorm.DB, id snowflake.ID, patch domain.Patch, at time.Time) error {
	set := statusAssignments(patch)
	set.add("updated_at", at)
	return r.update(ctx, db, id, set)
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSON, at time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE partner_accounts
		 SET account_status = ?, metadata = ?, updated_at = ?
		 WHERE id = ? AND account_status <> ?`,
		string(domain.StatusCancelled),
		metadata,
		at,
		id,
		string(domain.StatusCancelled),
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) update(ctx context.Context, db *gorm.DB, id snowflake.ID, set *assignments) error {
	args := append(set.args, id)
	res := db.WithContext(ctx).Exec(
		`UPDATE partner_accounts SET `+strings.Join(set.cols, ", ")+` WHERE id = ?`,
		args...,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type assignments struct {
	cols []string
	args []any
}

func (a *assignments) add(col string, value any) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, value)
}

func statusAssignments(patch domain.Patch) *assignments {
	set := &assignments{}
	if patch.AccountStatus != nil {
		set.add("account_status", string(*patch.AccountStatus))
	}
	if patch.VerificationStatus != nil {
		set.add("verification_status", *patch.VerificationStatus)
	}
	if patch.StatusBank != nil {
		set.add("status_bank", *patch.StatusBank)
	}
	if patch.StatusCommercial != nil {
		set.add("status_commercial", *patch.StatusCommercial)
	}
	if patch.StatusDocument != nil {
		set.add("status_document", *patch.StatusDocument)
	}
	if patch.StatusGeneral != nil {
		set.add("status_general", *patch.StatusGeneral)
	}
	switch {
	case patch.ClearReason:
		set.cols = append(set.cols, "status_reason = NULL")
	case patch.StatusReason != nil:
		set.add("status_reason", *patch.StatusReason)
	}
	return set
}
