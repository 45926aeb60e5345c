package repository

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnersync/internal/webhookevent/domain"
	pkgdb "github.com/smallbiznis/partnersync/pkg/db"
	"gorm.io/gorm"
)

const eventColumns = `id, external_event_id, account_id, event_type, payload, received_at,
	status, retry_count, processed_at, processing_error, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Enqueue(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	query := `INSERT INTO partner_webhook_events (
			id, external_event_id, account_id, event_type, payload, received_at,
			status, retry_count, processed_at, processing_error, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if db.Dialector.Name() != "mysql" {
		query += ` ON CONFLICT (external_event_id) DO NOTHING`
	}

	res := db.WithContext(ctx).Exec(query,
		event.ID,
		event.ExternalEventID,
		event.AccountID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
		event.Status,
		event.RetryCount,
		event.ProcessedAt,
		event.ProcessingError,
		event.UpdatedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return domain.ErrDuplicateEvent
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDuplicateEvent
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Event, error) {
	var item domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM partner_webhook_events
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalEventID string) (*domain.Event, error) {
	var item domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM partner_webhook_events
		 WHERE external_event_id = ?
		 LIMIT 1`,
		externalEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, limit int, maxRetry int) ([]domain.Event, error) {
	var items []domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM partner_webhook_events
		 WHERE status = ? AND retry_count < ?
		 ORDER BY received_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending,
		maxRetry,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Event, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.AccountID != 0 {
		clauses = append(clauses, "account_id = ?")
		args = append(args, filter.AccountID)
	}

	query := `SELECT ` + eventColumns + ` FROM partner_webhook_events`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY received_at DESC, id DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)

	var items []domain.Event
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE partner_webhook_events
		 SET status = ?, processed_at = ?, processing_error = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusProcessed,
		processedAt,
		processedAt,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, maxRetry int, at time.Time) (domain.Status, int, error) {
	// status is assigned before retry_count so every dialect reads the old count.
	res := db.WithContext(ctx).Exec(
		`UPDATE partner_webhook_events
		 SET status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END,
		     retry_count = retry_count + 1,
		     processing_error = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		maxRetry,
		domain.StatusError,
		domain.StatusPending,
		truncate(reason, domain.MaxErrorLength),
		at,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return "", 0, res.Error
	}
	if res.RowsAffected == 0 {
		return "", 0, domain.ErrNotFound
	}

	var row struct {
		Status     domain.Status `gorm:"column:status"`
		RetryCount int           `gorm:"column:retry_count"`
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT status, retry_count FROM partner_webhook_events WHERE id = ?`,
		id,
	).Scan(&row).Error; err != nil {
		return "", 0, err
	}
	return row.Status, row.RetryCount, nil
}

func (r *repo) MarkError(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE partner_webhook_events
		 SET status = ?, processing_error = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusError,
		truncate(reason, domain.MaxErrorLength),
		at,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Requeue(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE partner_webhook_events
		 SET status = ?, retry_count = 0, processing_error = NULL, processed_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusPending,
		at,
		id,
		domain.StatusError,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func truncate(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max])
}
