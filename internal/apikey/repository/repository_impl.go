package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/partnersync/internal/apikey/domain"
	"gorm.io/gorm"
)

const keyColumns = `id, key_id, name, role, key_hash, is_active, created_at, last_used_at`

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.OperatorKey) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO operator_api_keys (id, key_id, name, role, key_hash, is_active, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.KeyID,
		key.Name,
		key.Role,
		key.KeyHash,
		key.IsActive,
		key.CreatedAt,
		key.LastUsedAt,
	).Error
}

func (r *repo) FindByHash(ctx context.Context, db *gorm.DB, hash string) (*apikeydomain.OperatorKey, error) {
	return r.findOne(ctx, db, `key_hash = ?`, hash)
}

func (r *repo) FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*apikeydomain.OperatorKey, error) {
	return r.findOne(ctx, db, `key_id = ?`, keyID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*apikeydomain.OperatorKey, error) {
	var key apikeydomain.OperatorKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+keyColumns+` FROM operator_api_keys WHERE `+where+` LIMIT 1`,
		arg,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]apikeydomain.OperatorKey, error) {
	var keys []apikeydomain.OperatorKey
	err := db.WithContext(ctx).Raw(
		`SELECT ` + keyColumns + ` FROM operator_api_keys ORDER BY created_at DESC, id DESC`,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE operator_api_keys SET is_active = ? WHERE id = ?`,
		false,
		id,
	).Error
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE operator_api_keys SET last_used_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}
