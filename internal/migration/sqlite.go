package migration

import (
	"fmt"

	"gorm.io/gorm"
)

// SQLiteSchema mirrors the postgres migrations for local runs and tests.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS partner_accounts (
		id INTEGER PRIMARY KEY,
		external_account_id TEXT,
		wallet_id TEXT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		document TEXT NOT NULL,
		secret_token TEXT NOT NULL,
		account_status TEXT NOT NULL DEFAULT 'PENDING_SETUP',
		verification_status TEXT,
		status_bank TEXT,
		status_commercial TEXT,
		status_document TEXT,
		status_general TEXT,
		status_reason TEXT,
		encrypted_api_key TEXT,
		metadata TEXT,
		last_webhook_event TEXT,
		last_webhook_received_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_partner_accounts_secret_token ON partner_accounts(secret_token)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_partner_accounts_document ON partner_accounts(document)`,
	`CREATE TABLE IF NOT EXISTS partner_webhook_events (
		id INTEGER PRIMARY KEY,
		external_event_id TEXT NOT NULL,
		account_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		received_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		retry_count INTEGER NOT NULL DEFAULT 0,
		processed_at DATETIME,
		processing_error TEXT,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_partner_webhook_events_external_id ON partner_webhook_events(external_event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_partner_webhook_events_pending ON partner_webhook_events(received_at, id) WHERE status = 'PENDING'`,
	`CREATE TABLE IF NOT EXISTS operator_api_keys (
		id INTEGER PRIMARY KEY,
		key_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		last_used_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_operator_api_keys_key_id ON operator_api_keys(key_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_operator_api_keys_key_hash ON operator_api_keys(key_hash)`,
	`CREATE TABLE IF NOT EXISTS operator_audit_logs (
		id INTEGER PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		request_id TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_operator_audit_logs_target ON operator_audit_logs(target_type, target_id, created_at)`,
}

// ApplySQLite creates the schema idempotently.
func ApplySQLite(conn *gorm.DB) error {
	for _, stmt := range SQLiteSchema {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
