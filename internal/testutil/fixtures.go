package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
)

// AccountSeed is the minimal set of columns needed to authenticate a webhook.
type AccountSeed struct {
	ID              int64
	Token           string
	Status          string
	Document        string
	EncryptedAPIKey *string
}

// SeedAccount inserts a partner account row directly.
func SeedAccount(t testing.TB, db *gorm.DB, seed AccountSeed) {
	t.Helper()

	if seed.Status == "" {
		seed.Status = "ACTIVE"
	}
	if seed.Document == "" {
		seed.Document = fmt.Sprintf("%011d", seed.ID)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := db.Exec(
		`INSERT INTO partner_accounts (id, name, email, document, secret_token, account_status,
			encrypted_api_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.ID,
		fmt.Sprintf("Merchant %d", seed.ID),
		fmt.Sprintf("merchant%d@example.com", seed.ID),
		seed.Document,
		seed.Token,
		seed.Status,
		seed.EncryptedAPIKey,
		now,
		now,
	).Error
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}
