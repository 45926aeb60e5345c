package migration

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for version := range ups {
		if !downs[version] {
			t.Fatalf("migration %s has no down file", version)
		}
	}
}

func TestPendingIndexIsPartial(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/0002_partner_webhook_events.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(body), "WHERE status = 'PENDING'") {
		t.Fatal("pending index must be partial on status")
	}
}

func TestApplySQLiteIsIdempotent(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migration_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := Apply(conn, "sqlite"); err != nil {
			t.Fatalf("apply run %d: %v", i+1, err)
		}
	}

	var tables int64
	if err := conn.Raw(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('partner_accounts', 'partner_webhook_events', 'operator_api_keys', 'operator_audit_logs')`).Scan(&tables).Error; err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if tables != 4 {
		t.Fatalf("expected 4 tables, got %d", tables)
	}
}

func TestApplyRejectsUnknownDialect(t *testing.T) {
	if err := Apply(nil, "mysql"); !errors.Is(err, ErrUnsupportedDialect) {
		t.Fatalf("expected unsupported dialect, got %v", err)
	}
}
