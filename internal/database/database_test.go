package database

import (
	"path/filepath"
	"testing"

	"orgfolio/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := &config.Config{
		DBDriver: "postgres", DBHost: "db", DBPort: "5433", DBUser: "u",
		DBPassword: "p", DBName: "orgfolio", DBSSLMode: "require",
	}
	c := NewConfig(cfg)

	if got := c.DSN(); got != "host=db port=5433 user=u password=p dbname=orgfolio sslmode=require" {
		t.Errorf("unexpected DSN %q", got)
	}
	if got := c.MigrateURL(); got != "postgres://u:p@db:5433/orgfolio?sslmode=require" {
		t.Errorf("unexpected migrate URL %q", got)
	}
}

func TestManager_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orgfolio.db")
	m, err := NewManager(&Config{Driver: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer m.Close()

	if err := m.RunMigrations(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"portfolios", "positions", "price_history", "audit_logs"} {
		if !m.DB().Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestManager_UnsupportedDriver(t *testing.T) {
	if _, err := NewManager(&Config{Driver: "mysql"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
