package storage

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("test.db")

	if config.Path != "test.db" {
		t.Errorf("expected path 'test.db', got '%s'", config.Path)
	}
	if config.MaxOpenConns != 10 {
		t.Errorf("expected MaxOpenConns 10, got %d", config.MaxOpenConns)
	}
	if config.BusyTimeout != 5*time.Second {
		t.Errorf("expected BusyTimeout 5s, got %v", config.BusyTimeout)
	}
	if config.JournalMode != "WAL" {
		t.Errorf("expected JournalMode 'WAL', got '%s'", config.JournalMode)
	}
	if config.Synchronous != "NORMAL" {
		t.Errorf("expected Synchronous 'NORMAL', got '%s'", config.Synchronous)
	}
}

func TestConfigDSN(t *testing.T) {
	dsn := DefaultConfig("/tmp/runs.db").dsn()

	path, rawQuery, ok := strings.Cut(dsn, "?")
	if !ok || path != "/tmp/runs.db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("dsn query does not parse: %v", err)
	}

	pragmas := strings.Join(query["_pragma"], ",")
	for _, want := range []string{"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)", "foreign_keys(1)"} {
		if !strings.Contains(pragmas, want) {
			t.Errorf("expected pragma %s in %q", want, pragmas)
		}
	}
	if query.Get("_txlock") != "immediate" {
		t.Errorf("expected immediate transactions, got %q", query.Get("_txlock"))
	}
}

func TestOpen(t *testing.T) {
	db, err := Open(DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Errorf("failed to ping database: %v", err)
	}
	if db.Conn() == nil {
		t.Error("expected non-nil connection")
	}
}

func TestOpenWithNilConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("expected error when opening with nil config")
	}
}

func TestOpen_AutoMigrate(t *testing.T) {
	config := DefaultConfig(filepath.Join(t.TempDir(), "nested", "runs.db"))
	config.AutoMigrate = true

	db, err := Open(config)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"analysis_runs", "domain_scores", "keyword_flags"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after auto-migrate: %v", table, err)
		}
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	svc := NewTestService(t)

	var enabled int
	if err := svc.db.Conn().QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("failed to read pragma: %v", err)
	}
	if enabled != 1 {
		t.Errorf("expected foreign keys on, got %d", enabled)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("failed to close database: %v", err)
	}
	if err := db.Ping(); err == nil {
		t.Error("expected error when pinging closed database")
	}
}
