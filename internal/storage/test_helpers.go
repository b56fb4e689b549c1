package storage

import (
	"path/filepath"
	"testing"
	"time"
)

// NewTestService opens a migrated run store in a temporary directory and
// closes it when the test ends. It is exported for tests in other packages.
func NewTestService(t testing.TB) *Service {
	t.Helper()

	cfg := DefaultConfig(filepath.Join(t.TempDir(), "runs.db"))
	cfg.AutoMigrate = true

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open test run store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewService(db)
}

// NewTestServiceAt is NewTestService with a frozen clock, so CreatedAt values
// are predictable.
func NewTestServiceAt(t testing.TB, now time.Time) *Service {
	t.Helper()

	svc := NewTestService(t)
	svc.now = func() time.Time { return now }
	return svc
}
