package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewBackupScheduler_Defaults(t *testing.T) {
	scheduler := NewBackupScheduler(nil, nil)

	if scheduler.config.Interval != 24*time.Hour {
		t.Errorf("Expected default interval 24h, got %v", scheduler.config.Interval)
	}
	if scheduler.config.Keep != 7 {
		t.Errorf("Expected default keep 7, got %d", scheduler.config.Keep)
	}
	if scheduler.Status().Running {
		t.Error("New scheduler should not be running")
	}
}

func TestBackupScheduler_RunAndPrune(t *testing.T) {
	svc := NewTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := svc.CreateRun(ctx, sampleRun()); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	dir := t.TempDir()
	done := make(chan error, 10)
	scheduler := NewBackupScheduler(svc, &SchedulerConfig{
		Interval:         20 * time.Millisecond,
		Dir:              dir,
		Keep:             2,
		StartImmediately: true,
		OnBackupComplete: func(_ string, err error) { done <- err },
	})

	runErr := make(chan error, 1)
	go func() { runErr <- scheduler.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Backup %d failed: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for backup %d", i)
		}
	}

	status := scheduler.Status()
	if !status.Running {
		t.Error("Scheduler should report running")
	}
	if status.BackupCount < 3 {
		t.Errorf("Expected at least 3 backups, got %d", status.BackupCount)
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if scheduler.Status().Running {
		t.Error("Scheduler should stop with its context")
	}

	backups, err := ListBackups(dir)
	if err != nil {
		t.Fatalf("Failed to list backups: %v", err)
	}
	if len(backups) > 2 {
		t.Errorf("Expected at most 2 backups after pruning, got %d", len(backups))
	}
}

func TestBackupScheduler_RejectsInvalidInterval(t *testing.T) {
	scheduler := NewBackupScheduler(nil, &SchedulerConfig{})
	if err := scheduler.Run(context.Background()); err == nil {
		t.Error("Expected error for zero interval")
	}
}

func TestBackupScheduler_FailureIsCounted(t *testing.T) {
	db, err := Open(DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	scheduler := NewBackupScheduler(NewService(db), &SchedulerConfig{Interval: time.Hour})
	scheduler.runBackup(context.Background())

	status := scheduler.Status()
	if status.FailureCount != 1 || status.BackupCount != 0 {
		t.Errorf("Expected one failure, got %d failures and %d backups", status.FailureCount, status.BackupCount)
	}
	if status.LastError == nil {
		t.Error("Expected last error to be recorded")
	}
}

func TestSchedulerStatus_String(t *testing.T) {
	stopped := &SchedulerStatus{}
	if stopped.String() != "Backup scheduler: stopped" {
		t.Errorf("Unexpected stopped status: %q", stopped.String())
	}

	running := &SchedulerStatus{
		Running:     true,
		Interval:    time.Hour,
		BackupCount: 2,
		LastError:   errors.New("disk full"),
	}
	s := running.String()
	for _, want := range []string{"running", "Interval: 1h0m0s", "Backups: 2", "disk full"} {
		if !strings.Contains(s, want) {
			t.Errorf("Status %q missing %q", s, want)
		}
	}
}
