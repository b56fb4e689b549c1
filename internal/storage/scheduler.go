package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/logger"
)

// SchedulerConfig configures periodic snapshots of the run store.
type SchedulerConfig struct {
	// Interval between snapshots.
	Interval time.Duration

	// Dir receives the snapshots. Empty uses the database's BackupDir.
	Dir string

	// Keep is how many snapshots to retain in Dir. 0 keeps all of them.
	Keep int

	// StartImmediately takes a snapshot as soon as the scheduler starts.
	StartImmediately bool

	// OnBackupComplete is called after each attempt, successful or not.
	OnBackupComplete func(backupPath string, err error)
}

// DefaultSchedulerConfig returns a daily schedule keeping a week of snapshots.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval: 24 * time.Hour,
		Keep:     7,
	}
}

// BackupScheduler snapshots a Service on a fixed interval until its context
// is cancelled.
type BackupScheduler struct {
	svc    *Service
	config *SchedulerConfig

	mu           sync.RWMutex
	running      bool
	lastBackup   time.Time
	lastPath     string
	lastError    error
	backupCount  int
	failureCount int
}

// NewBackupScheduler creates a scheduler for svc. A nil config uses
// DefaultSchedulerConfig.
func NewBackupScheduler(svc *Service, config *SchedulerConfig) *BackupScheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	return &BackupScheduler{svc: svc, config: config}
}

// Run blocks, taking a snapshot every Interval, until ctx is done.
func (s *BackupScheduler) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return fmt.Errorf("backup interval must be positive: %s", s.config.Interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log := logger.FromContext(ctx)
	log.Info("Backup scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("keep", s.config.Keep),
	)

	if s.config.StartImmediately {
		s.runBackup(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Backup scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runBackup(ctx)
		}
	}
}

// runBackup takes one snapshot, prunes old ones and updates the counters.
func (s *BackupScheduler) runBackup(ctx context.Context) {
	log := logger.FromContext(ctx)

	// Nanoseconds keep names unique when the interval is under a second.
	name := "runs_" + s.svc.now().Format("20060102_150405.000000000")
	path, err := s.svc.Backup(ctx, s.config.Dir, name)
	if err == nil && s.config.Keep > 0 {
		if pruneErr := s.prune(); pruneErr != nil {
			log.Warn("Failed to prune old backups", zap.Error(pruneErr))
		}
	}

	s.mu.Lock()
	s.lastBackup = s.svc.now()
	s.lastPath = path
	s.lastError = err
	if err != nil {
		s.failureCount++
	} else {
		s.backupCount++
	}
	s.mu.Unlock()

	if err != nil {
		log.Error("Scheduled backup failed", zap.Error(err))
	} else {
		log.Info("Scheduled backup created", zap.String("path", path))
	}

	if s.config.OnBackupComplete != nil {
		s.config.OnBackupComplete(path, err)
	}
}

// prune removes the oldest snapshots beyond Keep.
func (s *BackupScheduler) prune() error {
	dir := s.config.Dir
	if dir == "" {
		dir = s.svc.BackupDir()
	}

	backups, err := ListBackups(dir)
	if err != nil {
		return err
	}
	for _, b := range backups[min(s.config.Keep, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return fmt.Errorf("remove %s: %w", b.Name, err)
		}
	}
	return nil
}

// Status returns the current scheduler state.
func (s *BackupScheduler) Status() *SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next time.Time
	if s.running && !s.lastBackup.IsZero() {
		next = s.lastBackup.Add(s.config.Interval)
	}

	return &SchedulerStatus{
		Running:      s.running,
		Interval:     s.config.Interval,
		LastBackup:   s.lastBackup,
		LastPath:     s.lastPath,
		NextBackup:   next,
		BackupCount:  s.backupCount,
		FailureCount: s.failureCount,
		LastError:    s.lastError,
	}
}

// SchedulerStatus is a snapshot of the scheduler state.
type SchedulerStatus struct {
	Running      bool
	Interval     time.Duration
	LastBackup   time.Time
	LastPath     string
	NextBackup   time.Time
	BackupCount  int
	FailureCount int
	LastError    error
}

// String returns a human-readable representation of the status.
func (s *SchedulerStatus) String() string {
	if !s.Running {
		return "Backup scheduler: stopped"
	}

	status := "Backup scheduler: running\n"
	status += fmt.Sprintf("  Interval: %s\n", s.Interval)
	status += fmt.Sprintf("  Backups: %d (failures: %d)\n", s.BackupCount, s.FailureCount)
	if !s.LastBackup.IsZero() {
		status += fmt.Sprintf("  Last backup: %s (%s)\n", s.LastBackup.Format(time.RFC3339), s.LastPath)
	}
	if !s.NextBackup.IsZero() {
		status += fmt.Sprintf("  Next backup: %s\n", s.NextBackup.Format(time.RFC3339))
	}
	if s.LastError != nil {
		status += fmt.Sprintf("  Last error: %v\n", s.LastError)
	}
	return status
}
