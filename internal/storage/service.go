package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/repository"
)

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrStorage wraps every persistence failure.
	ErrStorage = errors.New("storage error")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Service is the run store: it persists analysis runs and answers queries
// over them. Runs are written atomically; a failed CreateRun leaves no rows.
type Service struct {
	db   *DB
	runs repository.RunRepository
	now  func() time.Time
}

// NewService creates a run store over an open database.
func NewService(db *DB) *Service {
	return &Service{
		db:   db,
		runs: repository.NewRunRepository(db.Conn()),
		now:  time.Now,
	}
}

// CreateRun persists a run and returns its id, one more than the largest
// existing id. Scores are stored in canonical ranking order regardless of
// the order given, and repeated keywords are stored once in first-seen order.
// Duplicate domains fail the whole run with ErrStorage.
func (s *Service) CreateRun(ctx context.Context, run models.NewRun) (int64, error) {
	if run.Depth <= 0 {
		return 0, storageErr("create run", fmt.Errorf("depth must be positive, got %d", run.Depth))
	}
	run.Keywords = uniqueKeywords(run.Keywords)

	scores := make([]models.DomainScore, len(run.DomainScores))
	copy(scores, run.DomainScores)
	models.SortDomainScores(scores)
	run.DomainScores = scores

	var id int64
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = repository.NewRunRepository(tx).Create(ctx, &run, s.now())
		return err
	})
	if err != nil {
		return 0, storageErr("create run", err)
	}

	return id, nil
}

func uniqueKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// GetRun returns the run with the given id or ErrNotFound.
func (s *Service) GetRun(ctx context.Context, id int64) (*models.AnalysisRun, error) {
	run, found, err := s.FindRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return run, nil
}

// FindRun looks up a run and reports whether it exists.
func (s *Service) FindRun(ctx context.Context, id int64) (*models.AnalysisRun, bool, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, false, storageErr("get run", err)
	}
	return run, run != nil, nil
}

// ListRuns returns up to limit run summaries, most recent first.
// limit <= 0 lists every run.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, storageErr("list runs", err)
	}
	return runs, nil
}

// Stats summarises the store.
func (s *Service) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats, err := s.runs.Stats(ctx)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	return stats, nil
}

// DeleteRun removes a run and all of its scores, or returns ErrNotFound.
func (s *Service) DeleteRun(ctx context.Context, id int64) error {
	var deleted bool
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = repository.NewRunRepository(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return storageErr("delete run", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// DomainHistory returns how a domain ranked across stored runs, newest first.
func (s *Service) DomainHistory(ctx context.Context, domain string, limit int) ([]*models.DomainHistoryEntry, error) {
	entries, err := s.runs.DomainHistory(ctx, domain, limit)
	if err != nil {
		return nil, storageErr("domain history", err)
	}
	return entries, nil
}

// Ping checks that the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.Conn().PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Service) Close() error {
	return s.db.Close()
}

// DatabasePath returns the SQLite file backing the store.
func (s *Service) DatabasePath() string {
	return s.db.Path()
}

// BackupDir returns the default snapshot directory.
func (s *Service) BackupDir() string {
	return s.db.BackupDir()
}
