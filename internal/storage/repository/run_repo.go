package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000"

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunRepository handles database operations for analysis runs and their scores.
type RunRepository interface {
	// Create inserts a run header with the next free id and returns that id.
	// Scores must already be in ranking order.
	Create(ctx context.Context, run *models.NewRun, createdAt time.Time) (int64, error)

	// GetByID returns a run with its full score table, or nil when absent.
	GetByID(ctx context.Context, id int64) (*models.AnalysisRun, error)

	// List returns run summaries, newest first. limit <= 0 returns all runs.
	List(ctx context.Context, limit int) ([]*models.RunSummary, error)

	// Stats aggregates over every stored run.
	Stats(ctx context.Context) (*models.StoreStats, error)

	// Delete removes a run and its scores. It reports whether a run was removed.
	Delete(ctx context.Context, id int64) (bool, error)

	// DomainHistory returns the domain's result in each run that contains it,
	// newest first.
	DomainHistory(ctx context.Context, domain string, limit int) ([]*models.DomainHistoryEntry, error)
}

type runRepository struct {
	db Querier
}

// NewRunRepository creates a run repository over a connection or transaction.
func NewRunRepository(db Querier) RunRepository {
	return &runRepository{db: db}
}

// Create inserts the header, every score row and every keyword flag.
// The id is computed by the insert statement itself so it is assigned under
// the write lock of the enclosing transaction.
func (r *runRepository) Create(ctx context.Context, run *models.NewRun, createdAt time.Time) (int64, error) {
	keywords, err := json.Marshal(nonNil(run.Keywords))
	if err != nil {
		return 0, fmt.Errorf("encode keywords: %w", err)
	}

	top := ""
	if len(run.DomainScores) > 0 {
		top = run.DomainScores[0].Domain
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, created_at, keywords, depth, min_appearances, engine, notes,
			dropped_rows, total_competitors, top_competitor
		)
		SELECT COALESCE(MAX(id), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM analysis_runs
	`,
		createdAt.UTC().Format(timeLayout),
		string(keywords),
		run.Depth,
		run.MinAppearances,
		run.Engine,
		run.Notes,
		run.DroppedRows,
		len(run.DomainScores),
		top,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read run id: %w", err)
	}

	for i, score := range run.DomainScores {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO domain_scores (run_id, domain, appearances, weighted_score, rank_position)
			VALUES (?, ?, ?, ?, ?)
		`, id, score.Domain, score.Appearances, score.WeightedScore, i+1)
		if err != nil {
			return 0, fmt.Errorf("insert score for %s: %w", score.Domain, err)
		}

		for k, kw := range run.Keywords {
			_, err := r.db.ExecContext(ctx, `
				INSERT INTO keyword_flags (run_id, domain, keyword_index, keyword, flag)
				VALUES (?, ?, ?, ?, ?)
			`, id, score.Domain, k, kw, score.Flag(kw))
			if err != nil {
				return 0, fmt.Errorf("insert flag %q for %s: %w", kw, score.Domain, err)
			}
		}
	}

	return id, nil
}

// GetByID returns a run with its score table in stored rank order.
func (r *runRepository) GetByID(ctx context.Context, id int64) (*models.AnalysisRun, error) {
	run := &models.AnalysisRun{}
	var createdAt, keywords string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at, keywords, depth, min_appearances, engine, notes, dropped_rows
		FROM analysis_runs
		WHERE id = ?
	`, id).Scan(
		&run.ID,
		&createdAt,
		&keywords,
		&run.Depth,
		&run.MinAppearances,
		&run.Engine,
		&run.Notes,
		&run.DroppedRows,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if run.Keywords, err = decodeKeywords(keywords); err != nil {
		return nil, err
	}

	scores, err := r.scores(ctx, id, run.Keywords)
	if err != nil {
		return nil, err
	}
	run.DomainScores = scores

	return run, nil
}

func (r *runRepository) scores(ctx context.Context, runID int64, keywords []string) ([]models.DomainScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT domain, appearances, weighted_score
		FROM domain_scores
		WHERE run_id = ?
		ORDER BY rank_position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	scores := []models.DomainScore{}
	index := make(map[string]int)
	for rows.Next() {
		s := models.DomainScore{KeywordFlags: make(map[string]int, len(keywords))}
		if err := rows.Scan(&s.Domain, &s.Appearances, &s.WeightedScore); err != nil {
			return nil, err
		}
		for _, kw := range keywords {
			s.KeywordFlags[kw] = 0
		}
		index[s.Domain] = len(scores)
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	flagRows, err := r.db.QueryContext(ctx, `
		SELECT domain, keyword, flag
		FROM keyword_flags
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = flagRows.Close() }()

	for flagRows.Next() {
		var domain, keyword string
		var flag int
		if err := flagRows.Scan(&domain, &keyword, &flag); err != nil {
			return nil, err
		}
		if i, ok := index[domain]; ok {
			scores[i].KeywordFlags[keyword] = flag
		}
	}

	return scores, flagRows.Err()
}

// List returns run summaries ordered by id descending.
func (r *runRepository) List(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, keywords, engine, total_competitors, top_competitor
		FROM analysis_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summaries := []*models.RunSummary{}
	for rows.Next() {
		s := &models.RunSummary{}
		var createdAt, keywords string
		if err := rows.Scan(&s.ID, &createdAt, &keywords, &s.Engine, &s.TotalCompetitors, &s.TopCompetitor); err != nil {
			return nil, err
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if s.Keywords, err = decodeKeywords(keywords); err != nil {
			return nil, err
		}
		s.KeywordCount = len(s.Keywords)
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// Stats returns store-wide totals. The most frequent domain is the one present
// in the most runs; ties go to the higher total score, then the smaller name.
func (r *runRepository) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{}

	var latest sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(created_at) FROM analysis_runs
	`).Scan(&stats.TotalRuns, &latest)
	if err != nil {
		return nil, err
	}
	if latest.Valid {
		t, err := parseTime(latest.String)
		if err != nil {
			return nil, err
		}
		stats.LatestRun = &t
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT domain) FROM domain_scores
	`).Scan(&stats.TotalScoreRows, &stats.TotalUniqueDomains)
	if err != nil {
		return nil, err
	}

	var total int
	err = r.db.QueryRowContext(ctx, `
		SELECT domain, COUNT(*) AS runs, SUM(weighted_score) AS total
		FROM domain_scores
		GROUP BY domain
		ORDER BY runs DESC, total DESC, domain ASC
		LIMIT 1
	`).Scan(&stats.MostFrequentDomain, &stats.MostFrequentRuns, &total)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return stats, nil
}

// Delete removes a run; scores and flags follow through ON DELETE CASCADE.
// They are also deleted explicitly for connections without foreign keys.
func (r *runRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM keyword_flags WHERE run_id = ?`, id); err != nil {
		return false, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM domain_scores WHERE run_id = ?`, id); err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DomainHistory lists a domain's per-run results, newest run first.
func (r *runRepository) DomainHistory(ctx context.Context, domain string, limit int) ([]*models.DomainHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.keywords, d.appearances, d.weighted_score, d.rank_position
		FROM domain_scores d
		JOIN analysis_runs r ON r.id = d.run_id
		WHERE d.domain = ?
		ORDER BY r.id DESC
		LIMIT ?
	`, domain, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []*models.DomainHistoryEntry{}
	for rows.Next() {
		e := &models.DomainHistoryEntry{}
		var createdAt, keywords string
		if err := rows.Scan(&e.RunID, &createdAt, &keywords, &e.Appearances, &e.WeightedScore, &e.RankPosition); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.Keywords, err = decodeKeywords(keywords); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeKeywords(s string) ([]string, error) {
	var keywords []string
	if err := json.Unmarshal([]byte(s), &keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return nonNil(keywords), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
