package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

func setupRunTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE analysis_runs (
			id INTEGER PRIMARY KEY,
			created_at TEXT NOT NULL,
			keywords TEXT NOT NULL,
			depth INTEGER NOT NULL,
			min_appearances INTEGER NOT NULL DEFAULT 1,
			engine TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			dropped_rows INTEGER NOT NULL DEFAULT 0,
			total_competitors INTEGER NOT NULL DEFAULT 0,
			top_competitor TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE domain_scores (
			run_id INTEGER NOT NULL,
			domain TEXT NOT NULL,
			appearances INTEGER NOT NULL,
			weighted_score INTEGER NOT NULL,
			rank_position INTEGER NOT NULL,
			PRIMARY KEY (run_id, domain)
		);

		CREATE TABLE keyword_flags (
			run_id INTEGER NOT NULL,
			domain TEXT NOT NULL,
			keyword_index INTEGER NOT NULL,
			keyword TEXT NOT NULL,
			flag INTEGER NOT NULL,
			PRIMARY KEY (run_id, domain, keyword_index)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRun() *models.NewRun {
	return &models.NewRun{
		Keywords: []string{"nike shoes", "trail shoes"},
		Depth:    10,
		Engine:   "google",
		Notes:    "weekly check",
		DomainScores: []models.DomainScore{
			{Domain: "nike.com", Appearances: 2, WeightedScore: 18, KeywordFlags: map[string]int{"nike shoes": 1, "trail shoes": 1}},
			{Domain: "salomon.com", Appearances: 1, WeightedScore: 10, KeywordFlags: map[string]int{"trail shoes": 1}},
		},
	}
}

func TestRunRepository_CreateAndGet(t *testing.T) {
	db := setupRunTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 8, 0, 0, 123000, time.UTC)

	id, err := repo.Create(ctx, testRun(), created)
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected first run id 1, got %d", id)
	}

	run, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run == nil {
		t.Fatal("Expected run, got nil")
	}

	if !run.CreatedAt.Equal(created) {
		t.Errorf("Expected created_at %v, got %v", created, run.CreatedAt)
	}
	if run.Notes != "weekly check" {
		t.Errorf("Expected notes to round-trip, got %q", run.Notes)
	}
	if len(run.DomainScores) != 2 || run.DomainScores[0].Domain != "nike.com" {
		t.Fatalf("Unexpected scores: %+v", run.DomainScores)
	}
	if got := run.DomainScores[1].KeywordFlags; got["nike shoes"] != 0 || got["trail shoes"] != 1 {
		t.Errorf("Unexpected flags for salomon.com: %v", got)
	}
}

func TestRunRepository_GetMissing(t *testing.T) {
	repo := NewRunRepository(setupRunTestDB(t))

	run, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("Expected nil run, got %+v", run)
	}
}

func TestRunRepository_IDsFollowMax(t *testing.T) {
	db := setupRunTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	// A gap left by a deleted run is not reused below the maximum.
	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, testRun(), time.Now()); err != nil {
			t.Fatalf("Failed to create run: %v", err)
		}
	}
	if ok, err := repo.Delete(ctx, 2); err != nil || !ok {
		t.Fatalf("Failed to delete run 2: ok=%v err=%v", ok, err)
	}

	id, err := repo.Create(ctx, testRun(), time.Now())
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if id != 4 {
		t.Errorf("Expected id 4, got %d", id)
	}
}

func TestRunRepository_DeleteMissing(t *testing.T) {
	repo := NewRunRepository(setupRunTestDB(t))

	ok, err := repo.Delete(context.Background(), 99)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected no run to be deleted")
	}
}

func TestRunRepository_WorksInsideTransaction(t *testing.T) {
	db := setupRunTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	if _, err := NewRunRepository(tx).Create(ctx, testRun(), time.Now()); err != nil {
		t.Fatalf("Failed to create in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Failed to roll back: %v", err)
	}

	runs, err := NewRunRepository(db).List(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected rollback to discard the run, got %d runs", len(runs))
	}
}
