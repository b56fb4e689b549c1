package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

func sampleRun() models.NewRun {
	keywords := []string{"nike shoes", "running shoes"}
	return models.NewRun{
		Keywords:       keywords,
		Depth:          20,
		MinAppearances: 1,
		Engine:         "google",
		DroppedRows:    1,
		// Deliberately out of ranking order.
		DomainScores: []models.DomainScore{
			{Domain: "adidas.com", Appearances: 1, WeightedScore: 19, KeywordFlags: map[string]int{"nike shoes": 1}},
			{Domain: "asics.com", Appearances: 2, WeightedScore: 19, KeywordFlags: map[string]int{"nike shoes": 1, "running shoes": 1}},
			{Domain: "nike.com", Appearances: 2, WeightedScore: 38, KeywordFlags: map[string]int{"nike shoes": 1, "running shoes": 1}},
		},
	}
}

func TestService_CreateRunAssignsSequentialIDs(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := svc.CreateRun(ctx, sampleRun())
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestService_RoundTripResortsScores(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	svc := NewTestServiceAt(t, fixed)
	ctx := context.Background()

	input := sampleRun()
	id, err := svc.CreateRun(ctx, input)
	require.NoError(t, err)

	run, err := svc.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, run.ID)
	assert.Equal(t, fixed, run.CreatedAt)
	assert.Equal(t, input.Keywords, run.Keywords)
	assert.Equal(t, 20, run.Depth)
	assert.Equal(t, 1, run.DroppedRows)
	assert.Equal(t, "google", run.Engine)

	want := make([]models.DomainScore, len(input.DomainScores))
	copy(want, input.DomainScores)
	models.SortDomainScores(want)
	require.Len(t, run.DomainScores, 3)
	for i := range want {
		assert.Equal(t, want[i].Domain, run.DomainScores[i].Domain)
		assert.Equal(t, want[i].Appearances, run.DomainScores[i].Appearances)
		assert.Equal(t, want[i].WeightedScore, run.DomainScores[i].WeightedScore)
	}

	// Flags come back for every keyword, zero where absent.
	assert.Equal(t, []string{"nike.com", "asics.com", "adidas.com"}, []string{
		run.DomainScores[0].Domain, run.DomainScores[1].Domain, run.DomainScores[2].Domain,
	})
	assert.Equal(t, map[string]int{"nike shoes": 1, "running shoes": 0}, run.DomainScores[2].KeywordFlags)

	// The caller's slice is left untouched.
	assert.Equal(t, "adidas.com", input.DomainScores[0].Domain)
}

func TestService_CreateRunStoresKeywordsOnce(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	input := sampleRun()
	input.Keywords = []string{"nike shoes", "running shoes", "nike shoes"}
	id, err := svc.CreateRun(ctx, input)
	require.NoError(t, err)

	run, err := svc.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"nike shoes", "running shoes"}, run.Keywords)
	assert.Len(t, run.DomainScores[0].KeywordFlags, 2)
	assert.Len(t, input.Keywords, 3, "caller's slice is left untouched")
}

func TestService_CreateRunDuplicateDomainIsAtomic(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRun(ctx, sampleRun())
	require.NoError(t, err)

	bad := sampleRun()
	bad.DomainScores = append(bad.DomainScores, models.DomainScore{Domain: "nike.com", Appearances: 1, WeightedScore: 1})

	_, err = svc.CreateRun(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	runs, err := svc.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "failed run must not leave a header")

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalScoreRows, "failed run must not leave score rows")

	// The next successful run takes the id the failed one would have had.
	id, err := svc.CreateRun(ctx, sampleRun())
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestService_CreateRunRejectsInvalidDepth(t *testing.T) {
	svc := NewTestService(t)

	run := sampleRun()
	run.Depth = 0
	_, err := svc.CreateRun(context.Background(), run)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestService_ConcurrentCreateRunUniqueIDs(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	const writers = 8
	ids := make(chan int64, writers)
	errs := make(chan error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.CreateRun(ctx, sampleRun())
			if err != nil {
				errs <- err
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Errorf("concurrent CreateRun failed: %v", err)
	}

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate run id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)
	for id := int64(1); id <= writers; id++ {
		assert.True(t, seen[id], "missing run id %d", id)
	}
}

func TestService_GetRunNotFound(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	_, err := svc.GetRun(ctx, 42)
	assert.True(t, errors.Is(err, ErrNotFound))

	run, found, err := svc.FindRun(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, run)
}

func TestService_ListRunsNewestFirst(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := sampleRun()
		run.Keywords = run.Keywords[:1+i%2]
		_, err := svc.CreateRun(ctx, run)
		require.NoError(t, err)
	}

	runs, err := svc.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(3), runs[0].ID)
	assert.Equal(t, int64(2), runs[1].ID)
	assert.Equal(t, 1, runs[0].KeywordCount)
	assert.Equal(t, 2, runs[1].KeywordCount)
	assert.Equal(t, "nike.com", runs[0].TopCompetitor)
	assert.Equal(t, 3, runs[0].TotalCompetitors)

	all, err := svc.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestService_StatsEmptyStore(t *testing.T) {
	svc := NewTestService(t)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRuns)
	assert.Equal(t, 0, stats.TotalUniqueDomains)
	assert.Empty(t, stats.MostFrequentDomain)
	assert.Nil(t, stats.LatestRun)
}

func TestService_Stats(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRun(ctx, sampleRun())
	require.NoError(t, err)

	// asics.com and nike.com appear in two runs; nike.com has the larger total.
	second := models.NewRun{
		Keywords: []string{"trail shoes"},
		Depth:    10,
		DomainScores: []models.DomainScore{
			{Domain: "salomon.com", Appearances: 1, WeightedScore: 10},
			{Domain: "asics.com", Appearances: 1, WeightedScore: 9},
			{Domain: "nike.com", Appearances: 1, WeightedScore: 1},
		},
	}
	_, err = svc.CreateRun(ctx, second)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 4, stats.TotalUniqueDomains)
	assert.Equal(t, 6, stats.TotalScoreRows)
	assert.Equal(t, "nike.com", stats.MostFrequentDomain)
	assert.Equal(t, 2, stats.MostFrequentRuns)
	require.NotNil(t, stats.LatestRun)
}

func TestService_DeleteRun(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	id, err := svc.CreateRun(ctx, sampleRun())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRun(ctx, id))
	assert.ErrorIs(t, svc.DeleteRun(ctx, id), ErrNotFound)

	_, err = svc.GetRun(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	var flags int
	require.NoError(t, svc.db.Conn().QueryRow("SELECT COUNT(*) FROM keyword_flags").Scan(&flags))
	assert.Zero(t, flags)
}

func TestService_DomainHistory(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateRun(ctx, sampleRun())
		require.NoError(t, err)
	}

	history, err := svc.DomainHistory(ctx, "asics.com", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].RunID)
	assert.Equal(t, 2, history[0].RankPosition)
	assert.Equal(t, 19, history[0].WeightedScore)
	assert.Equal(t, []string{"nike shoes", "running shoes"}, history[0].Keywords)

	none, err := svc.DomainHistory(ctx, "unknown.com", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestService_ClosedDatabaseWrapsStorageError(t *testing.T) {
	svc := NewTestService(t)
	require.NoError(t, svc.Close())

	_, err := svc.CreateRun(context.Background(), sampleRun())
	assert.ErrorIs(t, err, ErrStorage)

	_, err = svc.ListRuns(context.Background(), 10)
	assert.ErrorIs(t, err, ErrStorage)

	assert.ErrorIs(t, svc.Ping(context.Background()), ErrStorage)
}
