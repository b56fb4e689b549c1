package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/keywords"
	"github.com/ramonehamilton/competitor-discovery/internal/ranking"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

type fakeSource struct {
	rows      map[string][]serp.Result
	fails     map[string]error
	lastDepth int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, keyword string, depth int) ([]serp.Result, error) {
	f.lastDepth = depth
	if err, ok := f.fails[keyword]; ok {
		return nil, err
	}
	return f.rows[keyword], nil
}

type failingStore struct{}

func (failingStore) CreateRun(ctx context.Context, run models.NewRun) (int64, error) {
	return 0, storage.ErrStorage
}

func shoeSource() *fakeSource {
	return &fakeSource{
		rows: map[string][]serp.Result{
			"nike shoes": {
				{Rank: 1, URL: "https://store.nike.com/a"},
				{Rank: 2, URL: "https://www.adidas.com/b"},
				{Rank: 3, URL: "https://www.google.com/aclk?sa=l&ai=x"},
			},
			"running shoes": {
				{Rank: 1, URL: "https://www.runnerspoint.com"},
				{Rank: 2, URL: "https://www.nike.com/running"},
				{Rank: 3, URL: "https://www.amazon.com/s?k=running"},
			},
		},
		fails: map[string]error{"trail shoes": errors.New("blocked")},
	}
}

func TestAnalyzer_RunSavesRun(t *testing.T) {
	store := storage.NewTestService(t)
	ctx := context.Background()

	a := NewAnalyzer(shoeSource(), store, Options{Exclude: domain.NewExcludeList(domain.DefaultExcluded...)})

	out, err := a.Run(ctx, Request{
		Keywords: []string{"Nike Shoes", "running shoes", "trail shoes", "nike shoes"},
		Depth:    20,
		Save:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), out.RunID)
	assert.Contains(t, out.FetchErrors, "trail shoes")
	assert.Equal(t, []string{"trail shoes"}, out.Report.EmptyKeywords)
	assert.Equal(t, 1, out.Report.DroppedRows)
	assert.Equal(t, 1, out.Report.ExcludedRows)

	top := out.Report.Scores[0]
	assert.Equal(t, "nike.com", top.Domain)
	assert.Equal(t, 2, top.Appearances)
	assert.Equal(t, 20+19, top.WeightedScore)

	run, err := store.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"nike shoes", "running shoes", "trail shoes"}, run.Keywords)
	assert.Equal(t, "fake", run.Engine)
	assert.Equal(t, 1, run.DroppedRows)
	assert.Equal(t, out.Report.Scores[0].Domain, run.DomainScores[0].Domain)

	stats := a.Metrics().Stats()
	assert.Equal(t, uint64(3), stats.Fetches)
	assert.Equal(t, uint64(1), stats.FetchErrors)
	assert.Equal(t, uint64(1), stats.Runs)
}

func TestAnalyzer_RunClampsDepth(t *testing.T) {
	src := shoeSource()
	a := NewAnalyzer(src, nil, Options{})

	out, err := a.Run(context.Background(), Request{Keywords: []string{"nike shoes"}, Depth: 50})
	require.NoError(t, err)

	assert.Equal(t, serp.MaxDepth, src.lastDepth)
	assert.Zero(t, out.RunID)
	assert.Equal(t, 20, out.Report.Scores[0].WeightedScore)
}

func TestAnalyzer_RunNoResults(t *testing.T) {
	src := &fakeSource{fails: map[string]error{"nike shoes": errors.New("captcha")}}
	a := NewAnalyzer(src, nil, Options{})

	_, err := a.Run(context.Background(), Request{Keywords: []string{"nike shoes"}})
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Equal(t, uint64(1), a.Metrics().Stats().FailedRuns)
}

func TestAnalyzer_RunRejectsEmptyKeywords(t *testing.T) {
	a := NewAnalyzer(shoeSource(), nil, Options{})

	_, err := a.Run(context.Background(), Request{Keywords: []string{" ", "x"}})
	assert.ErrorIs(t, err, keywords.ErrNoKeywords)
}

func TestAnalyzer_StorageFailureIsReturned(t *testing.T) {
	a := NewAnalyzer(shoeSource(), failingStore{}, Options{})

	_, err := a.Run(context.Background(), Request{Keywords: []string{"nike shoes"}, Save: true})
	assert.ErrorIs(t, err, storage.ErrStorage)
}

func TestAnalyzer_AggregateInlineResults(t *testing.T) {
	a := NewAnalyzer(nil, nil, Options{})

	out, err := a.Aggregate(context.Background(), Request{
		Keywords:       []string{"nike shoes", "running shoes"},
		Depth:          10,
		MinAppearances: 2,
	}, map[string][]serp.Result{
		"Nike Shoes":    {{Rank: 1, URL: "nike.com"}, {Rank: 2, URL: "adidas.com"}},
		"running shoes": {{Rank: 3, URL: "https://www.nike.com/run"}},
	})
	require.NoError(t, err)

	require.Len(t, out.Report.Scores, 1)
	assert.Equal(t, "nike.com", out.Report.Scores[0].Domain)
	assert.Equal(t, 10+8, out.Report.Scores[0].WeightedScore)
}

func TestAnalyzer_AggregateInvalidDepth(t *testing.T) {
	a := NewAnalyzer(nil, nil, Options{})

	_, err := a.Aggregate(context.Background(), Request{Keywords: []string{"nike shoes"}, Depth: -1}, nil)
	assert.ErrorIs(t, err, ranking.ErrInvalidDepth)
}

func TestAnalyzer_RunWithoutSource(t *testing.T) {
	a := NewAnalyzer(nil, nil, Options{})

	_, err := a.Run(context.Background(), Request{Keywords: []string{"nike shoes"}})
	assert.Error(t, err)
}
