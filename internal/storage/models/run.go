package models

import (
	"sort"
	"time"
)

// DomainScore is one ranked row of an analysis: a root domain with its keyword
// coverage and position-weighted score.
type DomainScore struct {
	Domain string `json:"domain"`

	// Appearances is the number of distinct keywords the domain ranked for.
	Appearances int `json:"appearances"`

	// WeightedScore sums (depth + 1 - rank) over every result row of the domain.
	WeightedScore int `json:"weighted_score"`

	// KeywordFlags maps keyword -> 1 when the domain ranked for it, 0 otherwise.
	KeywordFlags map[string]int `json:"keyword_flags"`
}

// Flag returns the presence flag for keyword (0 when unset).
func (d DomainScore) Flag(keyword string) int {
	return d.KeywordFlags[keyword]
}

// LessDomainScore reports whether a ranks before b: weighted score descending,
// then appearances descending, then domain ascending.
func LessDomainScore(a, b DomainScore) bool {
	if a.WeightedScore != b.WeightedScore {
		return a.WeightedScore > b.WeightedScore
	}
	if a.Appearances != b.Appearances {
		return a.Appearances > b.Appearances
	}
	return a.Domain < b.Domain
}

// SortDomainScores sorts scores in place into canonical ranking order.
func SortDomainScores(scores []DomainScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return LessDomainScore(scores[i], scores[j])
	})
}

// NewRun holds everything needed to persist one analysis run.
type NewRun struct {
	Keywords       []string
	Depth          int
	MinAppearances int
	Engine         string
	Notes          string
	DroppedRows    int
	DomainScores   []DomainScore
}

// AnalysisRun is a persisted analysis with its ranked domain table.
type AnalysisRun struct {
	ID             int64         `json:"run_id"`
	CreatedAt      time.Time     `json:"timestamp"`
	Keywords       []string      `json:"keywords"`
	Depth          int           `json:"depth"`
	MinAppearances int           `json:"min_appearances"`
	Engine         string        `json:"engine"`
	Notes          string        `json:"notes,omitempty"`
	DroppedRows    int           `json:"dropped_rows"`
	DomainScores   []DomainScore `json:"domain_scores"`
}

// RunSummary is the list view of an analysis run.
type RunSummary struct {
	ID               int64     `json:"run_id" csv:"run_id"`
	CreatedAt        time.Time `json:"timestamp" csv:"timestamp"`
	KeywordCount     int       `json:"keyword_count" csv:"keyword_count"`
	Keywords         []string  `json:"keywords" csv:"keywords"`
	Engine           string    `json:"engine" csv:"engine"`
	TotalCompetitors int       `json:"total_competitors" csv:"total_competitors"`
	TopCompetitor    string    `json:"top_competitor,omitempty" csv:"top_competitor"`
}

// StoreStats summarises everything the run store holds.
type StoreStats struct {
	TotalRuns          int        `json:"total_runs"`
	TotalUniqueDomains int        `json:"total_unique_domains_ever_seen"`
	TotalScoreRows     int        `json:"total_score_rows"`
	MostFrequentDomain string     `json:"most_frequent_domain_overall,omitempty"` // empty when no runs exist
	MostFrequentRuns   int        `json:"most_frequent_domain_runs"`
	LatestRun          *time.Time `json:"latest_run,omitempty"`
}

// DomainHistoryEntry is one run's result for a single domain.
type DomainHistoryEntry struct {
	RunID         int64     `json:"run_id" csv:"run_id"`
	CreatedAt     time.Time `json:"timestamp" csv:"timestamp"`
	Keywords      []string  `json:"keywords" csv:"keywords"`
	Appearances   int       `json:"appearances" csv:"appearances"`
	WeightedScore int       `json:"weighted_score" csv:"weighted_score"`
	RankPosition  int       `json:"rank_position" csv:"rank_position"`
}
