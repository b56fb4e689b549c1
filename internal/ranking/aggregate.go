// Package ranking aggregates search results into a ranked competitor table.
package ranking

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// ErrInvalidDepth is returned when the requested result depth is not positive.
var ErrInvalidDepth = errors.New("depth must be positive")

// Options controls scoring and filtering of an aggregation.
type Options struct {
	// Depth is the number of results requested per keyword. Scores are
	// computed as Depth + 1 - rank.
	Depth int

	// MinAppearances drops domains present under fewer keywords. 0 or 1 keeps all.
	MinAppearances int

	// MinWeightedScore drops domains scoring below this value.
	MinWeightedScore int

	// MaxResults caps the returned table. 0 means unlimited.
	MaxResults int

	// Exclude removes platforms from the table; their rows count as ExcludedRows.
	Exclude domain.ExcludeList
}

// Summary condenses a ranked table.
type Summary struct {
	TotalCompetitors int     `json:"total_competitors"`
	TopCompetitor    string  `json:"top_competitor,omitempty"`
	AvgWeightedScore float64 `json:"avg_weighted_score"`
}

// Report is the outcome of an aggregation.
type Report struct {
	// Keywords in flag order.
	Keywords []string `json:"keywords"`

	// Scores is the ranked, filtered domain table.
	Scores []models.DomainScore `json:"scores"`

	// TotalRows is every result row seen, usable or not.
	TotalRows int `json:"total_rows"`

	// DroppedRows failed normalization.
	DroppedRows int `json:"dropped_rows"`

	// ExcludedRows normalized to an excluded platform.
	ExcludedRows int `json:"excluded_rows"`

	// EmptyKeywords contributed no usable rows.
	EmptyKeywords []string `json:"empty_keywords"`

	Summary Summary `json:"summary"`
}

// Aggregator turns per-keyword result lists into a ranked domain table.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	normalizer *domain.Normalizer
}

// NewAggregator creates an Aggregator. A nil normalizer uses the public suffix list.
func NewAggregator(normalizer *domain.Normalizer) *Aggregator {
	if normalizer == nil {
		normalizer = domain.NewNormalizer(nil)
	}
	return &Aggregator{normalizer: normalizer}
}

type tally struct {
	score int
	flags map[string]int
}

// Aggregate scores every result row and returns the ranked table.
//
// keywords fixes the flag order; a keyword missing from results counts as an
// empty sequence. Result keys not listed in keywords are appended in sorted
// order. Rows whose URL cannot be normalized are counted in DroppedRows and
// skipped. Ranks outside [1, Depth] are scored with the same formula.
func (a *Aggregator) Aggregate(keywords []string, results map[string][]serp.Result, opts Options) (*Report, error) {
	if opts.Depth <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, opts.Depth)
	}

	ordered := orderKeywords(keywords, results)
	report := &Report{
		Keywords:      ordered,
		EmptyKeywords: []string{},
	}

	tallies := make(map[string]*tally)

	for _, kw := range ordered {
		rows := sortedByRank(results[kw])
		usable := 0

		for _, row := range rows {
			report.TotalRows++

			root, err := a.normalizer.Normalize(row.URL)
			if err != nil {
				report.DroppedRows++
				continue
			}
			if opts.Exclude.Contains(root) {
				report.ExcludedRows++
				continue
			}

			t, ok := tallies[root]
			if !ok {
				t = &tally{flags: make(map[string]int, len(ordered))}
				tallies[root] = t
			}
			t.flags[kw] = 1
			t.score += opts.Depth + 1 - row.Rank
			usable++
		}

		if usable == 0 {
			report.EmptyKeywords = append(report.EmptyKeywords, kw)
		}
	}

	scores := make([]models.DomainScore, 0, len(tallies))
	for root, t := range tallies {
		flags := make(map[string]int, len(ordered))
		appearances := 0
		for _, kw := range ordered {
			flags[kw] = t.flags[kw]
			appearances += t.flags[kw]
		}
		scores = append(scores, models.DomainScore{
			Domain:        root,
			Appearances:   appearances,
			WeightedScore: t.score,
			KeywordFlags:  flags,
		})
	}

	models.SortDomainScores(scores)
	report.Scores = Filter(scores, opts)
	report.Summary = Summarize(report.Scores)

	return report, nil
}

// Filter applies MinAppearances, MinWeightedScore and MaxResults to a ranked
// table, preserving order.
func Filter(scores []models.DomainScore, opts Options) []models.DomainScore {
	filtered := make([]models.DomainScore, 0, len(scores))
	for _, s := range scores {
		if s.Appearances < opts.MinAppearances {
			continue
		}
		if opts.MinWeightedScore > 0 && s.WeightedScore < opts.MinWeightedScore {
			continue
		}
		filtered = append(filtered, s)
		if opts.MaxResults > 0 && len(filtered) == opts.MaxResults {
			break
		}
	}
	return filtered
}

// Summarize computes headline figures for a ranked table.
func Summarize(scores []models.DomainScore) Summary {
	if len(scores) == 0 {
		return Summary{}
	}

	total := 0
	for _, s := range scores {
		total += s.WeightedScore
	}

	return Summary{
		TotalCompetitors: len(scores),
		TopCompetitor:    scores[0].Domain,
		AvgWeightedScore: float64(total) / float64(len(scores)),
	}
}

// orderKeywords returns keywords de-duplicated, followed by any extra result keys.
func orderKeywords(keywords []string, results map[string][]serp.Result) []string {
	seen := make(map[string]bool, len(keywords))
	ordered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if !seen[kw] {
			seen[kw] = true
			ordered = append(ordered, kw)
		}
	}

	var extra []string
	for kw := range results {
		if !seen[kw] {
			extra = append(extra, kw)
		}
	}
	sort.Strings(extra)

	return append(ordered, extra...)
}

// sortedByRank returns rows in rank order without mutating the caller's slice.
func sortedByRank(rows []serp.Result) []serp.Result {
	out := make([]serp.Result, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}
