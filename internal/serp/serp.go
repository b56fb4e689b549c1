// Package serp fetches organic search results for keywords.
//
// Every Source returns results for one keyword at a time; FetchAll runs a
// keyword batch and never lets one failing keyword abort the others.
package serp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/logger"
)

// MaxDepth is the most results a source is asked for per keyword.
const MaxDepth = 20

// Result is one organic search result.
type Result struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Rank    int    `json:"rank" yaml:"rank"`
	URL     string `json:"url" yaml:"url"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Source fetches the top depth organic results for a keyword, in rank order.
type Source interface {
	Fetch(ctx context.Context, keyword string, depth int) ([]Result, error)
	Name() string
}

// Batch holds the results of a keyword batch.
type Batch struct {
	// Results maps every requested keyword to its results (possibly empty).
	Results map[string][]Result

	// Errors maps keywords whose fetch failed to the failure.
	Errors map[string]error
}

// TotalResults counts result rows across all keywords.
func (b *Batch) TotalResults() int {
	n := 0
	for _, rows := range b.Results {
		n += len(rows)
	}
	return n
}

// FetchAll fetches each keyword sequentially. A failed keyword gets an empty
// result list and an entry in Errors. Only context cancellation stops the batch.
func FetchAll(ctx context.Context, src Source, keywords []string, depth int) (*Batch, error) {
	if depth > MaxDepth {
		depth = MaxDepth
	}

	log := logger.FromContext(ctx).With(zap.String("source", src.Name()))
	batch := &Batch{
		Results: make(map[string][]Result, len(keywords)),
		Errors:  make(map[string]error),
	}

	for _, kw := range keywords {
		if err := ctx.Err(); err != nil {
			return batch, fmt.Errorf("fetch cancelled: %w", err)
		}

		start := time.Now()
		rows, err := src.Fetch(ctx, kw, depth)
		if err != nil {
			log.Warn("keyword fetch failed", zap.String("keyword", kw), zap.Error(err))
			batch.Results[kw] = []Result{}
			batch.Errors[kw] = err
			continue
		}

		for i := range rows {
			rows[i].Keyword = kw
		}
		batch.Results[kw] = rows
		log.Debug("keyword fetched",
			zap.String("keyword", kw),
			zap.Int("results", len(rows)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	return batch, nil
}
