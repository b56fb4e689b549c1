package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ramonehamilton/competitor-discovery/internal/metrics"
	"github.com/ramonehamilton/competitor-discovery/internal/ranking"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// displayTopN is how many domains the terminal tables show.
const displayTopN = 20

const rule = "═══════════════════════════════════════════════════════════════"

func printHeader(title string) {
	fmt.Println()
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", len(title)))
}

// printScores prints the first n rows of a ranked table. withKeywords adds the
// keywords each domain ranked for.
func printScores(scores []models.DomainScore, keywords []string, n int, withKeywords bool) {
	if len(scores) == 0 {
		fmt.Println("No competitors.")
		return
	}
	if n <= 0 || n > len(scores) {
		n = len(scores)
	}

	fmt.Printf("%-5s %-35s %12s %15s\n", "Rank", "Domain", "Appearances", "Weighted Score")
	fmt.Println(rule)
	for i, s := range scores[:n] {
		fmt.Printf("%-5d %-35s %12d %15d\n", i+1, truncate(s.Domain, 35), s.Appearances, s.WeightedScore)
		if withKeywords {
			var present []string
			for _, kw := range keywords {
				if s.Flag(kw) == 1 {
					present = append(present, kw)
				}
			}
			if len(present) > 0 {
				fmt.Printf("      keywords: %s\n", strings.Join(present, ", "))
			}
		}
	}
	if n < len(scores) {
		fmt.Printf("... and %d more\n", len(scores)-n)
	}
}

func printReport(report *ranking.Report, runID int64, fetchErrors map[string]error, d time.Duration) {
	printHeader("Competitor Analysis")
	fmt.Printf("Keywords analyzed:  %d\n", len(report.Keywords))
	fmt.Printf("Result rows:        %d\n", report.TotalRows)
	fmt.Printf("Dropped rows:       %d\n", report.DroppedRows)
	fmt.Printf("Excluded rows:      %d\n", report.ExcludedRows)
	fmt.Printf("Total competitors:  %d\n", report.Summary.TotalCompetitors)
	fmt.Printf("Top competitor:     %s\n", orNA(report.Summary.TopCompetitor))
	fmt.Printf("Avg weighted score: %.2f\n", report.Summary.AvgWeightedScore)
	fmt.Printf("Duration:           %s\n", d.Round(time.Millisecond))
	if runID > 0 {
		fmt.Printf("Saved as run:       #%d\n", runID)
	}

	if len(report.EmptyKeywords) > 0 {
		fmt.Printf("\nKeywords without usable results: %s\n", strings.Join(report.EmptyKeywords, ", "))
	}
	if len(fetchErrors) > 0 {
		fmt.Println("\nFetch errors:")
		kws := make([]string, 0, len(fetchErrors))
		for kw := range fetchErrors {
			kws = append(kws, kw)
		}
		sort.Strings(kws)
		for _, kw := range kws {
			fmt.Printf("  %s: %v\n", kw, fetchErrors[kw])
		}
	}

	fmt.Printf("\nTop %d competitors:\n\n", min(displayTopN, len(report.Scores)))
	printScores(report.Scores, report.Keywords, displayTopN, false)
	fmt.Println()
}

func printRunList(runs []*models.RunSummary) {
	if len(runs) == 0 {
		fmt.Println("No analysis runs found.")
		return
	}

	printHeader("Analysis History")
	fmt.Printf("%-6s %-20s %-9s %-8s %-12s %-25s\n", "Run", "Date", "Keywords", "Engine", "Competitors", "Top Competitor")
	fmt.Println(rule)
	for _, r := range runs {
		fmt.Printf("%-6d %-20s %-9d %-8s %-12d %-25s\n",
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.KeywordCount,
			r.Engine,
			r.TotalCompetitors,
			truncate(orNA(r.TopCompetitor), 25),
		)
	}
	fmt.Println()
}

func printRun(run *models.AnalysisRun) {
	printHeader(fmt.Sprintf("Run #%d", run.ID))
	fmt.Printf("Date:            %s\n", run.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Engine:          %s\n", run.Engine)
	fmt.Printf("Depth:           %d\n", run.Depth)
	fmt.Printf("Min appearances: %d\n", run.MinAppearances)
	fmt.Printf("Dropped rows:    %d\n", run.DroppedRows)
	fmt.Printf("Keywords:        %s\n", strings.Join(run.Keywords, ", "))
	if run.Notes != "" {
		fmt.Printf("Notes:           %s\n", run.Notes)
	}

	summary := ranking.Summarize(run.DomainScores)
	fmt.Printf("Competitors:     %d (top: %s, avg score %.2f)\n\n",
		summary.TotalCompetitors, orNA(summary.TopCompetitor), summary.AvgWeightedScore)

	printScores(run.DomainScores, run.Keywords, displayTopN, true)
	fmt.Println()
}

func printStats(stats *models.StoreStats, dbPath string, dbSize int64) {
	printHeader("Run Store Statistics")
	fmt.Printf("Database:              %s\n", dbPath)
	fmt.Printf("Database size:         %.2f MB\n", float64(dbSize)/(1024*1024))
	fmt.Printf("Total runs:            %d\n", stats.TotalRuns)
	fmt.Printf("Unique domains seen:   %d\n", stats.TotalUniqueDomains)
	fmt.Printf("Score rows:            %d\n", stats.TotalScoreRows)
	if stats.MostFrequentDomain != "" {
		fmt.Printf("Most frequent domain:  %s (%d runs)\n", stats.MostFrequentDomain, stats.MostFrequentRuns)
	} else {
		fmt.Printf("Most frequent domain:  N/A\n")
	}
	if stats.LatestRun != nil {
		fmt.Printf("Latest run:            %s\n", stats.LatestRun.Local().Format(time.DateTime))
	}
	fmt.Println()
}

func printPipelineStats(stats *metrics.PipelineStats) {
	if stats.Runs == 0 && stats.Fetches == 0 {
		return
	}
	fmt.Printf("Fetches: %d (%.1f%% ok, p95 %.0fms)\n",
		stats.Fetches, stats.FetchSuccessRate, stats.FetchLatency.P95)
}

func printDomainHistory(root string, history []*models.DomainHistoryEntry) {
	if len(history) == 0 {
		fmt.Printf("%s has not appeared in any run.\n", root)
		return
	}

	printHeader(fmt.Sprintf("History for %s", root))
	fmt.Printf("%-6s %-20s %-6s %-12s %-15s %s\n", "Run", "Date", "Rank", "Appearances", "Weighted Score", "Keywords")
	fmt.Println(rule)
	for _, h := range history {
		fmt.Printf("%-6d %-20s %-6d %-12d %-15d %s\n",
			h.RunID,
			h.CreatedAt.Local().Format(time.DateTime),
			h.RankPosition,
			h.Appearances,
			h.WeightedScore,
			truncate(strings.Join(h.Keywords, ", "), 40),
		)
	}
	fmt.Println()
}

func printBackups(backups []storage.BackupInfo) {
	if len(backups) == 0 {
		fmt.Println("No backups found.")
		return
	}

	printHeader("Backups")
	for _, b := range backups {
		fmt.Printf("%s\n", b.Name)
		fmt.Printf("  Path:     %s\n", b.Path)
		fmt.Printf("  Size:     %.2f MB\n", float64(b.Size)/(1024*1024))
		fmt.Printf("  Created:  %s\n", b.ModTime.Local().Format(time.DateTime))
		fmt.Printf("  Checksum: %s\n", b.Checksum)
	}
	fmt.Println()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
