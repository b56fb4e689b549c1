package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/analysis"
	"github.com/ramonehamilton/competitor-discovery/internal/charts"
	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/export"
	"github.com/ramonehamilton/competitor-discovery/internal/keywords"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

func runAnalyzeCommand(a *app, args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	kwList := fs.String("keywords", "", "Comma-separated keywords")
	fs.StringVar(kwList, "s", "", "Shorthand for -keywords")
	kwFile := fs.String("keywords-file", "", "Keyword file (.txt, .csv or .yaml)")
	fs.StringVar(kwFile, "k", "", "Shorthand for -keywords-file")
	engine := fs.String("engine", a.cfg.Serp.Engine, "Search engine: google or bing")
	fs.StringVar(engine, "e", a.cfg.Serp.Engine, "Shorthand for -engine")
	depth := fs.Int("depth", a.cfg.Analysis.Depth, fmt.Sprintf("Results per keyword (max %d)", serp.MaxDepth))
	fs.IntVar(depth, "d", a.cfg.Analysis.Depth, "Shorthand for -depth")
	minAppearances := fs.Int("min-appearances", a.cfg.Analysis.MinAppearances, "Minimum keywords a domain must rank for")
	maxResults := fs.Int("max-results", a.cfg.Analysis.MaxResults, "Maximum competitors to keep (0 = unlimited)")
	provider := fs.String("provider", a.cfg.Serp.Provider, "Result provider: auto, serpapi, scrape or file")
	resultsFile := fs.String("results-file", a.cfg.Serp.ResultsFile, "Read results from a JSON/YAML fixture instead of searching")
	notes := fs.String("notes", "", "Notes stored with the run")
	noSave := fs.Bool("no-save", false, "Do not save the run to the database")
	noExclude := fs.Bool("no-exclude", false, "Keep platforms such as youtube.com and wikipedia.org in the ranking")
	outputCSV := fs.String("output-csv", "", "Write the domain table to a CSV file")
	fs.StringVar(outputCSV, "o", "", "Shorthand for -output-csv")
	outputJSON := fs.String("output-json", "", "Write the domain table to a JSON file")
	summaryCSV := fs.String("summary-csv", "", "Write the one-row run summary to a CSV file")
	chartPath := fs.String("chart", "", "Render an HTML bar chart of the top competitors")
	openChart := fs.Bool("open", false, "Open the chart in a browser")
	verbose := fs.Bool("verbose", false, "Show the keywords each domain ranked for")
	fs.BoolVar(verbose, "v", false, "Shorthand for -verbose")
	_ = fs.Parse(args)

	var raw []string
	switch {
	case *kwFile != "":
		kws, err := keywords.FromFile(*kwFile)
		if err != nil {
			log.Fatalf("Error reading keyword file: %v", err)
		}
		raw = kws
	case *kwList != "":
		raw = keywords.FromString(*kwList)
	default:
		fmt.Println("Error: provide -keywords or -keywords-file")
		fs.Usage()
		os.Exit(1)
	}

	if *depth > serp.MaxDepth {
		fmt.Printf("Warning: depth %d exceeds the maximum of %d, using %d\n", *depth, serp.MaxDepth, serp.MaxDepth)
		*depth = serp.MaxDepth
	}

	a.cfg.Serp.Engine = *engine
	a.cfg.Serp.Provider = *provider
	a.cfg.Serp.ResultsFile = *resultsFile
	if err := a.cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sourceOpts, err := a.cfg.SourceOptions()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	source, err := serp.NewSource(sourceOpts)
	if err != nil {
		log.Fatalf("Error creating result source: %v", err)
	}

	var store *storage.Service
	if !*noSave {
		store = a.openStore()
		defer closeStore(store)
	}

	var exclude domain.ExcludeList
	if !*noExclude {
		exclude = domain.NewExcludeList(a.cfg.Analysis.Exclude...)
	}

	analyzer := analysis.NewAnalyzer(source, runStoreOrNil(store), analysis.Options{Exclude: exclude})

	fmt.Printf("Analyzing %d keyword(s) with %s...\n", len(raw), source.Name())
	outcome, err := analyzer.Run(a.ctx, analysis.Request{
		Keywords:       raw,
		Depth:          *depth,
		MinAppearances: *minAppearances,
		MaxResults:     *maxResults,
		Engine:         *engine,
		Notes:          *notes,
		Save:           !*noSave,
	})
	switch {
	case errors.Is(err, keywords.ErrNoKeywords):
		log.Fatalf("Error: no valid keywords (each must be %d-%d characters)", keywords.MinLength, keywords.MaxLength)
	case errors.Is(err, analysis.ErrNoResults):
		fmt.Println("No search results found for any keyword.")
		os.Exit(1)
	case err != nil:
		log.Fatalf("Analysis failed: %v", err)
	}

	report := outcome.Report
	if len(report.Scores) == 0 {
		fmt.Println("No competitors found matching your criteria.")
		os.Exit(1)
	}

	printReport(report, outcome.RunID, outcome.FetchErrors, outcome.Duration)
	if *verbose {
		fmt.Println("Keyword coverage:")
		fmt.Println()
		printScores(report.Scores, report.Keywords, displayTopN, true)
		fmt.Println()
	}
	printPipelineStats(analyzer.Metrics().Stats())

	run := &models.AnalysisRun{
		ID:             outcome.RunID,
		CreatedAt:      time.Now().UTC(),
		Keywords:       report.Keywords,
		Depth:          *depth,
		MinAppearances: *minAppearances,
		Engine:         *engine,
		Notes:          *notes,
		DroppedRows:    report.DroppedRows,
		DomainScores:   report.Scores,
	}

	if *outputCSV != "" {
		writeTable(export.RowsFromRun(run), export.FormatCSV, *outputCSV, true, a.cfg.Export.Pretty)
	}
	if *outputJSON != "" {
		writeTable(export.RowsFromRun(run), export.FormatJSON, *outputJSON, true, a.cfg.Export.Pretty)
	}
	if *summaryCSV != "" {
		writeTable(export.SummaryRows(run), export.FormatCSV, *summaryCSV, true, a.cfg.Export.Pretty)
	}
	if *chartPath != "" {
		renderChart(a, run, *chartPath, *openChart)
	}
}

// runStoreOrNil keeps a nil *storage.Service from becoming a non-nil
// interface.
func runStoreOrNil(s *storage.Service) analysis.RunStore {
	if s == nil {
		return nil
	}
	return s
}

func writeTable(t *export.Table, format export.Format, path string, overwrite, pretty bool) {
	exporter := export.NewExporter(export.Options{
		Format:     format,
		FilePath:   path,
		PrettyJSON: pretty,
		Overwrite:  overwrite,
	})
	if err := exporter.ExportTable(t); err != nil {
		log.Fatalf("Error writing %s: %v", path, err)
	}
	fmt.Printf("Wrote %d row(s) to %s\n", len(t.Rows), path)
}

func renderChart(a *app, run *models.AnalysisRun, path string, open bool) {
	if err := charts.RenderCompetitorChart(run, charts.DefaultChartConfig(), path); err != nil {
		log.Fatalf("Error rendering chart: %v", err)
	}
	fmt.Printf("Chart written to %s\n", path)

	if open {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if err := charts.OpenInBrowser(abs); err != nil {
			a.log.Warn("Could not open chart", zap.String("path", abs), zap.Error(err))
		}
	}
}
