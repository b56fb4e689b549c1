package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ramonehamilton/competitor-discovery/internal/charts"
	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/export"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
)

func runHistoryCommand(a *app, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Number of runs to show")
	format := fs.String("format", "table", "Output format: table, csv or json")
	_ = fs.Parse(args)

	store := a.openStore()
	defer closeStore(store)

	runs, err := store.ListRuns(a.ctx, *limit)
	if err != nil {
		log.Fatalf("Error listing runs: %v", err)
	}

	if *format == "table" {
		printRunList(runs)
		return
	}

	f, err := export.ParseFormat(*format)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if err := export.ExportToWriter(os.Stdout, f, runs, a.cfg.Export.Pretty); err != nil {
		log.Fatalf("Error writing runs: %v", err)
	}
}

func runShowCommand(a *app, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	_ = fs.Parse(args)

	id := runIDArg(fs, "show")

	store := a.openStore()
	defer closeStore(store)

	run, err := store.GetRun(a.ctx, id)
	if err != nil {
		exitOnStoreError(err, id)
	}
	printRun(run)
}

func runStatsCommand(a *app, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	_ = fs.Parse(args)

	store := a.openStore()
	defer closeStore(store)

	stats, err := store.Stats(a.ctx)
	if err != nil {
		log.Fatalf("Error reading statistics: %v", err)
	}

	var size int64
	if info, err := os.Stat(store.DatabasePath()); err == nil {
		size = info.Size()
	}
	printStats(stats, store.DatabasePath(), size)
}

func runExportCommand(a *app, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", a.cfg.Export.Format, "Export format: csv or json")
	output := fs.String("output", "", "Output file (default: <export dir>/run_<id>_<timestamp>.<ext>)")
	withRank := fs.Bool("rank", false, "Add a rank column")
	summary := fs.Bool("summary", false, "Export the one-row run summary instead of the domain table")
	overwrite := fs.Bool("overwrite", false, "Overwrite an existing output file")
	chartPath := fs.String("chart", "", "Also render an HTML bar chart")
	_ = fs.Parse(args)

	id := runIDArg(fs, "export")

	f, err := export.ParseFormat(*format)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	store := a.openStore()
	defer closeStore(store)

	run, err := store.GetRun(a.ctx, id)
	if err != nil {
		exitOnStoreError(err, id)
	}

	prefix := fmt.Sprintf("run_%d", run.ID)
	table := export.RowsFromRun(run)
	switch {
	case *summary:
		prefix += "_summary"
		table = export.SummaryRows(run)
	case *withRank:
		table = export.RowsFromRun(run, export.WithRank())
	}

	path := *output
	if path == "" {
		path = filepath.Join(a.cfg.Export.Dir, export.GenerateFilename(prefix, f))
	}
	writeTable(table, f, path, *overwrite, a.cfg.Export.Pretty)

	if *chartPath != "" {
		renderChart(a, run, *chartPath, false)
	}
}

func runDeleteCommand(a *app, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	force := fs.Bool("force", false, "Delete without asking for confirmation")
	_ = fs.Parse(args)

	id := runIDArg(fs, "delete")

	store := a.openStore()
	defer closeStore(store)

	if !*force {
		run, err := store.GetRun(a.ctx, id)
		if err != nil {
			exitOnStoreError(err, id)
		}
		fmt.Printf("Delete run #%d (%s, %d competitors)? [y/N]: ", run.ID, strings.Join(run.Keywords, ", "), len(run.DomainScores))
		if !confirm() {
			fmt.Println("Cancelled.")
			return
		}
	}

	if err := store.DeleteRun(a.ctx, id); err != nil {
		exitOnStoreError(err, id)
	}
	fmt.Printf("Deleted run #%d\n", id)
}

func runDomainCommand(a *app, args []string) {
	fs := flag.NewFlagSet("domain", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of runs to show")
	format := fs.String("format", "table", "Output format: table, csv or json")
	chartPath := fs.String("chart", "", "Render an HTML line chart of the domain's score")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: competitor-discovery domain [options] <domain or url>")
		os.Exit(1)
	}

	root, err := domain.NewNormalizer(nil).Normalize(fs.Arg(0))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	store := a.openStore()
	defer closeStore(store)

	history, err := store.DomainHistory(a.ctx, root, *limit)
	if err != nil {
		log.Fatalf("Error reading history: %v", err)
	}

	if *format == "table" {
		printDomainHistory(root, history)
	} else {
		f, err := export.ParseFormat(*format)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		if err := export.ExportToWriter(os.Stdout, f, history, a.cfg.Export.Pretty); err != nil {
			log.Fatalf("Error writing history: %v", err)
		}
	}

	if *chartPath != "" {
		if err := charts.RenderDomainHistoryChart(root, history, charts.DefaultChartConfig(), *chartPath); err != nil {
			log.Fatalf("Error rendering chart: %v", err)
		}
		fmt.Printf("Chart written to %s\n", *chartPath)
	}
}

func runIDArg(fs *flag.FlagSet, command string) int64 {
	if fs.NArg() < 1 {
		fmt.Printf("Usage: competitor-discovery %s [options] <run id>\n", command)
		os.Exit(1)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id < 1 {
		log.Fatalf("Invalid run id: %s", fs.Arg(0))
	}
	return id
}

func exitOnStoreError(err error, id int64) {
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Printf("Run #%d not found.\n", id)
		os.Exit(1)
	}
	log.Fatalf("Error: %v", err)
}

func confirm() bool {
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
