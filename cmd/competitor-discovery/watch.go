package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ramonehamilton/competitor-discovery/internal/analysis"
	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/watch"
)

func runWatchCommand(a *app, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	debounceStr := fs.String("debounce", a.cfg.Watch.Debounce, "Quiet period after a change before re-running")
	intervalStr := fs.String("interval", a.cfg.Watch.Interval, "Re-run periodically even without changes (0s disables)")
	depth := fs.Int("depth", a.cfg.Analysis.Depth, "Results per keyword")
	minAppearances := fs.Int("min-appearances", a.cfg.Analysis.MinAppearances, "Minimum keywords a domain must rank for")
	maxResults := fs.Int("max-results", a.cfg.Analysis.MaxResults, "Maximum competitors to keep (0 = unlimited)")
	noSave := fs.Bool("no-save", false, "Do not save runs to the database")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: competitor-discovery watch [options] <keyword file>")
		os.Exit(1)
	}

	a.cfg.Watch.Debounce = *debounceStr
	a.cfg.Watch.Interval = *intervalStr
	if err := a.cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	debounce, _ := a.cfg.GetWatchDebounce()
	interval, _ := a.cfg.GetWatchInterval()

	sourceOpts, err := a.cfg.SourceOptions()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	source, err := serp.NewSource(sourceOpts)
	if err != nil {
		log.Fatalf("Error creating result source: %v", err)
	}

	store := a.openStore()
	defer closeStore(store)

	analyzer := analysis.NewAnalyzer(source, store, analysis.Options{
		Exclude: domain.NewExcludeList(a.cfg.Analysis.Exclude...),
	})

	runner := func(ctx context.Context, kws []string) error {
		outcome, err := analyzer.Run(ctx, analysis.Request{
			Keywords:       kws,
			Depth:          *depth,
			MinAppearances: *minAppearances,
			MaxResults:     *maxResults,
			Engine:         a.cfg.Serp.Engine,
			Notes:          "watch: " + fs.Arg(0),
			Save:           !*noSave,
		})
		if err != nil {
			return err
		}
		printReport(outcome.Report, outcome.RunID, outcome.FetchErrors, outcome.Duration)
		return nil
	}

	w, err := watch.New(watch.Config{
		KeywordFile: fs.Arg(0),
		Debounce:    debounce,
		Interval:    interval,
		RunOnStart:  true,
	}, runner)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", fs.Arg(0))
	if err := w.Watch(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Watch failed: %v", err)
	}
	fmt.Println("\nStopped watching.")
}
