package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/analysis"
	"github.com/ramonehamilton/competitor-discovery/internal/api"
	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/metrics"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
	"github.com/ramonehamilton/competitor-discovery/internal/version"
)

const shutdownTimeout = 10 * time.Second

func runServeCommand(a *app, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", a.cfg.API.Addr, "Listen address")
	readOnly := fs.Bool("read-only", false, "Serve stored runs only; disable POST /api/v1/analyze")
	_ = fs.Parse(args)

	a.cfg.API.Addr = *addr
	if err := a.cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	timeout, err := a.cfg.GetRequestTimeout()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	store := a.openStore()
	defer closeStore(store)

	pipelineMetrics := metrics.NewPipelineMetrics()
	deps := api.Dependencies{
		Store:   store,
		Metrics: pipelineMetrics,
		Logger:  a.log,
	}

	if !*readOnly {
		var source serp.Source
		sourceOpts, err := a.cfg.SourceOptions()
		if err == nil {
			source, err = serp.NewSource(sourceOpts)
		}
		if err != nil {
			// Inline results still work without a source.
			a.log.Warn("Live search disabled", zap.Error(err))
			source = nil
		}
		deps.Pipeline = analysis.NewAnalyzer(source, store, analysis.Options{
			Exclude: domain.NewExcludeList(a.cfg.Analysis.Exclude...),
			Metrics: pipelineMetrics,
		})
	}

	server := api.NewServer(&api.Config{
		Addr:           a.cfg.API.Addr,
		RequestTimeout: timeout,
		CORSOrigins:    a.cfg.API.CORSOrigins,
		Version:        version.GetVersion(),
	}, deps)

	schedCfg, err := a.cfg.SchedulerConfig()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if schedCfg != nil {
		scheduler := storage.NewBackupScheduler(store, schedCfg)
		go func() { _ = scheduler.Run(a.ctx) }()
		fmt.Printf("Scheduled backups every %s\n", schedCfg.Interval)
	}

	errCh := server.Start()
	fmt.Printf("API server listening on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case <-a.ctx.Done():
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		if err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
