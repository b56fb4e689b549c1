// Command competitor-discovery finds the domains that compete for a set of
// search keywords and keeps a history of every analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/config"
	"github.com/ramonehamilton/competitor-discovery/internal/logger"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
	"github.com/ramonehamilton/competitor-discovery/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to config file (default: ~/.competitor-discovery/config.toml)")
	dbPath     = flag.String("db-path", "", "Database path (overrides config and DATABASE_PATH)")
	debugMode  = flag.Bool("debug", false, "Enable debug logging")
)

// app carries what every command needs.
type app struct {
	ctx context.Context
	cfg *config.Config
	log *zap.Logger
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]

	switch command {
	case "version":
		fmt.Printf("competitor-discovery %s\n", version.String())
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	a, stop := setup()
	defer stop()

	switch command {
	case "analyze":
		runAnalyzeCommand(a, cmdArgs)
	case "history":
		runHistoryCommand(a, cmdArgs)
	case "show":
		runShowCommand(a, cmdArgs)
	case "stats":
		runStatsCommand(a, cmdArgs)
	case "export":
		runExportCommand(a, cmdArgs)
	case "delete":
		runDeleteCommand(a, cmdArgs)
	case "domain":
		runDomainCommand(a, cmdArgs)
	case "serve":
		runServeCommand(a, cmdArgs)
	case "watch":
		runWatchCommand(a, cmdArgs)
	case "migrate":
		runMigrationCommand(a, cmdArgs)
	case "backup":
		runBackupCommand(a, cmdArgs)
	case "config":
		runConfigCommand(a, cmdArgs)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and a context cancelled on
// SIGINT/SIGTERM.
func setup() (*app, func()) {
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *debugMode {
		cfg.Log.Level = "debug"
	}

	zl, err := logger.New(&cfg.Log)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logger.ContextWithLogger(ctx, zl)

	return &app{ctx: ctx, cfg: cfg, log: zl}, func() {
		cancel()
		_ = zl.Sync()
	}
}

// openStore opens the run store, applying pending migrations.
func (a *app) openStore() *storage.Service {
	sc, err := a.cfg.StorageConfig()
	if err != nil {
		log.Fatalf("Error in database config: %v", err)
	}

	db, err := storage.Open(sc)
	if err != nil {
		log.Fatalf("Error opening database %s: %v", sc.Path, err)
	}
	a.log.Debug("Opened run store", zap.String("path", sc.Path))

	return storage.NewService(db)
}

func closeStore(svc *storage.Service) {
	if err := svc.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func printUsage() {
	fmt.Println("Competitor Discovery")
	fmt.Println("====================")
	fmt.Println()
	fmt.Println("Usage: competitor-discovery [global options] <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  analyze    - Fetch results for keywords and rank competing domains")
	fmt.Println("  history    - List recent analysis runs")
	fmt.Println("  show       - Show the ranked domains of one run")
	fmt.Println("  stats      - Show run store statistics")
	fmt.Println("  export     - Export a run as CSV or JSON")
	fmt.Println("  delete     - Delete a run")
	fmt.Println("  domain     - Show how a domain ranked across runs")
	fmt.Println("  serve      - Run the REST API server")
	fmt.Println("  watch      - Re-run analysis whenever a keyword file changes")
	fmt.Println("  migrate    - Run database migrations")
	fmt.Println("  backup     - Create, list or verify database backups")
	fmt.Println("  config     - Show or initialize the configuration file")
	fmt.Println("  version    - Print the version")
	fmt.Println()
	fmt.Println("Global options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  %-15s Database path\n", config.EnvDatabasePath)
	fmt.Printf("  %-15s SerpApi key (enables the serpapi provider)\n", config.EnvSerpAPIKey)
	fmt.Printf("  %-15s Search engine: google or bing\n", config.EnvSearchEngine)
	fmt.Printf("  %-15s Log level\n", config.EnvLogLevel)
	fmt.Printf("  %-15s Password for sealed backups\n", config.EnvBackupPassword)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println(`  competitor-discovery analyze -keywords "nike shoes,running shoes"`)
	fmt.Println("  competitor-discovery analyze -keywords-file keywords.csv -output-csv results.csv")
	fmt.Println("  competitor-discovery history -limit 5")
	fmt.Println("  competitor-discovery show 3")
	fmt.Println("  competitor-discovery serve -addr :8080")
	fmt.Println()
}
