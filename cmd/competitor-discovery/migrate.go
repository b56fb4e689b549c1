package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ramonehamilton/competitor-discovery/internal/storage"
)

func runMigrationCommand(a *app, args []string) {
	if len(args) < 1 {
		printMigrationUsage()
		os.Exit(1)
	}

	dbPath := a.cfg.Database.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("Error creating database directory: %v", err)
	}

	mgr, err := storage.NewMigrationManager(dbPath)
	if err != nil {
		log.Fatalf("Error creating migration manager: %v", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Printf("Error closing migration manager: %v", err)
		}
	}()

	switch args[0] {
	case "up":
		fmt.Println("Applying all pending migrations...")
		if err := mgr.Up(); err != nil {
			log.Fatalf("Error applying migrations: %v", err)
		}
		printMigrationVersion(mgr)
		fmt.Println("All migrations applied successfully!")

	case "down":
		fmt.Println("Rolling back last migration...")
		if err := mgr.Down(); err != nil {
			log.Fatalf("Error rolling back migration: %v", err)
		}
		printMigrationVersion(mgr)
		fmt.Println("Migration rolled back successfully!")

	case "status", "version":
		printMigrationVersion(mgr)

	case "force":
		if len(args) < 2 {
			fmt.Println("Error: force command requires a version number")
			fmt.Println("Usage: competitor-discovery migrate force <version>")
			os.Exit(1)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version number: %v", err)
		}
		fmt.Printf("Forcing migration version to %d...\n", version)
		if err := mgr.Force(version); err != nil {
			log.Fatalf("Error forcing version: %v", err)
		}
		fmt.Println("Version forced successfully!")

	case "steps":
		if len(args) < 2 {
			fmt.Println("Error: steps command requires a number")
			fmt.Println("Usage: competitor-discovery migrate steps <n>")
			os.Exit(1)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid step count: %v", err)
		}
		if err := mgr.Steps(n); err != nil {
			log.Fatalf("Error migrating: %v", err)
		}
		printMigrationVersion(mgr)

	case "reset":
		fmt.Print("This drops every stored run. Continue? [y/N]: ")
		if !confirm() {
			fmt.Println("Cancelled.")
			return
		}
		if err := mgr.Reset(); err != nil {
			log.Fatalf("Error resetting database: %v", err)
		}
		fmt.Println("All migrations rolled back.")

	default:
		fmt.Printf("Unknown migrate command: %s\n\n", args[0])
		printMigrationUsage()
		os.Exit(1)
	}
}

func printMigrationVersion(mgr *storage.MigrationManager) {
	status, err := mgr.Status()
	if err != nil {
		log.Fatalf("Error getting version: %v", err)
	}
	if status.Dirty {
		fmt.Printf("Current version: %d (dirty - migration failed or interrupted)\n", status.Version)
		fmt.Println("Use 'migrate force <version>' to recover")
		return
	}
	fmt.Printf("Current version: %d of %d\n", status.Version, status.Latest)
	if status.Pending() {
		fmt.Println("Pending migrations: run 'migrate up' to apply them")
	}
}

func printMigrationUsage() {
	fmt.Println("Usage: competitor-discovery migrate <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              - Apply all pending migrations")
	fmt.Println("  down            - Roll back the last migration")
	fmt.Println("  status          - Show the current migration version")
	fmt.Println("  steps <n>       - Apply n migrations (negative rolls back)")
	fmt.Println("  force <version> - Set the version without migrating (dirty recovery)")
	fmt.Println("  reset           - Roll back every migration")
}
