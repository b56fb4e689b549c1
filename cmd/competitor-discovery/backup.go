package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ramonehamilton/competitor-discovery/internal/config"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
)

func runBackupCommand(a *app, args []string) {
	if len(args) < 1 {
		printBackupUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("backup create", flag.ExitOnError)
		dir := fs.String("dir", "", "Backup directory (default: backups/ next to the database)")
		name := fs.String("name", "", "Backup name without extension (default: runs_<timestamp>)")
		encrypt := fs.Bool("encrypt", false, "Seal the backup with the password in "+config.EnvBackupPassword)
		_ = fs.Parse(args[1:])

		password := os.Getenv(config.EnvBackupPassword)
		if *encrypt && password == "" {
			log.Fatalf("Error: -encrypt requires %s to be set", config.EnvBackupPassword)
		}

		store := a.openStore()
		defer closeStore(store)

		fmt.Println("Creating backup...")
		path, err := store.Backup(a.ctx, *dir, *name)
		if err != nil {
			log.Fatalf("Error creating backup: %v", err)
		}
		if *encrypt {
			if path, err = storage.SealBackup(path, password, storage.DefaultKDFParams()); err != nil {
				log.Fatalf("Error sealing backup: %v", err)
			}
		}
		fmt.Printf("Backup created: %s\n", path)

	case "list":
		fs := flag.NewFlagSet("backup list", flag.ExitOnError)
		dir := fs.String("dir", "", "Backup directory (default: backups/ next to the database)")
		_ = fs.Parse(args[1:])

		backupDir := *dir
		if backupDir == "" {
			store := a.openStore()
			backupDir = store.BackupDir()
			closeStore(store)
		}

		backups, err := storage.ListBackups(backupDir)
		if err != nil {
			log.Fatalf("Error listing backups: %v", err)
		}
		printBackups(backups)

	case "verify":
		if len(args) < 2 {
			fmt.Println("Usage: competitor-discovery backup verify <path>")
			os.Exit(1)
		}
		if sealed, err := storage.IsSealed(args[1]); err == nil && sealed {
			fmt.Printf("%s is sealed; run 'backup decrypt' first.\n", args[1])
			os.Exit(1)
		}
		if err := storage.VerifyBackup(a.ctx, args[1]); err != nil {
			log.Fatalf("Backup verification failed: %v", err)
		}
		fmt.Printf("Backup %s is valid.\n", args[1])

	case "decrypt":
		fs := flag.NewFlagSet("backup decrypt", flag.ExitOnError)
		out := fs.String("out", "", "Output file (default: input without "+storage.SealedExt+")")
		_ = fs.Parse(args[1:])

		if fs.NArg() < 1 {
			fmt.Println("Usage: competitor-discovery backup decrypt [-out FILE] <path>")
			os.Exit(1)
		}
		password := os.Getenv(config.EnvBackupPassword)
		if password == "" {
			log.Fatalf("Error: set %s to decrypt a backup", config.EnvBackupPassword)
		}

		path, err := storage.UnsealBackup(fs.Arg(0), *out, password, storage.DefaultKDFParams())
		if err != nil {
			log.Fatalf("Error decrypting backup: %v", err)
		}
		if err := storage.VerifyBackup(a.ctx, path); err != nil {
			log.Fatalf("Decrypted backup failed verification: %v", err)
		}
		fmt.Printf("Backup decrypted: %s\n", path)

	default:
		fmt.Printf("Unknown backup command: %s\n\n", args[0])
		printBackupUsage()
		os.Exit(1)
	}
}

func printBackupUsage() {
	fmt.Println("Usage: competitor-discovery backup <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create [-dir DIR] [-name NAME] [-encrypt] - Snapshot the run store")
	fmt.Println("  list [-dir DIR]                           - List snapshots, newest first")
	fmt.Println("  verify <path>                             - Check that a snapshot is readable")
	fmt.Println("  decrypt [-out FILE] <path>                - Decrypt a sealed snapshot")
}
