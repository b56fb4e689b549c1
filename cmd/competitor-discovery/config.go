package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/competitor-discovery/internal/config"
)

func runConfigCommand(a *app, args []string) {
	if len(args) < 1 {
		printConfigUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "path":
		fmt.Println(configFilePath())

	case "show":
		shown := *a.cfg
		if shown.Serp.APIKey != "" {
			shown.Serp.APIKey = "********"
		}
		data, err := toml.Marshal(&shown)
		if err != nil {
			log.Fatalf("Error encoding config: %v", err)
		}
		fmt.Print(string(data))
		if err := a.cfg.Validate(); err != nil {
			fmt.Printf("\n# Warning: %v\n", err)
		}

	case "init":
		path := configFilePath()
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Config file already exists: %s\n", path)
			os.Exit(1)
		}
		cfg := config.DefaultConfig()
		var err error
		if *configPath != "" {
			err = cfg.SaveTo(path)
		} else {
			err = cfg.Save()
		}
		if err != nil {
			log.Fatalf("Error writing config: %v", err)
		}
		fmt.Printf("Wrote default config to %s\n", path)

	default:
		fmt.Printf("Unknown config command: %s\n\n", args[0])
		printConfigUsage()
		os.Exit(1)
	}
}

func configFilePath() string {
	if *configPath != "" {
		return *configPath
	}
	path, err := config.Path()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	return path
}

func printConfigUsage() {
	fmt.Println("Usage: competitor-discovery config <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  path - Print the config file location")
	fmt.Println("  show - Print the effective configuration")
	fmt.Println("  init - Write a default config file")
}
