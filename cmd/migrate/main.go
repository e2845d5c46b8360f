package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/frostdev-ops/pma-tvoverlay/internal/config"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/logger"
)

func main() {
	dbPath := flag.String("db", "", "database path (defaults to database.path from the config)")
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-db path] [-steps n] <up|down|version>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.New()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := database.Migrate(db, log.Logger); err != nil {
			log.Fatalf("An error occurred while migrating up: %v", err)
		}
	case "down":
		if err := database.Rollback(db, *steps, log.Logger); err != nil {
			log.Fatalf("An error occurred while migrating down: %v", err)
		}
	case "version":
		version, dirty, err := database.MigrationVersion(db)
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	default:
		log.Fatalf("Unknown command: %s. Use `up`, `down` or `version`.", command)
	}
}
