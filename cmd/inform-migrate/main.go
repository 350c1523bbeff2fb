// Command inform-migrate inspects and moves the schema version of an
// inform SQLite results database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/internal/storage/sqlite"
	"github.com/chrissnell/inform/pkg/config"
	"github.com/chrissnell/inform/pkg/migrate"
)

func main() {
	var (
		dbPath        = flag.String("db", "", "SQLite database path (defaults to $"+config.EnvSQLitePath+")")
		command       = flag.String("command", "status", "Migration command: up, down, to, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		helpFlag      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
		os.Exit(1)
	}
	if *dbPath == "" {
		*dbPath = os.Getenv(config.EnvSQLitePath)
	}
	if *dbPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -db flag or $%s is required\n", config.EnvSQLitePath)
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(false); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := sqlite.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	migrator := migrate.NewMigrator(db, sqlite.MigrationProvider(), log.Named("migrate"))

	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down", "to":
		var target int
		target, err = parseTarget(*targetVersion)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *command == "down" {
			err = migrator.MigrateDown(ctx, target)
		} else {
			err = migrator.MigrateTo(ctx, target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion(ctx)
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(ctx, migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}
	if *command != "status" {
		fmt.Println("Migration completed successfully")
	}
}

func parseTarget(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("-target flag is required for down and to commands")
	}
	target, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", s, err)
	}
	return target, nil
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))
	for _, m := range pending {
		fmt.Printf("  %d: %s\n", m.Version, m.Name)
	}
	return nil
}

func showHelp() {
	fmt.Println("inform results database migration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  inform-migrate [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up        Apply all pending migrations")
	fmt.Println("  down      Roll back to -target")
	fmt.Println("  to        Migrate up or down to -target")
	fmt.Println("  version   Show current migration version")
	fmt.Println("  status    Show current version and pending migrations")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  inform-migrate -db inform.db -command up")
	fmt.Println("  inform-migrate -db inform.db -command down -target 1")
}
