package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	if action == "help" {
		PrintMigrateHelp()
		return
	}

	migrationsFS := Migrations()

	// Open without migrating; the subcommand decides what runs.
	database, err := Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action {
	case "up":
		handleMigrateUp(database, migrationsFS)

	case "down":
		handleMigrateDown(database, migrationsFS)

	case "status":
		handleMigrateStatus(database, migrationsFS)

	case "to":
		if len(args) < 2 {
			log.Fatal("Usage: repcount migrate to <version_number>")
		}
		handleMigrateTo(database, migrationsFS, args[1])

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: repcount migrate force <version_number>")
		}
		handleMigrateForce(database, migrationsFS, args[1])

	case "baseline":
		if len(args) < 2 {
			log.Fatal("Usage: repcount migrate baseline <version_number>")
		}
		handleMigrateBaseline(database, args[1])

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func handleMigrateUp(database *DB, migrationsFS fs.FS) {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}
	log.Println("All migrations applied successfully")
}

func handleMigrateDown(database *DB, migrationsFS fs.FS) {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		log.Fatalf("Migration down failed: %v", err)
	}
	log.Println("Rolled back one migration")
}

func handleMigrateStatus(database *DB, migrationsFS fs.FS) {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}
	for k, v := range status {
		fmt.Printf("%s: %v\n", k, v)
	}
}

func handleMigrateTo(database *DB, migrationsFS fs.FS, versionArg string) {
	version, err := strconv.ParseUint(versionArg, 10, 32)
	if err != nil {
		log.Fatalf("Invalid version number %q: %v", versionArg, err)
	}
	if err := database.MigrateTo(migrationsFS, uint(version)); err != nil {
		log.Fatalf("Migration to version %d failed: %v", version, err)
	}
	log.Printf("Migrated to version %d", version)
}

func handleMigrateForce(database *DB, migrationsFS fs.FS, versionArg string) {
	version, err := strconv.Atoi(versionArg)
	if err != nil {
		log.Fatalf("Invalid version number %q: %v", versionArg, err)
	}
	if err := database.MigrateForce(migrationsFS, version); err != nil {
		log.Fatalf("Force version failed: %v", err)
	}
	log.Printf("Forced schema version to %d (dirty flag cleared)", version)
}

func handleMigrateBaseline(database *DB, versionArg string) {
	version, err := strconv.ParseUint(versionArg, 10, 32)
	if err != nil {
		log.Fatalf("Invalid version number %q: %v", versionArg, err)
	}
	if err := database.BaselineAtVersion(uint(version)); err != nil {
		log.Fatalf("Baseline failed: %v", err)
	}
	log.Printf("Baselined schema at version %d", version)
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: repcount [flags] migrate <action>

Actions:
  up                 Apply all pending migrations
  down               Roll back the most recent migration
  status             Show current schema version and pending migrations
  to <version>       Migrate up or down to a specific version
  force <version>    Set the schema version without running migrations
  baseline <version> Mark an existing database as already at <version>
  help               Show this help`)
}
