package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/kevin07696/marketplace-ledger/internal/adapters/secrets"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	ledgerdb "github.com/kevin07696/marketplace-ledger/internal/db"
	"github.com/kevin07696/marketplace-ledger/pkg/resilience"
)

const (
	dialect      = "postgres"
	pingAttempts = 5
)

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	dir   = flags.String("dir", "", "directory with migration files (default: migrations embedded in the binary)")
)

func main() {
	flags.Usage = usage
	flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return
	}

	command := args[0]

	migrationsDir := *dir
	if migrationsDir == "" {
		if command == "create" {
			log.Fatalf("create needs -dir pointing at internal/db/migrations")
		}
		goose.SetBaseFS(ledgerdb.Migrations)
		migrationsDir = ledgerdb.MigrationsDir
	}

	cfg, err := config.LoadStorageFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()
	sm, err := secrets.New(ctx, cfg.Secrets, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to init secret manager: %v", err)
	}
	if err := secrets.ResolveDatabasePassword(ctx, sm, &cfg.Database); err != nil {
		log.Fatalf("%v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// The database container may still be starting
	ping := func(ctx context.Context) error { return db.PingContext(ctx) }
	retryAll := func(error) bool { return true }
	if err := resilience.Retry(ctx, resilience.JobBackoff(), pingAttempts, retryAll, ping); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := goose.SetDialect(dialect); err != nil {
		log.Fatalf("failed to set dialect: %v", err)
	}

	if err := goose.RunContext(ctx, command, db, migrationsDir, args[1:]...); err != nil {
		log.Fatalf("goose %v: %v", command, err)
	}
}

func usage() {
	fmt.Print(`Usage: migrate [-dir DIR] COMMAND

Reads DB_* and SECRET_MANAGER settings from the environment (or .env).

Commands:
    up                   Migrate the DB to the most recent version available
    up-by-one            Migrate the DB up by 1
    up-to VERSION        Migrate the DB to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status for the current DB
    version              Print the current version of the database
    create NAME [sql|go] Creates new migration file with the current timestamp

Examples:
    migrate up
    migrate status
    migrate -dir internal/db/migrations create add_payout_holds sql
`)
}
