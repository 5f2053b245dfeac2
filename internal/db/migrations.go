// Package db holds the ledger schema migrations.
package db

import "embed"

// Migrations are the goose SQL migrations, applied in filename order
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that goose reads from
const MigrationsDir = "migrations"
