package database

import (
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Migrate applies the embedded schema for the connected engine. All
// statements are idempotent (CREATE ... IF NOT EXISTS), so calling this
// on every startup is safe.
func Migrate(db *sqlx.DB) error {
	schema := schemaSQLite
	if db.DriverName() == "pgx" {
		schema = schemaPostgres
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
