package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Config selects the backing engine. URL accepts either a postgres://
// connection string or a sqlite file path (optionally prefixed with
// sqlite://); empty means the default local file.
type Config struct {
	URL string
}

func DefaultConfig() Config {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return Config{URL: u}
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		URL: filepath.Join(home, ".comicshelf", "comics.db"),
	}
}

// driverFor maps a connection URL to a database/sql driver name and DSN.
func driverFor(url string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(url, "sqlite://")
	default:
		return "sqlite3", url
	}
}

func Open(cfg Config) (*sqlx.DB, error) {
	driver, dsn := driverFor(cfg.URL)

	if driver == "sqlite3" && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("ensure data dir: %w", err)
			}
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma foreign_keys: %w", err)
		}
		if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma journal_mode: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

func MustOpen(cfg Config, log zerolog.Logger) *sqlx.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.URL).Msg("failed to open db")
	}
	return db
}
