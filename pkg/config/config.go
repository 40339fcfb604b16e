package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the full environment-derived configuration. Credentials may
// legitimately be empty: the client owning that credential degrades to
// empty results instead of aborting, so a partially configured install
// can still run the flows it has keys for.
type Config struct {
	DatabaseURL string

	ComicVineKey string
	GoCollectKey string
	EbayToken    string

	APIAddr     string
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration

	AdminUser         string
	AdminPasswordHash string

	RepriceCron string
}

// Warning flags one degraded capability found during startup validation.
type Warning struct {
	Key    string
	Detail string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ComicVineKey:      os.Getenv("COMICVINE_KEY"),
		GoCollectKey:      os.Getenv("GOCOLLECT_KEY"),
		EbayToken:         os.Getenv("EBAY_TOKEN"),
		APIAddr:           getenv("COMICSHELF_API_ADDR", ":8080"),
		JWTSecret:         getenv("COMICSHELF_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:         getenv("COMICSHELF_JWT_ISSUER", "comicshelf"),
		JWTDuration:       24 * time.Hour,
		AdminUser:         getenv("COMICSHELF_ADMIN_USER", "admin"),
		AdminPasswordHash: os.Getenv("COMICSHELF_ADMIN_PASSWORD_HASH"),
		RepriceCron:       getenv("COMICSHELF_REPRICE_CRON", "@daily"),
	}
	return cfg
}

// Validate reports every capability that will run degraded with this
// configuration. Run once at startup; per-call credential checks in the
// clients still exist but should never be the first place a missing key
// is noticed.
func (c Config) Validate() []Warning {
	var warns []Warning

	if c.ComicVineKey == "" {
		warns = append(warns, Warning{"COMICVINE_KEY", "catalog lookups will return no results"})
	}
	if c.GoCollectKey == "" {
		warns = append(warns, Warning{"GOCOLLECT_KEY", "valuation lookups will return no results"})
	}
	if c.EbayToken == "" {
		warns = append(warns, Warning{"EBAY_TOKEN", "marketplace listing searches will return no results"})
	}
	if c.AdminPasswordHash == "" {
		warns = append(warns, Warning{"COMICSHELF_ADMIN_PASSWORD_HASH", "admin endpoints are disabled"})
	}
	if c.JWTSecret == "dev-secret-change-me" {
		warns = append(warns, Warning{"COMICSHELF_JWT_SECRET", "using the built-in dev secret"})
	}
	return warns
}

// LogWarnings emits the validation result as structured warnings.
func (c Config) LogWarnings(log zerolog.Logger) {
	for _, w := range c.Validate() {
		log.Warn().Str("key", w.Key).Msg(w.Detail)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
