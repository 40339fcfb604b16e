package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"comicshelf/internal/agent"
	"comicshelf/internal/catalog"
	"comicshelf/internal/comics"
	"comicshelf/internal/fetch"
	"comicshelf/internal/pricing"
	"comicshelf/internal/reconcile"
	"comicshelf/internal/xref"
	"comicshelf/pkg/config"
	"comicshelf/pkg/database"
)

func main() {
	imageDir := flag.String("images", "./images", "directory of cover images to process")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall batch deadline")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "agent").Logger()

	cfg := config.Load()
	cfg.LogWarnings(log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db := database.MustOpen(database.Config{URL: cfg.DatabaseURL}, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	fetcher := fetch.New(log)
	comicsRepo := comics.NewRepo(db)
	xrefRepo := xref.NewRepo(db)

	cvClient := catalog.NewClient(fetcher, cfg.ComicVineKey, log)
	reconciler := reconcile.NewEngine(db, cvClient, xrefRepo, comicsRepo, log)

	valuation := pricing.NewValuationClient(fetcher, cfg.GoCollectKey, log)
	listings := pricing.NewListingsClient(fetcher, cfg.EbayToken, log)
	pricer := pricing.NewEngine(db, valuation, listings, xrefRepo, comicsRepo, log)

	runner := agent.NewRunner(agent.NewStubVision(log), agent.DefectGrader{}, reconciler, pricer, nil, log)

	images, err := coverImages(*imageDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *imageDir).Msg("list images failed")
	}
	if len(images) == 0 {
		log.Warn().Str("dir", *imageDir).Msg("no cover images found")
		return
	}

	states := runner.ProcessBatch(ctx, images)

	var done, failed int
	for _, s := range states {
		if s.Phase == agent.PhaseDone {
			done++
		} else {
			failed++
		}
	}
	log.Info().Int("processed", len(states)).Int("done", done).Int("failed", failed).Msg("batch complete")
}

func coverImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
