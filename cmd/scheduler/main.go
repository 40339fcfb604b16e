package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"comicshelf/internal/comics"
	"comicshelf/internal/fetch"
	"comicshelf/internal/pricing"
	"comicshelf/internal/xref"
	"comicshelf/pkg/config"
	"comicshelf/pkg/database"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "scheduler").Logger()

	cfg := config.Load()
	cfg.LogWarnings(log)

	db := database.MustOpen(database.Config{URL: cfg.DatabaseURL}, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	fetcher := fetch.New(log)
	xrefRepo := xref.NewRepo(db)
	comicsRepo := comics.NewRepo(db)
	pricingRepo := pricing.NewRepo(db)

	valuation := pricing.NewValuationClient(fetcher, cfg.GoCollectKey, log)
	listings := pricing.NewListingsClient(fetcher, cfg.EbayToken, log)
	pricer := pricing.NewEngine(db, valuation, listings, xrefRepo, comicsRepo, log)

	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		repriceAll(ctx, pricingRepo, pricer, log)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.RepriceCron, job); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.RepriceCron).Msg("invalid reprice schedule")
	}

	log.Info().Str("cron", cfg.RepriceCron).Msg("reprice scheduler started")
	c.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	// Let any in-flight run finish before exiting.
	<-c.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// repriceAll refreshes pricing for every issue that has been priced
// before, reusing the grade from its latest snapshot.
func repriceAll(ctx context.Context, repo *pricing.Repo, pricer *pricing.Engine, log zerolog.Logger) {
	targets, err := repo.RepriceTargets(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list reprice targets failed")
		return
	}
	log.Info().Int("targets", len(targets)).Msg("reprice run started")

	var done int
	for _, t := range targets {
		grade, err := strconv.ParseFloat(t.GradeLabel, 64)
		if err != nil {
			log.Warn().Int64("issue_id", t.Issue.ID).Str("grade_label", t.GradeLabel).Msg("unparseable grade label, skipping")
			continue
		}
		iss := t.Issue
		pricer.IngestPricing(ctx, &iss, grade)
		done++

		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("reprice run cut short")
			break
		}
	}
	log.Info().Int("repriced", done).Msg("reprice run complete")
}
