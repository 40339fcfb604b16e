package pricing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"comicshelf/internal/comics"
	"comicshelf/internal/xref"
	"comicshelf/pkg/models"
)

// conservativeHaircut is the fixed 20% discount applied to fair market
// value. Not configurable.
var conservativeHaircut = decimal.NewFromFloat(0.8)

// ValuationAPI and ListingsAPI are the two independent pricing sources.
type ValuationAPI interface {
	ItemInsights(ctx context.Context, externalID, grade string) *Valuation
}

type ListingsAPI interface {
	Search(ctx context.Context, query string) *ListingResults
}

type Engine struct {
	DB        *sqlx.DB
	Valuation ValuationAPI
	Listings  ListingsAPI
	Xrefs     *xref.Repo
	Comics    *comics.Repo

	log zerolog.Logger
}

func NewEngine(db *sqlx.DB, valuation ValuationAPI, listings ListingsAPI, xrefs *xref.Repo, comicsRepo *comics.Repo, log zerolog.Logger) *Engine {
	return &Engine{
		DB:        db,
		Valuation: valuation,
		Listings:  listings,
		Xrefs:     xrefs,
		Comics:    comicsRepo,
		log:       log,
	}
}

// IngestPricing captures valuation and live-listing data for one issue
// at one grade. The two sub-flows commit independently and a failure in
// one never aborts the other. Every run appends snapshots; nothing is
// overwritten, so price history accumulates over time.
func (e *Engine) IngestPricing(ctx context.Context, issue *models.Issue, grade float64) {
	gradeLabel := fmt.Sprintf("%.1f", grade)

	e.ingestValuation(ctx, issue, gradeLabel)
	e.ingestListings(ctx, issue)
}

func (e *Engine) ingestValuation(ctx context.Context, issue *models.Issue, gradeLabel string) {
	src, err := e.Xrefs.GetOrCreateSource(ctx, ValuationSourceName, ValuationSourceURL)
	if err != nil {
		e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("get or create valuation source failed")
		return
	}

	x, err := e.Xrefs.FindByEntity(ctx, src.ID, models.EntityIssue, issue.ID)
	if err != nil {
		e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("valuation xref lookup failed")
		return
	}
	if x == nil {
		e.log.Warn().Int64("issue_id", issue.ID).Str("issue", issue.IssueNumber).Msg("no valuation cross-reference, skipping pricing")
		return
	}

	val := e.Valuation.ItemInsights(ctx, x.ExternalID, gradeLabel)
	if val == nil {
		e.log.Warn().Str("external_id", x.ExternalID).Msg("no valuation data returned")
		return
	}
	if val.Value == nil {
		e.log.Info().Str("external_id", x.ExternalID).Str("grade", gradeLabel).Msg("no fair market value at this grade")
		return
	}

	fmv := decimal.NewFromFloat(*val.Value)
	conservative := fmv.Mul(conservativeHaircut).Round(2)

	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		snapshotID, err := insertSnapshot(ctx, tx, issue.ID, src.ID, val.Raw)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO graded_price (snapshot_id, grade_label, fmv_usd, conservative_value_usd)
			VALUES (?, ?, ?, ?)
		`), snapshotID, gradeLabel, fmv, conservative)
		if err != nil {
			return fmt.Errorf("insert graded price: %w", err)
		}
		return nil
	})
	if err != nil {
		e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("persist valuation failed")
		return
	}

	e.log.Info().Int64("issue_id", issue.ID).Str("grade", gradeLabel).Str("fmv", fmv.String()).Msg("logged valuation")
}

func (e *Engine) ingestListings(ctx context.Context, issue *models.Issue) {
	series, err := e.Comics.GetSeries(ctx, issue.SeriesID)
	if err != nil || series == nil {
		e.log.Error().Err(err).Int64("series_id", issue.SeriesID).Msg("series lookup for listing search failed")
		return
	}

	query := fmt.Sprintf("%q %q", series.Title, issue.IssueNumber)
	results := e.Listings.Search(ctx, query)
	if results == nil || len(results.Listings) == 0 {
		e.log.Info().Str("query", query).Msg("no live listings found")
		return
	}

	src, err := e.Xrefs.GetOrCreateSource(ctx, ListingsSourceName, ListingsSourceURL)
	if err != nil {
		e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("get or create listings source failed")
		return
	}

	payload, err := json.Marshal(map[string]json.RawMessage{"listings": results.Raw})
	if err != nil {
		e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("encode listings payload")
		return
	}

	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		snapshotID, err := insertSnapshot(ctx, tx, issue.ID, src.ID, payload)
		if err != nil {
			return err
		}

		stmt := tx.Rebind(`
			INSERT INTO market_listing (snapshot_id, listing_id, title, url, price_usd, currency, condition)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		for _, l := range results.Listings {
			price := decimal.NullDecimal{}
			if l.Price != "" {
				if d, err := decimal.NewFromString(l.Price); err == nil {
					price = decimal.NullDecimal{Decimal: d, Valid: true}
				}
			}
			_, err := tx.ExecContext(ctx, stmt,
				snapshotID, l.ItemID, l.Title, nullStr(l.URL), price, nullStr(l.Currency), nullStr(l.Condition))
			if err != nil {
				return fmt.Errorf("insert market listing %s: %w", l.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("persist listings failed")
		return
	}

	e.log.Info().Int64("issue_id", issue.ID).Int("count", len(results.Listings)).Msg("logged live listings")
}

// insertSnapshot writes the immutable raw-payload capture and returns
// its generated id for the rows that hang off it.
func insertSnapshot(ctx context.Context, tx *sqlx.Tx, issueID, sourceID int64, payload []byte) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, tx.Rebind(`
		INSERT INTO price_snapshot (issue_id, source_id, payload)
		VALUES (?, ?, ?)
		RETURNING id
	`), issueID, sourceID, string(payload)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

func (e *Engine) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
