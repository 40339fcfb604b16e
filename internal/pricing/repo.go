package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"comicshelf/pkg/models"
)

// Repo serves read paths over the pricing audit trail.
type Repo struct {
	DB *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db}
}

// PriceHistoryEntry is one graded valuation with its observation time
// and the source it came from.
type PriceHistoryEntry struct {
	GradeLabel           string          `db:"grade_label" json:"grade_label"`
	FMVUSD               decimal.Decimal `db:"fmv_usd" json:"fmv_usd"`
	ConservativeValueUSD decimal.Decimal `db:"conservative_value_usd" json:"conservative_value_usd"`
	ObservedAt           time.Time       `db:"observed_at" json:"observed_at"`
	Source               string          `db:"source" json:"source"`
}

// PriceHistory lists every graded valuation recorded for an issue,
// newest first.
func (r *Repo) PriceHistory(ctx context.Context, issueID int64) ([]PriceHistoryEntry, error) {
	out := []PriceHistoryEntry{}
	err := r.DB.SelectContext(ctx, &out, r.DB.Rebind(`
		SELECT gp.grade_label, gp.fmv_usd, gp.conservative_value_usd, ps.observed_at, s.name AS source
		FROM graded_price gp
		JOIN price_snapshot ps ON ps.id = gp.snapshot_id
		JOIN source s ON s.id = ps.source_id
		WHERE ps.issue_id = ?
		ORDER BY ps.observed_at DESC, gp.id DESC
	`), issueID)
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	return out, nil
}

// LatestListings returns the market listings captured by the most
// recent listings snapshot for an issue, or an empty slice if none has
// been taken yet.
func (r *Repo) LatestListings(ctx context.Context, issueID int64) ([]models.MarketListing, error) {
	var snapshotID int64
	err := r.DB.GetContext(ctx, &snapshotID, r.DB.Rebind(`
		SELECT ps.id
		FROM price_snapshot ps
		JOIN source s ON s.id = ps.source_id
		WHERE ps.issue_id = ? AND s.name = ?
		ORDER BY ps.observed_at DESC, ps.id DESC
		LIMIT 1
	`), issueID, ListingsSourceName)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.MarketListing{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest listings snapshot: %w", err)
	}

	out := []models.MarketListing{}
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(`
		SELECT id, snapshot_id, listing_id, title, url, price_usd, currency, condition, ended_at
		FROM market_listing
		WHERE snapshot_id = ?
		ORDER BY id
	`), snapshotID)
	if err != nil {
		return nil, fmt.Errorf("latest listings: %w", err)
	}
	return out, nil
}

// RepriceTarget is an issue eligible for a scheduled pricing refresh:
// it holds a valuation cross-reference and has been priced at least
// once, so we know which grade to refresh at.
type RepriceTarget struct {
	Issue      models.Issue
	GradeLabel string
}

// RepriceTargets lists every issue with a valuation xref and its most
// recently recorded grade label.
func (r *Repo) RepriceTargets(ctx context.Context) ([]RepriceTarget, error) {
	rows, err := r.DB.QueryxContext(ctx, r.DB.Rebind(`
		SELECT i.id, i.series_id, i.issue_number, i.cover_date, i.cover_url,
		       (SELECT gp.grade_label
		        FROM graded_price gp
		        JOIN price_snapshot ps ON ps.id = gp.snapshot_id
		        WHERE ps.issue_id = i.id
		        ORDER BY ps.observed_at DESC, gp.id DESC
		        LIMIT 1) AS grade_label
		FROM issue i
		JOIN source_xref sx ON sx.entity_type = ? AND sx.entity_id = i.id
		JOIN source s ON s.id = sx.source_id AND s.name = ?
		ORDER BY i.id
	`), models.EntityIssue, ValuationSourceName)
	if err != nil {
		return nil, fmt.Errorf("reprice targets: %w", err)
	}
	defer rows.Close()

	var out []RepriceTarget
	for rows.Next() {
		var t RepriceTarget
		var grade sql.NullString
		if err := rows.Scan(&t.Issue.ID, &t.Issue.SeriesID, &t.Issue.IssueNumber,
			&t.Issue.CoverDate, &t.Issue.CoverURL, &grade); err != nil {
			return nil, fmt.Errorf("scan reprice target: %w", err)
		}
		if !grade.Valid {
			// never priced; nothing to refresh at
			continue
		}
		t.GradeLabel = grade.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
