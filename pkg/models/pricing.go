package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is an immutable capture of one raw response payload from
// one pricing source for one issue. Snapshots are append-only; repeated
// pricing runs accumulate history rather than overwrite it.
type PriceSnapshot struct {
	ID         int64           `db:"id" json:"id"`
	IssueID    int64           `db:"issue_id" json:"issue_id"`
	SourceID   int64           `db:"source_id" json:"source_id"`
	ObservedAt time.Time       `db:"observed_at" json:"observed_at"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
}

// GradedPrice is a valuation derived from one snapshot at one grade.
// ConservativeValueUSD is always FMV with a fixed 20% haircut.
type GradedPrice struct {
	ID                   int64           `db:"id" json:"id"`
	SnapshotID           int64           `db:"snapshot_id" json:"snapshot_id"`
	GradeLabel           string          `db:"grade_label" json:"grade_label"`
	FMVUSD               decimal.Decimal `db:"fmv_usd" json:"fmv_usd"`
	ConservativeValueUSD decimal.Decimal `db:"conservative_value_usd" json:"conservative_value_usd"`
}

// MarketListing is one observed live marketplace listing belonging to a
// snapshot. Fields the marketplace omitted stay NULL.
type MarketListing struct {
	ID         int64               `db:"id" json:"id"`
	SnapshotID int64               `db:"snapshot_id" json:"snapshot_id"`
	ListingID  string              `db:"listing_id" json:"listing_id"`
	Title      string              `db:"title" json:"title"`
	URL        *string             `db:"url" json:"url,omitempty"`
	PriceUSD   decimal.NullDecimal `db:"price_usd" json:"price_usd,omitempty"`
	Currency   *string             `db:"currency" json:"currency,omitempty"`
	Condition  *string             `db:"condition" json:"condition,omitempty"`
	EndedAt    *time.Time          `db:"ended_at" json:"ended_at,omitempty"`
}
