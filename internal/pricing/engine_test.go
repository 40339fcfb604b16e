package pricing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"comicshelf/internal/comics"
	"comicshelf/internal/xref"
	"comicshelf/pkg/database"
	"comicshelf/pkg/models"
)

type fakeValuation struct {
	value *float64
	calls int
}

func (f *fakeValuation) ItemInsights(_ context.Context, externalID, grade string) *Valuation {
	f.calls++
	if f.value == nil {
		return &Valuation{Raw: json.RawMessage(`{}`)}
	}
	raw, _ := json.Marshal(map[string]any{"item_id": externalID, "grade": grade, "value": *f.value})
	return &Valuation{Value: f.value, Raw: raw}
}

type fakeListings struct {
	results *ListingResults
	queries []string
}

func (f *fakeListings) Search(_ context.Context, query string) *ListingResults {
	f.queries = append(f.queries, query)
	return f.results
}

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.Config{URL: ":memory:"})
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedIssue creates a series + issue pair, optionally linked to the
// valuation source under externalID.
func seedIssue(t *testing.T, db *sqlx.DB, externalID string) *models.Issue {
	t.Helper()
	ctx := context.Background()
	comicsRepo := comics.NewRepo(db)
	xrefs := xref.NewRepo(db)

	series := &models.Series{Title: "Amazing Spider-Man"}
	require.NoError(t, comicsRepo.InsertSeries(ctx, db, series))

	iss := &models.Issue{SeriesID: series.ID, IssueNumber: "101"}
	require.NoError(t, comicsRepo.InsertIssue(ctx, db, iss))

	if externalID != "" {
		src, err := xrefs.GetOrCreateSource(ctx, ValuationSourceName, ValuationSourceURL)
		require.NoError(t, err)
		require.NoError(t, xrefs.Create(ctx, db, &models.SourceXref{
			SourceID:   src.ID,
			EntityType: models.EntityIssue,
			EntityID:   iss.ID,
			ExternalID: externalID,
		}))
	}
	return iss
}

func sampleListings() *ListingResults {
	return &ListingResults{
		Listings: []Listing{
			{ItemID: "L1", Title: "ASM 101 CGC 8.0", URL: "http://x/l1", Price: "240.00", Currency: "USD", Condition: "Used"},
			{ItemID: "L2", Title: "Amazing Spider-Man #101 raw"},
		},
		Raw: json.RawMessage(`[{"itemId":"L1"},{"itemId":"L2"}]`),
	}
}

func newTestEngine(db *sqlx.DB, val ValuationAPI, lst ListingsAPI) *Engine {
	return NewEngine(db, val, lst, xref.NewRepo(db), comics.NewRepo(db), zerolog.Nop())
}

func TestIngestPricingPersistsValuationAndListings(t *testing.T) {
	db := testDB(t)
	iss := seedIssue(t, db, "93358")

	fmv := 123.45
	val := &fakeValuation{value: &fmv}
	lst := &fakeListings{results: sampleListings()}

	newTestEngine(db, val, lst).IngestPricing(context.Background(), iss, 8.0)

	var snapshots, gradedPrices, listings int
	require.NoError(t, db.Get(&snapshots, `SELECT COUNT(*) FROM price_snapshot`))
	require.NoError(t, db.Get(&gradedPrices, `SELECT COUNT(*) FROM graded_price`))
	require.NoError(t, db.Get(&listings, `SELECT COUNT(*) FROM market_listing`))
	require.Equal(t, 2, snapshots)
	require.Equal(t, 1, gradedPrices)
	require.Equal(t, 2, listings)

	var gp models.GradedPrice
	require.NoError(t, db.Get(&gp, `SELECT id, snapshot_id, grade_label, fmv_usd, conservative_value_usd FROM graded_price`))
	require.Equal(t, "8.0", gp.GradeLabel)
	require.True(t, gp.FMVUSD.Equal(decimal.NewFromFloat(123.45)), "fmv = %s", gp.FMVUSD)
	// conservative value is always round(fmv * 0.8, 2)
	require.True(t, gp.ConservativeValueUSD.Equal(decimal.NewFromFloat(98.76)), "conservative = %s", gp.ConservativeValueUSD)

	// quoted title and issue number form the search query
	require.Equal(t, []string{`"Amazing Spider-Man" "101"`}, lst.queries)
}

func TestIngestPricingWithoutValuationXref(t *testing.T) {
	db := testDB(t)
	iss := seedIssue(t, db, "") // no valuation link

	fmv := 50.0
	val := &fakeValuation{value: &fmv}
	lst := &fakeListings{results: sampleListings()}

	newTestEngine(db, val, lst).IngestPricing(context.Background(), iss, 6.5)

	// valuation sub-flow skipped entirely, listings still ingested
	require.Zero(t, val.calls)

	var gradedPrices, listings int
	require.NoError(t, db.Get(&gradedPrices, `SELECT COUNT(*) FROM graded_price`))
	require.NoError(t, db.Get(&listings, `SELECT COUNT(*) FROM market_listing`))
	require.Zero(t, gradedPrices)
	require.Equal(t, 2, listings)
}

func TestIngestPricingNoFMVSkipsValuation(t *testing.T) {
	db := testDB(t)
	iss := seedIssue(t, db, "93358")

	val := &fakeValuation{} // payload without a usable value field
	lst := &fakeListings{}

	newTestEngine(db, val, lst).IngestPricing(context.Background(), iss, 8.0)

	require.Equal(t, 1, val.calls)

	var snapshots int
	require.NoError(t, db.Get(&snapshots, `SELECT COUNT(*) FROM price_snapshot`))
	require.Zero(t, snapshots)
}

func TestIngestPricingListingFieldsTolerateGaps(t *testing.T) {
	db := testDB(t)
	iss := seedIssue(t, db, "")

	lst := &fakeListings{results: sampleListings()}
	newTestEngine(db, &fakeValuation{}, lst).IngestPricing(context.Background(), iss, 8.0)

	var rows []models.MarketListing
	require.NoError(t, db.Select(&rows,
		`SELECT id, snapshot_id, listing_id, title, url, price_usd, currency, condition, ended_at FROM market_listing ORDER BY id`))
	require.Len(t, rows, 2)

	require.True(t, rows[0].PriceUSD.Valid)
	require.True(t, rows[0].PriceUSD.Decimal.Equal(decimal.NewFromFloat(240.0)))

	// second listing had no price/url/condition on the wire
	require.False(t, rows[1].PriceUSD.Valid)
	require.Nil(t, rows[1].URL)
	require.Nil(t, rows[1].Condition)
}

func TestIngestPricingAccumulatesSnapshots(t *testing.T) {
	db := testDB(t)
	iss := seedIssue(t, db, "93358")

	fmv := 100.0
	e := newTestEngine(db, &fakeValuation{value: &fmv}, &fakeListings{})

	e.IngestPricing(context.Background(), iss, 8.0)
	e.IngestPricing(context.Background(), iss, 8.0)

	var snapshots, gradedPrices int
	require.NoError(t, db.Get(&snapshots, `SELECT COUNT(*) FROM price_snapshot`))
	require.NoError(t, db.Get(&gradedPrices, `SELECT COUNT(*) FROM graded_price`))
	require.Equal(t, 2, snapshots)
	require.Equal(t, 2, gradedPrices)
}

func TestRepriceTargets(t *testing.T) {
	db := testDB(t)
	iss := seedIssue(t, db, "93358")

	fmv := 100.0
	newTestEngine(db, &fakeValuation{value: &fmv}, &fakeListings{}).
		IngestPricing(context.Background(), iss, 8.5)

	targets, err := NewRepo(db).RepriceTargets(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, iss.ID, targets[0].Issue.ID)
	require.Equal(t, "8.5", targets[0].GradeLabel)
}

func TestRepriceTargetsSkipsUnpricedIssues(t *testing.T) {
	db := testDB(t)
	seedIssue(t, db, "93358") // linked but never priced

	targets, err := NewRepo(db).RepriceTargets(context.Background())
	require.NoError(t, err)
	require.Empty(t, targets)
}
