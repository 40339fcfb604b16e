package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

const (
	// ListingsSourceName and ListingsSourceURL identify the marketplace
	// provider ("eBay" style) in the source table.
	ListingsSourceName = "ebay"
	ListingsSourceURL  = "https://www.ebay.com"

	defaultListingsBaseURL = "https://api.ebay.com/buy/browse/v1"

	// comics category, generous limit for sampling
	listingsCategory = "63"
	listingsLimit    = "50"
)

// Listing is one live marketplace listing. Price comes over the wire as
// a string and is converted at persistence time.
type Listing struct {
	ItemID    string `json:"itemId"`
	Title     string `json:"title"`
	URL       string `json:"itemWebUrl"`
	Price     string
	Currency  string
	Condition string `json:"condition"`
}

// ListingResults pairs the decoded listings with the raw itemSummaries
// array for the snapshot audit trail.
type ListingResults struct {
	Listings []Listing
	Raw      json.RawMessage
}

type ListingsClient struct {
	Fetcher Getter
	Token   string
	BaseURL string

	log zerolog.Logger
}

func NewListingsClient(fetcher Getter, token string, log zerolog.Logger) *ListingsClient {
	return &ListingsClient{
		Fetcher: fetcher,
		Token:   token,
		BaseURL: defaultListingsBaseURL,
		log:     log,
	}
}

type ebaySummary struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	ItemWebURL string `json:"itemWebUrl"`
	Price      struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	Condition string `json:"condition"`
}

// Search queries live listings matching the query string. Missing
// credential or exhausted failure yield nil.
func (c *ListingsClient) Search(ctx context.Context, query string) *ListingResults {
	if c.Token == "" {
		c.log.Error().Msg("EBAY_TOKEN not set; skipping listing search")
		return nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("category_ids", listingsCategory)
	params.Set("limit", listingsLimit)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.Token)
	headers.Set("X-EBAY-C-MARKETPLACE-ID", "EBAY_US")

	body := c.Fetcher.Get(ctx, c.BaseURL+"/item_summary/search", params, headers)
	if body == nil {
		return nil
	}

	var decoded struct {
		ItemSummaries []json.RawMessage `json:"itemSummaries"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("decode listing search response")
		return nil
	}
	if len(decoded.ItemSummaries) == 0 {
		return nil
	}

	listings := make([]Listing, 0, len(decoded.ItemSummaries))
	for _, raw := range decoded.ItemSummaries {
		var s ebaySummary
		if err := json.Unmarshal(raw, &s); err != nil {
			c.log.Warn().Err(err).Msg("skipping undecodable listing")
			continue
		}
		listings = append(listings, Listing{
			ItemID:    s.ItemID,
			Title:     s.Title,
			URL:       s.ItemWebURL,
			Price:     s.Price.Value,
			Currency:  s.Price.Currency,
			Condition: s.Condition,
		})
	}

	rawArray, err := json.Marshal(decoded.ItemSummaries)
	if err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("re-encode listing array")
		return nil
	}

	return &ListingResults{Listings: listings, Raw: rawArray}
}
