// Package pricing fetches valuation and live-listing data for a
// reconciled issue from two independent sources and persists immutable
// snapshots of everything it saw.
package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

const (
	// ValuationSourceName and ValuationSourceURL identify the valuation
	// provider ("GoCollect" style) in the source table.
	ValuationSourceName = "gocollect"
	ValuationSourceURL  = "https://gocollect.com"

	defaultValuationBaseURL = "https://api.gocollect.com/v1"
)

// Getter is the outbound HTTP surface (implemented by fetch.Fetcher).
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) []byte
}

// Valuation is the decoded insights payload for one item at one grade.
// Raw keeps the untouched response body for the snapshot audit trail.
type Valuation struct {
	Value *float64
	Raw   json.RawMessage
}

type ValuationClient struct {
	Fetcher Getter
	Token   string
	BaseURL string

	log zerolog.Logger
}

func NewValuationClient(fetcher Getter, token string, log zerolog.Logger) *ValuationClient {
	return &ValuationClient{
		Fetcher: fetcher,
		Token:   token,
		BaseURL: defaultValuationBaseURL,
		log:     log,
	}
}

// ItemInsights fetches valuation data for an external item id at a
// grade label ("8.0"). Missing credential or exhausted failure both
// yield nil so the caller can skip the valuation sub-flow.
func (c *ValuationClient) ItemInsights(ctx context.Context, externalID, grade string) *Valuation {
	if c.Token == "" {
		c.log.Error().Msg("GOCOLLECT_KEY not set; skipping valuation lookup")
		return nil
	}

	params := url.Values{}
	params.Set("grade", grade)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.Token)

	body := c.Fetcher.Get(ctx, c.BaseURL+"/insights/item/"+externalID, params, headers)
	if body == nil {
		return nil
	}

	var decoded struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.log.Warn().Err(err).Str("external_id", externalID).Msg("decode valuation response")
		return nil
	}

	return &Valuation{Value: decoded.Value, Raw: body}
}
