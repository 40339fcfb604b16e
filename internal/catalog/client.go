// Package catalog queries the external comic catalog API ("Comic Vine"
// style) for series volumes and their issues. Both operations are pure
// reads: query in, candidates out, no persistence.
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
)

const (
	// SourceName and SourceURL identify this provider in the source table.
	SourceName = "comicvine"
	SourceURL  = "https://comicvine.gamespot.com"

	defaultBaseURL = "https://comicvine.gamespot.com/api"
)

// Getter is the outbound HTTP surface (implemented by fetch.Fetcher).
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) []byte
}

// Volume is one series candidate returned by the catalog search.
type Volume struct {
	ExternalID string
	Name       string
	Publisher  string
	StartYear  int
	CoverURL   string
}

// IssueRecord is one issue of an external volume.
type IssueRecord struct {
	ExternalID  string
	IssueNumber string
	CoverDate   string
	CoverURL    string
}

type Client struct {
	Fetcher Getter
	APIKey  string
	BaseURL string

	log zerolog.Logger
}

func NewClient(fetcher Getter, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		Fetcher: fetcher,
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		log:     log,
	}
}

// wire format: every endpoint wraps its payload in a "results" list.
type cvResponse[T any] struct {
	Results []T `json:"results"`
}

type cvVolume struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Publisher struct {
		Name string `json:"name"`
	} `json:"publisher"`
	// Comic Vine serializes start_year as a string ("1963").
	StartYear string `json:"start_year"`
	Image     struct {
		OriginalURL string `json:"original_url"`
	} `json:"image"`
}

type cvIssue struct {
	ID          int64  `json:"id"`
	IssueNumber string `json:"issue_number"`
	CoverDate   string `json:"cover_date"`
	Image       struct {
		OriginalURL string `json:"original_url"`
	} `json:"image"`
}

// SearchVolumes looks up series candidates by title substring, in the
// order the catalog ranks them. A missing API key is a configuration
// error: logged, empty result, caller degrades.
func (c *Client) SearchVolumes(ctx context.Context, title string) []Volume {
	if c.APIKey == "" {
		c.log.Error().Msg("COMICVINE_KEY not set; skipping volume search")
		return nil
	}

	params := url.Values{}
	params.Set("api_key", c.APIKey)
	params.Set("format", "json")
	params.Set("query", title)
	params.Set("resources", "volume")

	body := c.Fetcher.Get(ctx, c.BaseURL+"/search/", params, nil)
	if body == nil {
		return nil
	}

	var resp cvResponse[cvVolume]
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Warn().Err(err).Str("title", title).Msg("decode volume search response")
		return nil
	}

	out := make([]Volume, 0, len(resp.Results))
	for _, v := range resp.Results {
		year, _ := strconv.Atoi(v.StartYear)
		out = append(out, Volume{
			ExternalID: strconv.FormatInt(v.ID, 10),
			Name:       v.Name,
			Publisher:  v.Publisher.Name,
			StartYear:  year,
			CoverURL:   v.Image.OriginalURL,
		})
	}
	return out
}

// IssuesForVolume lists all issues of an external volume, sorted by
// issue number ascending.
func (c *Client) IssuesForVolume(ctx context.Context, volumeID string) []IssueRecord {
	if c.APIKey == "" {
		c.log.Error().Msg("COMICVINE_KEY not set; skipping issue listing")
		return nil
	}

	params := url.Values{}
	params.Set("api_key", c.APIKey)
	params.Set("format", "json")
	params.Set("filter", "volume:"+volumeID)
	params.Set("sort", "issue_number:asc")

	body := c.Fetcher.Get(ctx, c.BaseURL+"/issues/", params, nil)
	if body == nil {
		return nil
	}

	var resp cvResponse[cvIssue]
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Warn().Err(err).Str("volume_id", volumeID).Msg("decode issue list response")
		return nil
	}

	out := make([]IssueRecord, 0, len(resp.Results))
	for _, iss := range resp.Results {
		out = append(out, IssueRecord{
			ExternalID:  strconv.FormatInt(iss.ID, 10),
			IssueNumber: iss.IssueNumber,
			CoverDate:   iss.CoverDate,
			CoverURL:    iss.Image.OriginalURL,
		})
	}
	return out
}
