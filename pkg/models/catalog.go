package models

// Entity types used by SourceXref rows.
const (
	EntitySeries = "series"
	EntityIssue  = "issue"
)

// Source is an external data provider (catalog or pricing). Rows are
// created lazily the first time a provider is used and never updated.
type Source struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	URL  string `db:"url" json:"url"`
}

// Series is one comic title/run, e.g. "Amazing Spider-Man" (1963).
type Series struct {
	ID        int64   `db:"id" json:"id"`
	Title     string  `db:"title" json:"title"`
	Publisher *string `db:"publisher" json:"publisher,omitempty"`
	StartYear *int64  `db:"start_year" json:"start_year,omitempty"`
	CoverURL  *string `db:"cover_url" json:"cover_url,omitempty"`
}

// Issue is one published issue of a Series. IssueNumber is a string on
// purpose: runs contain "½", "Annual 1" and similar non-numeric numbers.
// (series_id, issue_number) is unique.
type Issue struct {
	ID          int64   `db:"id" json:"id"`
	SeriesID    int64   `db:"series_id" json:"series_id"`
	IssueNumber string  `db:"issue_number" json:"issue_number"`
	CoverDate   *string `db:"cover_date" json:"cover_date,omitempty"`
	CoverURL    *string `db:"cover_url" json:"cover_url,omitempty"`
}

// SourceXref links a local entity to the identifier an external source
// uses for the same real-world entity. (source_id, entity_type,
// external_id) is unique, which is what stops the same remote record
// from being imported twice.
type SourceXref struct {
	ID         int64  `db:"id" json:"id"`
	SourceID   int64  `db:"source_id" json:"source_id"`
	EntityType string `db:"entity_type" json:"entity_type"`
	EntityID   int64  `db:"entity_id" json:"entity_id"`
	ExternalID string `db:"external_id" json:"external_id"`
}
