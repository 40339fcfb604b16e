// Package reconcile maps fuzzy human-entered (series title, issue
// number) pairs to canonical local records, importing them from the
// external catalog when absent and linking every import with a
// cross-reference so the same remote record is never created twice.
package reconcile

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"comicshelf/internal/catalog"
	"comicshelf/internal/comics"
	"comicshelf/internal/xref"
	"comicshelf/pkg/database"
	"comicshelf/pkg/models"
)

// Catalog is the external lookup surface (implemented by catalog.Client).
type Catalog interface {
	SearchVolumes(ctx context.Context, title string) []catalog.Volume
	IssuesForVolume(ctx context.Context, volumeID string) []catalog.IssueRecord
}

type Engine struct {
	DB      *sqlx.DB
	Catalog Catalog
	Xrefs   *xref.Repo
	Comics  *comics.Repo

	log zerolog.Logger
}

func NewEngine(db *sqlx.DB, cat Catalog, xrefs *xref.Repo, comicsRepo *comics.Repo, log zerolog.Logger) *Engine {
	return &Engine{
		DB:      db,
		Catalog: cat,
		Xrefs:   xrefs,
		Comics:  comicsRepo,
		log:     log,
	}
}

// Reconcile finds or creates the local Issue for a fuzzy title/number
// pair. Best effort by contract: any failure is logged and yields nil,
// never an error, so one bad comic cannot halt a batch.
//
// A local hit returns immediately without touching the network.
func (e *Engine) Reconcile(ctx context.Context, seriesTitle, issueNumber string) *models.Issue {
	iss, err := e.Comics.FindIssue(ctx, seriesTitle, issueNumber)
	if err != nil {
		e.log.Error().Err(err).Str("series", seriesTitle).Str("issue", issueNumber).Msg("local issue lookup failed")
		return nil
	}
	if iss != nil {
		e.log.Debug().Str("series", seriesTitle).Str("issue", issueNumber).Int64("issue_id", iss.ID).Msg("found existing issue")
		return iss
	}

	series := e.resolveSeries(ctx, seriesTitle)
	if series == nil {
		return nil
	}
	return e.resolveIssue(ctx, series, issueNumber)
}

// resolveSeries finds the local series by substring, or imports the
// first catalog candidate. Ambiguous titles resolve to whatever the
// external ranking returns first.
func (e *Engine) resolveSeries(ctx context.Context, title string) *models.Series {
	s, err := e.Comics.FindSeriesByTitle(ctx, title)
	if err != nil {
		e.log.Error().Err(err).Str("series", title).Msg("local series lookup failed")
		return nil
	}
	if s != nil {
		return s
	}

	e.log.Info().Str("series", title).Msg("series not in db, searching catalog")
	vols := e.Catalog.SearchVolumes(ctx, title)
	if len(vols) == 0 {
		e.log.Warn().Str("series", title).Msg("no catalog volume found")
		return nil
	}
	vol := vols[0]

	src, err := e.Xrefs.GetOrCreateSource(ctx, catalog.SourceName, catalog.SourceURL)
	if err != nil {
		e.log.Error().Err(err).Str("series", title).Msg("get or create catalog source failed")
		return nil
	}

	name := vol.Name
	if name == "" {
		name = title
	}
	series := &models.Series{
		Title:     name,
		Publisher: strPtr(vol.Publisher),
		StartYear: intPtr(vol.StartYear),
		CoverURL:  strPtr(vol.CoverURL),
	}

	// series row and its xref commit as one unit: the row is flushed
	// first so the xref can reference its generated id.
	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := e.Comics.InsertSeries(ctx, tx, series); err != nil {
			return err
		}
		return e.Xrefs.Create(ctx, tx, &models.SourceXref{
			SourceID:   src.ID,
			EntityType: models.EntitySeries,
			EntityID:   series.ID,
			ExternalID: vol.ExternalID,
		})
	})
	if err != nil {
		return e.recoverSeries(ctx, src.ID, vol.ExternalID, title, err)
	}

	e.log.Info().Str("series", series.Title).Int64("series_id", series.ID).Str("external_id", vol.ExternalID).Msg("created series from catalog")
	return series
}

// recoverSeries handles the expected race: a concurrent reconciliation
// imported the same volume first. The conflict is treated as "already
// linked" and resolved by re-reading.
func (e *Engine) recoverSeries(ctx context.Context, sourceID int64, externalID, title string, cause error) *models.Series {
	if !isConflict(cause) {
		e.log.Error().Err(cause).Str("series", title).Msg("create series failed")
		return nil
	}

	x, err := e.Xrefs.FindByExternal(ctx, sourceID, models.EntitySeries, externalID)
	if err != nil || x == nil {
		e.log.Error().Err(err).Str("series", title).Str("external_id", externalID).Msg("series conflict but no existing link")
		return nil
	}
	s, err := e.Comics.GetSeries(ctx, x.EntityID)
	if err != nil || s == nil {
		e.log.Error().Err(err).Int64("series_id", x.EntityID).Msg("series link points at missing row")
		return nil
	}
	return s
}

// resolveIssue imports the exact-number issue of a known series from
// the catalog.
func (e *Engine) resolveIssue(ctx context.Context, series *models.Series, issueNumber string) *models.Issue {
	src, err := e.Xrefs.GetOrCreateSource(ctx, catalog.SourceName, catalog.SourceURL)
	if err != nil {
		e.log.Error().Err(err).Str("series", series.Title).Msg("get or create catalog source failed")
		return nil
	}

	seriesXref, err := e.Xrefs.FindByEntity(ctx, src.ID, models.EntitySeries, series.ID)
	if err != nil {
		e.log.Error().Err(err).Str("series", series.Title).Msg("series xref lookup failed")
		return nil
	}
	if seriesXref == nil {
		e.log.Warn().Str("series", series.Title).Msg("no catalog cross-reference for series")
		return nil
	}

	records := e.Catalog.IssuesForVolume(ctx, seriesXref.ExternalID)
	var match *catalog.IssueRecord
	for i := range records {
		if records[i].IssueNumber == issueNumber {
			match = &records[i]
			break
		}
	}
	if match == nil {
		e.log.Warn().Str("series", series.Title).Str("issue", issueNumber).Msg("no matching catalog issue")
		return nil
	}

	iss := &models.Issue{
		SeriesID:    series.ID,
		IssueNumber: match.IssueNumber,
		CoverDate:   strPtr(match.CoverDate),
		CoverURL:    strPtr(match.CoverURL),
	}

	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := e.Comics.InsertIssue(ctx, tx, iss); err != nil {
			return err
		}
		return e.Xrefs.Create(ctx, tx, &models.SourceXref{
			SourceID:   src.ID,
			EntityType: models.EntityIssue,
			EntityID:   iss.ID,
			ExternalID: match.ExternalID,
		})
	})
	if err != nil {
		return e.recoverIssue(ctx, series, issueNumber, err)
	}

	e.log.Info().Str("series", series.Title).Str("issue", iss.IssueNumber).Int64("issue_id", iss.ID).Msg("created issue from catalog")
	return iss
}

func (e *Engine) recoverIssue(ctx context.Context, series *models.Series, issueNumber string, cause error) *models.Issue {
	if !isConflict(cause) {
		e.log.Error().Err(cause).Str("series", series.Title).Str("issue", issueNumber).Msg("create issue failed")
		return nil
	}

	iss, err := e.Comics.GetIssueByNumber(ctx, series.ID, issueNumber)
	if err != nil || iss == nil {
		e.log.Error().Err(err).Str("series", series.Title).Str("issue", issueNumber).Msg("issue conflict but no existing row")
		return nil
	}
	return iss
}

// inTx runs fn in a transaction; any error rolls the whole sub-step
// back so an issue is never left without a usable xref or vice versa.
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

func isConflict(err error) bool {
	return errors.Is(err, xref.ErrConflict) || database.IsConflict(err)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int64 {
	if n == 0 {
		return nil
	}
	v := int64(n)
	return &v
}
