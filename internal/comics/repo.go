package comics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"comicshelf/pkg/models"
)

type Repo struct {
	DB *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db}
}

// FindIssue is the reconciliation fast path: case-insensitive substring
// match on the series title joined to an exact issue-number match.
// Returns nil when there is no local record.
func (r *Repo) FindIssue(ctx context.Context, seriesTitle, issueNumber string) (*models.Issue, error) {
	var iss models.Issue
	err := r.DB.GetContext(ctx, &iss, r.DB.Rebind(`
		SELECT i.id, i.series_id, i.issue_number, i.cover_date, i.cover_url
		FROM issue i
		JOIN series s ON s.id = i.series_id
		WHERE LOWER(s.title) LIKE ? AND i.issue_number = ?
		ORDER BY i.id
		LIMIT 1
	`), contains(seriesTitle), issueNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find issue: %w", err)
	}
	return &iss, nil
}

// FindSeriesByTitle returns the first series whose title contains the
// given text (case-insensitive), or nil.
func (r *Repo) FindSeriesByTitle(ctx context.Context, title string) (*models.Series, error) {
	var s models.Series
	err := r.DB.GetContext(ctx, &s, r.DB.Rebind(`
		SELECT id, title, publisher, start_year, cover_url
		FROM series
		WHERE LOWER(title) LIKE ?
		ORDER BY id
		LIMIT 1
	`), contains(title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find series by title: %w", err)
	}
	return &s, nil
}

// InsertSeries writes a new series row inside the caller's transaction
// and fills in its generated id.
func (r *Repo) InsertSeries(ctx context.Context, ext sqlx.ExtContext, s *models.Series) error {
	err := sqlx.GetContext(ctx, ext, &s.ID, ext.Rebind(`
		INSERT INTO series (title, publisher, start_year, cover_url)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), s.Title, s.Publisher, s.StartYear, s.CoverURL)
	if err != nil {
		return fmt.Errorf("insert series: %w", err)
	}
	return nil
}

// InsertIssue writes a new issue row inside the caller's transaction and
// fills in its generated id. The (series_id, issue_number) unique
// constraint surfaces as a raw conflict error for the caller to classify.
func (r *Repo) InsertIssue(ctx context.Context, ext sqlx.ExtContext, iss *models.Issue) error {
	err := sqlx.GetContext(ctx, ext, &iss.ID, ext.Rebind(`
		INSERT INTO issue (series_id, issue_number, cover_date, cover_url)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), iss.SeriesID, iss.IssueNumber, iss.CoverDate, iss.CoverURL)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *Repo) GetSeries(ctx context.Context, id int64) (*models.Series, error) {
	var s models.Series
	err := r.DB.GetContext(ctx, &s, r.DB.Rebind(`
		SELECT id, title, publisher, start_year, cover_url FROM series WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return &s, nil
}

func (r *Repo) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	var iss models.Issue
	err := r.DB.GetContext(ctx, &iss, r.DB.Rebind(`
		SELECT id, series_id, issue_number, cover_date, cover_url FROM issue WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &iss, nil
}

// GetIssueByNumber does an exact (series_id, issue_number) lookup, used
// to re-read after a concurrent insert won the unique constraint.
func (r *Repo) GetIssueByNumber(ctx context.Context, seriesID int64, issueNumber string) (*models.Issue, error) {
	var iss models.Issue
	err := r.DB.GetContext(ctx, &iss, r.DB.Rebind(`
		SELECT id, series_id, issue_number, cover_date, cover_url
		FROM issue
		WHERE series_id = ? AND issue_number = ?
	`), seriesID, issueNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue by number: %w", err)
	}
	return &iss, nil
}

func (r *Repo) ListSeries(ctx context.Context, q string, limit, offset int) ([]models.Series, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, title, publisher, start_year, cover_url
		FROM series
	`
	var args []any
	if strings.TrimSpace(q) != "" {
		query += ` WHERE LOWER(title) LIKE ?`
		args = append(args, contains(q))
	}
	query += ` ORDER BY title ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	out := make([]models.Series, 0, limit)
	if err := r.DB.SelectContext(ctx, &out, r.DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return out, nil
}

func (r *Repo) ListIssues(ctx context.Context, seriesID int64) ([]models.Issue, error) {
	out := []models.Issue{}
	err := r.DB.SelectContext(ctx, &out, r.DB.Rebind(`
		SELECT id, series_id, issue_number, cover_date, cover_url
		FROM issue
		WHERE series_id = ?
		ORDER BY issue_number ASC
	`), seriesID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return out, nil
}

func contains(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
