// Package xref is the durable mapping between local entities and the
// identifiers external sources use for them.
package xref

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"comicshelf/pkg/database"
	"comicshelf/pkg/models"
)

// ErrConflict means the (source, entity_type, external_id) triple is
// already linked. Callers recover by re-reading, not by failing.
var ErrConflict = errors.New("cross-reference already exists")

type Repo struct {
	DB *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db}
}

// GetOrCreateSource is an atomic insert-ignore-reselect: two concurrent
// callers for the same new source both succeed and observe one row.
func (r *Repo) GetOrCreateSource(ctx context.Context, name, url string) (*models.Source, error) {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO source (name, url) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`), name, url)
	if err != nil {
		return nil, fmt.Errorf("insert source %q: %w", name, err)
	}

	var src models.Source
	err = r.DB.GetContext(ctx, &src, r.DB.Rebind(`
		SELECT id, name, url FROM source WHERE name = ?
	`), name)
	if err != nil {
		return nil, fmt.Errorf("select source %q: %w", name, err)
	}
	return &src, nil
}

// FindByEntity returns the xref for a local entity under one source, or
// nil when the entity has never been linked.
func (r *Repo) FindByEntity(ctx context.Context, sourceID int64, entityType string, entityID int64) (*models.SourceXref, error) {
	var x models.SourceXref
	err := r.DB.GetContext(ctx, &x, r.DB.Rebind(`
		SELECT id, source_id, entity_type, entity_id, external_id
		FROM source_xref
		WHERE source_id = ? AND entity_type = ? AND entity_id = ?
	`), sourceID, entityType, entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find xref by entity: %w", err)
	}
	return &x, nil
}

// FindByExternal resolves an external identifier back to the local
// entity it was linked to, or nil if unknown.
func (r *Repo) FindByExternal(ctx context.Context, sourceID int64, entityType, externalID string) (*models.SourceXref, error) {
	var x models.SourceXref
	err := r.DB.GetContext(ctx, &x, r.DB.Rebind(`
		SELECT id, source_id, entity_type, entity_id, external_id
		FROM source_xref
		WHERE source_id = ? AND entity_type = ? AND external_id = ?
	`), sourceID, entityType, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find xref by external id: %w", err)
	}
	return &x, nil
}

// Create inserts a new xref within the caller's transaction. The row
// being linked must already have its generated id. Returns ErrConflict
// when the unique triple exists.
func (r *Repo) Create(ctx context.Context, ext sqlx.ExtContext, x *models.SourceXref) error {
	err := sqlx.GetContext(ctx, ext, &x.ID, ext.Rebind(`
		INSERT INTO source_xref (source_id, entity_type, entity_id, external_id)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), x.SourceID, x.EntityType, x.EntityID, x.ExternalID)
	if database.IsConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert xref: %w", err)
	}
	return nil
}
