package xref

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"comicshelf/pkg/database"
	"comicshelf/pkg/models"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.Config{URL: ":memory:"})
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGetOrCreateSourceIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testDB(t))

	first, err := repo.GetOrCreateSource(ctx, "comicvine", "https://comicvine.gamespot.com")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := repo.GetOrCreateSource(ctx, "comicvine", "https://comicvine.gamespot.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int
	require.NoError(t, repo.DB.Get(&count, `SELECT COUNT(*) FROM source`))
	require.Equal(t, 1, count)
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testDB(t))

	src, err := repo.GetOrCreateSource(ctx, "comicvine", "https://comicvine.gamespot.com")
	require.NoError(t, err)

	var seriesID int64
	require.NoError(t, repo.DB.QueryRow(
		`INSERT INTO series (title) VALUES ('Amazing Spider-Man') RETURNING id`,
	).Scan(&seriesID))

	x := &models.SourceXref{
		SourceID:   src.ID,
		EntityType: models.EntitySeries,
		EntityID:   seriesID,
		ExternalID: "2127",
	}
	require.NoError(t, repo.Create(ctx, repo.DB, x))
	require.NotZero(t, x.ID)

	byEntity, err := repo.FindByEntity(ctx, src.ID, models.EntitySeries, seriesID)
	require.NoError(t, err)
	require.NotNil(t, byEntity)
	require.Equal(t, "2127", byEntity.ExternalID)

	byExternal, err := repo.FindByExternal(ctx, src.ID, models.EntitySeries, "2127")
	require.NoError(t, err)
	require.NotNil(t, byExternal)
	require.Equal(t, seriesID, byExternal.EntityID)
}

func TestFindMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testDB(t))

	x, err := repo.FindByEntity(ctx, 1, models.EntityIssue, 42)
	require.NoError(t, err)
	require.Nil(t, x)
}

func TestCreateDuplicateTripleConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testDB(t))

	src, err := repo.GetOrCreateSource(ctx, "comicvine", "https://comicvine.gamespot.com")
	require.NoError(t, err)

	first := &models.SourceXref{SourceID: src.ID, EntityType: models.EntitySeries, EntityID: 1, ExternalID: "V1"}
	require.NoError(t, repo.Create(ctx, repo.DB, first))

	// same external record linked to a different local row
	dup := &models.SourceXref{SourceID: src.ID, EntityType: models.EntitySeries, EntityID: 2, ExternalID: "V1"}
	require.ErrorIs(t, repo.Create(ctx, repo.DB, dup), ErrConflict)

	var count int
	require.NoError(t, repo.DB.Get(&count, `SELECT COUNT(*) FROM source_xref`))
	require.Equal(t, 1, count)
}
