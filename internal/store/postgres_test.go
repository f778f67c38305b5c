package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/model"
)

var featureCols = []string{
	"id", "address", "price", "height", "year_built", "owner", "land_use",
	"yield", "appreciation_rate", "zoning_risk", "st_asewkb",
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresStore(mock), mock
}

func footprint(west, south float64) model.Geometry {
	return geospatial.BBox{West: west, South: south, East: west + 0.0003, North: south + 0.0003}.Polygon()
}

func sampleFeature(id string, price float64) model.Feature {
	return model.Feature{
		Type:     model.TypeFeature,
		ID:       id,
		Geometry: footprint(-122.4194, 37.7749),
		Properties: model.Attributes{
			Address:          "1 Market St",
			Price:            model.Float(price),
			Height:           model.Float(50),
			YearBuilt:        model.Int(1998),
			Owner:            "Acme Holdings",
			LandUse:          model.LandUseCommercial,
			Yield:            model.Float(0.05),
			AppreciationRate: model.Float(0.07),
			ZoningRisk:       model.Float(0.1),
		},
	}
}

func featureRow(t *testing.T, rows *pgxmock.Rows, f model.Feature) *pgxmock.Rows {
	t.Helper()
	wkb, err := geospatial.EncodeEWKB(f.Geometry)
	require.NoError(t, err)
	p := f.Properties
	return rows.AddRow(f.ID, p.Address, p.Price, p.Height, p.YearBuilt, p.Owner, string(p.LandUse),
		p.Yield, p.AppreciationRate, p.ZoningRisk, wkb)
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := sampleFeature("p1", 1_200_000)

	mock.ExpectQuery(`FROM terrascope.properties WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(featureRow(t, pgxmock.NewRows(featureCols), want))

	got, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM terrascope.properties WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM terrascope.properties WHERE id = \$1`).
		WithArgs("p1").
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := s.Get(context.Background(), "p1")
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Find_AllFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	bbox := geospatial.BBox{West: -122.43, South: 37.77, East: -122.40, North: 37.80}
	mock.ExpectQuery(`WHERE ST_Within\(geom, ST_MakeEnvelope\(\$1, \$2, \$3, \$4, 4326\)\) AND price >= \$5 AND price <= \$6 AND address ILIKE \$7 ORDER BY created_at, id LIMIT \$8`).
		WithArgs(-122.43, 37.77, -122.40, 37.80, 0.0, 5_000_000.0, `%50\% off%`, 100).
		WillReturnRows(featureRow(t, pgxmock.NewRows(featureCols), sampleFeature("p1", 900_000)))

	got, err := s.Find(context.Background(), Query{
		BBox:     &bbox,
		MinPrice: model.Float(0),
		MaxPrice: model.Float(5_000_000),
		Search:   "50% off",
		Limit:    100,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Find_NoFiltersUsesCap(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM terrascope.properties ORDER BY created_at, id LIMIT \$1`).
		WithArgs(MaxResults).
		WillReturnRows(pgxmock.NewRows(featureCols))

	got, err := s.Find(context.Background(), Query{Limit: 10_000})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Find_Impute(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := sampleFeature("a", 100)
	b := sampleFeature("b", 200)
	rows := featureRow(t, pgxmock.NewRows(featureCols), a)
	featureRow(t, rows, b)
	mock.ExpectQuery(`LIMIT \$1`).WithArgs(MaxResults).WillReturnRows(rows)

	got, err := s.Find(context.Background(), Query{Impute: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Properties.ImputedFields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Find_InvalidPriceRange(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.Find(context.Background(), Query{MinPrice: model.Float(10), MaxPrice: model.Float(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minPrice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_terrascope_properties"}, propertyColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "terrascope"."properties"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	in := []model.Feature{sampleFeature("a", 100), sampleFeature("", 200)}
	n, err := s.InsertMany(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, in[1].ID, "caller slice is not modified")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMany_InvalidFeature(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	bad := sampleFeature("bad", -5)
	_, err := s.InsertMany(context.Background(), []model.Feature{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CityAnalytics(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(price\), 0\)`).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "avg_roi", "count", "avg"}).
			AddRow(3_000_000.0, 5.5, int64(3), 1_000_000.0))

	a, err := s.CityAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &CityAnalytics{TotalMarketValue: 3_000_000, AvgROI: 5.5, PropertyCount: 3, AvgPrice: 1_000_000}, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAndDeleteAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM terrascope.properties`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectExec(`DELETE FROM terrascope.properties`).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	deleted, err := s.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`pg_advisory_lock`).WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS terrascope`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM terrascope.schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_properties.sql"))
	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO terrascope.schema_migrations`).
		WithArgs("002_address_search.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`pg_advisory_unlock`).WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_ApplyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`pg_advisory_lock`).WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS terrascope`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM terrascope.schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnError(fmt.Errorf("extension not available"))
	mock.ExpectExec(`pg_advisory_unlock`).WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_properties.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_a\\b`, escapeLike(`100%_a\b`))
}
