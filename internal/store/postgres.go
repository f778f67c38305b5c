package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/terrascope/terrascope/internal/db"
	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/model"
)

const propertiesTable = "terrascope.properties"

// propertyColumns is the COPY column order used by InsertMany.
var propertyColumns = []string{
	"id", "address", "price", "height", "year_built", "owner", "land_use",
	"yield", "appreciation_rate", "zoning_risk", "geom",
}

const selectProperties = `SELECT id, address, price, height, year_built, owner, land_use,
	yield, appreciation_rate, zoning_risk, ST_AsEWKB(geom)
	FROM terrascope.properties`

// PostgresStore implements Store on PostGIS.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStore creates a PostgresStore on an existing pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertMany(ctx context.Context, features []model.Feature) (int64, error) {
	prepared, err := prepare(features)
	if err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(prepared))
	for _, f := range prepared {
		wkb, err := geospatial.EncodeEWKB(f.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode footprint %s", f.ID)
		}
		p := f.Properties
		rows = append(rows, []any{
			f.ID, p.Address, p.Price, p.Height, p.YearBuilt, p.Owner, string(p.LandUse),
			p.Yield, p.AppreciationRate, p.ZoningRisk, wkb,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        propertiesTable,
		Columns:      propertyColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert properties")
	}
	return n, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Feature, error) {
	f, err := scanFeature(s.pool.QueryRow(ctx, selectProperties+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get %s", id)
	}
	return f, nil
}

func (s *PostgresStore) Find(ctx context.Context, q Query) ([]model.Feature, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	where, args := postgresWhere(q)
	args = append(args, q.EffectiveLimit())
	sql := fmt.Sprintf("%s%s ORDER BY created_at, id LIMIT $%d", selectProperties, where, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find properties")
	}
	defer rows.Close()

	var out []model.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate properties")
	}
	return finish(out, q), nil
}

// postgresWhere builds the WHERE clause and positional args for q.
func postgresWhere(q Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.BBox != nil {
		b := q.BBox
		clauses = append(clauses, fmt.Sprintf("ST_Within(geom, ST_MakeEnvelope(%s, %s, %s, %s, %d))",
			next(b.West), next(b.South), next(b.East), next(b.North), geospatial.SRID))
	}
	if q.MinPrice != nil {
		clauses = append(clauses, "price >= "+next(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		clauses = append(clauses, "price <= "+next(*q.MaxPrice))
	}
	if q.Search != "" {
		clauses = append(clauses, "address ILIKE "+next("%"+escapeLike(q.Search)+"%"))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// escapeLike escapes LIKE metacharacters so the search is a literal substring.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *PostgresStore) CityAnalytics(ctx context.Context) (*CityAnalytics, error) {
	var a CityAnalytics
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(price), 0), COALESCE(AVG(yield), 0) * 100,
		COUNT(*), COALESCE(AVG(price), 0) FROM terrascope.properties`).
		Scan(&a.TotalMarketValue, &a.AvgROI, &a.PropertyCount, &a.AvgPrice)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: city analytics")
	}
	return &a, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM terrascope.properties").Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count properties")
	}
	return n, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM terrascope.properties")
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete properties")
	}
	return tag.RowsAffected(), nil
}

func scanFeature(row pgx.Row) (*model.Feature, error) {
	var (
		f       model.Feature
		landUse string
		wkb     []byte
	)
	p := &f.Properties
	if err := row.Scan(&f.ID, &p.Address, &p.Price, &p.Height, &p.YearBuilt, &p.Owner, &landUse,
		&p.Yield, &p.AppreciationRate, &p.ZoningRisk, &wkb); err != nil {
		return nil, err
	}
	g, err := geospatial.DecodeEWKB(wkb)
	if err != nil {
		return nil, err
	}
	f.Type = model.TypeFeature
	f.Geometry = g
	p.LandUse = model.LandUse(landUse)
	return &f, nil
}
