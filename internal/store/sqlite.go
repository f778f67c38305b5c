package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/terrascope/terrascope/internal/filter"
	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Features are kept
// as JSON documents next to their footprint envelope, and "within a box"
// means the envelope lies inside it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL DEFAULT '',
	price      REAL,
	yield      REAL,
	min_lng    REAL NOT NULL,
	min_lat    REAL NOT NULL,
	max_lng    REAL NOT NULL,
	max_lat    REAL NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_properties_envelope ON properties(min_lng, min_lat, max_lng, max_lat);
CREATE INDEX IF NOT EXISTS idx_properties_price ON properties(price);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertMany(ctx context.Context, features []model.Feature) (int64, error) {
	prepared, err := prepare(features)
	if err != nil {
		return 0, err
	}
	if len(prepared) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO properties (id, address, price, yield, min_lng, min_lat, max_lng, max_lat, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address, price = excluded.price, yield = excluded.yield,
			min_lng = excluded.min_lng, min_lat = excluded.min_lat,
			max_lng = excluded.max_lng, max_lat = excluded.max_lat, data = excluded.data`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, f := range prepared {
		env, err := geospatial.Envelope(f.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: envelope %s", f.ID)
		}
		data, err := json.Marshal(f)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal %s", f.ID)
		}
		res, err := stmt.ExecContext(ctx, f.ID, f.Properties.Address, f.Properties.Price, f.Properties.Yield,
			env.West, env.South, env.East, env.North, string(data))
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert %s", f.ID)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Feature, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM properties WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: get %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get %s", id)
	}
	var f model.Feature
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal %s", id)
	}
	return &f, nil
}

func (s *SQLiteStore) Find(ctx context.Context, q Query) ([]model.Feature, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT address, data FROM properties WHERE 1=1`
	var args []any
	if b := q.BBox; b != nil {
		query += ` AND min_lng >= ? AND min_lat >= ? AND max_lng <= ? AND max_lat <= ?`
		args = append(args, b.West, b.South, b.East, b.North)
	}
	if q.MinPrice != nil {
		query += ` AND price >= ?`
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query += ` AND price <= ?`
		args = append(args, *q.MaxPrice)
	}
	query += ` ORDER BY rowid`

	// Address search is folded in Go so it matches Unicode case-insensitively;
	// the limit then has to be applied after it.
	limit := q.EffectiveLimit()
	search := q.Search
	if search == "" {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find properties")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Feature{}
	for rows.Next() && len(out) < limit {
		var address, data string
		if err := rows.Scan(&address, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan property")
		}
		if !filter.ContainsFold(address, search) {
			continue
		}
		var f model.Feature
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal property")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate properties")
	}
	return finish(out, q), nil
}

func (s *SQLiteStore) CityAnalytics(ctx context.Context) (*CityAnalytics, error) {
	var a CityAnalytics
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(price), 0), COALESCE(AVG(yield), 0) * 100,
		COUNT(*), COALESCE(AVG(price), 0) FROM properties`).
		Scan(&a.TotalMarketValue, &a.AvgROI, &a.PropertyCount, &a.AvgPrice)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: city analytics")
	}
	return &a, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count properties")
	}
	return n, nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM properties`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete properties")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}
