package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver

	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/tracing"
	"github.com/okian/hoopsrank/pkg/logger"
	"github.com/okian/hoopsrank/pkg/metrics"
)

const (
	driverName     = "sqlite"
	metricsTable   = "team_metrics"
	compositeTable = "composite_rankings"
)

const schema = `
CREATE TABLE IF NOT EXISTS team_metrics (
    date           TEXT    NOT NULL,
    team           TEXT    NOT NULL,
    source         TEXT    NOT NULL,
    overall_raw    REAL,
    overall_rank   INTEGER NOT NULL,
    overall_z      REAL,
    has_offensive  INTEGER NOT NULL DEFAULT 0,
    offensive_raw  REAL,
    offensive_rank INTEGER,
    offensive_z    REAL,
    has_defensive  INTEGER NOT NULL DEFAULT 0,
    defensive_raw  REAL,
    defensive_rank INTEGER,
    defensive_z    REAL,
    updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (date, team, source)
);
CREATE TABLE IF NOT EXISTS composite_rankings (
    date           TEXT    NOT NULL,
    team           TEXT    NOT NULL,
    subset         TEXT    NOT NULL,
    overall        REAL,
    offensive      REAL,
    defensive      REAL,
    overall_rank   INTEGER NOT NULL,
    offensive_rank INTEGER NOT NULL,
    defensive_rank INTEGER NOT NULL,
    updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (date, team, subset)
);
CREATE INDEX IF NOT EXISTS idx_composite_date_subset ON composite_rankings (date, subset);
`

const upsertMetricSQL = `
INSERT INTO team_metrics (
    date, team, source,
    overall_raw, overall_rank, overall_z,
    has_offensive, offensive_raw, offensive_rank, offensive_z,
    has_defensive, defensive_raw, defensive_rank, defensive_z
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (date, team, source) DO UPDATE SET
    overall_raw    = excluded.overall_raw,
    overall_rank   = excluded.overall_rank,
    overall_z      = excluded.overall_z,
    has_offensive  = excluded.has_offensive,
    offensive_raw  = excluded.offensive_raw,
    offensive_rank = excluded.offensive_rank,
    offensive_z    = excluded.offensive_z,
    has_defensive  = excluded.has_defensive,
    defensive_raw  = excluded.defensive_raw,
    defensive_rank = excluded.defensive_rank,
    defensive_z    = excluded.defensive_z,
    updated_at     = CURRENT_TIMESTAMP`

const upsertCompositeSQL = `
INSERT INTO composite_rankings (
    date, team, subset, overall, offensive, defensive,
    overall_rank, offensive_rank, defensive_rank
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (date, team, subset) DO UPDATE SET
    overall        = excluded.overall,
    offensive      = excluded.offensive,
    defensive      = excluded.defensive,
    overall_rank   = excluded.overall_rank,
    offensive_rank = excluded.offensive_rank,
    defensive_rank = excluded.defensive_rank,
    updated_at     = CURRENT_TIMESTAMP`

// SQLStore is a Store on SQLite through database/sql.
type SQLStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLStore opens path (":memory:" for a private in-memory database) and
// creates the schema.
func NewSQLStore(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Every pooled connection to :memory: would be its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, logger: logger.Get().Named("sqlstore")}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info(ctx, "store ready", logger.String("path", path))
	return s, nil
}

// nullable maps NaN, which SQLite cannot store as REAL, to NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func optional(m *model.Metric) (has int, raw, z any, rank any) {
	if m == nil {
		return 0, nil, nil, nil
	}
	return 1, nullable(m.Raw), nullable(m.Z), m.Rank
}

func (s *SQLStore) inTx(ctx context.Context, query string, n int, bind func(stmt *sql.Stmt, i int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if err := bind(stmt, i); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) UpsertMetricRows(ctx context.Context, rows []model.TeamMetricRow) (err error) {
	start := time.Now()
	ctx, end := tracing.StartStoreSpan(ctx, driverName, metricsTable, tracing.StoreOperationUpsert)
	defer func() {
		end(err)
		metrics.RecordRepositoryUpsertLatency(metricsTable, float64(time.Since(start).Milliseconds()))
	}()

	return s.inTx(ctx, upsertMetricSQL, len(rows), func(stmt *sql.Stmt, i int) error {
		r := &rows[i]
		hasOff, offRaw, offZ, offRank := optional(r.Offensive)
		hasDef, defRaw, defZ, defRank := optional(r.Defensive)
		if _, err := stmt.ExecContext(ctx,
			r.Date, r.Team, r.Source,
			nullable(r.Overall.Raw), r.Overall.Rank, nullable(r.Overall.Z),
			hasOff, offRaw, offRank, offZ,
			hasDef, defRaw, defRank, defZ,
		); err != nil {
			return fmt.Errorf("upsert %s/%s/%s: %w", r.Date, r.Team, r.Source, err)
		}
		return nil
	})
}

func (s *SQLStore) MetricRows(ctx context.Context, date string) (out []model.TeamMetricRow, err error) {
	start := time.Now()
	ctx, end := tracing.StartStoreSpan(ctx, driverName, metricsTable, tracing.StoreOperationQuery)
	defer func() {
		end(err)
		metrics.RecordRepositoryQueryLatency(metricsTable, float64(time.Since(start).Milliseconds()))
	}()

	rows, err := s.db.QueryContext(ctx, `
SELECT date, team, source, overall_raw, overall_rank, overall_z,
       has_offensive, offensive_raw, offensive_rank, offensive_z,
       has_defensive, defensive_raw, defensive_rank, defensive_z
FROM team_metrics WHERE date = ? ORDER BY source, team`, date)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                    model.TeamMetricRow
			overallRaw, overallZ sql.NullFloat64
			hasOff, hasDef       int
			offRaw, offZ         sql.NullFloat64
			defRaw, defZ         sql.NullFloat64
			offRank, defRank     sql.NullInt64
		)
		if err = rows.Scan(&r.Date, &r.Team, &r.Source, &overallRaw, &r.Overall.Rank, &overallZ,
			&hasOff, &offRaw, &offRank, &offZ,
			&hasDef, &defRaw, &defRank, &defZ); err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		r.Overall.Raw, r.Overall.Z = fromNull(overallRaw), fromNull(overallZ)
		if hasOff == 1 {
			r.Offensive = &model.Metric{Raw: fromNull(offRaw), Rank: int(offRank.Int64), Z: fromNull(offZ)}
		}
		if hasDef == 1 {
			r.Defensive = &model.Metric{Raw: fromNull(defRaw), Rank: int(defRank.Int64), Z: fromNull(defZ)}
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Dates(ctx context.Context) (out []string, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, driverName, metricsTable, tracing.StoreOperationQuery)
	defer func() { end(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT date FROM team_metrics ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d string
		if err = rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) LatestDate(ctx context.Context) (string, error) {
	var d sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM team_metrics`).Scan(&d); err != nil {
		return "", fmt.Errorf("latest date: %w", err)
	}
	if !d.Valid {
		return "", ErrNotFound
	}
	return d.String, nil
}

func (s *SQLStore) UpsertComposite(ctx context.Context, rows []model.CompositeRankingRow) (err error) {
	start := time.Now()
	ctx, end := tracing.StartStoreSpan(ctx, driverName, compositeTable, tracing.StoreOperationUpsert)
	defer func() {
		end(err)
		metrics.RecordRepositoryUpsertLatency(compositeTable, float64(time.Since(start).Milliseconds()))
	}()

	return s.inTx(ctx, upsertCompositeSQL, len(rows), func(stmt *sql.Stmt, i int) error {
		r := &rows[i]
		if _, err := stmt.ExecContext(ctx,
			r.Date, r.Team, r.Subset,
			nullable(r.Overall), nullable(r.Offensive), nullable(r.Defensive),
			r.OverallRank, r.OffensiveRank, r.DefensiveRank,
		); err != nil {
			return fmt.Errorf("upsert %s/%s/%s: %w", r.Date, r.Team, r.Subset, err)
		}
		return nil
	})
}

func (s *SQLStore) Composite(ctx context.Context, date, subset string) (out []model.CompositeRankingRow, err error) {
	start := time.Now()
	ctx, end := tracing.StartStoreSpan(ctx, driverName, compositeTable, tracing.StoreOperationQuery)
	defer func() {
		if errors.Is(err, ErrNotFound) {
			end(nil)
		} else {
			end(err)
		}
		metrics.RecordRepositoryQueryLatency(compositeTable, float64(time.Since(start).Milliseconds()))
	}()

	rows, err := s.db.QueryContext(ctx, `
SELECT date, team, subset, overall, offensive, defensive,
       overall_rank, offensive_rank, defensive_rank
FROM composite_rankings WHERE date = ? AND subset = ?
ORDER BY overall_rank, team`, date, subset)
	if err != nil {
		return nil, fmt.Errorf("query composite: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r            model.CompositeRankingRow
			ov, off, def sql.NullFloat64
		)
		if err = rows.Scan(&r.Date, &r.Team, &r.Subset, &ov, &off, &def,
			&r.OverallRank, &r.OffensiveRank, &r.DefensiveRank); err != nil {
			return nil, fmt.Errorf("scan composite: %w", err)
		}
		r.Overall, r.Offensive, r.Defensive = fromNull(ov), fromNull(off), fromNull(def)
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate composite: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM team_metrics),
       (SELECT COUNT(*) FROM composite_rankings),
       (SELECT COUNT(DISTINCT date) FROM team_metrics)`).Scan(&st.MetricRows, &st.CompositeRows, &st.Dates)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
