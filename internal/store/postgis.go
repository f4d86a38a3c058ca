// Package store writes reprojected datasets to a PostGIS table.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/crs"
	"github.com/sells-group/reproject-cli/internal/dataset"
	"github.com/sells-group/reproject-cli/internal/utm"
)

const defaultBatchSize = 50000

// Pool is the subset of *pgxpool.Pool used by the sink.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Columns is the column order used by WriteDataset.
var Columns = []string{"run_id", "feature_id", "repaired", "properties", "srid", "geom"}

// Options selects the target table.
type Options struct {
	Schema    string
	Table     string
	BatchSize int // 0 = default 50,000
}

// WithDefaults fills the unset fields.
func (o Options) WithDefaults() Options {
	if o.Schema == "" {
		o.Schema = "public"
	}
	if o.Table == "" {
		o.Table = "reprojected_features"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	return o
}

// Connect opens a pool and verifies it with a ping. Transient connection
// failures are retried according to rc.
func Connect(ctx context.Context, connString string, rc RetryConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create pool")
	}
	if err := retry(ctx, rc, "ping", pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping")
	}
	return pool, nil
}

// EnsureTable creates the schema, the feature table and its spatial index
// when they do not exist. The geometry column accepts any SRID, so datasets
// from different UTM zones share one table; each row also carries its EPSG
// code in srid.
func EnsureTable(ctx context.Context, pool Pool, schema, table string) error {
	schemaQuoted := pgx.Identifier{schema}.Sanitize()
	tableQuoted := pgx.Identifier{schema, table}.Sanitize()

	stmts := []struct{ desc, sql string }{
		{"create schema " + schema, "CREATE SCHEMA IF NOT EXISTS " + schemaQuoted},
		{"create table " + schema + "." + table, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id     uuid NOT NULL,
	feature_id text NOT NULL,
	repaired   boolean NOT NULL DEFAULT false,
	properties jsonb,
	srid       integer NOT NULL DEFAULT 0,
	geom       geometry(Geometry)
)`, tableQuoted)},
		{"create srid index on " + schema + "." + table, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (srid)",
			pgx.Identifier{fmt.Sprintf("idx_%s_srid", table)}.Sanitize(), tableQuoted,
		)},
		{"create GIST index on " + schema + "." + table, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
			pgx.Identifier{fmt.Sprintf("idx_%s_geom", table)}.Sanitize(), tableQuoted,
		)},
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s.sql); err != nil {
			return eris.Wrapf(err, "store: %s", s.desc)
		}
	}
	return nil
}

// WriteDataset copies ds into the table selected by opts under a fresh run
// ID. Features listed in report are flagged as repaired. The table must
// exist; see EnsureTable.
func WriteDataset(ctx context.Context, pool Pool, opts Options, ds *dataset.Dataset, report utm.RepairReport) (int64, uuid.UUID, error) {
	opts = opts.WithDefaults()
	runID := uuid.New()

	if ds.Len() == 0 {
		return 0, runID, nil
	}

	srid := crs.SRID(ds.CRS)
	repaired := make(map[string]bool, len(report.IDs))
	for _, id := range report.IDs {
		repaired[id] = true
	}

	log := zap.L().With(
		zap.String("component", "store"),
		zap.String("table", opts.Schema+"."+opts.Table),
		zap.String("run_id", runID.String()),
		zap.Int("total_rows", ds.Len()),
	)

	var total int64
	for i := 0; i < ds.Len(); i += opts.BatchSize {
		end := min(i+opts.BatchSize, ds.Len())

		rows := make([][]any, 0, end-i)
		for _, f := range ds.Features[i:end] {
			wkb, err := dataset.EncodeEWKB(f.Geometry, srid)
			if err != nil {
				return total, runID, eris.Wrapf(err, "store: feature %s", f.ID)
			}
			props := f.Properties
			if props == nil {
				props = map[string]any{}
			}
			rows = append(rows, []any{runID, f.ID, repaired[f.ID], props, srid, wkb})
		}

		n, err := pool.CopyFrom(ctx, pgx.Identifier{opts.Schema, opts.Table}, Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return total, runID, eris.Wrapf(err, "store: COPY into %s.%s (batch %d-%d)", opts.Schema, opts.Table, i, end)
		}
		total += n

		log.Debug("batch loaded",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}

	log.Info("dataset stored", zap.Int64("rows", total), zap.Int("srid", srid))
	return total, runID, nil
}
