package store

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/crs"
	"github.com/sells-group/reproject-cli/internal/dataset"
	"github.com/sells-group/reproject-cli/internal/utm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func points(n int) *dataset.Dataset {
	ds := &dataset.Dataset{CRS: crs.UTM(32)}
	for i := 0; i < n; i++ {
		ds.Features = append(ds.Features, dataset.Feature{
			ID:       fmt.Sprint(i),
			Geometry: geom.NewPointFlat(geom.XY, []float64{500000 + float64(i), 4980000}),
		})
	}
	return ds
}

func TestEnsureTable(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "geo"`).
		WillReturnResult(pgxmock.NewResult("CREATE SCHEMA", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "geo"."parcels" \(.*srid\s+integer NOT NULL DEFAULT 0,\s+geom\s+geometry\(Geometry\)\s+\)`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_parcels_srid" ON "geo"."parcels" \(srid\)`).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_parcels_geom" ON "geo"."parcels" USING GIST \(geom\)`).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	err := EnsureTable(context.Background(), mock, "geo", "parcels")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable_Error(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectExec(`CREATE SCHEMA`).WillReturnResult(pgxmock.NewResult("CREATE SCHEMA", 0))
	mock.ExpectExec(`CREATE TABLE`).WillReturnError(fmt.Errorf("type \"geometry\" does not exist"))

	err := EnsureTable(context.Background(), mock, "geo", "parcels")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create table geo.parcels")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// recordingPool keeps the rows passed to CopyFrom.
type recordingPool struct {
	rows [][]any
}

func (p *recordingPool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (p *recordingPool) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		p.rows = append(p.rows, vals)
		n++
	}
	return n, src.Err()
}

func TestWriteDataset_TwoZonesOneTable(t *testing.T) {
	mock := newMockPool(t)

	// The table is created once; both zones then load into it.
	mock.ExpectExec(`CREATE SCHEMA`).WillReturnResult(pgxmock.NewResult("CREATE SCHEMA", 0))
	mock.ExpectExec(`geom\s+geometry\(Geometry\)`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"geo", "parcels"}, Columns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"geo", "parcels"}, Columns).WillReturnResult(2)

	ctx := context.Background()
	opts := Options{Schema: "geo", Table: "parcels"}
	require.NoError(t, EnsureTable(ctx, mock, opts.Schema, opts.Table))

	zone32, zone33 := points(2), points(2)
	zone33.CRS = crs.UTM(33)
	_, _, err := WriteDataset(ctx, mock, opts, zone32, utm.RepairReport{})
	require.NoError(t, err)
	_, _, err = WriteDataset(ctx, mock, opts, zone33, utm.RepairReport{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteDataset_RowSRID(t *testing.T) {
	srid := slices.Index(Columns, "srid")
	geomCol := slices.Index(Columns, "geom")
	require.GreaterOrEqual(t, srid, 0)
	require.GreaterOrEqual(t, geomCol, 0)

	for _, tt := range []struct {
		desc crs.Descriptor
		want int
	}{
		{crs.UTM(32), 32632},
		{crs.UTM(33), 32633},
	} {
		pool := &recordingPool{}
		ds := points(2)
		ds.CRS = tt.desc
		n, _, err := WriteDataset(context.Background(), pool, Options{}, ds, utm.RepairReport{})
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		for _, row := range pool.rows {
			require.Len(t, row, len(Columns))
			assert.Equal(t, tt.want, row[srid])
			g, err := ewkb.Unmarshal(row[geomCol].([]byte))
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.SRID())
		}
	}
}

func TestWriteDataset(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectCopyFrom(pgx.Identifier{"public", "reprojected_features"}, Columns).WillReturnResult(3)

	n, runID, err := WriteDataset(context.Background(), mock, Options{}, points(3), utm.RepairReport{IDs: []string{"1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NotEqual(t, uuid.Nil, runID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteDataset_Batches(t *testing.T) {
	mock := newMockPool(t)

	opts := Options{Schema: "geo", Table: "parcels", BatchSize: 2}
	mock.ExpectCopyFrom(pgx.Identifier{"geo", "parcels"}, Columns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"geo", "parcels"}, Columns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"geo", "parcels"}, Columns).WillReturnResult(1)

	n, _, err := WriteDataset(context.Background(), mock, opts, points(5), utm.RepairReport{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteDataset_Empty(t *testing.T) {
	n, runID, err := WriteDataset(context.Background(), nil, Options{}, &dataset.Dataset{CRS: crs.UTM(32)}, utm.RepairReport{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NotEqual(t, uuid.Nil, runID)
}

func TestWriteDataset_CopyError(t *testing.T) {
	mock := newMockPool(t)

	opts := Options{BatchSize: 2}
	mock.ExpectCopyFrom(pgx.Identifier{"public", "reprojected_features"}, Columns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"public", "reprojected_features"}, Columns).WillReturnError(fmt.Errorf("permission denied"))

	n, _, err := WriteDataset(context.Background(), mock, opts, points(3), utm.RepairReport{})
	require.Error(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, err.Error(), "COPY into public.reprojected_features (batch 2-3)")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteDataset_UnsupportedGeometry(t *testing.T) {
	ds := &dataset.Dataset{CRS: crs.UTM(32), Features: []dataset.Feature{{ID: "bad"}}}
	_, _, err := WriteDataset(context.Background(), nil, Options{}, ds, utm.RepairReport{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature bad")
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()
	assert.Equal(t, Options{Schema: "public", Table: "reprojected_features", BatchSize: 50000}, o)

	o = Options{Schema: "geo", Table: "t", BatchSize: 10}.WithDefaults()
	assert.Equal(t, Options{Schema: "geo", Table: "t", BatchSize: 10}, o)
}
