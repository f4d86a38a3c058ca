package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/config"
	"github.com/sells-group/reproject-cli/internal/crs"
	"github.com/sells-group/reproject-cli/internal/dataset"
	"github.com/sells-group/reproject-cli/internal/store"
	"github.com/sells-group/reproject-cli/internal/utm"
)

// runOptions are the settings shared by every input of one invocation.
type runOptions struct {
	SourceCRS      crs.Descriptor
	VerifyRepairs  bool
	IrregularZones bool
	Write          dataset.WriteOptions
}

// optionsFromConfig resolves the reproject and output sections of c.
// A non-empty crsFlag overrides reproject.source_crs.
func optionsFromConfig(c *config.Config, crsFlag string) (runOptions, error) {
	src := c.Reproject.SourceCRS
	if crsFlag != "" {
		src = crsFlag
	}
	d, err := crs.Resolve(src)
	if err != nil {
		return runOptions{}, eris.Wrapf(err, "source crs %q", src)
	}
	return runOptions{
		SourceCRS:      d,
		VerifyRepairs:  c.Reproject.VerifyRepairs,
		IrregularZones: c.Reproject.IrregularZones,
		Write:          dataset.WriteOptions{MaxDecimalDigits: c.Output.MaxDecimalDigits},
	}, nil
}

func (o runOptions) reprojector(sink utm.Sink) *utm.Reprojector {
	return utm.New(
		utm.WithSink(sink),
		utm.WithVerifyRepairs(o.VerifyRepairs),
		utm.WithIrregularZones(o.IrregularZones),
	)
}

// sinkFor tags repair diagnostics with the input they came from.
func sinkFor(source string) utm.Sink {
	log := zap.L().With(zap.String("component", "reproject"), zap.String("source", source))
	return utm.SinkFunc(func(msg string) { log.Warn(msg) })
}

// postgisTarget is the optional database destination of a run.
type postgisTarget struct {
	pool store.Pool
	opts store.Options
}

// ensureTable creates the target table once, before any input is loaded.
func (pg *postgisTarget) ensureTable(ctx context.Context) error {
	o := pg.opts.WithDefaults()
	return store.EnsureTable(ctx, pg.pool, o.Schema, o.Table)
}

// reprojectFile runs the full pipeline over one input and writes the
// result to out. An empty out skips writing and "-" writes to stdout.
func reprojectFile(ctx context.Context, path, out string, o runOptions, pg *postgisTarget) (dataset.Report, error) {
	ds, err := dataset.Load(path, o.SourceCRS)
	if err != nil {
		return dataset.Report{}, err
	}

	res, err := o.reprojector(sinkFor(path)).Reprojected(ds)
	if err != nil {
		return dataset.Report{}, eris.Wrapf(err, "reproject %s", path)
	}

	report := dataset.Report{
		Source:   path,
		Features: res.Dataset.Len(),
		Zone:     int(res.Zone),
		CRS:      string(res.Dataset.CRS),
		Repaired: res.Report.IDs,
		Output:   out,
	}

	if out != "" {
		if err := writeDataset(out, res.Dataset, o.Write); err != nil {
			return report, err
		}
	}

	if pg != nil {
		rows, runID, err := store.WriteDataset(ctx, pg.pool, pg.opts, res.Dataset, res.Report)
		if err != nil {
			return report, err
		}
		report.Rows = rows
		report.RunID = runID.String()
	}

	zap.L().Info("reprojected",
		zap.String("source", path),
		zap.Int("zone", report.Zone),
		zap.Int("features", report.Features),
		zap.Int("repaired", len(report.Repaired)),
	)
	return report, nil
}

func writeDataset(out string, ds *dataset.Dataset, opts dataset.WriteOptions) error {
	var buf bytes.Buffer
	if err := dataset.WriteGeoJSON(&buf, ds, opts); err != nil {
		return err
	}
	if out == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return eris.Wrap(err, "write stdout")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return eris.Wrapf(err, "create output dir for %s", out)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "write %s", out)
	}
	return nil
}

// outputPath picks where a reprojected input is written. out wins when
// set; otherwise the file lands in outDir (or next to the input) as
// <stem>_utm.geojson.
func outputPath(input, out, outDir string) string {
	if out != "" {
		return out
	}
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+"_utm.geojson")
}
