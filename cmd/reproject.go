package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reproject-cli/internal/config"
	"github.com/sells-group/reproject-cli/internal/dataset"
	"github.com/sells-group/reproject-cli/internal/store"
)

var (
	reprojectOut            string
	reprojectOutDir         string
	reprojectCRS            string
	reprojectVerifyRepairs  bool
	reprojectIrregularZones bool
	reprojectReport         string
	reprojectPostGIS        bool
	reprojectConcurrency    int
)

var reprojectCmd = &cobra.Command{
	Use:   "reproject <file>...",
	Short: "Reproject datasets into their best-fitting UTM zone and repair invalid geometries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyReprojectFlags(cmd, cfg)

		mode := "cli"
		if reprojectPostGIS {
			mode = "postgis"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}
		if reprojectOut != "" && len(args) > 1 {
			return eris.New("--out accepts a single input; use --out-dir for several")
		}

		opts, err := optionsFromConfig(cfg, reprojectCRS)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var pg *postgisTarget
		if reprojectPostGIS {
			pool, err := store.Connect(ctx, cfg.Store.DatabaseURL, store.RetryConfig{JitterFraction: 0.25})
			if err != nil {
				return err
			}
			defer pool.Close()
			pg = &postgisTarget{pool: pool, opts: store.Options{
				Schema:    cfg.Store.Schema,
				Table:     cfg.Store.Table,
				BatchSize: cfg.Store.BatchSize,
			}}
			if err := pg.ensureTable(ctx); err != nil {
				return err
			}
		}

		outputs := make([]string, len(args))
		for i, in := range args {
			switch {
			case reprojectOut != "":
				outputs[i] = reprojectOut
			case reprojectOutDir == "" && len(args) == 1 && !reprojectPostGIS:
				outputs[i] = "-"
			default:
				outputs[i] = outputPath(in, "", reprojectOutDir)
			}
		}

		reports, err := reprojectFiles(ctx, args, outputs, opts, pg, cfg.Batch.Concurrency)
		if err != nil {
			return err
		}

		if reprojectReport != "" {
			return writeReports(reprojectReport, reports, cfg.Output.ReportFormat)
		}
		return nil
	},
}

// applyReprojectFlags copies explicitly set flags over the loaded config.
func applyReprojectFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("verify-repairs") {
		c.Reproject.VerifyRepairs = reprojectVerifyRepairs
	}
	if flags.Changed("irregular-zones") {
		c.Reproject.IrregularZones = reprojectIrregularZones
	}
	if flags.Changed("concurrency") {
		c.Batch.Concurrency = reprojectConcurrency
	}
}

// reprojectFiles runs every input concurrently, one dataset per goroutine.
// Reports come back in input order. The first failure cancels the rest.
func reprojectFiles(ctx context.Context, inputs, outputs []string, opts runOptions, pg *postgisTarget, concurrency int) ([]dataset.Report, error) {
	zap.L().Info("processing inputs",
		zap.Int("inputs", len(inputs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	reports := make([]dataset.Report, len(inputs))
	var repaired atomic.Int64

	for i, in := range inputs {
		g.Go(func() error {
			r, err := reprojectFile(gctx, in, outputs[i], opts, pg)
			if err != nil {
				zap.L().Error("reprojection failed", zap.String("source", in), zap.Error(err))
				return err
			}
			reports[i] = r
			repaired.Add(int64(len(r.Repaired)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "reproject")
	}

	zap.L().Info("reprojection complete",
		zap.Int("inputs", len(inputs)),
		zap.Int64("repaired", repaired.Load()),
	)
	return reports, nil
}

// writeReports writes the run summary. A .yaml or .yml path selects YAML
// regardless of the configured format.
func writeReports(path string, reports []dataset.Report, format string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".json":
		format = "json"
	}

	var buf bytes.Buffer
	if err := dataset.WriteReport(&buf, reports, format); err != nil {
		return err
	}
	if path == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return eris.Wrap(err, "write report")
	}
	return eris.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write report %s", path)
}

func init() {
	f := reprojectCmd.Flags()
	f.StringVar(&reprojectOut, "out", "", "output GeoJSON path for a single input (- for stdout)")
	f.StringVar(&reprojectOutDir, "out-dir", "", "directory for <name>_utm.geojson outputs")
	f.StringVar(&reprojectCRS, "crs", "", "source CRS (EPSG:NNNN or PROJ string), overrides the file")
	f.BoolVar(&reprojectVerifyRepairs, "verify-repairs", false, "fail when a repaired geometry is still invalid")
	f.BoolVar(&reprojectIrregularZones, "irregular-zones", false, "apply the Norway and Svalbard zone exceptions")
	f.StringVar(&reprojectReport, "report", "", "write a JSON or YAML run report to this path (- for stdout)")
	f.BoolVar(&reprojectPostGIS, "postgis", false, "also write results to the configured PostGIS table")
	f.IntVar(&reprojectConcurrency, "concurrency", 0, "inputs processed in parallel (default from config)")
	rootCmd.AddCommand(reprojectCmd)
}
